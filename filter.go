package authui

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-auth-ui/form"
	"github.com/goliatone/go-router"
)

// AuthFilter only lets authenticated users through. Anonymous users are
// redirected to the sign in page of the default driver, carrying the
// request input and the current URL as __redirect.
func (c *Controller) AuthFilter() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if !UserFromContext(ctx).IsAnonymous() {
				return next(ctx)
			}

			target, err := c.signInRedirect(ctx)
			if err != nil {
				return c.ErrorHandler(ctx, err)
			}

			c.Logger.Debug("anonymous access, redirecting to sign in", "path", ctx.Path())
			return ctx.Redirect(target, redirectStatus(ctx))
		}
	}
}

// signInRedirect builds the sign in URL of the default driver with the
// request input copied to the query, password fields left out
func (c *Controller) signInRedirect(ctx router.Context) (string, error) {
	target, err := c.URLs.SignInURL("", "")
	if err != nil {
		return "", err
	}

	input := RequestInput(ctx)
	input.Del(form.LocationField)
	input.Del(form.TokenField)
	for k := range input {
		if isSecretField(k) {
			input.Del(k)
		}
	}
	input.Set(form.RedirectField, currentURL(ctx))

	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + input.Encode(), nil
}

// redirectStatus keeps the method of non GET requests out of the redirect
func redirectStatus(ctx router.Context) int {
	if ctx.Method() == http.MethodGet {
		return http.StatusFound
	}
	return http.StatusSeeOther
}
