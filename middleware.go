package authui

import (
	"github.com/goliatone/go-auth-ui/auth"
	"github.com/goliatone/go-router"
)

// Hreflang is an alternate language link of the current page
type Hreflang struct {
	Lang string
	URL  string
}

// CurrentUser resolves the user of every request out of the session
// cookie and stores it in locals under CurrentUserKey. Requests without
// a valid session run as the anonymous user.
func (c *Controller) CurrentUser() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			c.dispatch(ctx)

			err := next(ctx)

			if UserFromContext(ctx).IsAnonymous() && c.Sessions.Token(ctx) != "" && !c.Sessions.Cleared(ctx) {
				c.Sessions.Clear(ctx)
			}
			return err
		}
	}
}

func (c *Controller) dispatch(ctx router.Context) {
	SetCurrentUser(ctx, nil)
	c.setHreflang(ctx)

	token := c.Sessions.Token(ctx)
	if token == "" {
		return
	}

	user, err := c.Service.UserFromSession(ctx.Context(), token)
	if err != nil {
		if auth.IsUserNotFound(err) {
			c.Logger.Info("session user does not exist anymore", "path", ctx.Path())
		} else {
			c.Logger.Debug("invalid session token", "error", err)
		}
		c.Sessions.Clear(ctx)
		return
	}

	SetCurrentUser(ctx, user)

	if !user.IsActive() {
		c.Logger.Info("signing out inactive user", "user", user.ID.String(), "status", string(user.Status))
		c.Sessions.End(ctx)
		return
	}

	ctx.SetHeader("Cache-Control", "no-cache, no-store")

	if err := c.Service.TouchActivity(ctx.Context(), user); err != nil {
		c.Logger.Error("failed to update last activity", "user", user.ID.String(), "error", err)
	}
}

func (c *Controller) setHreflang(ctx router.Context) {
	langs := c.Config.GetLanguages()
	home := c.URLs.BasePath()
	if home == "" {
		home = "/"
	}
	if len(langs) < 2 || ctx.Path() != home {
		return
	}

	out := make([]Hreflang, 0, len(langs))
	for i, lang := range langs {
		u := home
		if i > 0 {
			u = joinPath("/"+lang, c.URLs.BasePath())
		}
		out = append(out, Hreflang{Lang: lang, URL: u})
	}
	ctx.Locals(HreflangKey, out)
}
