package authui

import (
	"context"
	"net/url"
	"strings"

	"github.com/goliatone/go-auth-ui/auth"
	"github.com/goliatone/go-router"
)

// CurrentUserKey is the locals key holding the *auth.User of the request,
// templates see it under the same name
var CurrentUserKey = "current_user"

// HreflangKey is the locals key holding the alternate language links
var HreflangKey = "hreflang"

var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

// WithContext sets the user in the given context
func WithContext(ctx context.Context, user *auth.User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// FromContext finds the user in the context
func FromContext(ctx context.Context) (*auth.User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*auth.User)
	return raw, ok
}

// UserFromContext returns the user of the request, anonymous when the
// CurrentUser middleware did not run or found no session
func UserFromContext(ctx router.Context) *auth.User {
	if user, ok := ctx.Locals(CurrentUserKey).(*auth.User); ok && user != nil {
		return user
	}
	return auth.AnonymousUser()
}

// SetCurrentUser stores user as the user of the request
func SetCurrentUser(ctx router.Context, user *auth.User) {
	if user == nil {
		user = auth.AnonymousUser()
	}
	ctx.Locals(CurrentUserKey, user)
}

// RequestInput merges query parameters and an urlencoded body
func RequestInput(ctx router.Context) url.Values {
	out := url.Values{}
	for k, v := range ctx.Queries() {
		out.Set(k, v)
	}

	if !strings.HasPrefix(ctx.Header("Content-Type"), "application/x-www-form-urlencoded") {
		return out
	}

	body, err := url.ParseQuery(string(ctx.Body()))
	if err != nil {
		return out
	}
	for k, v := range body {
		out[k] = v
	}
	return out
}

// currentURL is the path and query of the request
func currentURL(ctx router.Context) string {
	if u := ctx.OriginalURL(); u != "" {
		return u
	}
	return ctx.Path()
}
