package authui

import (
	"github.com/goliatone/go-auth-ui/auth"
	"github.com/goliatone/go-router"
)

// TemplateUserKey is the global holding the current user in views
var TemplateUserKey = "auth_current_user"

// TemplateHelpers returns the functions and data views use to link to the
// authentication pages. Pass it to the view engine as global data.
//
// In templates:
//
//	<a href="{{ auth_sign_in_url(request_path) }}">Sign in</a>
//	{% if is_authenticated(auth_current_user) %}
//	<a href="{{ auth_profile_url(auth_current_user) }}">Profile</a>
func TemplateHelpers(urls *URLs) map[string]any {
	return map[string]any{
		"is_authenticated": isAuthenticated,
		"has_role":         hasRole,
		"is_admin":         isAdmin,

		"auth_sign_in_url": func(redirect string) string {
			u, err := urls.SignInURL("", redirect)
			if err != nil {
				return ""
			}
			return u
		},
		"auth_sign_up_url": func(redirect string) string {
			u, err := urls.SignUpURL("", redirect)
			if err != nil {
				return ""
			}
			return u
		},
		"auth_sign_out_url": urls.SignOutURL,
		"auth_profile_url": func(user any) string {
			u, err := urls.ProfileViewURL(user)
			if err != nil {
				return ""
			}
			return u
		},
		"auth_profile_edit_url": func(user any) string {
			u, err := urls.ProfileEditURL(user)
			if err != nil {
				return ""
			}
			return u
		},

		"robots_disallow": RobotsDisallow(urls),
	}
}

// TemplateHelpersWithRouter adds the user of the request to TemplateHelpers
func TemplateHelpersWithRouter(ctx router.Context, urls *URLs) map[string]any {
	helpers := TemplateHelpers(urls)
	helpers[TemplateUserKey] = UserFromContext(ctx)
	return helpers
}

// RobotsDisallow lists the paths crawlers should skip
func RobotsDisallow(urls *URLs) []string {
	p := urls.Path()
	if p != "/" {
		p += "/"
	}
	return []string{p}
}

func isAuthenticated(user any) bool {
	u, ok := user.(*auth.User)
	return ok && !u.IsAnonymous()
}

func hasRole(user any, role string) bool {
	u, ok := user.(*auth.User)
	return ok && u.HasRole(role)
}

func isAdmin(user any) bool {
	u, ok := user.(*auth.User)
	return ok && u.IsAdmin()
}
