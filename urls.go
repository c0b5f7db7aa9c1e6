package authui

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-auth-ui/auth"
	"github.com/goliatone/go-auth-ui/form"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultBasePath is the prefix of every UI route
const DefaultBasePath = "/auth"

// URLs builds the UI links
type URLs struct {
	basePath string
	registry *Registry
}

// NewURLs creates a link builder, the registry resolves empty driver names
func NewURLs(basePath string, registry *Registry) *URLs {
	return &URLs{basePath: normalizeBasePath(basePath), registry: registry}
}

// BasePath returns the normalized route prefix
func (u *URLs) BasePath() string {
	return u.basePath
}

// Path joins segments under the base path
func (u *URLs) Path(segments ...string) string {
	return joinPath(u.basePath, segments...)
}

// SignInURL links to the sign in page of driver
func (u *URLs) SignInURL(driver, redirect string) (string, error) {
	return u.pageURL(FormSignIn, driver, redirect)
}

// SignUpURL links to the sign up page of driver
func (u *URLs) SignUpURL(driver, redirect string) (string, error) {
	return u.pageURL(FormSignUp, driver, redirect)
}

// RestoreURL links to the restore account page of driver
func (u *URLs) RestoreURL(driver, redirect string) (string, error) {
	return u.pageURL(FormRestore, driver, redirect)
}

// SignInSubmitURL is the action of the sign in form of driver
func (u *URLs) SignInSubmitURL(driver string) (string, error) {
	return u.submitURL(FormSignIn, driver)
}

// SignUpSubmitURL is the action of the sign up form of driver
func (u *URLs) SignUpSubmitURL(driver string) (string, error) {
	return u.submitURL(FormSignUp, driver)
}

// RestoreSubmitURL is the action of the restore account form of driver
func (u *URLs) RestoreSubmitURL(driver string) (string, error) {
	return u.submitURL(FormRestore, driver)
}

// SignOutURL links to the sign out route
func (u *URLs) SignOutURL(redirect string) string {
	return withRedirect(u.Path("sign-out"), redirect)
}

// ConfirmURL links to the sign up confirmation of code
func (u *URLs) ConfirmURL(code string) string {
	return u.Path("sign-up", "confirm", url.PathEscape(code))
}

// ProfileViewURL links to the profile page, user is a *auth.User or a nickname
func (u *URLs) ProfileViewURL(user any) (string, error) {
	nickname, err := NicknameOf(user)
	if err != nil {
		return "", err
	}
	return u.Path("user", url.PathEscape(nickname)), nil
}

// ProfileEditURL links to the profile edit page, user is a *auth.User or a nickname
func (u *URLs) ProfileEditURL(user any) (string, error) {
	nickname, err := NicknameOf(user)
	if err != nil {
		return "", err
	}
	return u.Path("user", url.PathEscape(nickname), "edit"), nil
}

func (u *URLs) pageURL(kind, driver, redirect string) (string, error) {
	name, err := u.resolve(driver)
	if err != nil {
		return "", err
	}
	return withRedirect(u.Path(kind, name), redirect), nil
}

func (u *URLs) submitURL(kind, driver string) (string, error) {
	name, err := u.resolve(driver)
	if err != nil {
		return "", err
	}
	return submitPath(u.basePath, kind, name), nil
}

func (u *URLs) resolve(driver string) (string, error) {
	d, err := u.registry.Get(driver)
	if err != nil {
		return "", err
	}
	return d.Name(), nil
}

// NicknameOf extracts a nickname from a *auth.User or a string
func NicknameOf(v any) (string, error) {
	switch u := v.(type) {
	case *auth.User:
		if u == nil {
			break
		}
		return u.Nickname, nil
	case string:
		return u, nil
	}
	return "", goerrors.New(fmt.Sprintf("user or nickname expected, got %T", v), goerrors.CategoryBadInput).
		WithTextCode(TextCodeInvalidNickname).
		WithCode(goerrors.CodeBadRequest)
}

// SafeRedirect returns target when it is a relative path on this site,
// fallback otherwise
func SafeRedirect(target, fallback string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return fallback
	}

	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}

	parsed, err := url.Parse(target)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" {
		return fallback
	}

	return target
}

func submitPath(basePath, kind, driver string) string {
	return joinPath(basePath, kind, driver, "post")
}

func withRedirect(path, redirect string) string {
	if redirect == "" {
		return path
	}
	return path + "?" + url.Values{form.RedirectField: {redirect}}.Encode()
}

func joinPath(basePath string, segments ...string) string {
	parts := make([]string, 0, len(segments)+1)
	if basePath != "" {
		parts = append(parts, basePath)
	}
	for _, s := range segments {
		if s = strings.Trim(s, "/"); s != "" {
			parts = append(parts, s)
		}
	}
	out := strings.Join(parts, "/")
	if !strings.HasPrefix(out, "/") {
		out = "/" + out
	}
	return out
}

func normalizeBasePath(basePath string) string {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return DefaultBasePath
	}
	basePath = "/" + strings.Trim(basePath, "/")
	if basePath == "/" {
		return ""
	}
	return basePath
}
