package authui

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/goliatone/go-auth-ui/auth"
	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the UI options
type Config interface {
	GetBasePath() string
	GetDefaultDriver() string
	GetCookieName() string
	GetCookieSecure() bool
	GetLanguages() []string
	GetSignUpAdminNotify() bool
	GetStatusChangeNotify() bool
	GetFormTokenKey() string
	GetSiteURL() string
}

// AuthService is the part of the auth backend the UI relies on
type AuthService interface {
	SignIn(ctx context.Context, driver string, data url.Values) (*auth.User, error)
	SignUp(ctx context.Context, driver string, data url.Values) (*auth.User, error)
	ConfirmSignUp(ctx context.Context, code string) (*auth.User, error)
	RestoreAccount(ctx context.Context, login string) (*auth.User, string, error)
	SignOut(ctx context.Context, user *auth.User)
	SignUpEnabled() bool
	SetSignUpEnabled(enabled bool)
	ConfirmationRequired() bool

	SessionToken(user *auth.User) (string, error)
	SessionTTL() time.Duration
	UserFromSession(ctx context.Context, token string) (*auth.User, error)
	TouchActivity(ctx context.Context, user *auth.User) error

	GetUser(ctx context.Context, id string) (*auth.User, error)
	GetUserByNickname(ctx context.Context, nickname string) (*auth.User, error)
	FindUsers(ctx context.Context, q auth.UserQuery) ([]*auth.User, int, error)
	AdminUsers(ctx context.Context) ([]*auth.User, error)
	CreateUser(ctx context.Context, user *auth.User, password string) (*auth.User, error)
	SaveUser(ctx context.Context, actor *auth.User, user *auth.User) (*auth.User, error)
	IsFieldUnique(ctx context.Context, field, value string, exclude uuid.UUID) (bool, error)

	Roles(ctx context.Context) ([]*auth.Role, error)
	GetRole(ctx context.Context, id string) (*auth.Role, error)
	SaveRole(ctx context.Context, role *auth.Role) (*auth.Role, error)
	IsRoleNameUnique(ctx context.Context, name string, exclude uuid.UUID) (bool, error)
	Permissions() *auth.Permissions

	Follow(ctx context.Context, follower, following *auth.User) error
	Unfollow(ctx context.Context, follower, following *auth.User) error
	IsFollowing(ctx context.Context, follower, following *auth.User) (bool, error)
	FollowCounts(ctx context.Context, user *auth.User) (int, int, error)

	OnSignUp(hook auth.SignUpHook)
	OnStatusChange(hook auth.TransitionHook)
}

var _ AuthService = (*auth.Service)(nil)

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH-UI "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH-UI "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH-UI "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH-UI "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
