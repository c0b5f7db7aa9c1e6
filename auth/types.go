package auth

import (
	"context"
	"fmt"
	"net/url"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Authenticator verifies credentials posted by a UI driver and builds
// new users out of sign-up input.
type Authenticator interface {
	Name() string
	SignIn(ctx context.Context, data url.Values) (*User, error)
	// SignUp returns an unsaved user, the Service persists it.
	SignUp(ctx context.Context, data url.Values) (*User, error)
}

// Config holds backend options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetSignUpEnabled() bool
	GetSignUpConfirmation() bool
	GetNewUserRoles() []string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
