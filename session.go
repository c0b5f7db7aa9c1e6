package authui

import (
	"time"

	"github.com/goliatone/go-auth-ui/auth"
	"github.com/goliatone/go-router"
)

const sessionClearedKey = "auth_ui_session_cleared"

// Sessions writes and clears the session cookie
type Sessions struct {
	svc    AuthService
	cfg    Config
	now    func() time.Time
	logger Logger
}

// NewSessions creates the cookie helper
func NewSessions(svc AuthService, cfg Config, logger Logger) *Sessions {
	if logger == nil {
		logger = defLogger{}
	}
	return &Sessions{svc: svc, cfg: cfg, now: time.Now, logger: logger}
}

// Token returns the session cookie value of the request
func (s *Sessions) Token(ctx router.Context) string {
	return ctx.Cookies(s.cfg.GetCookieName())
}

// Start issues a session token for user and makes it the current user
func (s *Sessions) Start(ctx router.Context, user *auth.User) error {
	token, err := s.svc.SessionToken(user)
	if err != nil {
		return err
	}

	ctx.Cookie(&router.Cookie{
		Name:     s.cfg.GetCookieName(),
		Value:    token,
		Path:     "/",
		Expires:  s.now().Add(s.svc.SessionTTL()),
		HTTPOnly: true,
		Secure:   s.cfg.GetCookieSecure(),
		SameSite: "Lax",
	})

	SetCurrentUser(ctx, user)
	return nil
}

// End signs the current user out and deletes the cookie
func (s *Sessions) End(ctx router.Context) {
	user := UserFromContext(ctx)
	if !user.IsAnonymous() {
		s.svc.SignOut(ctx.Context(), user)
		s.logger.Info("user signed out", "user", user.ID.String())
	}
	s.Clear(ctx)
	SetCurrentUser(ctx, nil)
}

// Clear expires the session cookie
func (s *Sessions) Clear(ctx router.Context) {
	ctx.Locals(sessionClearedKey, true)
	ctx.Cookie(&router.Cookie{
		Name:     s.cfg.GetCookieName(),
		Value:    "",
		Path:     "/",
		Expires:  s.now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   s.cfg.GetCookieSecure(),
		SameSite: "Lax",
	})
}

// Cleared reports whether Clear already ran for the request
func (s *Sessions) Cleared(ctx router.Context) bool {
	cleared, _ := ctx.Locals(sessionClearedKey).(bool)
	return cleared
}
