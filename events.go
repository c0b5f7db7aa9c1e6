package authui

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-auth-ui/auth"
	"github.com/goliatone/go-auth-ui/mail"
)

// Notifier mails users about their account lifecycle. Messages are
// rendered in the caller goroutine and delivered in the background.
type Notifier struct {
	Logger    Logger
	svc       AuthService
	urls      *URLs
	cfg       Config
	sender    mail.Sender
	templates *mail.Templates
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NotifierOption configures a Notifier
type NotifierOption func(*Notifier) *Notifier

// WithNotifierLogger sets the logger
func WithNotifierLogger(logger Logger) NotifierOption {
	return func(n *Notifier) *Notifier {
		n.Logger = logger
		return n
	}
}

// WithMailTemplates replaces the built in mail templates
func WithMailTemplates(templates *mail.Templates) NotifierOption {
	return func(n *Notifier) *Notifier {
		n.templates = templates
		return n
	}
}

// WithSendTimeout bounds the delivery of a single message
func WithSendTimeout(d time.Duration) NotifierOption {
	return func(n *Notifier) *Notifier {
		n.timeout = d
		return n
	}
}

// NewNotifier creates a notifier sending through sender
func NewNotifier(svc AuthService, urls *URLs, cfg Config, sender mail.Sender, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		Logger:    defLogger{},
		svc:       svc,
		urls:      urls,
		cfg:       cfg,
		sender:    sender,
		templates: mail.NewTemplates(),
		timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		n = opt(n)
	}
	return n
}

// RegisterEventHandlers subscribes n to the sign up and status change
// hooks of svc
func RegisterEventHandlers(svc AuthService, n *Notifier) {
	svc.OnSignUp(n.SignUp)
	svc.OnStatusChange(n.StatusChange)
}

// SignUp sends the confirmation link to user and notifies the admins
func (n *Notifier) SignUp(ctx context.Context, user *auth.User) error {
	if n.svc.ConfirmationRequired() && user.ConfirmationHash != "" {
		err := n.send(mail.TemplateSignUpConfirm, recipient(user), map[string]any{
			"user":        user,
			"confirm_url": n.absolute(n.urls.ConfirmURL(user.ConfirmationHash)),
		})
		if err != nil {
			return err
		}
	}

	if !n.cfg.GetSignUpAdminNotify() {
		return nil
	}

	admins, err := n.svc.AdminUsers(ctx)
	if err != nil {
		return err
	}

	profileURL := ""
	if u, err := n.urls.ProfileViewURL(user); err == nil && user.Nickname != "" {
		profileURL = n.absolute(u)
	}

	for _, admin := range admins {
		err := n.send(mail.TemplateSignUpAdminNotify, recipient(admin), map[string]any{
			"user":        user,
			"admin":       admin,
			"profile_url": profileURL,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// StatusChange tells the user the status of the account changed
func (n *Notifier) StatusChange(ctx context.Context, tc auth.TransitionContext) error {
	if !n.cfg.GetStatusChangeNotify() || tc.User == nil || tc.From == tc.To {
		return nil
	}

	statuses := auth.Statuses()
	return n.send(mail.TemplateStatusChange, recipient(tc.User), map[string]any{
		"user": tc.User,
		"from": statusTitle(statuses, tc.From),
		"to":   statusTitle(statuses, tc.To),
	})
}

// RestoreAccount mails the password issued by the account restoration
func (n *Notifier) RestoreAccount(ctx context.Context, user *auth.User, password string) error {
	signIn, err := n.urls.SignInURL("", "")
	if err != nil {
		return err
	}
	return n.send(mail.TemplateRestoreAccount, recipient(user), map[string]any{
		"user":        user,
		"password":    password,
		"sign_in_url": n.absolute(signIn),
	})
}

// Wait blocks until the queued messages were handled
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) send(template, to string, data map[string]any) error {
	if to == "" {
		n.Logger.Warn("mail skipped, user has no address", "template", template)
		return nil
	}

	msg, err := n.templates.Render(template, []string{to}, data)
	if err != nil {
		return err
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		if err := n.sender.Send(ctx, msg); err != nil {
			n.Logger.Error("mail delivery failed", "template", template, "to", to, "error", err)
			return
		}
		n.Logger.Debug("mail sent", "template", template, "to", to)
	}()
	return nil
}

func (n *Notifier) absolute(path string) string {
	site := strings.TrimRight(n.cfg.GetSiteURL(), "/")
	if site == "" || !strings.HasPrefix(path, "/") {
		return path
	}
	return site + path
}

func recipient(user *auth.User) string {
	if user.Email != "" {
		return user.Email
	}
	if strings.Contains(user.Login, "@") {
		return user.Login
	}
	return ""
}

func statusTitle(statuses map[auth.UserStatus]string, s auth.UserStatus) string {
	if title, ok := statuses[s]; ok {
		return title
	}
	return string(s)
}
