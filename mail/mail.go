package mail

import (
	"context"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/jordan-wright/email"
)

// Logger is the logging contract used by senders
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Message is a single outgoing email
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers messages
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// SMTPConfig holds the SMTP connection settings
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Enabled reports whether a host was configured
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

// Addr returns host:port, port defaults to 25
func (c SMTPConfig) Addr() string {
	port := c.Port
	if port == 0 {
		port = 25
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// SMTPSender sends messages through an SMTP relay
type SMTPSender struct {
	cfg  SMTPConfig
	send func(e *email.Email, addr string, a smtp.Auth) error
}

// NewSMTPSender creates an SMTP sender
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		cfg: cfg,
		send: func(e *email.Email, addr string, a smtp.Auth) error {
			return e.Send(addr, a)
		},
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return goerrors.New("message has no recipients", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	e := s.build(msg)

	var a smtp.Auth
	if s.cfg.User != "" {
		a = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}

	if err := s.send(e, s.cfg.Addr(), a); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send mail").
			WithMetadata(map[string]any{
				"to":      strings.Join(msg.To, ","),
				"subject": msg.Subject,
			})
	}
	return nil
}

func (s *SMTPSender) build(msg Message) *email.Email {
	e := email.NewEmail()
	e.From = s.cfg.From
	e.To = msg.To
	e.Subject = msg.Subject
	if msg.Text != "" {
		e.Text = []byte(msg.Text)
	}
	if msg.HTML != "" {
		e.HTML = []byte(msg.HTML)
	}
	return e
}

// LogSender logs messages instead of sending them, used when no SMTP host
// is configured
type LogSender struct {
	Logger Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	s.Logger.Info("mail not sent, no SMTP host", "to", strings.Join(msg.To, ","), "subject", msg.Subject)
	s.Logger.Debug("mail body", "text", msg.Text, "html", msg.HTML)
	return nil
}
