package mail

import (
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	goerrors "github.com/goliatone/go-errors"
)

// Built in template names
const (
	TemplateSignUpConfirm     = "sign_up_confirm"
	TemplateSignUpAdminNotify = "sign_up_admin_notify"
	TemplateStatusChange      = "status_change"
	TemplateRestoreAccount    = "restore_account"
)

// Template is a pair of pongo2 templates, the subject is a single line
type Template struct {
	Subject string
	Body    string
}

var builtinTemplates = map[string]Template{
	TemplateSignUpConfirm: {
		Subject: `Please confirm your registration`,
		Body: `<p>Hello, {{ user.FirstName }}.</p>` +
			`<p>Thank you for signing up. Please follow <a href="{{ confirm_url }}">this link</a> to activate your account.</p>` +
			`<p>If you did not sign up, just ignore this message.</p>`,
	},
	TemplateSignUpAdminNotify: {
		Subject: `New user registered: {{ user.Login }}`,
		Body: `<p>Hello, {{ admin.FirstName }}.</p>` +
			`<p>A new user has just signed up: {{ user.FirstName }} {{ user.LastName }} ({{ user.Login }}).</p>` +
			`{% if profile_url %}<p><a href="{{ profile_url }}">Open the profile</a></p>{% endif %}`,
	},
	TemplateStatusChange: {
		Subject: `Your account status has changed`,
		Body: `<p>Hello, {{ user.FirstName }}.</p>` +
			`<p>The status of your account has been changed from <b>{{ from }}</b> to <b>{{ to }}</b>.</p>`,
	},
	TemplateRestoreAccount: {
		Subject: `Account restoration`,
		Body: `<p>Hello, {{ user.FirstName }}.</p>` +
			`<p>Your new password is: <b>{{ password }}</b></p>` +
			`<p><a href="{{ sign_in_url }}">Sign in</a> and change it in your profile.</p>`,
	},
}

type compiled struct {
	subject *pongo2.Template
	body    *pongo2.Template
}

// Templates compiles and renders mail templates
type Templates struct {
	mu    sync.RWMutex
	items map[string]compiled
}

// NewTemplates creates a set holding the built in templates
func NewTemplates() *Templates {
	t := &Templates{items: map[string]compiled{}}
	for name, tpl := range builtinTemplates {
		if err := t.Register(name, tpl); err != nil {
			panic(err)
		}
	}
	return t
}

// Register adds or replaces a template
func (t *Templates) Register(name string, tpl Template) error {
	subject, err := pongo2.FromString(tpl.Subject)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "invalid subject template "+name)
	}
	body, err := pongo2.FromString(tpl.Body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "invalid body template "+name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[name] = compiled{subject: subject, body: body}
	return nil
}

// Render builds a message for to out of the template name
func (t *Templates) Render(name string, to []string, data map[string]any) (Message, error) {
	t.mu.RLock()
	c, ok := t.items[name]
	t.mu.RUnlock()

	if !ok {
		return Message{}, goerrors.New("mail template "+name+" not found", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound)
	}

	ctx := pongo2.Context(data)

	subject, err := c.subject.Execute(ctx)
	if err != nil {
		return Message{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render mail subject "+name)
	}

	body, err := c.body.Execute(ctx)
	if err != nil {
		return Message{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render mail body "+name)
	}

	return Message{
		To:      to,
		Subject: strings.TrimSpace(subject),
		HTML:    body,
	}, nil
}
