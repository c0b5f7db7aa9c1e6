// Package password is the login and password authentication UI driver.
// Its forms post to the auth.PasswordAuthenticator of the same name.
package password

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	authui "github.com/goliatone/go-auth-ui"
	"github.com/goliatone/go-auth-ui/auth"
	"github.com/goliatone/go-auth-ui/form"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

var errPasswordMismatch = errors.New("passwords do not match")

// Driver renders the password forms
type Driver struct {
	description string
	users       auth.FieldChecker
}

var _ authui.Driver = (*Driver)(nil)

// Option configures a Driver
type Option func(*Driver)

// WithDescription sets the title shown in the driver select
func WithDescription(description string) Option {
	return func(d *Driver) { d.description = description }
}

// WithFieldChecker enables the sign up check for nicknames already in use
func WithFieldChecker(users auth.FieldChecker) Option {
	return func(d *Driver) { d.users = users }
}

// New creates the driver
func New(opts ...Option) *Driver {
	d := &Driver{description: "Login and password"}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Name() string {
	return auth.PasswordAuthenticatorName
}

func (d *Driver) Description() string {
	return d.description
}

// SignInForm asks for login and password. The login is prefilled from
// the query, the auth filter copies it there.
func (d *Driver) SignInForm(ctx router.Context, opts authui.FormOptions) (*form.Form, error) {
	f := form.New(opts.Name)

	login := loginInput(form.WithWeight(10))
	if err := login.SetValue(ctx.Query("login", "")); err != nil {
		return nil, err
	}

	err := f.Add(
		login,
		form.NewPassword("password",
			form.WithLabel("Password"),
			form.WithPlaceholder("Password"),
			form.WithWeight(20),
			form.Required(),
		),
		form.NewSubmit("submit", "Sign in"),
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// SignUpForm asks for the name, the login and a confirmed password
func (d *Driver) SignUpForm(ctx router.Context, opts authui.FormOptions) (*form.Form, error) {
	f := form.New(opts.Name)

	pwd := form.NewPassword("password",
		form.WithLabel("Password"),
		form.WithWeight(50),
		form.Required(),
		form.WithRules(validation.Length(8, 100)),
	)

	confirm := form.NewPassword("password_confirm",
		form.WithLabel("Confirm password"),
		form.WithWeight(60),
		form.Required(),
	)
	confirm.AddRules(validation.By(func(value any) error {
		s, _ := value.(string)
		if s != pwd.Value() {
			return errPasswordMismatch
		}
		return nil
	}))

	nickname := form.NewText("nickname",
		form.WithLabel("Nickname"),
		form.WithHelp("Leave empty to build one out of your login"),
		form.WithWeight(40),
		form.WithRules(auth.NicknameRule),
	)
	if d.users != nil {
		nickname.AddRules(auth.UniqueUserFieldRule(ctx.Context(), d.users, "nickname", uuid.Nil))
	}

	err := f.Add(
		form.NewText("first_name",
			form.WithLabel("First name"),
			form.WithWeight(10),
			form.Required(),
			form.WithRules(validation.Length(1, 200)),
		),
		form.NewText("last_name",
			form.WithLabel("Last name"),
			form.WithWeight(20),
			form.WithRules(validation.Length(0, 200)),
		),
		loginInput(form.WithWeight(30)),
		nickname,
		pwd,
		confirm,
		form.NewSubmit("submit", "Sign up"),
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// RestoreAccountForm asks for the login a new password is mailed to
func (d *Driver) RestoreAccountForm(ctx router.Context, opts authui.FormOptions) (*form.Form, error) {
	f := form.New(opts.Name)

	err := f.Add(
		loginInput(
			form.WithWeight(10),
			form.WithHelp("A new password will be sent to this address"),
		),
		form.NewSubmit("submit", "Restore"),
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func loginInput(opts ...form.Option) *form.Input {
	return form.NewEmail("login", append([]form.Option{
		form.WithLabel("Login"),
		form.WithPlaceholder("Email"),
		form.Required(),
		form.WithRules(is.Email),
	}, opts...)...)
}
