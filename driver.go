package authui

import (
	"github.com/goliatone/go-auth-ui/form"
	"github.com/goliatone/go-router"
)

// FormOptions are passed by the registry to driver form builders
type FormOptions struct {
	Name     string
	CSS      string
	Action   string
	Title    string
	Redirect string
	Attrs    map[string]string
}

// Apply copies the options to f
func (o FormOptions) Apply(f *form.Form) *form.Form {
	if o.Name != "" {
		f.Name = o.Name
	}
	if o.CSS != "" {
		f.CSS = o.CSS
	}
	if o.Action != "" {
		f.Action = o.Action
	}
	if o.Title != "" {
		f.Title = o.Title
	}
	if o.Redirect != "" {
		f.Redirect = o.Redirect
	}
	for k, v := range o.Attrs {
		f.SetAttr(k, v)
	}
	return f
}

// Driver is a pluggable authentication UI. Its name must match the name of
// the auth.Authenticator that handles the submitted forms.
type Driver interface {
	Name() string
	Description() string
	SignInForm(ctx router.Context, opts FormOptions) (*form.Form, error)
	SignUpForm(ctx router.Context, opts FormOptions) (*form.Form, error)
	RestoreAccountForm(ctx router.Context, opts FormOptions) (*form.Form, error)
}
