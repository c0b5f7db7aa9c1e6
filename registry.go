package authui

import (
	"strings"
	"sync"

	"github.com/goliatone/go-auth-ui/form"
	"github.com/goliatone/go-router"
)

// Form kinds, used to build form names, CSS and routes
const (
	FormSignIn  = "sign-in"
	FormSignUp  = "sign-up"
	FormRestore = "restore"
)

var defaultTitles = map[string]string{
	FormSignIn:  "Authentication",
	FormSignUp:  "Sign up",
	FormRestore: "Restore account",
}

// Registry keeps the authentication UI drivers in registration order
type Registry struct {
	mu            sync.RWMutex
	drivers       map[string]Driver
	order         []string
	basePath      string
	defaultDriver func() string
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry) *Registry

// WithRegistryBasePath sets the path prefix used for form actions
func WithRegistryBasePath(basePath string) RegistryOption {
	return func(r *Registry) *Registry {
		r.basePath = normalizeBasePath(basePath)
		return r
	}
}

// WithDefaultDriver sets the source of the default driver name, usually
// the settings store. It is read on every lookup.
func WithDefaultDriver(source func() string) RegistryOption {
	return func(r *Registry) *Registry {
		r.defaultDriver = source
		return r
	}
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		drivers:       map[string]Driver{},
		basePath:      DefaultBasePath,
		defaultDriver: func() string { return "" },
	}
	for _, opt := range opts {
		r = opt(r)
	}
	return r
}

// Register adds a driver, names must be unique
func (r *Registry) Register(d Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := d.Name()
	if _, ok := r.drivers[name]; ok {
		return DriverAlreadyRegistered(name)
	}

	r.drivers[name] = d
	r.order = append(r.order, name)
	return nil
}

// MustRegister is Register that panics
func (r *Registry) MustRegister(d Driver) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Get returns the named driver. An empty name resolves to the configured
// default when it is registered, otherwise to the first registered driver.
func (r *Registry) Get(name string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return nil, ErrNoDriversRegistered
	}

	if name == "" {
		if def := r.defaultDriver(); def != "" {
			if d, ok := r.drivers[def]; ok {
				return d, nil
			}
		}
		return r.drivers[r.order[0]], nil
	}

	d, ok := r.drivers[name]
	if !ok {
		return nil, DriverNotRegistered(name)
	}
	return d, nil
}

// Default returns the name of the driver used when none is requested
func (r *Registry) Default() (string, error) {
	d, err := r.Get("")
	if err != nil {
		return "", err
	}
	return d.Name(), nil
}

// Drivers returns the registered drivers in registration order
func (r *Registry) Drivers() []Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Driver, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.drivers[name])
	}
	return out
}

// Names returns the registered driver names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// SignInForm builds the sign in form of the driver
func (r *Registry) SignInForm(ctx router.Context, driver string, opts FormOptions) (*form.Form, error) {
	return r.buildForm(ctx, FormSignIn, driver, opts)
}

// SignUpForm builds the sign up form of the driver
func (r *Registry) SignUpForm(ctx router.Context, driver string, opts FormOptions) (*form.Form, error) {
	return r.buildForm(ctx, FormSignUp, driver, opts)
}

// RestoreAccountForm builds the restore account form of the driver
func (r *Registry) RestoreAccountForm(ctx router.Context, driver string, opts FormOptions) (*form.Form, error) {
	return r.buildForm(ctx, FormRestore, driver, opts)
}

func (r *Registry) buildForm(ctx router.Context, kind, driver string, opts FormOptions) (*form.Form, error) {
	d, err := r.Get(driver)
	if err != nil {
		return nil, err
	}

	name := d.Name()
	if opts.Name == "" {
		opts.Name = "auth-ui-" + kind + "-" + name
	}
	opts.CSS = strings.TrimSpace(opts.CSS + " auth-ui-" + kind + " driver-" + name)
	if opts.Action == "" {
		opts.Action = submitPath(r.basePath, kind, name)
	}
	if opts.Title == "" {
		opts.Title = defaultTitles[kind]
	}

	var f *form.Form
	switch kind {
	case FormSignUp:
		f, err = d.SignUpForm(ctx, opts)
	case FormRestore:
		f, err = d.RestoreAccountForm(ctx, opts)
	default:
		f, err = d.SignInForm(ctx, opts)
	}
	if err != nil {
		return nil, err
	}

	return opts.Apply(f), nil
}
