package authui

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/goliatone/go-auth-ui/form"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

// SettingsValues are the options administrators change at runtime
type SettingsValues struct {
	SignUpEnabled bool   `yaml:"signup_enabled" json:"signup_enabled"`
	UIDriver      string `yaml:"ui_driver" json:"ui_driver"`
}

// Settings keeps SettingsValues, optionally persisted to a YAML file
type Settings struct {
	mu     sync.RWMutex
	values SettingsValues
	path   string
	hooks  []func(SettingsValues)
}

// NewSettings creates a store with initial values. When path is not empty
// Load and Set read and write that file.
func NewSettings(initial SettingsValues, path string) *Settings {
	return &Settings{values: initial, path: path}
}

// Load reads the settings file, a missing file keeps the initial values
func (s *Settings) Load() error {
	if s.path == "" {
		return nil
	}

	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read settings file").
			WithMetadata(map[string]any{"path": s.path})
	}

	s.mu.Lock()
	values := s.values
	if err := yaml.Unmarshal(b, &values); err != nil {
		s.mu.Unlock()
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode settings file").
			WithMetadata(map[string]any{"path": s.path})
	}
	s.values = values
	hooks := append([]func(SettingsValues){}, s.hooks...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(values)
	}
	return nil
}

// Get returns a copy of the current values
func (s *Settings) Get() SettingsValues {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values
}

// UIDriver is the name of the default driver, empty when unset
func (s *Settings) UIDriver() string {
	return s.Get().UIDriver
}

// SignUpEnabled reports whether visitors may create accounts
func (s *Settings) SignUpEnabled() bool {
	return s.Get().SignUpEnabled
}

// OnChange registers fn to run after every Set and Load
func (s *Settings) OnChange(fn func(SettingsValues)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Set replaces the values, writes the file and runs the change hooks
func (s *Settings) Set(values SettingsValues) error {
	s.mu.Lock()
	if err := s.save(values); err != nil {
		s.mu.Unlock()
		return err
	}
	s.values = values
	hooks := append([]func(SettingsValues){}, s.hooks...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(values)
	}
	return nil
}

func (s *Settings) save(values SettingsValues) error {
	if s.path == "" {
		return nil
	}

	b, err := yaml.Marshal(values)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode settings")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create settings dir")
	}

	tmp, err := os.CreateTemp(dir, ".auth-ui-settings-*")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write settings file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write settings file")
	}
	if err := tmp.Close(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write settings file")
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to replace settings file").
			WithMetadata(map[string]any{"path": s.path})
	}
	return nil
}

// SettingsForm builds the administration form of the settings store
func SettingsForm(registry *Registry, settings *Settings, action string) (*form.Form, error) {
	drivers := registry.Drivers()
	sort.Slice(drivers, func(i, j int) bool {
		return drivers[i].Name() < drivers[j].Name()
	})

	items := make([]form.Item, 0, len(drivers))
	for _, d := range drivers {
		title := d.Description()
		if title == "" {
			title = d.Name()
		}
		items = append(items, form.Item{Value: d.Name(), Title: title})
	}

	current, err := registry.Default()
	if err != nil {
		return nil, err
	}

	f := form.New("auth-ui-settings")
	f.Action = action
	f.Title = "Authentication settings"

	signUp := form.NewCheckbox("signup_enabled",
		form.WithLabel("Allow sign up"),
		form.WithWeight(10),
	)
	if err := signUp.SetValue(settings.SignUpEnabled()); err != nil {
		return nil, err
	}

	driver := form.NewSelect("ui_driver", items,
		form.WithLabel("User interface driver"),
		form.WithWeight(20),
		form.Required(),
	)
	if err := driver.SetValue(current); err != nil {
		return nil, err
	}

	if err := f.Add(signUp, driver, form.NewSubmit("submit", "Save")); err != nil {
		return nil, err
	}
	return f, nil
}

// SubmitSettingsForm copies a filled and valid settings form to the store
func SubmitSettingsForm(f *form.Form, settings *Settings) error {
	if err := f.ValidationError(); err != nil {
		return err
	}

	values := settings.Get()
	values.SignUpEnabled, _ = f.Value("signup_enabled").(bool)
	values.UIDriver = f.StringValue("ui_driver")
	return settings.Set(values)
}
