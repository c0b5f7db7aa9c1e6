package authui

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/goliatone/go-auth-ui/auth"
	"github.com/goliatone/go-auth-ui/mail"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override read by LoadConfig
const EnvPrefix = "AUTH_UI_"

// UIOptions configures the routes and pages
type UIOptions struct {
	BasePath           string   `yaml:"base_path" json:"base_path"`
	Languages          []string `yaml:"languages" json:"languages"`
	SignUpAdminNotify  bool     `yaml:"signup_admin_notify" json:"signup_admin_notify"`
	StatusChangeNotify bool     `yaml:"status_change_notify" json:"status_change_notify"`
	FormTokenKey       string   `yaml:"form_token_key" json:"-"`
	SettingsFile       string   `yaml:"settings_file" json:"settings_file"`
	SiteURL            string   `yaml:"site_url" json:"site_url"`
}

// AuthOptions configures the auth backend
type AuthOptions struct {
	UIDriver           string   `yaml:"ui_driver" json:"ui_driver"`
	SignUpEnabled      bool     `yaml:"signup_enabled" json:"signup_enabled"`
	SignUpConfirmation bool     `yaml:"signup_confirmation" json:"signup_confirmation"`
	NewUserRoles       []string `yaml:"new_user_roles" json:"new_user_roles"`
}

// SessionOptions configures the session cookie and its token
type SessionOptions struct {
	CookieName      string `yaml:"cookie_name" json:"cookie_name"`
	CookieSecure    bool   `yaml:"cookie_secure" json:"cookie_secure"`
	SigningKey      string `yaml:"signing_key" json:"-"`
	TokenExpiration int    `yaml:"token_expiration" json:"token_expiration"`
	Issuer          string `yaml:"issuer" json:"issuer"`
}

type DatabaseOptions struct {
	DSN string `yaml:"dsn" json:"dsn"`
}

type ServerOptions struct {
	Address string `yaml:"address" json:"address"`
}

// ConfigOptions implements Config and auth.Config
type ConfigOptions struct {
	UI       UIOptions       `yaml:"auth_ui" json:"auth_ui"`
	Auth     AuthOptions     `yaml:"auth" json:"auth"`
	Session  SessionOptions  `yaml:"session" json:"session"`
	Mail     mail.SMTPConfig `yaml:"mail" json:"-"`
	Database DatabaseOptions `yaml:"database" json:"database"`
	Server   ServerOptions   `yaml:"server" json:"server"`
}

var _ Config = (*ConfigOptions)(nil)
var _ auth.Config = (*ConfigOptions)(nil)

// DefaultConfig returns the options used when nothing is configured
func DefaultConfig() *ConfigOptions {
	return &ConfigOptions{
		UI: UIOptions{
			BasePath:           DefaultBasePath,
			Languages:          []string{"en"},
			SignUpAdminNotify:  true,
			StatusChangeNotify: true,
		},
		Auth: AuthOptions{
			SignUpEnabled:      true,
			SignUpConfirmation: true,
			NewUserRoles:       []string{auth.RoleUser},
		},
		Session: SessionOptions{
			CookieName:      "auth_ui_session",
			CookieSecure:    true,
			TokenExpiration: 24,
			Issuer:          "go-auth-ui",
		},
		Database: DatabaseOptions{DSN: "file:auth-ui.db?cache=shared"},
		Server:   ServerOptions{Address: ":8572"},
	}
}

// LoadConfig reads the YAML file at path over the defaults and applies
// AUTH_UI_* environment overrides. An empty path only reads the environment.
func LoadConfig(path string) (*ConfigOptions, error) {
	cfg := DefaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read config file").
				WithMetadata(map[string]any{"path": path})
		default:
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode config file").
					WithMetadata(map[string]any{"path": path})
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the options required to start
func (c *ConfigOptions) Validate() error {
	if strings.TrimSpace(c.Session.SigningKey) == "" {
		return goerrors.New("session signing key is required", goerrors.CategoryValidation).
			WithTextCode("CONFIG_SIGNING_KEY_MISSING")
	}
	if k := c.UI.FormTokenKey; k != "" && len(k) < 32 {
		return goerrors.New("form token key must be at least 32 bytes", goerrors.CategoryValidation).
			WithTextCode("CONFIG_FORM_TOKEN_KEY_SHORT")
	}
	return nil
}

func (c *ConfigOptions) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"BASE_PATH":      &c.UI.BasePath,
		"FORM_TOKEN_KEY": &c.UI.FormTokenKey,
		"SETTINGS_FILE":  &c.UI.SettingsFile,
		"SITE_URL":       &c.UI.SiteURL,
		"DRIVER":         &c.Auth.UIDriver,
		"COOKIE_NAME":    &c.Session.CookieName,
		"SIGNING_KEY":    &c.Session.SigningKey,
		"ISSUER":         &c.Session.Issuer,
		"MAIL_HOST":      &c.Mail.Host,
		"MAIL_USER":      &c.Mail.User,
		"MAIL_PASSWORD":  &c.Mail.Password,
		"MAIL_FROM":      &c.Mail.From,
		"DATABASE_DSN":   &c.Database.DSN,
		"SERVER_ADDRESS": &c.Server.Address,
	}
	for key, dst := range str {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	flags := map[string]*bool{
		"COOKIE_SECURE":        &c.Session.CookieSecure,
		"SIGNUP_ENABLED":       &c.Auth.SignUpEnabled,
		"SIGNUP_CONFIRMATION":  &c.Auth.SignUpConfirmation,
		"SIGNUP_ADMIN_NOTIFY":  &c.UI.SignUpAdminNotify,
		"STATUS_CHANGE_NOTIFY": &c.UI.StatusChangeNotify,
	}
	for key, dst := range flags {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError(key, v, err)
		}
		*dst = b
	}

	ints := map[string]*int{
		"TOKEN_EXPIRATION": &c.Session.TokenExpiration,
		"MAIL_PORT":        &c.Mail.Port,
	}
	for key, dst := range ints {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError(key, v, err)
		}
		*dst = n
	}

	if v, ok := lookup(EnvPrefix + "LANGUAGES"); ok {
		c.UI.Languages = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "NEW_USER_ROLES"); ok {
		c.Auth.NewUserRoles = splitList(v)
	}
	return nil
}

func envError(key, value string, err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid environment value").
		WithMetadata(map[string]any{"key": EnvPrefix + key, "value": value})
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *ConfigOptions) GetBasePath() string {
	return c.UI.BasePath
}

func (c *ConfigOptions) GetDefaultDriver() string {
	return c.Auth.UIDriver
}

func (c *ConfigOptions) GetCookieName() string {
	return c.Session.CookieName
}

func (c *ConfigOptions) GetCookieSecure() bool {
	return c.Session.CookieSecure
}

func (c *ConfigOptions) GetLanguages() []string {
	return c.UI.Languages
}

func (c *ConfigOptions) GetSignUpAdminNotify() bool {
	return c.UI.SignUpAdminNotify
}

func (c *ConfigOptions) GetStatusChangeNotify() bool {
	return c.UI.StatusChangeNotify
}

// GetFormTokenKey falls back to the session signing key
func (c *ConfigOptions) GetFormTokenKey() string {
	if c.UI.FormTokenKey != "" {
		return c.UI.FormTokenKey
	}
	return c.Session.SigningKey
}

// GetSiteURL is the scheme and host prefixed to links sent by mail
func (c *ConfigOptions) GetSiteURL() string {
	return c.UI.SiteURL
}

func (c *ConfigOptions) GetSigningKey() string {
	return c.Session.SigningKey
}

func (c *ConfigOptions) GetTokenExpiration() int {
	return c.Session.TokenExpiration
}

func (c *ConfigOptions) GetIssuer() string {
	return c.Session.Issuer
}

func (c *ConfigOptions) GetSignUpEnabled() bool {
	return c.Auth.SignUpEnabled
}

func (c *ConfigOptions) GetSignUpConfirmation() bool {
	return c.Auth.SignUpConfirmation
}

func (c *ConfigOptions) GetNewUserRoles() []string {
	return c.Auth.NewUserRoles
}
