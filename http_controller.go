package authui

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-auth-ui/auth"
	"github.com/goliatone/go-auth-ui/form"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// FormTokenTTL is the lifetime of the token embedded in rendered forms
const FormTokenTTL = 2 * time.Hour

// Views names the templates rendered by the controller
type Views struct {
	SignIn      string
	SignUp      string
	Restore     string
	Profile     string
	ProfileEdit string
	Settings    string
	Roles       string
	Role        string
	Users       string
	UserEdit    string
	NotFound    string
	Error       string
}

// DefaultViews returns the template names shipped with the server
func DefaultViews() *Views {
	return &Views{
		SignIn:      "auth_ui/sign-in",
		SignUp:      "auth_ui/sign-up",
		Restore:     "auth_ui/restore",
		Profile:     "auth_ui/profile",
		ProfileEdit: "auth_ui/profile-edit",
		Settings:    "auth_ui/settings",
		Roles:       "auth_ui/roles",
		Role:        "auth_ui/role",
		Users:       "auth_ui/users",
		UserEdit:    "auth_ui/user-edit",
		NotFound:    "errors/404",
		Error:       "errors/500",
	}
}

// Controller glues the auth service, the driver registry and the forms to
// HTTP routes
type Controller struct {
	Debug        bool
	Logger       Logger
	Service      AuthService
	Registry     *Registry
	Config       Config
	URLs         *URLs
	Sessions     *Sessions
	Settings     *Settings
	Flash        Flasher
	Tokens       *form.Tokens
	Notifier     *Notifier
	Views        *Views
	ErrorHandler router.ErrorHandler
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller) *Controller

// WithControllerLogger sets the logger
func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		c.Logger = logger
		return c
	}
}

// WithSettings sets the runtime settings store
func WithSettings(s *Settings) ControllerOption {
	return func(c *Controller) *Controller {
		c.Settings = s
		return c
	}
}

// WithNotifier sets the mail notifier used by account restoration
func WithNotifier(n *Notifier) ControllerOption {
	return func(c *Controller) *Controller {
		c.Notifier = n
		return c
	}
}

// WithViews replaces the template names
func WithViews(v *Views) ControllerOption {
	return func(c *Controller) *Controller {
		c.Views = v
		return c
	}
}

// WithFlash replaces the flash message writer
func WithFlash(f Flasher) ControllerOption {
	return func(c *Controller) *Controller {
		c.Flash = f
		return c
	}
}

// WithFormTokens replaces the form token issuer, nil disables the check
func WithFormTokens(t *form.Tokens) ControllerOption {
	return func(c *Controller) *Controller {
		c.Tokens = t
		return c
	}
}

// WithErrorHandler replaces the error page renderer
func WithErrorHandler(h router.ErrorHandler) ControllerOption {
	return func(c *Controller) *Controller {
		c.ErrorHandler = h
		return c
	}
}

// WithDebug enables payload dumps in logs and error pages
func WithDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

// NewController creates the controller
func NewController(svc AuthService, registry *Registry, cfg Config, opts ...ControllerOption) *Controller {
	if svc == nil {
		panic("Missing AuthService in auth UI controller...")
	}

	if registry == nil {
		panic("Missing Registry in auth UI controller...")
	}

	if cfg == nil {
		panic("Missing Config in auth UI controller...")
	}

	key := sha256.Sum256([]byte(cfg.GetFormTokenKey()))

	c := &Controller{
		Logger:   defLogger{},
		Service:  svc,
		Registry: registry,
		Config:   cfg,
		URLs:     NewURLs(cfg.GetBasePath(), registry),
		Flash:    routerFlash{},
		Tokens:   form.NewTokens(key[:], FormTokenTTL),
		Views:    DefaultViews(),
	}
	c.ErrorHandler = c.defaultErrHandler

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Sessions == nil {
		c.Sessions = NewSessions(svc, cfg, c.Logger)
	}

	if c.Settings == nil {
		c.Settings = NewSettings(SettingsValues{
			SignUpEnabled: svc.SignUpEnabled(),
			UIDriver:      cfg.GetDefaultDriver(),
		}, "")
	}
	c.Settings.OnChange(func(v SettingsValues) {
		svc.SetSignUpEnabled(v.SignUpEnabled)
	})
	svc.SetSignUpEnabled(c.Settings.SignUpEnabled())

	return c
}

// RegisterRoutes mounts the UI routes under the base path
func RegisterRoutes[T any](app router.Router[T], c *Controller) {
	bp := c.URLs.BasePath()
	filter := c.AuthFilter()

	app.Get(joinPath(bp, FormSignIn), c.SignIn).SetName("auth_ui.sign_in")
	app.Get(joinPath(bp, FormSignIn, ":driver"), c.SignIn).SetName("auth_ui.sign_in_driver")
	app.Post(submitPath(bp, FormSignIn, ":driver"), c.SignInSubmit).SetName("auth_ui.sign_in_submit")

	app.Get(joinPath(bp, FormSignUp), c.SignUp).SetName("auth_ui.sign_up")
	app.Get(joinPath(bp, FormSignUp, "confirm", ":code"), c.ConfirmSignUp).SetName("auth_ui.sign_up_confirm")
	app.Get(joinPath(bp, FormSignUp, ":driver"), c.SignUp).SetName("auth_ui.sign_up_driver")
	app.Post(submitPath(bp, FormSignUp, ":driver"), c.SignUpSubmit).SetName("auth_ui.sign_up_submit")

	app.Get(joinPath(bp, FormRestore), c.Restore).SetName("auth_ui.restore")
	app.Get(joinPath(bp, FormRestore, ":driver"), c.Restore).SetName("auth_ui.restore_driver")
	app.Post(submitPath(bp, FormRestore, ":driver"), c.RestoreSubmit).SetName("auth_ui.restore_submit")

	app.Get(joinPath(bp, "sign-out"), c.SignOut).SetName("auth_ui.sign_out")

	app.Get(joinPath(bp, "user", ":nickname"), c.ProfileView).SetName("auth_ui.profile_view")
	app.Get(joinPath(bp, "user", ":nickname", "edit"), c.ProfileEdit, filter).SetName("auth_ui.profile_edit")
	app.Post(joinPath(bp, "user", ":nickname", "edit"), c.ProfileEditSubmit, filter).SetName("auth_ui.profile_edit_submit")

	app.Get(joinPath(bp, "admin", "settings"), c.SettingsEdit, filter).SetName("auth_ui.admin.settings")
	app.Post(joinPath(bp, "admin", "settings"), c.SettingsSubmit, filter).SetName("auth_ui.admin.settings_submit")
	app.Get(joinPath(bp, "admin", "roles"), c.RolesIndex, filter).SetName("auth_ui.admin.roles")
	app.Get(joinPath(bp, "admin", "roles", ":id"), c.RoleEdit, filter).SetName("auth_ui.admin.role")
	app.Post(joinPath(bp, "admin", "roles", ":id"), c.RoleSubmit, filter).SetName("auth_ui.admin.role_submit")
	app.Get(joinPath(bp, "admin", "users"), c.UsersIndex, filter).SetName("auth_ui.admin.users")
	app.Get(joinPath(bp, "admin", "users", ":id"), c.UserEdit, filter).SetName("auth_ui.admin.user")
	app.Post(joinPath(bp, "admin", "users", ":id"), c.UserSubmit, filter).SetName("auth_ui.admin.user_submit")

	app.Get(joinPath(bp, "api", "users", "select"), c.UsersSelect).SetName("auth_ui.api.users_select")
	app.Post(joinPath(bp, "api", "follow", ":uid"), c.Follow).SetName("auth_ui.api.follow")
	app.Delete(joinPath(bp, "api", "follow", ":uid"), c.Unfollow).SetName("auth_ui.api.unfollow")
}

// SignIn renders the sign in form of the requested driver
func (c *Controller) SignIn(ctx router.Context) error {
	return c.showDriverForm(ctx, FormSignIn, c.Views.SignIn)
}

// SignUp renders the sign up form of the requested driver
func (c *Controller) SignUp(ctx router.Context) error {
	if !c.Service.SignUpEnabled() {
		return c.ErrorHandler(ctx, ErrPageNotFound)
	}
	return c.showDriverForm(ctx, FormSignUp, c.Views.SignUp)
}

// Restore renders the restore account form of the requested driver
func (c *Controller) Restore(ctx router.Context) error {
	return c.showDriverForm(ctx, FormRestore, c.Views.Restore)
}

func (c *Controller) showDriverForm(ctx router.Context, kind, view string) error {
	redirect := SafeRedirect(ctx.Query(form.RedirectField, ""), "/")

	if !UserFromContext(ctx).IsAnonymous() {
		return ctx.Redirect(redirect, http.StatusFound)
	}

	driver := ctx.Param("driver", "")
	f, err := c.driverForm(ctx, kind, driver, FormOptions{Redirect: redirect})
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	if err := c.protect(ctx, f); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	html, err := f.Render()
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	data := router.ViewContext{
		"title":    f.Title,
		"form":     html,
		"driver":   driver,
		"redirect": redirect,
	}

	if signUp, err := c.URLs.SignUpURL(driver, redirect); err == nil && c.Service.SignUpEnabled() {
		data["sign_up_url"] = signUp
	}
	if signIn, err := c.URLs.SignInURL(driver, redirect); err == nil {
		data["sign_in_url"] = signIn
	}
	if restore, err := c.URLs.RestoreURL(driver, redirect); err == nil {
		data["restore_url"] = restore
	}

	return c.render(ctx, view, data)
}

// SignInSubmit authenticates the posted credentials
func (c *Controller) SignInSubmit(ctx router.Context) error {
	driver := ctx.Param("driver")
	input, redirect, err := c.driverInput(ctx, FormSignIn, driver)

	back, uerr := c.URLs.SignInURL(driver, redirect)
	if uerr != nil {
		return c.ErrorHandler(ctx, uerr)
	}

	if err != nil {
		return c.Flash.Error(ctx, c.errorMessage(err)).Redirect(back, http.StatusSeeOther)
	}

	if c.Debug {
		c.Logger.Debug("sign in", "driver", driver, "input", print.MaybePrettyJSON(redactInput(input)))
	}

	user, err := c.Service.SignIn(ctx.Context(), driver, input)
	if err != nil {
		var message string
		switch {
		case auth.IsAuthenticationError(err), auth.IsUserNotFound(err):
			message = "Authentication error"
		case auth.IsUserNotActive(err):
			message = "Your account is not active"
		default:
			c.Logger.Error("sign in failed", "driver", driver, "error", err)
			message = c.errorMessage(err)
		}
		return c.Flash.Error(ctx, message).Redirect(back, http.StatusSeeOther)
	}

	if err := c.Sessions.Start(ctx, user); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	c.Logger.Info("user signed in", "user", user.ID.String(), "driver", driver)
	return ctx.Redirect(redirect, http.StatusSeeOther)
}

// SignUpSubmit creates an account out of the posted sign up form
func (c *Controller) SignUpSubmit(ctx router.Context) error {
	if !c.Service.SignUpEnabled() {
		return c.ErrorHandler(ctx, ErrPageNotFound)
	}

	driver := ctx.Param("driver")
	input, redirect, err := c.driverInput(ctx, FormSignUp, driver)

	back, uerr := c.URLs.SignUpURL(driver, redirect)
	if uerr != nil {
		return c.ErrorHandler(ctx, uerr)
	}

	if err != nil {
		return c.Flash.Error(ctx, c.errorMessage(err)).Redirect(back, http.StatusSeeOther)
	}

	user, err := c.Service.SignUp(ctx.Context(), driver, input)
	if err != nil {
		if auth.IsSignUpDisabled(err) {
			return c.ErrorHandler(ctx, ErrPageNotFound)
		}
		c.Logger.Info("sign up failed", "driver", driver, "error", err)
		return c.Flash.Error(ctx, c.errorMessage(err)).Redirect(back, http.StatusSeeOther)
	}

	c.Logger.Info("user signed up", "user", user.ID.String(), "driver", driver)

	if c.Service.ConfirmationRequired() {
		return c.Flash.Success(ctx, "Please check your email to confirm your registration").
			Redirect(redirect, http.StatusSeeOther)
	}

	if !user.IsActive() {
		return c.Flash.Success(ctx, "Your account was created and is waiting for activation").
			Redirect(redirect, http.StatusSeeOther)
	}

	if err := c.Sessions.Start(ctx, user); err != nil {
		return c.ErrorHandler(ctx, err)
	}
	return ctx.Redirect(redirect, http.StatusSeeOther)
}

// ConfirmSignUp activates the account owning the code of the link
func (c *Controller) ConfirmSignUp(ctx router.Context) error {
	user, err := c.Service.ConfirmSignUp(ctx.Context(), ctx.Param("code"))
	if err != nil {
		if auth.IsInvalidConfirmationCode(err) || auth.IsUserNotFound(err) {
			return c.ErrorHandler(ctx, auth.ErrInvalidConfirmationCode)
		}
		return c.ErrorHandler(ctx, err)
	}

	c.Logger.Info("sign up confirmed", "user", user.ID.String())

	signIn, err := c.URLs.SignInURL("", "")
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}
	return c.Flash.Success(ctx, "Your registration has been confirmed, you can sign in now").
		Redirect(signIn, http.StatusFound)
}

// RestoreSubmit issues a new password and mails it. Unknown logins get
// the same answer as known ones.
func (c *Controller) RestoreSubmit(ctx router.Context) error {
	driver := ctx.Param("driver")
	input, redirect, err := c.driverInput(ctx, FormRestore, driver)

	back, uerr := c.URLs.RestoreURL(driver, redirect)
	if uerr != nil {
		return c.ErrorHandler(ctx, uerr)
	}

	if err != nil {
		return c.Flash.Error(ctx, c.errorMessage(err)).Redirect(back, http.StatusSeeOther)
	}

	login := strings.TrimSpace(input.Get("login"))
	user, password, err := c.Service.RestoreAccount(ctx.Context(), login)
	switch {
	case err == nil:
		if c.Notifier == nil {
			c.Logger.Warn("account restored but no notifier is configured", "user", user.ID.String())
			break
		}
		if err := c.Notifier.RestoreAccount(ctx.Context(), user, password); err != nil {
			c.Logger.Error("failed to mail restored account", "user", user.ID.String(), "error", err)
		}
	case auth.IsUserNotFound(err):
		c.Logger.Info("account restore for unknown login", "login", login)
	case auth.IsUserNotActive(err):
		return c.Flash.Error(ctx, "Your account is not active").Redirect(back, http.StatusSeeOther)
	default:
		c.Logger.Error("account restore failed", "error", err)
		return c.Flash.Error(ctx, c.errorMessage(err)).Redirect(back, http.StatusSeeOther)
	}

	signIn, err := c.URLs.SignInURL(driver, redirect)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}
	return c.Flash.Success(ctx, "A new password has been sent to your email").
		Redirect(signIn, http.StatusSeeOther)
}

// SignOut ends the session of the current user
func (c *Controller) SignOut(ctx router.Context) error {
	c.Sessions.End(ctx)
	return ctx.Redirect(SafeRedirect(ctx.Query(form.RedirectField, ""), "/"), http.StatusFound)
}

// ProfileView renders the public profile of a user. Private profiles are
// only shown to their owner and administrators.
func (c *Controller) ProfileView(ctx router.Context) error {
	user, err := c.Service.GetUserByNickname(ctx.Context(), ctx.Param("nickname"))
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	viewer := UserFromContext(ctx)
	if !user.IsPublic && !viewer.Is(user) && !viewer.IsAdmin() {
		return c.ErrorHandler(ctx, auth.ErrUserNotFound)
	}

	panel, err := NewProfilePanel(ctx.Context(), c.Service, c.URLs, viewer, user)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	html, err := panel.Render()
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return c.render(ctx, c.Views.Profile, router.ViewContext{
		"title": user.FullName(),
		"user":  user,
		"panel": html,
	})
}

// ProfileEdit renders the profile form of the user with nickname
func (c *Controller) ProfileEdit(ctx router.Context) error {
	user, err := c.Service.GetUserByNickname(ctx.Context(), ctx.Param("nickname"))
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}
	return c.showUserForm(ctx, c.Views.ProfileEdit, user.ID.String())
}

// ProfileEditSubmit saves the profile form of the user with nickname
func (c *Controller) ProfileEditSubmit(ctx router.Context) error {
	user, err := c.Service.GetUserByNickname(ctx.Context(), ctx.Param("nickname"))
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}
	return c.submitUserForm(ctx, c.Views.ProfileEdit, user.ID.String())
}

// UsersIndex renders the user picker of administrators, a picked user
// is redirected to its administration form
func (c *Controller) UsersIndex(ctx router.Context) error {
	actor := UserFromContext(ctx)
	if !actor.IsAdmin() {
		return c.ErrorHandler(ctx, auth.ErrForbidden)
	}

	picker, err := NewUserSelect(ctx.Context(), c.Service, actor, "user",
		form.WithLabel("User"),
		form.Required(),
	)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	if uid := ctx.Query("user"); uid != "" {
		if err := picker.SetValue(uid); err != nil {
			return c.ErrorHandler(ctx, err)
		}
		return ctx.Redirect(c.URLs.Path("admin", "users", uid), http.StatusFound)
	}

	f := form.New("auth-ui-users")
	f.Method = "get"
	f.Action = c.URLs.Path("admin", "users")
	if err := f.Add(picker, form.NewSubmit("submit", "Edit")); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	html, err := f.Render()
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return c.render(ctx, c.Views.Users, router.ViewContext{
		"title":   "Users",
		"form":    html,
		"new_url": c.URLs.Path("admin", "users", NewRecordID),
	})
}

// UserEdit renders the administration form of a user, id 0 creates one
func (c *Controller) UserEdit(ctx router.Context) error {
	return c.showUserForm(ctx, c.Views.UserEdit, ctx.Param("id"))
}

// UserSubmit saves the administration form of a user
func (c *Controller) UserSubmit(ctx router.Context) error {
	return c.submitUserForm(ctx, c.Views.UserEdit, ctx.Param("id"))
}

func (c *Controller) showUserForm(ctx router.Context, view, id string) error {
	f, err := NewUserForm(ctx, c.Service, c.URLs, id)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}
	return c.renderForm(ctx, view, f.Form, http.StatusOK)
}

func (c *Controller) submitUserForm(ctx router.Context, view, id string) error {
	f, err := NewUserForm(ctx, c.Service, c.URLs, id)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	if err := c.fill(ctx, f.Form); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	user, err := f.Submit(ctx.Context())
	if err != nil {
		if isValidation(err) {
			return c.renderForm(ctx, view, f.Form, http.StatusBadRequest)
		}
		c.Logger.Error("failed to save user", "id", id, "error", err)
		return c.ErrorHandler(ctx, err)
	}

	target := f.Redirect
	if target == "" {
		if target, err = c.URLs.ProfileViewURL(user); err != nil {
			return c.ErrorHandler(ctx, err)
		}
	}
	return c.Flash.Success(ctx, "Profile saved").Redirect(SafeRedirect(target, "/"), http.StatusSeeOther)
}

// RolesIndex lists the roles, administrators only
func (c *Controller) RolesIndex(ctx router.Context) error {
	if !UserFromContext(ctx).IsAdmin() {
		return c.ErrorHandler(ctx, auth.ErrForbidden)
	}

	roles, err := c.Service.Roles(ctx.Context())
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}
	sort.Slice(roles, func(i, j int) bool {
		return roles[i].Name < roles[j].Name
	})

	type roleRow struct {
		Role    *auth.Role
		EditURL string
	}
	rows := make([]roleRow, 0, len(roles))
	for _, r := range roles {
		rows = append(rows, roleRow{Role: r, EditURL: c.URLs.Path("admin", "roles", r.ID.String())})
	}

	return c.render(ctx, c.Views.Roles, router.ViewContext{
		"title":   "Roles",
		"roles":   rows,
		"new_url": c.URLs.Path("admin", "roles", NewRecordID),
	})
}

// RoleEdit renders the role form, id 0 creates one
func (c *Controller) RoleEdit(ctx router.Context) error {
	f, err := NewRoleForm(ctx, c.Service, c.URLs, ctx.Param("id"))
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}
	return c.renderForm(ctx, c.Views.Role, f.Form, http.StatusOK)
}

// RoleSubmit saves the role form
func (c *Controller) RoleSubmit(ctx router.Context) error {
	f, err := NewRoleForm(ctx, c.Service, c.URLs, ctx.Param("id"))
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	if err := c.fill(ctx, f.Form); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	role, err := f.Submit(ctx.Context())
	if err != nil {
		if isValidation(err) {
			return c.renderForm(ctx, c.Views.Role, f.Form, http.StatusBadRequest)
		}
		c.Logger.Error("failed to save role", "id", ctx.Param("id"), "error", err)
		return c.ErrorHandler(ctx, err)
	}

	c.Logger.Info("role saved", "role", role.Name)
	target := SafeRedirect(f.Redirect, c.URLs.Path("admin", "roles"))
	return c.Flash.Success(ctx, "Role saved").Redirect(target, http.StatusSeeOther)
}

// SettingsEdit renders the settings form, administrators only
func (c *Controller) SettingsEdit(ctx router.Context) error {
	if !UserFromContext(ctx).IsAdmin() {
		return c.ErrorHandler(ctx, auth.ErrForbidden)
	}

	f, err := SettingsForm(c.Registry, c.Settings, c.URLs.Path("admin", "settings"))
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}
	return c.renderForm(ctx, c.Views.Settings, f, http.StatusOK)
}

// SettingsSubmit stores the posted settings
func (c *Controller) SettingsSubmit(ctx router.Context) error {
	if !UserFromContext(ctx).IsAdmin() {
		return c.ErrorHandler(ctx, auth.ErrForbidden)
	}

	action := c.URLs.Path("admin", "settings")
	f, err := SettingsForm(c.Registry, c.Settings, action)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	if err := c.fill(ctx, f); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	if err := SubmitSettingsForm(f, c.Settings); err != nil {
		if isValidation(err) {
			return c.renderForm(ctx, c.Views.Settings, f, http.StatusBadRequest)
		}
		return c.ErrorHandler(ctx, err)
	}

	c.Logger.Info("settings saved", "ui_driver", c.Settings.UIDriver(), "signup_enabled", c.Settings.SignUpEnabled())
	return c.Flash.Success(ctx, "Settings saved").Redirect(action, http.StatusSeeOther)
}

// driverForm builds the form of kind for driver
func (c *Controller) driverForm(ctx router.Context, kind, driver string, opts FormOptions) (*form.Form, error) {
	switch kind {
	case FormSignUp:
		return c.Registry.SignUpForm(ctx, driver, opts)
	case FormRestore:
		return c.Registry.RestoreAccountForm(ctx, driver, opts)
	}
	return c.Registry.SignInForm(ctx, driver, opts)
}

// driverInput reads the posted input of a driver form, checks its token
// and validates it against the widgets of the form. The redirect target
// is always returned, even on error.
func (c *Controller) driverInput(ctx router.Context, kind, driver string) (url.Values, string, error) {
	raw := RequestInput(ctx)
	input, redirect := form.CleanInput(raw)
	redirect = SafeRedirect(redirect, "/")

	f, err := c.driverForm(ctx, kind, driver, FormOptions{Redirect: redirect})
	if err != nil {
		return input, redirect, err
	}

	if err := c.verify(ctx, f, raw); err != nil {
		return input, redirect, err
	}

	if err := f.Fill(input); err != nil {
		return input, redirect, err
	}

	return input, redirect, f.ValidationError()
}

func (c *Controller) fill(ctx router.Context, f *form.Form) error {
	raw := RequestInput(ctx)
	if err := c.verify(ctx, f, raw); err != nil {
		return err
	}
	input, redirect := form.CleanInput(raw)
	if redirect != "" {
		f.Redirect = SafeRedirect(redirect, f.Redirect)
	}
	return f.Fill(input)
}

func (c *Controller) protect(ctx router.Context, f *form.Form) error {
	if c.Tokens == nil {
		return nil
	}
	return c.Tokens.Protect(f, sessionKey(ctx))
}

func (c *Controller) verify(ctx router.Context, f *form.Form, raw url.Values) error {
	if c.Tokens == nil {
		return nil
	}
	return c.Tokens.Verify(raw.Get(form.TokenField), f.Name, sessionKey(ctx))
}

func (c *Controller) renderForm(ctx router.Context, view string, f *form.Form, status int) error {
	if err := c.protect(ctx, f); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	html, err := f.Render()
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	data := router.ViewContext{
		"title":  f.Title,
		"form":   html,
		"errors": f.Errors(),
	}
	if status != http.StatusOK {
		ctx.Status(status)
	}
	return c.render(ctx, view, data)
}

func (c *Controller) render(ctx router.Context, view string, data router.ViewContext) error {
	for k, v := range TemplateHelpersWithRouter(ctx, c.URLs) {
		if _, ok := data[k]; !ok {
			data[k] = v
		}
	}

	user := UserFromContext(ctx)
	data[CurrentUserKey] = user
	data["base_path"] = c.URLs.BasePath()
	data["sign_out_url"] = c.URLs.SignOutURL("")
	if !user.IsAnonymous() {
		if profile, err := c.URLs.ProfileViewURL(user); err == nil {
			data["profile_url"] = profile
		}
	}
	if hreflang := ctx.Locals(HreflangKey); hreflang != nil {
		data[HreflangKey] = hreflang
	}
	return ctx.Render(view, data)
}

func (c *Controller) defaultErrHandler(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	status := statusCode(richErr)
	view := c.Views.Error
	if status == http.StatusNotFound {
		view = c.Views.NotFound
	}

	if status >= http.StatusInternalServerError {
		c.Logger.Error("request failed", "path", ctx.Path(), "error", err)
	} else {
		c.Logger.Info("request rejected", "path", ctx.Path(), "status", status, "text_code", richErr.TextCode)
	}

	data := router.ViewContext{
		"status":  status,
		"message": richErr.Message,
	}
	if c.Debug {
		data["details"] = print.MaybePrettyJSON(richErr.Metadata)
	}

	return ctx.Status(status).Render(view, data)
}

// errorMessage is the text shown to users for err
func (c *Controller) errorMessage(err error) string {
	if msgs := formErrors(err); len(msgs) > 0 {
		return strings.Join(msgs, "; ")
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}
	return err.Error()
}

// formErrors extracts field messages out of a validation error
func formErrors(err error) []string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Category != goerrors.CategoryValidation {
		return nil
	}

	fields, ok := richErr.Metadata["fields"].(map[string]string)
	if !ok {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s: %s", k, fields[k]))
	}
	return out
}

func isValidation(err error) bool {
	var richErr *goerrors.Error
	return goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryValidation
}

// sessionKey binds form tokens to the signed in user
func sessionKey(ctx router.Context) string {
	user := UserFromContext(ctx)
	if user.IsAnonymous() {
		return ""
	}
	return user.ID.String()
}

// isSecretField reports input keys whose values never reach logs or URLs
func isSecretField(name string) bool {
	return strings.Contains(strings.ToLower(name), "password")
}

func redactInput(input url.Values) url.Values {
	out := url.Values{}
	for k, v := range input {
		if isSecretField(k) {
			out[k] = []string{"***"}
			continue
		}
		out[k] = v
	}
	return out
}
