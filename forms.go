package authui

import (
	"context"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-auth-ui/auth"
	"github.com/goliatone/go-auth-ui/form"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// NewRecordID is the id used in routes to create a role or a user
const NewRecordID = "0"

const permissionsPrefix = "permissions_"

// RoleForm edits a role, administrators only
type RoleForm struct {
	*form.Form
	Role        *auth.Role
	svc         AuthService
	permissions []string
}

// NewRoleForm loads the role with roleID, NewRecordID creates one
func NewRoleForm(ctx router.Context, svc AuthService, urls *URLs, roleID string) (*RoleForm, error) {
	if !UserFromContext(ctx).IsAdmin() {
		return nil, auth.ErrForbidden
	}

	c := ctx.Context()
	role := &auth.Role{}
	if roleID != NewRecordID {
		found, err := svc.GetRole(c, roleID)
		if err != nil {
			return nil, err
		}
		role = found
	}

	f := form.New("auth-ui-role")
	f.Action = urls.Path("admin", "roles", roleID)
	f.Title = "Role"
	if role.ID == uuid.Nil {
		f.Title = "New role"
	}
	f.Redirect = SafeRedirect(ctx.Query(form.RedirectField, ""), urls.Path("admin", "roles"))

	var locked []form.Option
	if role.IsBuiltin() {
		locked = append(locked, form.Disabled())
	}

	name := form.NewText("name", append([]form.Option{
		form.WithLabel("Name"),
		form.WithWeight(10),
		form.Required(),
		form.WithRules(auth.UniqueRoleNameRule(c, svc, role.ID)),
	}, locked...)...)

	description := form.NewText("description", append([]form.Option{
		form.WithLabel("Description"),
		form.WithWeight(20),
		form.Required(),
	}, locked...)...)

	rf := &RoleForm{Form: f, Role: role, svc: svc}

	if err := f.Add(name, description); err != nil {
		return nil, err
	}

	tabs := form.NewTabs("permissions", form.WithLabel("Permissions"), form.WithWeight(30))
	for _, group := range svc.Permissions().Groups() {
		if group.Name == "auth" || len(group.Permissions) == 0 {
			continue
		}

		items := make([]form.Item, 0, len(group.Permissions))
		for _, p := range group.Permissions {
			items = append(items, form.Item{Value: p.Name, Title: p.Description})
		}

		uid := permissionsPrefix + group.Name
		checkboxes := form.NewCheckboxes(uid, items)
		if err := checkboxes.SetValue(granted(role, items)); err != nil {
			return nil, err
		}

		title := group.Description
		if title == "" {
			title = group.Name
		}
		tabs.AddTab(group.Name, title)
		if err := tabs.AddToTab(group.Name, checkboxes); err != nil {
			return nil, err
		}
		rf.permissions = append(rf.permissions, uid)
	}
	if len(tabs.Tabs()) > 0 {
		if err := f.Add(tabs); err != nil {
			return nil, err
		}
	}

	err := f.Add(
		form.NewSubmit("submit", "Save"),
		form.NewLinkButton("cancel", "Cancel", f.Redirect, form.WithWeight(10)),
	)
	if err != nil {
		return nil, err
	}

	err = f.SetValues(map[string]any{
		"name":        role.Name,
		"description": role.Description,
	})
	if err != nil {
		return nil, err
	}

	return rf, nil
}

// Submit validates the filled form and saves the role
func (f *RoleForm) Submit(ctx context.Context) (*auth.Role, error) {
	if err := f.ValidationError(); err != nil {
		return nil, err
	}

	role := f.Role
	if !role.IsBuiltin() {
		role.Name = strings.TrimSpace(f.StringValue("name"))
		role.Description = strings.TrimSpace(f.StringValue("description"))
	}

	perms := []string{}
	for _, uid := range f.permissions {
		if w, ok := f.Get(uid); ok {
			if values, ok := w.Value().([]string); ok {
				perms = append(perms, values...)
			}
		}
	}
	role.Permissions = perms

	return f.svc.SaveRole(ctx, role)
}

func granted(role *auth.Role, items []form.Item) []string {
	var out []string
	for _, item := range items {
		if role.HasPermission(item.Value) {
			out = append(out, item.Value)
		}
	}
	return out
}

// UserForm edits a profile. Owners edit their own profile, administrators
// edit anybody and may create users.
type UserForm struct {
	*form.Form
	// User is nil when the form creates a user
	User        *auth.User
	actor       *auth.User
	svc         AuthService
	phoneRegion string
}

// UserFormOption configures a UserForm
type UserFormOption func(*UserForm)

// WithPhoneRegion sets the region used to parse local phone numbers
func WithPhoneRegion(region string) UserFormOption {
	return func(f *UserForm) { f.phoneRegion = region }
}

// NewUserForm loads the user with userID, NewRecordID creates one
func NewUserForm(ctx router.Context, svc AuthService, urls *URLs, userID string, opts ...UserFormOption) (*UserForm, error) {
	actor := UserFromContext(ctx)
	if actor.IsAnonymous() {
		return nil, auth.ErrForbidden
	}

	c := ctx.Context()
	uf := &UserForm{actor: actor, svc: svc}
	for _, opt := range opts {
		opt(uf)
	}

	exclude := uuid.Nil
	if userID == NewRecordID {
		if !actor.IsAdmin() {
			return nil, auth.ErrForbidden
		}
	} else {
		user, err := svc.GetUser(c, userID)
		if err != nil {
			return nil, err
		}
		if !actor.Is(user) && !actor.IsAdmin() {
			return nil, auth.ErrForbidden
		}
		uf.User = user
		exclude = user.ID
	}

	f := form.New("auth-ui-user")
	uf.Form = f
	f.Title = "New user"
	f.Action = urls.Path("admin", "users", userID)
	cancel := "/"
	if uf.User != nil {
		f.Title = uf.User.FullName()
		edit, err := urls.ProfileEditURL(uf.User)
		if err != nil {
			return nil, err
		}
		f.Action = edit
		if cancel, err = urls.ProfileViewURL(uf.User); err != nil {
			return nil, err
		}
	}
	f.Redirect = SafeRedirect(ctx.Query(form.RedirectField, ""), "")

	picture := form.NewContainer("picture-wrapper", form.WithWeight(10), form.WithCSS("col-sm-3"))
	picture.Append(form.NewText("picture",
		form.WithLabel("Picture"),
		form.WithPlaceholder("https://"),
		form.WithRules(is.URL),
	))

	content := form.NewContainer("content-wrapper", form.WithWeight(20), form.WithCSS("col-sm-9"))
	content.Append(
		form.NewCheckbox("is_public", form.WithLabel("Public profile"), form.WithWeight(10)),
		form.NewText("nickname",
			form.WithLabel("Nickname"),
			form.WithWeight(30),
			form.Required(),
			form.WithRules(auth.NicknameRule, auth.UniqueUserFieldRule(c, svc, "nickname", exclude)),
		),
		form.NewText("first_name", form.WithLabel("First name"), form.WithWeight(40), form.Required()),
		form.NewText("last_name", form.WithLabel("Last name"), form.WithWeight(50)),
		form.NewEmail("email",
			form.WithLabel("Email"),
			form.WithWeight(60),
			form.Required(),
			form.WithRules(is.Email, auth.UniqueUserFieldRule(c, svc, "email", exclude)),
		),
		form.NewText("phone",
			form.WithLabel("Phone"),
			form.WithWeight(70),
			form.WithPlaceholder("+1 202 555 0100"),
			form.WithRules(auth.PhoneRule(uf.phoneRegion)),
		),
		form.NewText("country", form.WithLabel("Country"), form.WithWeight(90)),
		form.NewText("city", form.WithLabel("City"), form.WithWeight(100)),
		form.NewTextArea("description",
			form.WithLabel("About"),
			form.WithHelp("Markdown is supported"),
			form.WithWeight(110),
			form.WithRules(validation.Length(0, 1024)),
		),
		form.NewStringList("urls", 5,
			form.WithLabel("Links"),
			form.WithWeight(130),
			form.WithRules(is.URL),
		),
	)

	password := []form.Option{
		form.WithLabel("New password"),
		form.WithWeight(80),
		form.WithRules(validation.Length(8, 100)),
	}
	if uf.User == nil {
		password = append(password, form.Required())
	} else {
		password = append(password, form.WithHelp("Leave empty to keep the current password"))
	}
	content.Append(form.NewPassword("password", password...))

	if actor.IsAdmin() {
		roles, err := NewRolesCheckboxes(c, svc, "roles", form.WithLabel("Roles"), form.WithWeight(140))
		if err != nil {
			return nil, err
		}
		content.Append(
			form.NewEmail("login",
				form.WithLabel("Login"),
				form.WithWeight(20),
				form.Required(),
				form.WithRules(is.Email, auth.UniqueUserFieldRule(c, svc, "login", exclude)),
			),
			form.NewSelect("status", statusItems(uf.User),
				form.WithLabel("Status"),
				form.WithWeight(120),
				form.Required(),
			),
			roles,
		)
	}

	err := f.Add(
		picture,
		content,
		form.NewSubmit("submit", "Save"),
		form.NewLinkButton("cancel", "Cancel", cancel, form.WithWeight(10)),
	)
	if err != nil {
		return nil, err
	}

	if uf.User != nil {
		if err := f.SetValues(userValues(uf.User)); err != nil {
			return nil, err
		}
	} else {
		err := f.SetValues(map[string]any{
			"status": string(auth.UserStatusActive),
			"roles":  []string{auth.RoleUser},
		})
		if err != nil {
			return nil, err
		}
	}

	return uf, nil
}

// Submit validates the filled form, creates or updates the user and saves
// it. Login, status and roles are only written for administrators.
func (f *UserForm) Submit(ctx context.Context) (*auth.User, error) {
	if err := f.ValidationError(); err != nil {
		return nil, err
	}

	password := f.StringValue("password")

	user := f.User
	if user == nil {
		user = &auth.User{}
	} else if password != "" {
		hash, err := auth.HashPassword(password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	user.Picture = strings.TrimSpace(f.StringValue("picture"))
	user.IsPublic, _ = f.Value("is_public").(bool)
	user.Nickname = strings.TrimSpace(f.StringValue("nickname"))
	user.FirstName = strings.TrimSpace(f.StringValue("first_name"))
	user.LastName = strings.TrimSpace(f.StringValue("last_name"))
	user.Email = strings.TrimSpace(f.StringValue("email"))
	user.Country = strings.TrimSpace(f.StringValue("country"))
	user.City = strings.TrimSpace(f.StringValue("city"))
	user.Description = f.StringValue("description")
	user.URLs, _ = f.Value("urls").([]string)

	user.Phone = ""
	if phone := strings.TrimSpace(f.StringValue("phone")); phone != "" {
		user.Phone = auth.NormalizePhone(phone, f.phoneRegion)
	}

	if f.actor.IsAdmin() {
		user.Login = strings.TrimSpace(f.StringValue("login"))
		user.Status = auth.UserStatus(f.StringValue("status"))
		user.Roles, _ = f.Value("roles").([]string)
	}

	if f.User == nil {
		return f.svc.CreateUser(ctx, user, password)
	}
	return f.svc.SaveUser(ctx, f.actor, user)
}

func userValues(u *auth.User) map[string]any {
	return map[string]any{
		"picture":     u.Picture,
		"is_public":   u.IsPublic,
		"login":       u.Login,
		"nickname":    u.Nickname,
		"first_name":  u.FirstName,
		"last_name":   u.LastName,
		"email":       u.Email,
		"phone":       u.Phone,
		"country":     u.Country,
		"city":        u.City,
		"description": u.Description,
		"status":      string(u.Status),
		"urls":        u.URLs,
		"roles":       u.Roles,
	}
}

// statusItems lists the statuses user can be moved to, all of them for new users
func statusItems(user *auth.User) []form.Item {
	statuses := auth.Statuses()
	keys := make([]string, 0, len(statuses))
	if user == nil || user.Status == "" {
		for s := range statuses {
			keys = append(keys, string(s))
		}
	} else {
		for _, s := range auth.ReachableStatuses(user.Status) {
			keys = append(keys, string(s))
		}
	}
	sort.Strings(keys)

	items := make([]form.Item, 0, len(keys))
	for _, k := range keys {
		items = append(items, form.Item{Value: k, Title: statuses[auth.UserStatus(k)]})
	}
	return items
}
