package authui

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"sort"

	"github.com/flosch/pongo2/v6"
	"github.com/goliatone/go-auth-ui/auth"
	"github.com/goliatone/go-auth-ui/form"
	goerrors "github.com/goliatone/go-errors"
	"github.com/yuin/goldmark"
)

var (
	followButtonTpl = pongo2.Must(pongo2.FromString(`<button type="button" class="btn btn-{% if following %}default{% else %}primary{% endif %} auth-ui-follow-button"` +
		` data-url="{{ url }}" data-following="{% if following %}true{% else %}false{% endif %}">` +
		`{% if following %}Unfollow{% else %}Follow{% endif %}</button>`))

	profilePanelTpl = pongo2.Must(pongo2.FromString(`<div class="auth-ui-profile-panel" data-uid="{{ uid }}">` +
		`{% if user.Picture %}<img class="img-circle auth-ui-picture" src="{{ user.Picture }}" alt="{{ full_name }}">{% endif %}` +
		`<h3 class="auth-ui-full-name">{{ full_name }}</h3><p class="auth-ui-nickname">@{{ user.Nickname }}</p>` +
		`{% if description %}<div class="auth-ui-description">{{ description|safe }}</div>{% endif %}` +
		`{% if user.URLs %}<ul class="auth-ui-urls">{% for u in user.URLs %}<li><a href="{{ u }}" rel="nofollow noopener" target="_blank">{{ u }}</a></li>{% endfor %}</ul>{% endif %}` +
		`<ul class="auth-ui-counters"><li>Followers: <span class="auth-ui-followers">{{ followers }}</span></li>` +
		`<li>Following: <span class="auth-ui-following">{{ following }}</span></li></ul>` +
		`{% if follow %}{{ follow|safe }}{% endif %}` +
		`{% if edit_url %}<a class="btn btn-default auth-ui-edit" href="{{ edit_url }}">Edit</a>{% endif %}</div>`))
)

// RolesCheckboxes lets administrators pick user roles. Items are every
// role except anonymous, values are role names.
type RolesCheckboxes struct {
	*form.Checkboxes
}

// NewRolesCheckboxes loads the roles of svc into a checkbox group
func NewRolesCheckboxes(ctx context.Context, svc AuthService, uid string, opts ...form.Option) (*RolesCheckboxes, error) {
	roles, err := svc.Roles(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]form.Item, 0, len(roles))
	for _, r := range roles {
		if r.Name == auth.RoleAnonymous {
			continue
		}
		title := r.Description
		if title == "" {
			title = r.Name
		}
		items = append(items, form.Item{Value: r.Name, Title: title})
	}

	return &RolesCheckboxes{Checkboxes: form.NewCheckboxes(uid, items, opts...)}, nil
}

// SetValue accepts roles or role names
func (w *RolesCheckboxes) SetValue(v any) error {
	switch val := v.(type) {
	case *auth.Role:
		if val == nil {
			return w.Checkboxes.SetValue(nil)
		}
		return w.Checkboxes.SetValue(val.Name)
	case []*auth.Role:
		names := make([]string, 0, len(val))
		for _, r := range val {
			if r != nil {
				names = append(names, r.Name)
			}
		}
		return w.Checkboxes.SetValue(names)
	case nil, string, []string:
		return w.Checkboxes.SetValue(val)
	}
	return goerrors.New(fmt.Sprintf("role or role name expected, got %T", v), goerrors.CategoryBadInput).
		WithCode(goerrors.CodeBadRequest)
}

// UserSelect picks one user. Administrators see every active user,
// everybody else only sees themselves.
type UserSelect struct {
	*form.Select
	ctx context.Context
	svc AuthService
}

// NewUserSelect builds the choices visible to viewer
func NewUserSelect(ctx context.Context, svc AuthService, viewer *auth.User, uid string, opts ...form.Option) (*UserSelect, error) {
	var users []*auth.User
	if viewer.IsAdmin() {
		found, _, err := svc.FindUsers(ctx, auth.UserQuery{
			Status:  auth.UserStatusActive,
			OrderBy: "first_name",
		})
		if err != nil {
			return nil, err
		}
		users = found
	} else if !viewer.IsAnonymous() {
		users = []*auth.User{viewer}
	}

	sort.SliceStable(users, func(i, j int) bool {
		return users[i].FirstName < users[j].FirstName
	})

	items := make([]form.Item, 0, len(users))
	for _, u := range users {
		items = append(items, form.Item{Value: u.ID.String(), Title: userOptionTitle(u, viewer.IsAdmin())})
	}

	return &UserSelect{
		Select: form.NewSelect(uid, items, opts...),
		ctx:    ctx,
		svc:    svc,
	}, nil
}

// SetValue accepts a user, the UID of an existing user or nil
func (w *UserSelect) SetValue(v any) error {
	switch val := v.(type) {
	case nil:
		return w.Select.SetValue(nil)
	case *auth.User:
		if val.IsAnonymous() {
			return w.Select.SetValue(nil)
		}
		return w.Select.SetValue(val.ID.String())
	case string:
		if val == "" {
			return w.Select.SetValue(nil)
		}
		if _, err := w.svc.GetUser(w.ctx, val); err != nil {
			return err
		}
		return w.Select.SetValue(val)
	}
	return goerrors.New(fmt.Sprintf("user or UID expected, got %T", v), goerrors.CategoryBadInput).
		WithCode(goerrors.CodeBadRequest)
}

// Fill goes through SetValue so unknown UIDs are rejected
func (w *UserSelect) Fill(values url.Values) error {
	if w.Disabled {
		return nil
	}
	if _, ok := values[w.Name()]; !ok {
		return nil
	}
	return w.SetValue(values.Get(w.Name()))
}

// User loads the selected user, nil when nothing is selected
func (w *UserSelect) User() (*auth.User, error) {
	uid, _ := w.Value().(string)
	if uid == "" {
		return nil, nil
	}
	return w.svc.GetUser(w.ctx, uid)
}

// FollowButton toggles the follow relation between the viewer and a user
type FollowButton struct {
	Following bool
	URL       string
}

// NewFollowButton returns nil when viewer can not follow user
func NewFollowButton(ctx context.Context, svc AuthService, urls *URLs, viewer, user *auth.User) (*FollowButton, error) {
	if viewer.IsAnonymous() || user.IsAnonymous() || viewer.Is(user) {
		return nil, nil
	}

	following, err := svc.IsFollowing(ctx, viewer, user)
	if err != nil {
		return nil, err
	}

	return &FollowButton{
		Following: following,
		URL:       urls.Path("api", "follow", user.ID.String()),
	}, nil
}

func (b *FollowButton) Render() (template.HTML, error) {
	out, err := followButtonTpl.Execute(pongo2.Context{
		"following": b.Following,
		"url":       b.URL,
	})
	if err != nil {
		return "", err
	}
	return template.HTML(out), nil
}

// ProfilePanel is the public card of a user
type ProfilePanel struct {
	User      *auth.User
	Followers int
	Following int
	EditURL   string
	Follow    *FollowButton
}

// NewProfilePanel loads the counters of user, the edit link is only set
// for the owner and administrators
func NewProfilePanel(ctx context.Context, svc AuthService, urls *URLs, viewer, user *auth.User) (*ProfilePanel, error) {
	followers, following, err := svc.FollowCounts(ctx, user)
	if err != nil {
		return nil, err
	}

	follow, err := NewFollowButton(ctx, svc, urls, viewer, user)
	if err != nil {
		return nil, err
	}

	p := &ProfilePanel{
		User:      user,
		Followers: followers,
		Following: following,
		Follow:    follow,
	}

	if viewer.Is(user) || viewer.IsAdmin() {
		if p.EditURL, err = urls.ProfileEditURL(user); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *ProfilePanel) Render() (template.HTML, error) {
	var follow template.HTML
	if p.Follow != nil {
		html, err := p.Follow.Render()
		if err != nil {
			return "", err
		}
		follow = html
	}

	out, err := profilePanelTpl.Execute(pongo2.Context{
		"user":        p.User,
		"uid":         p.User.ID.String(),
		"full_name":   p.User.FullName(),
		"description": string(RenderMarkdown(p.User.Description)),
		"followers":   p.Followers,
		"following":   p.Following,
		"follow":      string(follow),
		"edit_url":    p.EditURL,
	})
	if err != nil {
		return "", err
	}
	return template.HTML(out), nil
}

// RenderMarkdown converts a user supplied description, raw HTML is dropped
func RenderMarkdown(md string) template.HTML {
	if md == "" {
		return ""
	}
	var buf bytes.Buffer
	_ = goldmark.Convert([]byte(md), &buf)
	return template.HTML(buf.String())
}

func userOptionTitle(u *auth.User, admin bool) string {
	title := u.FullName()
	if title == "" {
		title = u.Nickname
	}
	if admin {
		title += " (" + u.Login + ")"
	}
	return title
}
