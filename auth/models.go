package auth

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserStatus is the lifecycle state of a user account
type UserStatus string

const (
	// UserStatusWaiting is a user that did not confirm sign up yet
	UserStatusWaiting UserStatus = "waiting"
	// UserStatusActive is a user allowed to sign in
	UserStatusActive UserStatus = "active"
	// UserStatusDisabled is a user blocked by an admin
	UserStatusDisabled UserStatus = "disabled"
)

// Statuses returns all known statuses with their titles
func Statuses() map[UserStatus]string {
	return map[UserStatus]string{
		UserStatusWaiting:  "Waiting",
		UserStatusActive:   "Active",
		UserStatusDisabled: "Disabled",
	}
}

// IsValidStatus reports whether s is one of the known statuses
func IsValidStatus(s UserStatus) bool {
	_, ok := Statuses()[s]
	return ok
}

const (
	// RoleAnonymous is assigned to unauthenticated visitors
	RoleAnonymous = "anonymous"
	// RoleUser is the default role of a registered user
	RoleUser = "user"
	// RoleAdmin grants access to every administrative operation
	RoleAdmin = "admin"
	// RoleDev is a developer, treated as admin
	RoleDev = "dev"
)

// BuiltinRoles returns the roles every installation has
func BuiltinRoles() []*Role {
	return []*Role{
		{Name: RoleAnonymous, Description: "Anonymous"},
		{Name: RoleUser, Description: "User"},
		{Name: RoleAdmin, Description: "Administrator"},
		{Name: RoleDev, Description: "Developer"},
	}
}

// User is the user model
type User struct {
	bun.BaseModel    `bun:"table:users,alias:usr"`
	ID               uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Login            string     `bun:"login,notnull,unique" json:"login,omitempty"`
	Nickname         string     `bun:"nickname,notnull,unique" json:"nickname,omitempty"`
	Email            string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash     string     `bun:"password_hash" json:"-"`
	Status           UserStatus `bun:"status,notnull" json:"status,omitempty"`
	FirstName        string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName         string     `bun:"last_name" json:"last_name,omitempty"`
	Description      string     `bun:"description" json:"description,omitempty"`
	Country          string     `bun:"country" json:"country,omitempty"`
	City             string     `bun:"city" json:"city,omitempty"`
	Picture          string     `bun:"picture" json:"picture,omitempty"`
	Phone            string     `bun:"phone_number" json:"phone_number,omitempty"`
	URLs             []string   `bun:"urls" json:"urls,omitempty"`
	Roles            []string   `bun:"roles" json:"roles,omitempty"`
	IsPublic         bool       `bun:"is_public" json:"is_public"`
	ConfirmationHash string     `bun:"confirmation_hash" json:"-"`
	SignInCount      int        `bun:"sign_in_count" json:"sign_in_count,omitempty"`
	LastSignIn       *time.Time `bun:"last_sign_in,nullzero" json:"last_sign_in,omitempty"`
	LastActivity     *time.Time `bun:"last_activity,nullzero" json:"last_activity,omitempty"`
	CreatedAt        *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt        *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// AnonymousUser returns the user used for unauthenticated requests
func AnonymousUser() *User {
	return &User{
		Nickname: RoleAnonymous,
		Status:   UserStatusActive,
		Roles:    []string{RoleAnonymous},
	}
}

// IsAnonymous reports whether u stands for a visitor without session
func (u *User) IsAnonymous() bool {
	return u == nil || u.ID == uuid.Nil
}

// IsActive reports whether u may sign in
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}

// HasRole reports whether u has the named role
func (u *User) HasRole(name string) bool {
	if u == nil {
		return false
	}
	return slices.Contains(u.Roles, name)
}

// IsAdmin reports whether u has administrative rights
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin) || u.HasRole(RoleDev)
}

// Is reports whether u and other are the same stored user
func (u *User) Is(other *User) bool {
	if u.IsAnonymous() || other.IsAnonymous() {
		return false
	}
	return u.ID == other.ID
}

// FullName returns first and last name joined
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// EnsureStatus sets the default status on records without one
func (u *User) EnsureStatus() {
	if u != nil && u.Status == "" {
		u.Status = UserStatusWaiting
	}
}

// Role is a named set of permissions
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rl"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	Description   string     `bun:"description,notnull" json:"description,omitempty"`
	Permissions   []string   `bun:"permissions" json:"permissions,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// HasPermission reports whether r grants the named permission
func (r *Role) HasPermission(name string) bool {
	if r == nil {
		return false
	}
	return slices.Contains(r.Permissions, name)
}

// IsBuiltin reports whether r is one of the roles that can not be renamed
func (r *Role) IsBuiltin() bool {
	return r != nil && (r.Name == RoleAnonymous || r.Name == RoleUser)
}

// Follow links a follower to the user being followed
type Follow struct {
	bun.BaseModel `bun:"table:follows,alias:flw"`
	FollowerID    uuid.UUID  `bun:"follower_id,pk,type:uuid" json:"follower_id"`
	FollowingID   uuid.UUID  `bun:"following_id,pk,type:uuid" json:"following_id"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
