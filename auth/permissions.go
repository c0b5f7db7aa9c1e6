package auth

import (
	"sort"
	"sync"
)

// Permission is a named capability grouped for display
type Permission struct {
	Name        string
	Description string
	Group       string
}

// PermissionGroup holds permissions under a shared title
type PermissionGroup struct {
	Name        string
	Description string
	Permissions []Permission
}

// Permissions is a registry of the permissions known to the application
type Permissions struct {
	mu     sync.RWMutex
	groups map[string]*PermissionGroup
}

// NewPermissions creates a registry with the builtin auth group
func NewPermissions() *Permissions {
	p := &Permissions{groups: map[string]*PermissionGroup{}}
	p.DefineGroup("auth", "Authentication")
	return p
}

// DefineGroup adds a group, redefining keeps existing permissions
func (p *Permissions) DefineGroup(name, description string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if g, ok := p.groups[name]; ok {
		g.Description = description
		return
	}
	p.groups[name] = &PermissionGroup{Name: name, Description: description}
}

// Define adds a permission to a group, the group is created when missing
func (p *Permissions) Define(name, description, group string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	g, ok := p.groups[group]
	if !ok {
		g = &PermissionGroup{Name: group, Description: group}
		p.groups[group] = g
	}

	for i, perm := range g.Permissions {
		if perm.Name == name {
			g.Permissions[i].Description = description
			return
		}
	}

	g.Permissions = append(g.Permissions, Permission{
		Name:        name,
		Description: description,
		Group:       group,
	})
}

// Groups returns a copy of all groups sorted by name
func (p *Permissions) Groups() []PermissionGroup {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]PermissionGroup, 0, len(p.groups))
	for _, g := range p.groups {
		perms := make([]Permission, len(g.Permissions))
		copy(perms, g.Permissions)
		out = append(out, PermissionGroup{
			Name:        g.Name,
			Description: g.Description,
			Permissions: perms,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})

	return out
}

// Has reports whether a permission with name was defined
func (p *Permissions) Has(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, g := range p.groups {
		for _, perm := range g.Permissions {
			if perm.Name == name {
				return true
			}
		}
	}
	return false
}
