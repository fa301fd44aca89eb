// ABOUTME: Role model for the console session: the closed role set and role sets.
// ABOUTME: Roles are small enums so an invalid role cannot be constructed from static data.

package rbac

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfigurationDefect marks programmer errors: unregistered views, roles outside
// the closed set, descriptors without a renderer. These are raised with panic.
var ErrConfigurationDefect = errors.New("configuration defect")

// ErrUnknownRole is returned when boundary input names a role outside the closed set
var ErrUnknownRole = errors.New("unknown role")

// Role is the permission level attached to the active session
type Role uint8

const (
	roleInvalid Role = iota
	Admin
	Editor
	Viewer
)

var roleNames = map[Role]string{
	Admin:  "ADMIN",
	Editor: "EDITOR",
	Viewer: "VIEWER",
}

// Roles returns the closed role set in display order
func Roles() []Role {
	return []Role{Admin, Editor, Viewer}
}

// Valid reports whether r is a member of the closed role set
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// ParseRole parses a role name from user input (case-insensitive)
func ParseRole(s string) (Role, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for role, known := range roleNames {
		if known == name {
			return role, nil
		}
	}
	return roleInvalid, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// MustParseRole parses a role from static configuration and panics on failure
func MustParseRole(s string) Role {
	role, err := ParseRole(s)
	if err != nil {
		panic(fmt.Errorf("%w: %v", ErrConfigurationDefect, err))
	}
	return role
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// RoleSet is a set of roles stored as a bitmask
type RoleSet uint8

// NewRoleSet builds a set from the given roles
func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		if !r.Valid() {
			panic(fmt.Errorf("%w: role %s is not in the closed set", ErrConfigurationDefect, r))
		}
		s |= 1 << r
	}
	return s
}

// AllRoles is the set containing every role
func AllRoles() RoleSet {
	return NewRoleSet(Roles()...)
}

// Has reports whether r is a member of the set
func (s RoleSet) Has(r Role) bool {
	return r.Valid() && s&(1<<r) != 0
}

// Empty reports whether the set has no members
func (s RoleSet) Empty() bool {
	return s == 0
}

// SubsetOf reports whether every member of s is also in other
func (s RoleSet) SubsetOf(other RoleSet) bool {
	return s&^other == 0
}

// Roles lists the members in display order
func (s RoleSet) Roles() []Role {
	var out []Role
	for _, r := range Roles() {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s RoleSet) String() string {
	names := make([]string, 0, 3)
	for _, r := range s.Roles() {
		names = append(names, r.String())
	}
	return strings.Join(names, ", ")
}

func (s RoleSet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, 3)
	for _, r := range s.Roles() {
		names = append(names, `"`+r.String()+`"`)
	}
	return []byte("[" + strings.Join(names, ",") + "]"), nil
}

// UnmarshalYAML reads a role set from a YAML sequence of role names
func (s *RoleSet) UnmarshalYAML(node *yaml.Node) error {
	var names []string
	if err := node.Decode(&names); err != nil {
		return err
	}
	var set RoleSet
	for _, name := range names {
		role, err := ParseRole(name)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		set |= NewRoleSet(role)
	}
	*s = set
	return nil
}
