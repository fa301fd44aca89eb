// ABOUTME: Access controller deciding whether a role may open or edit a view.
// ABOUTME: Denial is an ordinary Decision value rendered by the shell, not an error.

package rbac

import "fmt"

// DecisionKind tags a Decision
type DecisionKind uint8

const (
	Allowed DecisionKind = iota + 1
	Denied
)

func (k DecisionKind) String() string {
	switch k {
	case Allowed:
		return "allowed"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

func (k DecisionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Decision is the outcome of authorizing a role against a view.
// Editable is meaningful only for Allowed; RequiredRoles only for Denied.
type Decision struct {
	Kind          DecisionKind `json:"kind"`
	View          ViewID       `json:"view"`
	Editable      bool         `json:"editable"`
	RequiredRoles RoleSet      `json:"required_roles,omitempty"`
}

// IsAllowed reports whether the view may be rendered
func (d Decision) IsAllowed() bool {
	return d.Kind == Allowed
}

// Controller authorizes roles against the view registry
type Controller struct {
	views Resolver
}

// NewController creates an access controller over the given registry
func NewController(views Resolver) *Controller {
	return &Controller{views: views}
}

// Views returns the registry the controller consults
func (c *Controller) Views() Resolver {
	return c.views
}

// Authorize decides whether role may open view id. It has no side effects.
func (c *Controller) Authorize(role Role, id ViewID) Decision {
	if !role.Valid() {
		panic(fmt.Errorf("%w: role %s is not in the closed set", ErrConfigurationDefect, role))
	}

	desc := c.views.Resolve(id)
	if !desc.CanOpen(role) {
		return Decision{
			Kind:          Denied,
			View:          id,
			RequiredRoles: desc.RequiredRoles,
		}
	}

	return Decision{
		Kind:     Allowed,
		View:     id,
		Editable: desc.CanEdit(role),
	}
}

// Permission is one cell of the role x view matrix
type Permission struct {
	View    ViewDescriptor
	Role    Role
	CanOpen bool
	CanEdit bool
}

// Matrix lists canOpen/canEdit for every registered view and role
func (c *Controller) Matrix() []Permission {
	var out []Permission
	for _, d := range c.views.Descriptors() {
		for _, r := range Roles() {
			out = append(out, Permission{
				View:    d,
				Role:    r,
				CanOpen: d.CanOpen(r),
				CanEdit: d.CanEdit(r),
			})
		}
	}
	return out
}
