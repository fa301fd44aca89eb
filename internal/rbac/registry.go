// ABOUTME: View registry mapping view identifiers to their role constraints.
// ABOUTME: The table is loaded once from YAML at startup and is immutable afterwards.

package rbac

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ViewID identifies a screen the navigation shell can make active
type ViewID string

// ViewDescriptor holds the role constraints of a single view
type ViewDescriptor struct {
	ID            ViewID  `yaml:"id" json:"id"`
	Label         string  `yaml:"label" json:"label"`
	RequiredRoles RoleSet `yaml:"required_roles" json:"required_roles"`
	EditRoles     RoleSet `yaml:"edit_roles" json:"edit_roles"`
}

// CanOpen reports whether a session with role r may make this view active
func (d ViewDescriptor) CanOpen(r Role) bool {
	return d.RequiredRoles.Has(r)
}

// CanEdit reports whether a session with role r may mutate content in this view
func (d ViewDescriptor) CanEdit(r Role) bool {
	return d.EditRoles.Has(r)
}

// Validate checks the descriptor invariants
func (d ViewDescriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("view descriptor has no id")
	}
	if d.RequiredRoles.Empty() {
		return fmt.Errorf("view %q: required_roles must not be empty", d.ID)
	}
	if !d.EditRoles.SubsetOf(d.RequiredRoles) {
		return fmt.Errorf("view %q: edit_roles [%s] must be a subset of required_roles [%s]", d.ID, d.EditRoles, d.RequiredRoles)
	}
	return nil
}

// Resolver looks up view descriptors
type Resolver interface {
	// Resolve returns the descriptor for id and panics if id is not registered
	Resolve(id ViewID) ViewDescriptor
	Lookup(id ViewID) (ViewDescriptor, bool)
	Descriptors() []ViewDescriptor
}

// Registry is the static view table
type Registry struct {
	order []ViewID
	byID  map[ViewID]ViewDescriptor
}

// NewRegistry validates the descriptors and builds a registry preserving their order
func NewRegistry(descriptors ...ViewDescriptor) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("registry needs at least one view")
	}

	r := &Registry{
		byID: make(map[ViewID]ViewDescriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("view %q registered twice", d.ID)
		}
		if d.Label == "" {
			d.Label = string(d.ID)
		}
		r.byID[d.ID] = d
		r.order = append(r.order, d.ID)
	}

	return r, nil
}

// Lookup returns the descriptor for id, reporting whether it exists
func (r *Registry) Lookup(id ViewID) (ViewDescriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Resolve returns the descriptor for id. An unregistered id is a wiring bug,
// never the result of normal navigation, so it panics.
func (r *Registry) Resolve(id ViewID) ViewDescriptor {
	d, ok := r.byID[id]
	if !ok {
		panic(fmt.Errorf("%w: view %q is not registered", ErrConfigurationDefect, id))
	}
	return d
}

// Descriptors returns every descriptor in menu order
func (r *Registry) Descriptors() []ViewDescriptor {
	out := make([]ViewDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns the registered view identifiers in menu order
func (r *Registry) IDs() []ViewID {
	return append([]ViewID(nil), r.order...)
}

type registryFile struct {
	Views []ViewDescriptor `yaml:"views"`
}

// ParseRegistry builds a registry from a YAML document
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse view registry: %w", err)
	}
	return NewRegistry(file.Views...)
}

// LoadRegistry reads a registry from a YAML file
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read view registry '%s': %w", path, err)
	}
	return ParseRegistry(data)
}

//go:embed views.yaml
var defaultViews []byte

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := ParseRegistry(defaultViews)
	if err != nil {
		panic(fmt.Errorf("%w: embedded view registry: %v", ErrConfigurationDefect, err))
	}
	return r
})

// DefaultRegistry returns the built-in view table
func DefaultRegistry() *Registry {
	return defaultRegistry()
}
