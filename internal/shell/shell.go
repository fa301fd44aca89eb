// ABOUTME: Navigation shell owning one session's role, active view, and view instances.
// ABOUTME: Every transition and render passes through a single authorization gate.

package shell

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jfeddern/OpsDeck/internal/rbac"
	"github.com/jfeddern/OpsDeck/internal/views"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

var (
	ErrViewNotActive = errors.New("view is not the active view")
	ErrClosed        = errors.New("session is closed")
)

// DeniedError is returned when a mutation targets a view the role may not open
type DeniedError struct {
	Decision rbac.Decision
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access to view %q denied: requires %s", e.Decision.View, e.Decision.RequiredRoles)
}

// Session is the navigation state. Only the Shell mutates it; callers get copies.
type Session struct {
	ID        string      `json:"id"`
	Role      rbac.Role   `json:"role"`
	View      rbac.ViewID `json:"view"`
	StartedAt time.Time   `json:"started_at"`
}

// MenuItem is one navigation entry. Locked is advisory styling only.
type MenuItem struct {
	ID     rbac.ViewID `json:"id"`
	Label  string      `json:"label"`
	Active bool        `json:"active"`
	Locked bool        `json:"locked"`
}

// Denial is rendered in place of a view the role may not open
type Denial struct {
	View          rbac.ViewID  `json:"view"`
	Label         string       `json:"label"`
	RequiredRoles rbac.RoleSet `json:"required_roles"`
	Message       string       `json:"message"`
	ReturnTo      rbac.ViewID  `json:"return_to"`
	ReturnLabel   string       `json:"return_label"`
}

// Frame is everything a renderer needs for one pass
type Frame struct {
	Session  Session       `json:"session"`
	Roles    []rbac.Role   `json:"roles"`
	Menu     []MenuItem    `json:"menu"`
	Decision rbac.Decision `json:"decision"`
	Page     *views.Page   `json:"page,omitempty"`
	Denial   *Denial       `json:"denial,omitempty"`
	Busy     bool          `json:"busy"`
}

// DecisionRecorder observes the outcome of each navigation or role switch.
// Render-time and action-time checks are not reported.
type DecisionRecorder interface {
	Decided(role rbac.Role, d rbac.Decision)
}

type nopRecorder struct{}

func (nopRecorder) Decided(rbac.Role, rbac.Decision) {}

// Options configure a Shell
type Options struct {
	DefaultRole rbac.Role
	DefaultView rbac.ViewID
	Recorder    DecisionRecorder
	Clock       clock.PassiveClock
}

// Shell is the single writer of a Session
type Shell struct {
	controller *rbac.Controller
	catalog    *views.Catalog
	opts       Options
	log        *logrus.Entry

	mu              sync.Mutex
	session         Session
	instances       map[rbac.ViewID]views.View
	mounted         rbac.ViewID
	mountedEditable bool
	closed          bool
}

// New creates a shell positioned on the default view. The default view must
// be open to every role.
func New(controller *rbac.Controller, catalog *views.Catalog, opts Options, logger *logrus.Logger) *Shell {
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if !opts.DefaultRole.Valid() {
		opts.DefaultRole = rbac.Admin
	}

	desc := controller.Views().Resolve(opts.DefaultView)
	if desc.RequiredRoles != rbac.AllRoles() {
		panic(fmt.Errorf("%w: default view %q is not open to every role", rbac.ErrConfigurationDefect, opts.DefaultView))
	}

	s := &Shell{
		controller: controller,
		catalog:    catalog,
		opts:       opts,
		instances:  make(map[rbac.ViewID]views.View),
		session: Session{
			ID:        uuid.NewString(),
			Role:      opts.DefaultRole,
			View:      opts.DefaultView,
			StartedAt: opts.Clock.Now(),
		},
	}
	s.log = logger.WithFields(logrus.Fields{
		"component": "shell",
		"session":   s.session.ID,
	})

	s.mu.Lock()
	s.reconcileLocked()
	s.mu.Unlock()
	return s
}

// Session returns a copy of the current session
func (s *Shell) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// SelectView makes id the active view. A denied view still becomes active so
// the denial is what renders.
func (s *Shell) SelectView(id rbac.ViewID) rbac.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.controller.Views().Resolve(id)
	s.session.View = id
	d := s.reconcileLocked()
	s.opts.Recorder.Decided(s.session.Role, d)
	if !d.IsAllowed() {
		s.log.WithFields(logrus.Fields{
			"view": id,
			"role": s.session.Role,
		}).Debug("Navigation to restricted view")
	}
	return d
}

// SwitchRole replaces the active role. The active view is kept and
// re-authorized under the new role.
func (s *Shell) SwitchRole(role rbac.Role) rbac.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !role.Valid() {
		panic(fmt.Errorf("%w: role %s is not in the closed set", rbac.ErrConfigurationDefect, role))
	}
	s.session.Role = role
	s.log.WithField("role", role).Debug("Role switched")
	d := s.reconcileLocked()
	s.opts.Recorder.Decided(role, d)
	return d
}

// reconcileLocked is the only authorization gate. It mounts the active view
// when allowed, keeps its editable flag current, and unmounts it otherwise.
func (s *Shell) reconcileLocked() rbac.Decision {
	d := s.controller.Authorize(s.session.Role, s.session.View)

	if s.closed || !d.IsAllowed() {
		s.unmountLocked()
		return d
	}

	switch {
	case s.mounted != d.View:
		s.unmountLocked()
		s.instanceLocked(d.View).Mount(d.Editable)
		s.mounted = d.View
		s.mountedEditable = d.Editable
	case s.mountedEditable != d.Editable:
		s.instances[d.View].SetEditable(d.Editable)
		s.mountedEditable = d.Editable
	}
	return d
}

func (s *Shell) unmountLocked() {
	if s.mounted == "" {
		return
	}
	s.instances[s.mounted].Unmount()
	s.mounted = ""
	s.mountedEditable = false
}

// instanceLocked returns the session's instance of a view, building it on first use.
// Instances keep their content across navigation.
func (s *Shell) instanceLocked(id rbac.ViewID) views.View {
	v, ok := s.instances[id]
	if !ok {
		v = s.catalog.New(id)
		s.instances[id] = v
	}
	return v
}

// Menu lists every view with advisory lock state for the current role
func (s *Shell) Menu() []MenuItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.menuLocked()
}

func (s *Shell) menuLocked() []MenuItem {
	descs := s.controller.Views().Descriptors()
	items := make([]MenuItem, 0, len(descs))
	for _, d := range descs {
		items = append(items, MenuItem{
			ID:     d.ID,
			Label:  d.Label,
			Active: d.ID == s.session.View,
			Locked: !d.CanOpen(s.session.Role),
		})
	}
	return items
}

// Render authorizes the active view and snapshots everything to display
func (s *Shell) Render() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.reconcileLocked()
	frame := Frame{
		Session:  s.session,
		Roles:    rbac.Roles(),
		Menu:     s.menuLocked(),
		Decision: d,
	}

	if !d.IsAllowed() {
		frame.Denial = s.denialLocked(d)
		return frame
	}

	page := s.instanceLocked(d.View).Render()
	frame.Page = &page
	frame.Busy = page.Busy
	return frame
}

func (s *Shell) denialLocked(d rbac.Decision) *Denial {
	reg := s.controller.Views()
	return &Denial{
		View:          d.View,
		Label:         reg.Resolve(d.View).Label,
		RequiredRoles: d.RequiredRoles,
		Message:       fmt.Sprintf("The requested module requires %s level clearance.", d.RequiredRoles),
		ReturnTo:      s.opts.DefaultView,
		ReturnLabel:   reg.Resolve(s.opts.DefaultView).Label,
	}
}

// Close unmounts every view and stops their timers. The shell renders
// nothing mountable afterwards.
func (s *Shell) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.unmountLocked()
	for _, v := range s.instances {
		v.Unmount()
	}
	s.log.Debug("Session closed")
}

// Act runs fn against the active view when it is id and the role may open it.
// The view itself enforces its editable flag.
func Act[T views.View](s *Shell, id rbac.ViewID, fn func(T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	d := s.reconcileLocked()
	if s.session.View != id {
		return fmt.Errorf("%w: %s", ErrViewNotActive, id)
	}
	if !d.IsAllowed() {
		return &DeniedError{Decision: d}
	}

	v, ok := s.instances[id].(T)
	if !ok {
		panic(fmt.Errorf("%w: view %q has unexpected type %T", rbac.ErrConfigurationDefect, id, s.instances[id]))
	}
	return fn(v)
}
