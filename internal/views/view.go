// ABOUTME: Content view contract, shared dependencies, and the id-to-factory catalog.
// ABOUTME: Views only ever see a derived editable flag, never the session role.

package views

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jfeddern/OpsDeck/internal/providers"
	"github.com/jfeddern/OpsDeck/internal/rbac"
	"github.com/jfeddern/OpsDeck/internal/types"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

var (
	ErrReadOnly         = errors.New("view is read-only for the current role")
	ErrEmptyInput       = errors.New("input is empty")
	ErrScanInFlight     = errors.New("a scan is already running")
	ErrPolishInFlight   = errors.New("a polish request is already running")
	ErrNotFound         = errors.New("not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrCollaboratorNone = errors.New("collaborator is not configured")
)

// Built-in view identifiers
const (
	IDDashboard rbac.ViewID = "dashboard"
	IDEditor    rbac.ViewID = "cms"
	IDTasks     rbac.ViewID = "tasks"
	IDScanner   rbac.ViewID = "scanner"
	IDCommunity rbac.ViewID = "community"
	IDSettings  rbac.ViewID = "settings"
)

// View is a content view owned by one session.
//
// Mount and Unmount bracket the time the view is the active, allowed view.
// SetEditable is called whenever the derived edit permission may have
// changed. Timers and in-flight collaborator calls live only while the view
// is mounted and, where they mutate state, only while it is editable.
type View interface {
	Mount(editable bool)
	SetEditable(editable bool)
	Unmount()
	Render() Page
}

// Kind selects the renderer template for a Page body
type Kind string

const (
	KindDashboard Kind = "dashboard"
	KindEditor    Kind = "editor"
	KindBoard     Kind = "board"
	KindCommunity Kind = "community"
	KindHub       Kind = "hub"
	KindSettings  Kind = "settings"
)

// Page is a renderer-neutral snapshot of a view
type Page struct {
	Kind     Kind   `json:"kind"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Editable bool   `json:"editable"`
	Busy     bool   `json:"busy"`
	Banner   string `json:"banner,omitempty"`
	Notice   string `json:"notice,omitempty"`
	Body     any    `json:"body"`
}

// Collaborator outcomes reported to the Recorder
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"
	OutcomeDiscarded = "discarded"
)

// Recorder receives view activity for metrics
type Recorder interface {
	ScanFinished(outcome string, elapsed time.Duration, findings []types.Finding)
	AssistFinished(outcome string)
	Autosaved()
}

// NopRecorder discards everything
type NopRecorder struct{}

func (NopRecorder) ScanFinished(string, time.Duration, []types.Finding) {}
func (NopRecorder) AssistFinished(string)                               {}
func (NopRecorder) Autosaved()                                          {}

// Deps are the collaborators shared by every view a catalog builds
type Deps struct {
	Scanner          providers.Scanner
	Assistant        providers.Assistant
	Sampler          HostSampler
	Clock            clock.WithTicker
	Recorder         Recorder
	Logger           *logrus.Logger
	AutosaveInterval time.Duration
	ScanTimeout      time.Duration
	AssistTimeout    time.Duration
}

const (
	DefaultAutosaveInterval = 30 * time.Second
	DefaultScanTimeout      = 2 * time.Minute
	DefaultAssistTimeout    = 30 * time.Second
)

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.RealClock{}
	}
	if d.Recorder == nil {
		d.Recorder = NopRecorder{}
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.AutosaveInterval <= 0 {
		d.AutosaveInterval = DefaultAutosaveInterval
	}
	if d.ScanTimeout <= 0 {
		d.ScanTimeout = DefaultScanTimeout
	}
	if d.AssistTimeout <= 0 {
		d.AssistTimeout = DefaultAssistTimeout
	}
	return d
}

// Factory builds a fresh view instance
type Factory func(Deps) View

// Catalog binds view ids to factories. It is the render half of the view
// registry; descriptors live in rbac.Registry.
type Catalog struct {
	deps      Deps
	factories map[rbac.ViewID]Factory
}

// NewCatalog creates an empty catalog
func NewCatalog(deps Deps) *Catalog {
	return &Catalog{
		deps:      deps.withDefaults(),
		factories: make(map[rbac.ViewID]Factory),
	}
}

// DefaultCatalog binds every built-in view
func DefaultCatalog(deps Deps) *Catalog {
	c := NewCatalog(deps)
	c.Bind(IDDashboard, func(d Deps) View { return NewDashboard(d) })
	c.Bind(IDEditor, func(d Deps) View { return NewEditor(d) })
	c.Bind(IDTasks, func(d Deps) View { return NewTaskBoard(d) })
	c.Bind(IDScanner, func(d Deps) View { return NewSecurityHub(d) })
	c.Bind(IDCommunity, func(d Deps) View { return NewCommunity(d) })
	c.Bind(IDSettings, func(d Deps) View { return NewSettings(d) })
	return c
}

// Bind registers or replaces the factory for id
func (c *Catalog) Bind(id rbac.ViewID, f Factory) {
	c.factories[id] = f
}

// Has reports whether id has a factory
func (c *Catalog) Has(id rbac.ViewID) bool {
	_, ok := c.factories[id]
	return ok
}

// New builds a view for id. A missing binding is a wiring bug.
func (c *Catalog) New(id rbac.ViewID) View {
	f, ok := c.factories[id]
	if !ok {
		panic(fmt.Errorf("%w: view %q has no renderer", rbac.ErrConfigurationDefect, id))
	}
	return f(c.deps)
}

// Check reports registered descriptors that have no factory
func (c *Catalog) Check(views rbac.Resolver) error {
	var missing []string
	for _, d := range views.Descriptors() {
		if !c.Has(d.ID) {
			missing = append(missing, string(d.ID))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: views without a renderer: %s", rbac.ErrConfigurationDefect, strings.Join(missing, ", "))
}
