// ABOUTME: System configuration view with staged security, retention, and alert settings.
// ABOUTME: Edits are staged until applied and discarded when edit rights are lost.

package views

import (
	"fmt"
	"maps"
	"sync"
	"time"
)

// Toggle is a named boolean setting
type Toggle struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
}

// Option is one choice of a select setting
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var toggleLabels = []Option{
	{Value: "force_mfa", Label: "Force MFA for all Users"},
	{Value: "rotate_keys", Label: "Rotate API Keys Monthly"},
	{Value: "aes_docs", Label: "Enable AES-256 for Docs"},
}

var retentionOptions = []Option{
	{Value: "30d", Label: "30 Days (Standard)"},
	{Value: "90d", Label: "90 Days (Extended)"},
	{Value: "1y", Label: "1 Year (Compliant)"},
}

var alertRoutes = []string{"Email", "Slack", "Terminal Pipe", "SMS"}

type settingsState struct {
	toggles   map[string]bool
	retention string
	routes    map[string]bool
}

func defaultSettings() settingsState {
	s := settingsState{
		toggles:   map[string]bool{"force_mfa": true, "rotate_keys": false, "aes_docs": true},
		retention: "30d",
		routes:    make(map[string]bool),
	}
	for _, r := range alertRoutes {
		s.routes[r] = true
	}
	return s
}

func (s settingsState) clone() settingsState {
	return settingsState{
		toggles:   maps.Clone(s.toggles),
		retention: s.retention,
		routes:    maps.Clone(s.routes),
	}
}

func (s settingsState) equal(o settingsState) bool {
	return s.retention == o.retention && maps.Equal(s.toggles, o.toggles) && maps.Equal(s.routes, o.routes)
}

// SettingsBody is the settings page payload
type SettingsBody struct {
	Toggles          []Toggle   `json:"toggles"`
	Retention        string     `json:"retention"`
	RetentionOptions []Option   `json:"retention_options"`
	Routes           []Toggle   `json:"routes"`
	Pending          bool       `json:"pending"`
	LastApplied      *time.Time `json:"last_applied,omitempty"`
}

// Settings is the system configuration view
type Settings struct {
	deps Deps

	mu          sync.Mutex
	editable    bool
	applied     settingsState
	staged      settingsState
	lastApplied time.Time
}

func NewSettings(deps Deps) *Settings {
	applied := defaultSettings()
	return &Settings{
		deps:    deps.withDefaults(),
		applied: applied,
		staged:  applied.clone(),
	}
}

func (s *Settings) Mount(editable bool) { s.SetEditable(editable) }

func (s *Settings) SetEditable(editable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editable = editable
	if !editable {
		s.staged = s.applied.clone()
	}
}

func (s *Settings) Unmount() { s.SetEditable(false) }

// SetToggle stages a security toggle
func (s *Settings) SetToggle(key string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.editable {
		return ErrReadOnly
	}
	if _, ok := s.staged.toggles[key]; !ok {
		return fmt.Errorf("toggle %q: %w", key, ErrNotFound)
	}
	s.staged.toggles[key] = enabled
	return nil
}

// SetRetention stages the log retention period
func (s *Settings) SetRetention(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.editable {
		return ErrReadOnly
	}
	for _, o := range retentionOptions {
		if o.Value == value {
			s.staged.retention = value
			return nil
		}
	}
	return fmt.Errorf("retention %q: %w", value, ErrInvalidArgument)
}

// SetRoute stages whether alerts go to a route
func (s *Settings) SetRoute(route string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.editable {
		return ErrReadOnly
	}
	if _, ok := s.staged.routes[route]; !ok {
		return fmt.Errorf("route %q: %w", route, ErrNotFound)
	}
	s.staged.routes[route] = enabled
	return nil
}

// Apply commits staged edits
func (s *Settings) Apply() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.editable {
		return ErrReadOnly
	}
	s.applied = s.staged.clone()
	s.lastApplied = s.deps.Clock.Now()
	s.deps.Logger.WithField("retention", s.applied.retention).Info("System configuration applied")
	return nil
}

// Discard drops staged edits
func (s *Settings) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.editable {
		return ErrReadOnly
	}
	s.staged = s.applied.clone()
	return nil
}

func (s *Settings) Render() Page {
	s.mu.Lock()
	defer s.mu.Unlock()

	body := SettingsBody{
		Retention:        s.staged.retention,
		RetentionOptions: retentionOptions,
		Pending:          !s.staged.equal(s.applied),
	}
	for _, t := range toggleLabels {
		body.Toggles = append(body.Toggles, Toggle{Key: t.Value, Label: t.Label, Enabled: s.staged.toggles[t.Value]})
	}
	for _, r := range alertRoutes {
		body.Routes = append(body.Routes, Toggle{Key: r, Label: r, Enabled: s.staged.routes[r]})
	}
	if !s.lastApplied.IsZero() {
		applied := s.lastApplied
		body.LastApplied = &applied
	}

	return Page{
		Kind:     KindSettings,
		Title:    "System Configuration",
		Subtitle: "Manage global security protocols and infrastructure parameters.",
		Editable: s.editable,
		Body:     body,
	}
}
