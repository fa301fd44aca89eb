// ABOUTME: Drafting room editor with autosave and AI polish.
// ABOUTME: Autosave runs only while the editor is mounted and editable.

package views

import (
	"context"
	"html/template"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jfeddern/OpsDeck/internal/schedule"
	"github.com/sirupsen/logrus"
)

// EditorBody is the editor page payload
type EditorBody struct {
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	Preview   template.HTML `json:"preview"`
	EyeCare   bool          `json:"eye_care"`
	Words     int           `json:"words"`
	Chars     int           `json:"chars"`
	Dirty     bool          `json:"dirty"`
	LastSaved *time.Time    `json:"last_saved,omitempty"`
	Polishing bool          `json:"polishing"`
	CanPolish bool          `json:"can_polish"`
	Autosave  bool          `json:"autosave"`
}

// Editor is the document drafting view
type Editor struct {
	deps Deps
	log  *logrus.Entry

	mu        sync.Mutex
	mounted   bool
	editable  bool
	title     string
	content   string
	eyeCare   bool
	dirty     bool
	lastSaved time.Time
	notice    string

	autosave *schedule.Task

	polishing    bool
	polishGen    uint64
	cancelPolish context.CancelFunc
	inflight     sync.WaitGroup
}

func NewEditor(deps Deps) *Editor {
	deps = deps.withDefaults()
	return &Editor{
		deps: deps,
		log:  deps.Logger.WithField("view", string(IDEditor)),
	}
}

func (e *Editor) Mount(editable bool) {
	e.mu.Lock()
	e.mounted = true
	e.editable = editable
	stop := e.reconcileLocked()
	e.mu.Unlock()
	stop.Stop()
}

func (e *Editor) SetEditable(editable bool) {
	e.mu.Lock()
	e.editable = editable
	stop := e.reconcileLocked()
	e.mu.Unlock()
	stop.Stop()
}

func (e *Editor) Unmount() {
	e.mu.Lock()
	e.mounted = false
	stop := e.reconcileLocked()
	e.mu.Unlock()
	stop.Stop()
}

// reconcileLocked arms or disarms autosave and polish to match the current
// mount and edit state. A returned task must be stopped after unlocking.
func (e *Editor) reconcileLocked() *schedule.Task {
	if e.mounted && e.editable {
		if e.autosave == nil {
			e.autosave = schedule.Every(context.Background(), e.deps.Clock, "autosave", e.deps.AutosaveInterval, e.autosaveTick, e.deps.Logger)
		}
		return nil
	}

	if e.cancelPolish != nil {
		e.cancelPolish()
		e.cancelPolish = nil
	}
	if e.polishing {
		e.polishing = false
		e.polishGen++
	}

	stop := e.autosave
	e.autosave = nil
	return stop
}

func (e *Editor) autosaveTick(context.Context) {
	e.mu.Lock()
	if !e.mounted || !e.editable {
		e.mu.Unlock()
		return
	}
	if e.title == "" && e.content == "" {
		e.mu.Unlock()
		return
	}
	if !e.dirty {
		e.mu.Unlock()
		return
	}
	e.saveLocked()
	e.mu.Unlock()

	e.log.Debug("Draft autosaved")
	e.deps.Recorder.Autosaved()
}

func (e *Editor) saveLocked() {
	e.lastSaved = e.deps.Clock.Now()
	e.dirty = false
}

// SetDraft replaces the title and content
func (e *Editor) SetDraft(title, content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.editable {
		return ErrReadOnly
	}
	if title != e.title || content != e.content {
		e.title = title
		e.content = content
		e.dirty = true
	}
	e.notice = ""
	return nil
}

// Save persists the draft immediately
func (e *Editor) Save() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.editable {
		return ErrReadOnly
	}
	e.saveLocked()
	return nil
}

// ToggleEyeCare flips the low-contrast reading palette. It never mutates content.
func (e *Editor) ToggleEyeCare() {
	e.mu.Lock()
	e.eyeCare = !e.eyeCare
	e.mu.Unlock()
}

// Polish asks the writing assistant to improve the content in the background.
// A failed or stale result leaves the draft untouched.
func (e *Editor) Polish() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case !e.mounted || !e.editable:
		return ErrReadOnly
	case e.deps.Assistant == nil:
		return ErrCollaboratorNone
	case e.polishing:
		return ErrPolishInFlight
	case strings.TrimSpace(e.content) == "":
		return ErrEmptyInput
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.deps.AssistTimeout)
	e.polishing = true
	e.polishGen++
	e.cancelPolish = cancel
	e.notice = ""

	e.inflight.Add(1)
	go e.runPolish(ctx, cancel, e.polishGen, e.content)
	return nil
}

func (e *Editor) runPolish(ctx context.Context, cancel context.CancelFunc, gen uint64, source string) {
	defer e.inflight.Done()
	defer cancel()

	improved, err := e.deps.Assistant.Improve(ctx, source)

	e.mu.Lock()
	if gen != e.polishGen {
		e.mu.Unlock()
		e.deps.Recorder.AssistFinished(OutcomeCancelled)
		return
	}
	e.polishing = false
	e.cancelPolish = nil

	var outcome string
	switch {
	case err != nil:
		outcome = OutcomeFailure
		e.notice = "AI polish unavailable. Draft unchanged."
	case e.content != source:
		outcome = OutcomeDiscarded
		e.notice = "Draft changed while polishing. Suggestion discarded."
	default:
		outcome = OutcomeSuccess
		e.content = improved
		e.dirty = true
	}
	e.mu.Unlock()

	if err != nil {
		e.log.WithError(err).WithField("provider", e.deps.Assistant.Name()).Warn("Writing assistant failed")
	}
	e.deps.Recorder.AssistFinished(outcome)
}

// Wait blocks until background polish requests have returned
func (e *Editor) Wait() {
	e.inflight.Wait()
}

// AutosaveArmed reports whether the autosave timer is scheduled
func (e *Editor) AutosaveArmed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.autosave != nil
}

func (e *Editor) Render() Page {
	e.mu.Lock()
	body := EditorBody{
		Title:     e.title,
		Content:   e.content,
		EyeCare:   e.eyeCare,
		Words:     len(strings.Fields(e.content)),
		Chars:     utf8.RuneCountInString(e.content),
		Dirty:     e.dirty,
		Polishing: e.polishing,
		CanPolish: e.editable && !e.polishing && strings.TrimSpace(e.content) != "" && e.deps.Assistant != nil,
		Autosave:  e.autosave != nil,
	}
	if !e.lastSaved.IsZero() {
		saved := e.lastSaved
		body.LastSaved = &saved
	}
	editable := e.editable
	notice := e.notice
	e.mu.Unlock()

	if body.Content != "" {
		if preview, err := RenderMarkdown(body.Content); err == nil {
			body.Preview = template.HTML(preview)
		}
	}

	page := Page{
		Kind:     KindEditor,
		Title:    "Document Editor",
		Subtitle: "Working Draft",
		Editable: editable,
		Busy:     body.Polishing,
		Notice:   notice,
		Body:     body,
	}
	if body.LastSaved != nil {
		page.Subtitle = "Synced " + body.LastSaved.Format(time.TimeOnly)
	}
	if !editable {
		page.Banner = "Read-Only Mode. Elevate your clearance level to edit this document."
	}
	return page
}
