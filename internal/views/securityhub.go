// ABOUTME: Security hub view that submits pasted code to the scan collaborator.
// ABOUTME: Tracks scan state as NotRun, Running, Completed, or Failed and derives a health score.

package views

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jfeddern/OpsDeck/internal/types"
	"github.com/sirupsen/logrus"
)

// ScanState tags a ScanResult
type ScanState uint8

const (
	ScanNotRun ScanState = iota
	ScanRunning
	ScanCompleted
	ScanFailed
)

func (s ScanState) String() string {
	switch s {
	case ScanNotRun:
		return "not_run"
	case ScanRunning:
		return "running"
	case ScanCompleted:
		return "completed"
	case ScanFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s ScanState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ScanState) UnmarshalText(text []byte) error {
	for _, known := range []ScanState{ScanNotRun, ScanRunning, ScanCompleted, ScanFailed} {
		if known.String() == string(text) {
			*s = known
			return nil
		}
	}
	return fmt.Errorf("%w: scan state %q", ErrInvalidArgument, text)
}

// ScanResult is the outcome of the most recent scan. Findings are set only
// for Completed and Reason only for Failed. A Completed result with no
// findings is a clean scan.
type ScanResult struct {
	State    ScanState       `json:"state"`
	Findings []types.Finding `json:"findings,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Elapsed  time.Duration   `json:"elapsed,omitempty"`
}

// SeverityCounts tallies findings per severity
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// CountSeverities tallies findings per severity
func CountSeverities(findings []types.Finding) SeverityCounts {
	var c SeverityCounts
	for _, f := range findings {
		switch f.Severity {
		case types.SeverityCritical:
			c.Critical++
		case types.SeverityHigh:
			c.High++
		case types.SeverityMedium:
			c.Medium++
		case types.SeverityLow:
			c.Low++
		}
	}
	return c
}

// HealthScore is 100 minus 30 per critical, 15 per high and 5 per medium
// finding, floored at zero. Low findings do not count.
func HealthScore(findings []types.Finding) int {
	c := CountSeverities(findings)
	score := 100 - (30*c.Critical + 15*c.High + 5*c.Medium)
	if score < 0 {
		return 0
	}
	return score
}

// HubBody is the security hub page payload
type HubBody struct {
	Code     string          `json:"code"`
	CanScan  bool            `json:"can_scan"`
	State    ScanState       `json:"state"`
	Findings []types.Finding `json:"findings"`
	Counts   SeverityCounts  `json:"counts"`
	Health   *int            `json:"health,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

const scanFailedReason = "The scan collaborator did not return a usable result."

// SecurityHub is the vulnerability scanning view
type SecurityHub struct {
	deps Deps
	log  *logrus.Entry

	mu         sync.Mutex
	mounted    bool
	editable   bool
	code       string
	result     ScanResult
	scanGen    uint64
	cancelScan context.CancelFunc
	inflight   sync.WaitGroup
}

func NewSecurityHub(deps Deps) *SecurityHub {
	deps = deps.withDefaults()
	return &SecurityHub{
		deps: deps,
		log:  deps.Logger.WithField("view", string(IDScanner)),
	}
}

func (h *SecurityHub) Mount(editable bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mounted = true
	h.editable = editable
	h.reconcileLocked()
}

func (h *SecurityHub) SetEditable(editable bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.editable = editable
	h.reconcileLocked()
}

func (h *SecurityHub) Unmount() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mounted = false
	h.reconcileLocked()
}

// reconcileLocked cancels an in-flight scan once the hub may no longer act
func (h *SecurityHub) reconcileLocked() {
	if h.mounted && h.editable {
		return
	}
	h.abortLocked()
}

func (h *SecurityHub) abortLocked() {
	if h.cancelScan != nil {
		h.cancelScan()
		h.cancelScan = nil
	}
	if h.result.State == ScanRunning {
		h.scanGen++
		h.result = ScanResult{State: ScanNotRun}
	}
}

// SetCode replaces the code buffer
func (h *SecurityHub) SetCode(code string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.editable {
		return ErrReadOnly
	}
	h.code = code
	return nil
}

// Scan submits the code buffer in the background. Empty input and
// overlapping scans are rejected without contacting the collaborator.
func (h *SecurityHub) Scan() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case !h.mounted || !h.editable:
		return ErrReadOnly
	case h.deps.Scanner == nil:
		return ErrCollaboratorNone
	case h.result.State == ScanRunning:
		return ErrScanInFlight
	case strings.TrimSpace(h.code) == "":
		return ErrEmptyInput
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.deps.ScanTimeout)
	h.scanGen++
	h.cancelScan = cancel
	h.result = ScanResult{State: ScanRunning}

	h.inflight.Add(1)
	go h.runScan(ctx, cancel, h.scanGen, h.code)
	return nil
}

func (h *SecurityHub) runScan(ctx context.Context, cancel context.CancelFunc, gen uint64, code string) {
	defer h.inflight.Done()
	defer cancel()

	start := h.deps.Clock.Now()
	findings, err := h.deps.Scanner.Scan(ctx, code)
	elapsed := h.deps.Clock.Since(start)

	h.mu.Lock()
	if gen != h.scanGen {
		h.mu.Unlock()
		h.deps.Recorder.ScanFinished(OutcomeCancelled, elapsed, nil)
		return
	}
	h.cancelScan = nil
	if err != nil {
		h.result = ScanResult{State: ScanFailed, Reason: failureReason(err), Elapsed: elapsed}
	} else {
		if findings == nil {
			findings = []types.Finding{}
		}
		h.result = ScanResult{State: ScanCompleted, Findings: findings, Elapsed: elapsed}
	}
	h.mu.Unlock()

	if err != nil {
		h.log.WithError(err).WithField("provider", h.deps.Scanner.Name()).Warn("Security scan failed")
		h.deps.Recorder.ScanFinished(OutcomeFailure, elapsed, nil)
		return
	}
	h.log.WithFields(logrus.Fields{
		"findings": len(findings),
		"elapsed":  elapsed,
	}).Info("Security scan completed")
	h.deps.Recorder.ScanFinished(OutcomeSuccess, elapsed, findings)
}

func failureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "The scan timed out before the collaborator responded."
	}
	return scanFailedReason
}

// Clear wipes the code buffer and any result, cancelling an in-flight scan
func (h *SecurityHub) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.editable {
		return ErrReadOnly
	}
	h.abortLocked()
	h.code = ""
	h.result = ScanResult{State: ScanNotRun}
	return nil
}

// Result returns the current scan result
func (h *SecurityHub) Result() ScanResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.result
	r.Findings = append([]types.Finding(nil), h.result.Findings...)
	return r
}

// Wait blocks until background scans have returned
func (h *SecurityHub) Wait() {
	h.inflight.Wait()
}

func (h *SecurityHub) Render() Page {
	h.mu.Lock()
	defer h.mu.Unlock()

	body := HubBody{
		Code:     h.code,
		CanScan:  h.editable && h.deps.Scanner != nil && h.result.State != ScanRunning && strings.TrimSpace(h.code) != "",
		State:    h.result.State,
		Findings: []types.Finding{},
	}

	switch h.result.State {
	case ScanCompleted:
		body.Findings = append(body.Findings, h.result.Findings...)
		body.Counts = CountSeverities(h.result.Findings)
		score := HealthScore(h.result.Findings)
		body.Health = &score
	case ScanFailed:
		body.Reason = h.result.Reason
	}

	return Page{
		Kind:     KindHub,
		Title:    "Vulnerability Matrix",
		Subtitle: "Heuristic threat detection and AI-assisted patch generation.",
		Editable: h.editable,
		Busy:     h.result.State == ScanRunning,
		Body:     body,
	}
}
