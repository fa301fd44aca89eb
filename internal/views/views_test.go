// ABOUTME: Tests for the view catalog, health score, markup helpers, and read-only views.
// ABOUTME: Shared fakes for collaborators and the metrics recorder live here.

package views

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jfeddern/OpsDeck/internal/rbac"
	"github.com/jfeddern/OpsDeck/internal/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// fakeRecorder counts recorder calls
type fakeRecorder struct {
	autosaves atomic.Int32

	mu      sync.Mutex
	scans   []string
	assists []string
}

func (r *fakeRecorder) ScanFinished(outcome string, elapsed time.Duration, findings []types.Finding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scans = append(r.scans, outcome)
}

func (r *fakeRecorder) AssistFinished(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assists = append(r.assists, outcome)
}

func (r *fakeRecorder) Autosaved() { r.autosaves.Add(1) }

func (r *fakeRecorder) scanOutcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.scans...)
}

func (r *fakeRecorder) assistOutcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.assists...)
}

// stubScanner returns scripted findings, or blocks until released or cancelled
type stubScanner struct {
	findings []types.Finding
	err      error
	block    chan struct{}
	calls    atomic.Int32
}

func (s *stubScanner) Name() string { return "stub" }

func (s *stubScanner) Scan(ctx context.Context, code string) ([]types.Finding, error) {
	s.calls.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.findings, nil
}

// stubAssistant uppercases text, fails, or blocks until cancelled
type stubAssistant struct {
	err   error
	block chan struct{}
}

func (a *stubAssistant) Name() string { return "stub" }

func (a *stubAssistant) Improve(ctx context.Context, text string) (string, error) {
	if a.block != nil {
		select {
		case <-a.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if a.err != nil {
		return "", a.err
	}
	return strings.ToUpper(text), nil
}

func testDeps() (Deps, *clocktesting.FakeClock, *fakeRecorder) {
	clk := clocktesting.NewFakeClock(time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC))
	rec := &fakeRecorder{}
	return Deps{
		Scanner:   &stubScanner{},
		Assistant: &stubAssistant{},
		Clock:     clk,
		Recorder:  rec,
		Logger:    quietLogger(),
	}, clk, rec
}

func TestDefaultCatalogCoversDefaultRegistry(t *testing.T) {
	deps, _, _ := testDeps()
	catalog := DefaultCatalog(deps)

	require.NoError(t, catalog.Check(rbac.DefaultRegistry()))
	for _, id := range rbac.DefaultRegistry().IDs() {
		assert.NotNil(t, catalog.New(id), "view %s", id)
	}
}

func TestCatalogCheckReportsMissingRenderers(t *testing.T) {
	deps, _, _ := testDeps()
	catalog := NewCatalog(deps)
	catalog.Bind(IDDashboard, func(d Deps) View { return NewDashboard(d) })

	err := catalog.Check(rbac.DefaultRegistry())
	require.Error(t, err)
	assert.True(t, errors.Is(err, rbac.ErrConfigurationDefect))
	assert.Contains(t, err.Error(), "cms")
	assert.Contains(t, err.Error(), "settings")
	assert.NotContains(t, err.Error(), "dashboard")
}

func TestCatalogNewUnboundPanics(t *testing.T) {
	deps, _, _ := testDeps()
	catalog := NewCatalog(deps)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, rbac.ErrConfigurationDefect)
	}()
	catalog.New("reports")
}

func TestHealthScore(t *testing.T) {
	finding := func(s types.Severity) types.Finding {
		return types.Finding{VulnerabilityName: "x", Severity: s}
	}

	tests := []struct {
		name     string
		findings []types.Finding
		expect   int
	}{
		{"clean", nil, 100},
		{"critical and medium", []types.Finding{finding(types.SeverityCritical), finding(types.SeverityMedium)}, 65},
		{"low does not count", []types.Finding{finding(types.SeverityLow), finding(types.SeverityLow)}, 100},
		{"high", []types.Finding{finding(types.SeverityHigh)}, 85},
		{"floored at zero", []types.Finding{
			finding(types.SeverityCritical), finding(types.SeverityCritical),
			finding(types.SeverityCritical), finding(types.SeverityCritical),
		}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HealthScore(tt.findings); got != tt.expect {
				t.Errorf("HealthScore() = %d, want %d", got, tt.expect)
			}
		})
	}
}

func TestCountSeverities(t *testing.T) {
	counts := CountSeverities([]types.Finding{
		{Severity: types.SeverityCritical},
		{Severity: types.SeverityHigh},
		{Severity: types.SeverityHigh},
		{Severity: types.SeverityLow},
	})
	assert.Equal(t, SeverityCounts{Critical: 1, High: 2, Medium: 0, Low: 1}, counts)
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown("discussing **Webkit** CVEs")
	require.NoError(t, err)
	assert.Contains(t, out, "<strong>Webkit</strong>")

	out, err = RenderMarkdown("<script>alert(1)</script>")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}

func TestHighlight(t *testing.T) {
	code := "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n"

	html, err := Highlight(code, FormatHTML)
	require.NoError(t, err)
	assert.Contains(t, html, "<pre")
	assert.Contains(t, html, "println")

	term, err := Highlight(code, FormatTerminal)
	require.NoError(t, err)
	assert.Contains(t, term, "\x1b[")
}

type fakeSampler struct {
	load HostLoad
	err  error
}

func (f fakeSampler) Sample(ctx context.Context) (HostLoad, error) {
	return f.load, f.err
}

// countingSampler reports a CPU figure equal to the number of samples taken
type countingSampler struct {
	calls atomic.Int32
}

func (c *countingSampler) Sample(ctx context.Context) (HostLoad, error) {
	n := c.calls.Add(1)
	return HostLoad{Available: true, CPUPercent: float64(n)}, nil
}

// blockingSampler never returns until its context ends
type blockingSampler struct{}

func (blockingSampler) Sample(ctx context.Context) (HostLoad, error) {
	<-ctx.Done()
	return HostLoad{}, ctx.Err()
}

func hostOf(d *Dashboard) HostLoad {
	return d.Render().Body.(DashboardBody).Host
}

func TestDashboardRender(t *testing.T) {
	deps, _, _ := testDeps()
	deps.Sampler = fakeSampler{load: HostLoad{Available: true, CPUPercent: 12.5, MemoryPercent: 40}}
	d := NewDashboard(deps)

	assert.False(t, hostOf(d).Available, "no reading before mount")

	d.Mount(true)
	defer d.Unmount()

	page := d.Render()
	assert.Equal(t, KindDashboard, page.Kind)
	assert.False(t, page.Editable)

	body := page.Body.(DashboardBody)
	assert.Len(t, body.Stats, 4)
	assert.Len(t, body.History, 7)
	assert.Equal(t, "Mon", body.History[0].Day)

	require.Eventually(t, func() bool { return hostOf(d).Available }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 12.5, hostOf(d).CPUPercent)

	deps.Sampler = fakeSampler{err: errors.New("no /proc")}
	failing := NewDashboard(deps)
	failing.Mount(true)
	defer failing.Unmount()
	time.Sleep(20 * time.Millisecond)
	assert.False(t, hostOf(failing).Available)
}

func TestDashboardRefreshesHostInBackground(t *testing.T) {
	deps, clk, _ := testDeps()
	sampler := &countingSampler{}
	deps.Sampler = sampler
	d := NewDashboard(deps)

	d.Mount(true)
	require.Eventually(t, func() bool { return sampler.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	for i := 0; i < 5; i++ {
		d.Render()
	}
	assert.Equal(t, int32(1), sampler.calls.Load(), "render reads the cached sample")

	clk.Step(hostSampleInterval)
	require.Eventually(t, func() bool { return hostOf(d).CPUPercent == 2 }, time.Second, 5*time.Millisecond)

	d.Unmount()
	clk.Step(hostSampleInterval)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), sampler.calls.Load(), "no sampling after unmount")
}

func TestDashboardRenderDoesNotWaitForSampler(t *testing.T) {
	deps, _, _ := testDeps()
	deps.Sampler = blockingSampler{}
	d := NewDashboard(deps)
	d.Mount(true)

	done := make(chan struct{})
	go func() {
		d.Render()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Render blocked on the host sampler")
	}

	d.Unmount()
}

func TestTaskBoard(t *testing.T) {
	deps, _, _ := testDeps()
	board := NewTaskBoard(deps)

	t.Run("read-only rejects every mutation", func(t *testing.T) {
		board.Mount(false)
		_, err := board.Create("x", "", types.PriorityLow)
		assert.ErrorIs(t, err, ErrReadOnly)
		assert.ErrorIs(t, board.Move("1", types.StatusDone), ErrReadOnly)
		assert.ErrorIs(t, board.Delete("1"), ErrReadOnly)
		assert.Equal(t, "Read Only Buffer", board.Render().Banner)
	})

	t.Run("fixture columns", func(t *testing.T) {
		body := board.Render().Body.(BoardBody)
		require.Len(t, body.Columns, 4)
		titles := []string{}
		for _, c := range body.Columns {
			titles = append(titles, c.Title)
			assert.Len(t, c.Tasks, 1, c.Title)
		}
		assert.Equal(t, []string{"Backlog", "In Execution", "Security Audit", "Resolved"}, titles)
	})

	t.Run("editable create move delete", func(t *testing.T) {
		board.SetEditable(true)

		task, err := board.Create("  Rotate HSM keys ", "quarterly", types.PriorityMedium)
		require.NoError(t, err)
		assert.Equal(t, "Rotate HSM keys", task.Title)
		assert.Equal(t, types.StatusBacklog, task.Status)
		assert.NotEmpty(t, task.ID)

		// Any column to any column
		require.NoError(t, board.Move(task.ID, types.StatusDone))
		require.NoError(t, board.Move(task.ID, types.StatusBacklog))
		require.NoError(t, board.Move("3", types.StatusBacklog))

		require.NoError(t, board.Delete(task.ID))
		assert.Len(t, board.Tasks(), 4)

		_, err = board.Create("   ", "", types.PriorityLow)
		assert.ErrorIs(t, err, ErrEmptyInput)
		_, err = board.Create("x", "", types.Priority("urgent"))
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.ErrorIs(t, board.Move("missing", types.StatusDone), ErrNotFound)
		assert.ErrorIs(t, board.Move("1", types.TaskStatus("ARCHIVED")), ErrInvalidArgument)
		assert.ErrorIs(t, board.Delete("missing"), ErrNotFound)
	})
}

func TestCommunity(t *testing.T) {
	deps, _, _ := testDeps()
	c := NewCommunity(deps)

	c.Mount(false)
	page := c.Render()
	assert.Empty(t, page.Banner)
	assert.ErrorIs(t, c.Flag("1"), ErrReadOnly)

	body := page.Body.(CommunityBody)
	require.Len(t, body.Posts, 3)
	assert.False(t, body.Moderation)
	assert.Equal(t, "CyberSentinel", body.Posts[0].Author)
	assert.Contains(t, string(body.Posts[2].HTML), "<strong>Webkit</strong>")

	c.SetEditable(true)
	require.NoError(t, c.Flag("2"))
	page = c.Render()
	assert.Equal(t, "Mod Tools Active", page.Banner)
	body = page.Body.(CommunityBody)
	assert.True(t, body.Moderation)
	assert.True(t, body.Posts[1].Flagged)

	require.NoError(t, c.Flag("2"))
	assert.False(t, c.Render().Body.(CommunityBody).Posts[1].Flagged)
	assert.ErrorIs(t, c.Flag("99"), ErrNotFound)
}

func TestSettings(t *testing.T) {
	deps, clk, _ := testDeps()
	s := NewSettings(deps)

	s.Mount(false)
	assert.ErrorIs(t, s.SetToggle("force_mfa", false), ErrReadOnly)
	assert.ErrorIs(t, s.Apply(), ErrReadOnly)

	body := s.Render().Body.(SettingsBody)
	require.Len(t, body.Toggles, 3)
	assert.Equal(t, "Force MFA for all Users", body.Toggles[0].Label)
	assert.True(t, body.Toggles[0].Enabled)
	assert.False(t, body.Toggles[1].Enabled)
	assert.Equal(t, "30d", body.Retention)
	assert.Len(t, body.Routes, 4)
	assert.False(t, body.Pending)

	s.SetEditable(true)
	require.NoError(t, s.SetToggle("rotate_keys", true))
	require.NoError(t, s.SetRetention("1y"))
	require.NoError(t, s.SetRoute("SMS", false))
	assert.True(t, s.Render().Body.(SettingsBody).Pending)

	assert.ErrorIs(t, s.SetToggle("self_destruct", true), ErrNotFound)
	assert.ErrorIs(t, s.SetRetention("forever"), ErrInvalidArgument)
	assert.ErrorIs(t, s.SetRoute("Pager", true), ErrNotFound)

	require.NoError(t, s.Apply())
	body = s.Render().Body.(SettingsBody)
	assert.False(t, body.Pending)
	assert.Equal(t, "1y", body.Retention)
	require.NotNil(t, body.LastApplied)
	assert.Equal(t, clk.Now(), *body.LastApplied)

	// Staged edits are dropped when edit rights are lost
	require.NoError(t, s.SetRetention("90d"))
	s.SetEditable(false)
	body = s.Render().Body.(SettingsBody)
	assert.Equal(t, "1y", body.Retention)
	assert.False(t, body.Pending)

	s.SetEditable(true)
	require.NoError(t, s.SetRetention("90d"))
	require.NoError(t, s.Discard())
	assert.Equal(t, "1y", s.Render().Body.(SettingsBody).Retention)
}
