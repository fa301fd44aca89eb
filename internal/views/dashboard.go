// ABOUTME: Overview dashboard with static threat statistics and live host load.
// ABOUTME: Read-only for every role; host figures come from a pluggable sampler.

package views

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jfeddern/OpsDeck/internal/schedule"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Stat is one headline figure
type Stat struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// DayPoint is one day of threat history
type DayPoint struct {
	Day     string `json:"day"`
	Threats int    `json:"threats"`
	Blocked int    `json:"blocked"`
}

// HostLoad is a point-in-time resource reading
type HostLoad struct {
	Available     bool    `json:"available"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
}

// HostSampler reads current host load
type HostSampler interface {
	Sample(ctx context.Context) (HostLoad, error)
}

// SystemSampler reads the local host through gopsutil
type SystemSampler struct{}

func (SystemSampler) Sample(ctx context.Context) (HostLoad, error) {
	// Zero interval compares against the previous call instead of blocking
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return HostLoad{}, fmt.Errorf("failed to read cpu usage: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return HostLoad{}, fmt.Errorf("failed to read memory usage: %w", err)
	}

	load := HostLoad{Available: true, MemoryPercent: vm.UsedPercent}
	if len(percents) > 0 {
		load.CPUPercent = percents[0]
	}
	return load, nil
}

const (
	sampleTimeout      = time.Second
	hostSampleInterval = 5 * time.Second
)

// DashboardBody is the dashboard page payload
type DashboardBody struct {
	Stats   []Stat     `json:"stats"`
	History []DayPoint `json:"history"`
	Host    HostLoad   `json:"host"`
}

// Dashboard is the overview view. Its only changing content is the host
// reading, refreshed in the background while mounted so Render never waits
// on the sampler.
type Dashboard struct {
	deps    Deps
	stats   []Stat
	history []DayPoint

	mu       sync.Mutex
	host     HostLoad
	cancel   context.CancelFunc
	sampler  *schedule.Task
	inflight sync.WaitGroup
}

func NewDashboard(deps Deps) *Dashboard {
	return &Dashboard{
		deps:    deps.withDefaults(),
		stats:   seedStats(),
		history: seedHistory(),
	}
}

// Mount takes a first reading immediately and then one per hostSampleInterval
func (d *Dashboard) Mount(bool) {
	if d.deps.Sampler == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sampler != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		d.sample(ctx)
	}()
	d.sampler = schedule.Every(ctx, d.deps.Clock, "dashboard-host-sample", hostSampleInterval, d.sample, d.deps.Logger)
}

func (d *Dashboard) SetEditable(bool) {}

func (d *Dashboard) Unmount() {
	d.mu.Lock()
	task, cancel := d.sampler, d.cancel
	d.sampler, d.cancel = nil, nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	task.Stop()
	d.inflight.Wait()
}

func (d *Dashboard) sample(ctx context.Context) {
	sampleCtx, cancel := context.WithTimeout(ctx, sampleTimeout)
	load, err := d.deps.Sampler.Sample(sampleCtx)
	cancel()
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		d.deps.Logger.WithError(err).Debug("Host sample unavailable")
		load = HostLoad{}
	}

	d.mu.Lock()
	d.host = load
	d.mu.Unlock()
}

func (d *Dashboard) Render() Page {
	d.mu.Lock()
	host := d.host
	d.mu.Unlock()

	body := DashboardBody{
		Stats:   d.stats,
		History: d.history,
		Host:    host,
	}

	return Page{
		Kind:     KindDashboard,
		Title:    "Security Overview",
		Subtitle: "Real-time surveillance and system metrics.",
		Body:     body,
	}
}
