package manager

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"NetGuard/internal/config"
	coremodel "NetGuard/internal/core/model"
	"NetGuard/internal/engine/actions"
	"NetGuard/internal/engine/monitor"
	"NetGuard/internal/engine/normalizer"
	"NetGuard/internal/engine/scheduler"
	"NetGuard/internal/engine/table"
	"NetGuard/internal/history"
	"NetGuard/internal/model"
)

// Collaborators bundles the external facilities the engine is built on.
// Production wiring uses the gopsutil-backed collector package; tests
// inject fakes.
type Collaborators struct {
	Lister     model.SocketLister
	Inspector  model.ProcessInspector
	Relauncher model.Relauncher
	Sink       model.EventSink // optional
	Writers    []model.Writer  // optional
}

// Manager orchestrates the port-table engine: collection, normalization,
// the table, scheduled refreshes, process actions, the connection monitor,
// query history and the optional writers and event sink. It is the single
// command/query surface consumed by any frontend.
type Manager struct {
	table     *table.Table
	sched     *scheduler.Scheduler
	runner    *actions.Runner
	mon       *monitor.Monitor
	hist      *history.Store
	inspector model.ProcessInspector
	sink      model.EventSink
	writers   []model.Writer
	groups    map[string]string

	monitorInterval time.Duration

	done          chan struct{}
	stopOnce      sync.Once
	snapshotterWg sync.WaitGroup
	sinkWg        sync.WaitGroup
}

// New creates a manager from the configuration and collaborators.
func New(cfg *config.Config, c Collaborators) (*Manager, error) {
	cacheTTL, err := optionalDuration(cfg.Engine.ProcessCacheTTL, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid process_cache_ttl: %w", err)
	}
	pollInterval, err := optionalDuration(cfg.Scheduler.PollInterval, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid poll_interval: %w", err)
	}
	verifyDelay, err := optionalDuration(cfg.Scheduler.VerifyDelay, 1500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid verify_delay: %w", err)
	}
	graceTimeout, err := optionalDuration(cfg.Actions.GraceTimeout, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid grace_timeout: %w", err)
	}
	killTimeout, err := optionalDuration(cfg.Actions.KillTimeout, 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid kill_timeout: %w", err)
	}
	monitorInterval, err := optionalDuration(cfg.Monitor.Interval, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid monitor interval: %w", err)
	}

	cache := normalizer.NewProcessCache(c.Inspector, cacheTTL)
	norm := normalizer.New(cache, cfg.Engine.SupportedStates)
	tbl := table.New()

	schedInterval := time.Duration(0)
	if cfg.Scheduler.Periodic {
		schedInterval = pollInterval
	}

	m := &Manager{
		table:           tbl,
		runner:          actions.New(c.Inspector, c.Relauncher, graceTimeout, killTimeout),
		mon:             monitor.New(c.Lister, cache, monitorInterval),
		hist:            history.NewStore(cfg.History.Path, cfg.History.Capacity),
		inspector:       c.Inspector,
		sink:            c.Sink,
		writers:         c.Writers,
		groups:          cfg.Groups,
		monitorInterval: monitorInterval,
		done:            make(chan struct{}),
	}
	m.sched = scheduler.New(c.Lister, norm, tbl, schedInterval, verifyDelay, nil)
	return m, nil
}

// Start launches the refresh scheduler, one snapshotter per writer, and the
// event-sink forwarder, then takes the initial snapshot.
func (m *Manager) Start() {
	m.sched.Start()

	for _, writer := range m.writers {
		m.snapshotterWg.Add(1)
		go m.runSnapshotter(writer)
		log.Printf("Started snapshotter for a writer with interval %s", writer.GetInterval())
	}

	if m.sink != nil {
		m.sinkWg.Add(1)
		go m.runSinkForwarder()
	}

	if _, err := m.Refresh(context.Background()); err != nil {
		log.Printf("Initial refresh failed: %v", err)
	}
}

// Stop gracefully shuts down the engine. Each writer gets a final snapshot
// before its snapshotter exits.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		log.Println("Manager stopping...")
		m.mon.Stop()
		m.sched.Stop()
		close(m.done)
		m.snapshotterWg.Wait()
		m.sinkWg.Wait()
		if m.sink != nil {
			m.sink.Close()
		}
		log.Println("Manager stopped.")
	})
}

// runSnapshotter periodically hands the current snapshot to one writer.
func (m *Manager) runSnapshotter(writer model.Writer) {
	defer m.snapshotterWg.Done()
	interval := writer.GetInterval()
	if interval <= 0 {
		log.Printf("Invalid interval %s for writer, snapshotter will not run.", interval)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	write := func() {
		snap := m.table.Current()
		if snap == nil {
			return
		}
		if err := writer.Write(snap); err != nil {
			log.Printf("Error writing snapshot %d: %v", snap.Seq, err)
		}
	}

	for {
		select {
		case <-ticker.C:
			write()
		case <-m.done:
			write()
			return
		}
	}
}

// runSinkForwarder pushes table deltas and monitor observations to the
// event sink. Sink failures are logged, never fatal.
func (m *Manager) runSinkForwarder() {
	defer m.sinkWg.Done()
	deltas := m.table.Subscribe()
	ticker := time.NewTicker(m.monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case delta := <-deltas:
			if err := m.sink.PublishDelta(delta); err != nil {
				log.Printf("Failed to publish delta %d: %v", delta.Seq, err)
			}
		case <-ticker.C:
			port := m.mon.Port()
			if port == 0 {
				continue
			}
			if err := m.sink.PublishConnectionEvents(port, m.mon.Events()); err != nil {
				log.Printf("Failed to publish monitor events for port %d: %v", port, err)
			}
		case <-m.done:
			return
		}
	}
}

// Refresh collects and installs a fresh snapshot, returning its summary.
func (m *Manager) Refresh(ctx context.Context) (coremodel.SnapshotSummary, error) {
	return m.sched.Refresh(ctx)
}

// Query filters the current table. expr is a port expression ("80,443",
// "8000-8090"); search is a case-insensitive substring over port, pid and
// process name. Both empty returns the full table sorted by port.
func (m *Manager) Query(expr, search string) ([]coremodel.PortEntry, error) {
	f := table.Filter{Search: search}
	if expr != "" {
		ports, err := table.ParsePortExpression(expr)
		if err != nil {
			return nil, err
		}
		f.Ports = table.PortSet(ports)
	}
	return m.table.Query(f), nil
}

// Groups returns the configured named port groups.
func (m *Manager) Groups() map[string]string {
	out := make(map[string]string, len(m.groups))
	for name, expr := range m.groups {
		out[name] = expr
	}
	return out
}

// ResolveGroup expands a named group ("web" -> "80,443") into its concrete
// port set. An unknown name or an invalid stored expression is reported,
// not silently ignored.
func (m *Manager) ResolveGroup(name string) ([]int, error) {
	expr, ok := m.groups[name]
	if !ok {
		return nil, &coremodel.InvalidFilterError{Token: name}
	}
	return table.ParsePortExpression(expr)
}

// Terminate stops the given pids with escalation and schedules the
// advisory post-action verification refresh.
func (m *Manager) Terminate(ctx context.Context, pids []int32) map[int32]coremodel.ActionOutcome {
	outcomes := m.runner.Terminate(ctx, pids)
	m.verifyReleased(pids)
	return outcomes
}

// Restart relaunches the given pids and schedules the advisory
// post-action verification refresh.
func (m *Manager) Restart(ctx context.Context, pids []int32) map[int32]coremodel.ActionOutcome {
	outcomes := m.runner.Restart(ctx, pids)
	m.verifyReleased(pids)
	return outcomes
}

// verifyReleased refreshes after the settle delay and logs which of the
// acted-upon pids are still present. Advisory only: OS scheduling may show
// transient state.
func (m *Manager) verifyReleased(pids []int32) {
	acted := make(map[int32]struct{}, len(pids))
	for _, pid := range pids {
		acted[pid] = struct{}{}
	}
	m.sched.VerifyAfter(func(_ coremodel.SnapshotSummary, err error) {
		if err != nil {
			return
		}
		snap := m.table.Current()
		if snap == nil {
			return
		}
		for _, e := range snap.Entries {
			if _, ok := acted[e.PID]; ok {
				log.Printf("Verification: pid %d still holds port %d (%s)", e.PID, e.Port, e.State)
				delete(acted, e.PID)
			}
		}
	})
}

// StartMonitor begins the single-port connection monitor.
func (m *Manager) StartMonitor(port int) error {
	return m.mon.Start(port)
}

// StopMonitor stops the active monitor session, if any.
func (m *Manager) StopMonitor() {
	m.mon.Stop()
}

// MonitorEvents returns the connection set from the monitor's last tick.
func (m *Manager) MonitorEvents() []coremodel.ConnectionEvent {
	return m.mon.Events()
}

// MonitorPort returns the currently monitored port, 0 when idle.
func (m *Manager) MonitorPort() int {
	return m.mon.Port()
}

// ProcessDetail resolves full process info for one pid, uncached.
func (m *Manager) ProcessDetail(pid int32) (coremodel.ProcessInfo, error) {
	return m.inspector.Resolve(pid)
}

// History returns the recorded query expressions, most recent first.
func (m *Manager) History() []string {
	return m.hist.Entries()
}

// AddHistory records a queried port expression.
func (m *Manager) AddHistory(expr string) {
	m.hist.Add(expr)
}

func optionalDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
