package monitor

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	coremodel "NetGuard/internal/core/model"
	"NetGuard/internal/engine/normalizer"
	"NetGuard/internal/model"
)

// Monitor is a narrow, higher-frequency poll loop scoped to one port. At
// most one session is active per monitor; each tick it publishes the full
// set of live connections on the target port, not an incremental diff.
type Monitor struct {
	lister   model.SocketLister
	cache    *normalizer.ProcessCache
	interval time.Duration

	mu      sync.Mutex
	session *session
	events  []coremodel.ConnectionEvent
}

type session struct {
	port     int
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a monitor polling at the given interval (default 2s).
func New(lister model.SocketLister, cache *normalizer.ProcessCache, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Monitor{lister: lister, cache: cache, interval: interval}
}

// Start begins monitoring a port. An out-of-range port fails with
// InvalidPortError. If a session targeting a different port is active it is
// stopped first, not silently ignored. Starting the already monitored port
// is a no-op.
func (m *Monitor) Start(port int) error {
	if port < 1 || port > 65535 {
		return &coremodel.InvalidPortError{Port: port}
	}

	m.mu.Lock()
	// A concurrent Start may install a session while the lock is released
	// for Stop, so re-check until the slot is clear.
	for m.session != nil {
		if m.session.port == port {
			m.mu.Unlock()
			return nil
		}
		old := m.session
		m.mu.Unlock()
		log.Printf("Monitor retargeting from port %d to %d, stopping old session", old.port, port)
		m.Stop()
		m.mu.Lock()
	}

	s := &session{
		port:     port,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	m.session = s
	m.events = nil
	m.mu.Unlock()

	go m.loop(s)
	log.Printf("Monitoring connections on port %d every %s", port, m.interval)
	return nil
}

// Stop deactivates the current session, discards its observations and
// waits for its loop to observe the flag; stop latency is bounded by one
// poll interval. A list call in flight is allowed to complete and its
// result is discarded.
func (m *Monitor) Stop() {
	m.mu.Lock()
	s := m.session
	m.session = nil
	m.events = nil
	m.mu.Unlock()

	if s == nil {
		return
	}
	close(s.stopChan)
	<-s.done
	log.Printf("Stopped monitoring port %d", s.port)
}

// Port returns the currently monitored port, or 0 when idle.
func (m *Monitor) Port() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return 0
	}
	return m.session.port
}

// Events returns the connection set observed at the last completed tick.
func (m *Monitor) Events() []coremodel.ConnectionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]coremodel.ConnectionEvent, len(m.events))
	copy(out, m.events)
	return out
}

func (m *Monitor) loop(s *session) {
	defer close(s.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Take an immediate first sample rather than waiting a full interval.
	m.sample(s)
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			m.sample(s)
		}
	}
}

func (m *Monitor) sample(s *session) {
	records, err := m.lister.ListConnections(context.Background())
	if err != nil {
		log.Printf("Monitor sample on port %d failed: %v", s.port, err)
		return
	}

	events := make([]coremodel.ConnectionEvent, 0, 4)
	for _, rec := range records {
		if localPort(rec.LocalAddr) != s.port {
			continue
		}
		ev := coremodel.ConnectionEvent{
			LocalAddr:   rec.LocalAddr,
			RemoteAddr:  rec.RemoteAddr,
			Status:      rec.State,
			ProcessName: coremodel.UnknownProcessName,
		}
		if pid, err := strconv.ParseInt(strings.TrimSpace(rec.PIDField), 10, 32); err == nil && pid > 0 {
			ev.PID = int32(pid)
			ev.ProcessName = m.cache.Get(ev.PID).Name
		}
		events = append(events, ev)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// The session may have been stopped while the OS call was in flight.
	if m.session != s {
		return
	}
	m.events = events
}

func localPort(addr string) int {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return 0
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return 0
	}
	return port
}
