package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	coremodel "NetGuard/internal/core/model"
	"NetGuard/internal/engine/normalizer"
)

type fakeLister struct {
	mu      sync.Mutex
	calls   int
	records []coremodel.RawConnectionRecord
	err     error
}

func (f *fakeLister) ListConnections(ctx context.Context) ([]coremodel.RawConnectionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]coremodel.RawConnectionRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeLister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeLister) set(records []coremodel.RawConnectionRecord) {
	f.mu.Lock()
	f.records = records
	f.mu.Unlock()
}

type fakeInspector struct {
	procs map[int32]string
}

func (f *fakeInspector) Resolve(pid int32) (coremodel.ProcessInfo, error) {
	name, ok := f.procs[pid]
	if !ok {
		return coremodel.ProcessInfo{}, coremodel.ErrNoSuchProcess
	}
	return coremodel.ProcessInfo{PID: pid, Name: name}, nil
}

func (f *fakeInspector) Terminate(pid int32, force bool) error { return nil }

func (f *fakeInspector) Wait(ctx context.Context, pid int32, timeout time.Duration) error {
	return nil
}

func newTestMonitor(lister *fakeLister, procs map[int32]string) *Monitor {
	cache := normalizer.NewProcessCache(&fakeInspector{procs: procs}, time.Minute)
	return New(lister, cache, 10*time.Millisecond)
}

// waitForEvents polls until the monitor has observed n events or the
// deadline passes.
func waitForEvents(t *testing.T, m *Monitor, n int) []coremodel.ConnectionEvent {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if events := m.Events(); len(events) == n {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d events, have %d", n, len(m.Events()))
	return nil
}

func TestStart_RejectsOutOfRangePort(t *testing.T) {
	m := newTestMonitor(&fakeLister{}, nil)
	for _, port := range []int{0, -1, 65536} {
		err := m.Start(port)
		var portErr *coremodel.InvalidPortError
		if !errors.As(err, &portErr) {
			t.Errorf("Port %d: expected InvalidPortError, got %v", port, err)
		}
	}
}

func TestMonitor_ObservesTargetPortOnly(t *testing.T) {
	lister := &fakeLister{records: []coremodel.RawConnectionRecord{
		{LocalAddr: "0.0.0.0:8080", RemoteAddr: "10.0.0.5:51234", State: "ESTABLISHED", PIDField: "42"},
		{LocalAddr: "0.0.0.0:8080", RemoteAddr: "N/A", State: "LISTENING", PIDField: "42"},
		{LocalAddr: "0.0.0.0:9090", RemoteAddr: "N/A", State: "LISTENING", PIDField: "7"},
	}}
	m := newTestMonitor(lister, map[int32]string{42: "webapp"})

	if err := m.Start(8080); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()

	events := waitForEvents(t, m, 2)
	for _, ev := range events {
		if ev.LocalAddr != "0.0.0.0:8080" {
			t.Errorf("Unexpected local address %s", ev.LocalAddr)
		}
		if ev.PID != 42 || ev.ProcessName != "webapp" {
			t.Errorf("Expected pid 42 (webapp), got %d (%s)", ev.PID, ev.ProcessName)
		}
	}
}

func TestMonitor_EachTickIsFullSnapshot(t *testing.T) {
	lister := &fakeLister{records: []coremodel.RawConnectionRecord{
		{LocalAddr: "0.0.0.0:8080", RemoteAddr: "10.0.0.5:51234", State: "ESTABLISHED", PIDField: "42"},
	}}
	m := newTestMonitor(lister, map[int32]string{42: "webapp"})

	if err := m.Start(8080); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()
	waitForEvents(t, m, 1)

	// Connection gone: the next tick reports the empty set, not a diff.
	lister.set(nil)
	waitForEvents(t, m, 0)
}

func TestStart_SamePortIsNoOp(t *testing.T) {
	m := newTestMonitor(&fakeLister{}, nil)
	if err := m.Start(8080); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()

	if err := m.Start(8080); err != nil {
		t.Fatalf("Restarting the same port failed: %v", err)
	}
	if m.Port() != 8080 {
		t.Errorf("Expected port 8080, got %d", m.Port())
	}
}

func TestStart_DifferentPortStopsOldSession(t *testing.T) {
	lister := &fakeLister{records: []coremodel.RawConnectionRecord{
		{LocalAddr: "0.0.0.0:8080", RemoteAddr: "N/A", State: "LISTENING", PIDField: "42"},
		{LocalAddr: "0.0.0.0:9090", RemoteAddr: "N/A", State: "LISTENING", PIDField: "7"},
	}}
	m := newTestMonitor(lister, map[int32]string{42: "webapp", 7: "other"})

	if err := m.Start(8080); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitForEvents(t, m, 1)

	if err := m.Start(9090); err != nil {
		t.Fatalf("Retarget failed: %v", err)
	}
	defer m.Stop()

	if m.Port() != 9090 {
		t.Fatalf("Expected active port 9090, got %d", m.Port())
	}
	events := waitForEvents(t, m, 1)
	if events[0].LocalAddr != "0.0.0.0:9090" {
		t.Errorf("Expected events from the new session, got %+v", events[0])
	}
}

func TestStart_ConcurrentRetargetKeepsSingleSession(t *testing.T) {
	lister := &fakeLister{}
	m := newTestMonitor(lister, nil)

	// Hammer the retarget path from two sides; whoever wins, exactly one
	// session may remain and no orphan loop may keep polling after Stop.
	for i := 0; i < 50; i++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := m.Start(8080); err != nil {
				t.Errorf("Start(8080) failed: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := m.Start(9090); err != nil {
				t.Errorf("Start(9090) failed: %v", err)
			}
		}()
		wg.Wait()

		if port := m.Port(); port != 8080 && port != 9090 {
			t.Fatalf("Expected one of the started ports active, got %d", port)
		}
	}

	m.Stop()
	if m.Port() != 0 {
		t.Fatalf("Expected no active session, got port %d", m.Port())
	}

	// An orphaned session loop would keep calling the lister.
	calls := lister.callCount()
	time.Sleep(60 * time.Millisecond)
	if got := lister.callCount(); got != calls {
		t.Errorf("Lister still polled after Stop: %d -> %d calls", calls, got)
	}
}

func TestStop_DiscardsObservations(t *testing.T) {
	lister := &fakeLister{records: []coremodel.RawConnectionRecord{
		{LocalAddr: "0.0.0.0:8080", RemoteAddr: "10.0.0.5:51234", State: "ESTABLISHED", PIDField: "42"},
	}}
	m := newTestMonitor(lister, map[int32]string{42: "webapp"})

	if err := m.Start(8080); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitForEvents(t, m, 1)

	m.Stop()
	if events := m.Events(); len(events) != 0 {
		t.Errorf("Expected the stopped session's observations to be discarded, got %v", events)
	}
}

func TestStop_IsBoundedAndIdempotent(t *testing.T) {
	m := newTestMonitor(&fakeLister{}, nil)
	if err := m.Start(8080); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		m.Stop()
		m.Stop() // second stop is a no-op
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return within a second")
	}
	if m.Port() != 0 {
		t.Errorf("Expected no active session, got port %d", m.Port())
	}
}

func TestMonitor_ListerErrorKeepsLastObservation(t *testing.T) {
	lister := &fakeLister{records: []coremodel.RawConnectionRecord{
		{LocalAddr: "0.0.0.0:8080", RemoteAddr: "N/A", State: "LISTENING", PIDField: "42"},
	}}
	m := newTestMonitor(lister, map[int32]string{42: "webapp"})

	if err := m.Start(8080); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()
	waitForEvents(t, m, 1)

	lister.mu.Lock()
	lister.err = &coremodel.CollectorError{Cause: errors.New("boom")}
	lister.mu.Unlock()

	time.Sleep(50 * time.Millisecond)
	if events := m.Events(); len(events) != 1 {
		t.Errorf("Expected the last good observation to survive, got %v", events)
	}
}
