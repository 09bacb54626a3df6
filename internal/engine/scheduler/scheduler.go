package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	coremodel "NetGuard/internal/core/model"
	"NetGuard/internal/engine/normalizer"
	"NetGuard/internal/engine/table"
	"NetGuard/internal/model"
)

// ErrorObserver receives collection errors from background-triggered
// refreshes. Synchronous callers get errors back directly instead.
type ErrorObserver func(error)

// Scheduler drives snapshot acquisition without overlapping work. Its state
// machine is Idle -> Refreshing -> Idle: a request arriving while a refresh
// is in flight marks a rerun flag that is consumed exactly once when the
// in-flight run completes, coalescing any number of overlapping requests
// into at most one extra collection.
type Scheduler struct {
	lister      model.SocketLister
	norm        *normalizer.Normalizer
	table       *table.Table
	interval    time.Duration
	verifyDelay time.Duration
	onError     ErrorObserver

	mu          sync.Mutex
	refreshing  bool
	rerun       bool
	idle        chan struct{} // closed when the current run (plus rerun) finishes
	lastSummary coremodel.SnapshotSummary
	lastErr     error

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a scheduler. interval <= 0 disables the periodic ticker;
// refreshes then happen only on demand.
func New(lister model.SocketLister, norm *normalizer.Normalizer, tbl *table.Table, interval, verifyDelay time.Duration, onError ErrorObserver) *Scheduler {
	if verifyDelay <= 0 {
		verifyDelay = 1500 * time.Millisecond
	}
	return &Scheduler{
		lister:      lister,
		norm:        norm,
		table:       tbl,
		interval:    interval,
		verifyDelay: verifyDelay,
		onError:     onError,
		stopChan:    make(chan struct{}),
	}
}

// Start launches the periodic refresh loop when an interval is configured.
func (s *Scheduler) Start() {
	if s.interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.Refresh(context.Background()); err != nil {
					s.reportError(err)
				}
			case <-s.stopChan:
				return
			}
		}
	}()
	log.Printf("Refresh scheduler started with interval %s", s.interval)
}

// Stop cancels pending waits and waits for background runs to finish. An
// in-flight OS collection is allowed to complete; its result still installs.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

// Refresh collects a new snapshot and installs it into the table,
// returning its summary. On a CollectorError the table is untouched and
// keeps serving the last good snapshot; there is no automatic retry.
// If a refresh is already in flight, the call coalesces with it: it marks
// the rerun flag, waits for the in-flight work to settle, and returns the
// result of the run that served it, including its collection error.
func (s *Scheduler) Refresh(ctx context.Context) (coremodel.SnapshotSummary, error) {
	s.mu.Lock()
	if s.refreshing {
		s.rerun = true
		idle := s.idle
		s.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return coremodel.SnapshotSummary{}, ctx.Err()
		}
		s.mu.Lock()
		summary, err := s.lastSummary, s.lastErr
		s.mu.Unlock()
		return summary, err
	}
	s.refreshing = true
	s.idle = make(chan struct{})
	s.mu.Unlock()

	return s.run(ctx)
}

// run performs the collection, then consumes the rerun flag, executing at
// most one follow-up collection per completion.
func (s *Scheduler) run(ctx context.Context) (coremodel.SnapshotSummary, error) {
	for {
		summary, err := s.collectOnce(ctx)

		s.mu.Lock()
		if s.rerun {
			s.rerun = false
			s.mu.Unlock()
			continue
		}
		s.refreshing = false
		s.lastSummary, s.lastErr = summary, err
		close(s.idle)
		s.mu.Unlock()
		return summary, err
	}
}

func (s *Scheduler) collectOnce(ctx context.Context) (coremodel.SnapshotSummary, error) {
	records, err := s.lister.ListConnections(ctx)
	if err != nil {
		return coremodel.SnapshotSummary{}, err
	}
	snap := s.norm.Normalize(records)
	s.table.Install(snap)
	return snap.Summarize(), nil
}

// VerifyAfter schedules one refresh after the configured settle delay, so
// callers of process actions can compare the table against the acted-upon
// pid set. done, if non-nil, runs with the refresh result once it lands.
// The wait is cancelled by Stop; the refresh itself is not.
func (s *Scheduler) VerifyAfter(done func(coremodel.SnapshotSummary, error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-time.After(s.verifyDelay):
		case <-s.stopChan:
			return
		}
		summary, err := s.Refresh(context.Background())
		if err != nil {
			s.reportError(err)
		}
		if done != nil {
			done(summary, err)
		}
	}()
}

func (s *Scheduler) reportError(err error) {
	if s.onError != nil {
		s.onError(err)
		return
	}
	log.Printf("Background refresh failed: %v", err)
}
