package table

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	coremodel "NetGuard/internal/core/model"
)

// Table holds the authoritative current snapshot and answers queries
// without re-collecting. It retains exactly the latest and the immediately
// preceding snapshot; older ones are discarded.
type Table struct {
	mu       sync.RWMutex
	current  *coremodel.Snapshot
	previous *coremodel.Snapshot

	subMu sync.Mutex
	subs  []chan coremodel.Delta
}

// New creates an empty table.
func New() *Table {
	return &Table{}
}

// Install atomically replaces the current snapshot and notifies subscribers
// with the add/remove delta against the previous one. The lock is held only
// for the pointer swap, never for collection or delta computation.
func (t *Table) Install(snapshot *coremodel.Snapshot) coremodel.Delta {
	t.mu.Lock()
	prev := t.current
	t.previous = prev
	t.current = snapshot
	t.mu.Unlock()

	delta := diff(prev, snapshot)
	t.publish(delta)
	return delta
}

// Current returns the latest complete snapshot, or nil before the first
// install. Consumers never observe a partially built snapshot.
func (t *Table) Current() *coremodel.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Subscribe returns a channel receiving the delta of every install. Slow
// subscribers are skipped rather than blocking installation.
func (t *Table) Subscribe() <-chan coremodel.Delta {
	ch := make(chan coremodel.Delta, 16)
	t.subMu.Lock()
	t.subs = append(t.subs, ch)
	t.subMu.Unlock()
	return ch
}

func (t *Table) publish(delta coremodel.Delta) {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- delta:
		default:
		}
	}
}

// Filter selects entries from the current snapshot. A nil Ports set means
// no port constraint; an empty Search means no text constraint.
type Filter struct {
	Ports  map[int]struct{}
	Search string
}

// Query returns the matching entries sorted ascending by port, stable by
// snapshot order among equal ports. Re-running a query without an
// intervening install is deterministic.
func (t *Table) Query(f Filter) []coremodel.PortEntry {
	snap := t.Current()
	if snap == nil {
		return nil
	}

	search := strings.ToLower(f.Search)
	matched := make([]coremodel.PortEntry, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		if f.Ports != nil {
			if _, ok := f.Ports[e.Port]; !ok {
				continue
			}
		}
		if search != "" && !matchesSearch(e, search) {
			continue
		}
		matched = append(matched, e)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Port < matched[j].Port
	})
	return matched
}

func matchesSearch(e coremodel.PortEntry, search string) bool {
	if strings.Contains(strconv.Itoa(e.Port), search) {
		return true
	}
	if e.PID > 0 && strings.Contains(strconv.FormatInt(int64(e.PID), 10), search) {
		return true
	}
	return strings.Contains(strings.ToLower(e.ProcessName), search)
}

// diff computes the identity-key set difference between two snapshots.
func diff(prev, next *coremodel.Snapshot) coremodel.Delta {
	delta := coremodel.Delta{}
	if next != nil {
		delta.Seq = next.Seq
	}

	prevKeys := make(map[coremodel.EntryKey]struct{})
	if prev != nil {
		for _, e := range prev.Entries {
			prevKeys[e.Key()] = struct{}{}
		}
	}
	nextKeys := make(map[coremodel.EntryKey]struct{})
	if next != nil {
		for _, e := range next.Entries {
			nextKeys[e.Key()] = struct{}{}
			if _, ok := prevKeys[e.Key()]; !ok {
				delta.Added = append(delta.Added, e)
			}
		}
	}
	if prev != nil {
		for _, e := range prev.Entries {
			if _, ok := nextKeys[e.Key()]; !ok {
				delta.Removed = append(delta.Removed, e)
			}
		}
	}
	return delta
}
