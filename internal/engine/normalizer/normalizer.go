package normalizer

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	coremodel "NetGuard/internal/core/model"
)

// Normalizer transforms raw socket-table records into validated, deduplicated
// snapshots, attaching process names through the shared cache.
type Normalizer struct {
	states map[string]struct{}
	cache  *ProcessCache
	seq    atomic.Uint64
}

// New creates a normalizer accepting the given raw states. An empty list
// means the defaults: LISTENING and ESTABLISHED.
func New(cache *ProcessCache, states []string) *Normalizer {
	if len(states) == 0 {
		states = []string{coremodel.StateListening, coremodel.StateEstablished}
	}
	accepted := make(map[string]struct{}, len(states))
	for _, s := range states {
		accepted[s] = struct{}{}
	}
	return &Normalizer{states: accepted, cache: cache}
}

// Normalize builds the next snapshot from raw records. A record is kept only
// if its state is supported and its local port parses into 1-65535;
// duplicates by identity key collapse to the first occurrence, preserving
// input order. A non-numeric pid field keeps the record with no pid.
func (n *Normalizer) Normalize(records []coremodel.RawConnectionRecord) *coremodel.Snapshot {
	entries := make([]coremodel.PortEntry, 0, len(records))
	seen := make(map[coremodel.EntryKey]struct{}, len(records))

	for _, rec := range records {
		if _, ok := n.states[rec.State]; !ok {
			continue
		}
		port, ok := portOf(rec.LocalAddr)
		if !ok {
			continue
		}

		entry := coremodel.PortEntry{
			Port:       port,
			PID:        parsePID(rec.PIDField),
			LocalAddr:  rec.LocalAddr,
			RemoteAddr: rec.RemoteAddr,
			State:      rec.State,
		}
		if entry.RemoteAddr == "" {
			entry.RemoteAddr = "N/A"
		}

		key := entry.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if entry.PID > 0 {
			entry.ProcessName = n.cache.Get(entry.PID).Name
		} else {
			entry.ProcessName = coremodel.UnknownProcessName
		}
		entries = append(entries, entry)
	}

	return &coremodel.Snapshot{
		Entries: entries,
		Taken:   time.Now(),
		Seq:     n.seq.Add(1),
	}
}

// Cache returns the process cache shared with the connection monitor.
func (n *Normalizer) Cache() *ProcessCache {
	return n.cache
}

// portOf extracts the numeric port from an "ip:port" string and validates
// its range. Entries failing validation are dropped, never stored with
// sentinel ports.
func portOf(localAddr string) (int, bool) {
	idx := strings.LastIndex(localAddr, ":")
	if idx < 0 || idx == len(localAddr)-1 {
		return 0, false
	}
	port, err := strconv.Atoi(localAddr[idx+1:])
	if err != nil || port < 1 || port > 65535 {
		return 0, false
	}
	return port, true
}

func parsePID(field string) int32 {
	pid, err := strconv.ParseInt(strings.TrimSpace(field), 10, 32)
	if err != nil || pid <= 0 {
		return 0
	}
	return int32(pid)
}
