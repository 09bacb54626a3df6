package model

import (
	"fmt"
	"time"
)

// UnknownProcessName is the sentinel used when a pid cannot be resolved.
const UnknownProcessName = "[unknown]"

// Socket states handled explicitly by the engine. Other raw states are
// passed through opaquely.
const (
	StateListening   = "LISTENING"
	StateEstablished = "ESTABLISHED"
)

// RawConnectionRecord is one line of raw socket-table output as produced
// by a SocketLister, before any validation.
type RawConnectionRecord struct {
	LocalAddr  string
	RemoteAddr string
	State      string
	// PIDField is the raw owning-process identifier. It may be empty or
	// non-numeric; the normalizer keeps such records with no pid attached.
	PIDField string
}

// PortEntry is one socket/process pairing at a point in time.
type PortEntry struct {
	Port        int    `json:"port"`
	PID         int32  `json:"pid,omitempty"` // 0 when no owner could be resolved
	ProcessName string `json:"process_name"`
	LocalAddr   string `json:"local_address"`
	RemoteAddr  string `json:"remote_address"`
	State       string `json:"state"`
}

// EntryKey is the identity key used for deduplication and diffing.
type EntryKey struct {
	Port       int
	PID        int32
	RemoteAddr string
	State      string
}

// Key returns the identity key of the entry.
func (e PortEntry) Key() EntryKey {
	return EntryKey{Port: e.Port, PID: e.PID, RemoteAddr: e.RemoteAddr, State: e.State}
}

// Snapshot is one immutable capture of all current port/process pairings.
// Entries are unique by identity key and never mutated after construction;
// a snapshot is superseded wholesale by the next one.
type Snapshot struct {
	Entries []PortEntry
	Taken   time.Time
	Seq     uint64
}

// Delta describes the difference between two consecutive snapshots,
// computed by identity-key set difference.
type Delta struct {
	Seq     uint64      `json:"seq"`
	Added   []PortEntry `json:"added"`
	Removed []PortEntry `json:"removed"`
}

// SnapshotSummary is the caller-facing digest of one refresh.
type SnapshotSummary struct {
	Seq         uint64    `json:"seq"`
	Taken       time.Time `json:"taken"`
	Total       int       `json:"total"`
	Listening   int       `json:"listening"`
	Established int       `json:"established"`
}

// Summarize builds a summary from a snapshot.
func (s *Snapshot) Summarize() SnapshotSummary {
	sum := SnapshotSummary{Seq: s.Seq, Taken: s.Taken, Total: len(s.Entries)}
	for _, e := range s.Entries {
		switch e.State {
		case StateListening:
			sum.Listening++
		case StateEstablished:
			sum.Established++
		}
	}
	return sum
}

// ProcessInfo describes one process as resolved by a ProcessInspector.
type ProcessInfo struct {
	PID     int32    `json:"pid"`
	Name    string   `json:"name"`
	ExePath string   `json:"exe_path"`
	Cmdline []string `json:"cmdline"`
	Cwd     string   `json:"cwd"`
}

// ConnectionEvent is one live connection observed by the connection
// monitor on its target port.
type ConnectionEvent struct {
	LocalAddr   string `json:"local_address"`
	RemoteAddr  string `json:"remote_address"`
	Status      string `json:"status"`
	PID         int32  `json:"pid,omitempty"`
	ProcessName string `json:"process_name"`
}

// ActionOutcome is the per-pid result of a terminate or restart operation.
type ActionOutcome struct {
	Result string `json:"result"`
	Detail string `json:"detail,omitempty"`
}

// Per-pid action results.
const (
	OutcomeTerminatedGracefully = "terminated_gracefully"
	OutcomeTerminatedForcefully = "terminated_forcefully"
	OutcomeRestarted            = "restarted"
	OutcomeNotFound             = "not_found"
	OutcomeAccessDenied         = "access_denied"
	OutcomeCaptureFailed        = "restart_capture_failed"
	OutcomeError                = "error"
)

func (o ActionOutcome) String() string {
	if o.Detail == "" {
		return o.Result
	}
	return fmt.Sprintf("%s: %s", o.Result, o.Detail)
}
