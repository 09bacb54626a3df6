package model

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by ProcessInspector implementations. They are
// expected, per-pid conditions and are reported as outcomes, never as
// batch failures.
var (
	ErrNoSuchProcess = errors.New("no such process")
	ErrAccessDenied  = errors.New("access denied")
	ErrWaitTimeout   = errors.New("wait timed out")
)

// CollectorError means the OS socket enumeration was unavailable or timed
// out. It is recoverable: the port table keeps serving the last good
// snapshot and a manual refresh is the recovery path.
type CollectorError struct {
	Cause error
}

func (e *CollectorError) Error() string {
	return fmt.Sprintf("collector failed: %v", e.Cause)
}

func (e *CollectorError) Unwrap() error { return e.Cause }

// InvalidFilterError reports a malformed filter expression. It carries the
// offending token and is rejected before any OS interaction.
type InvalidFilterError struct {
	Token string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter expression: %q", e.Token)
}

// InvalidPortError reports a port outside the 1-65535 range.
type InvalidPortError struct {
	Port int
}

func (e *InvalidPortError) Error() string {
	return fmt.Sprintf("invalid port: %d", e.Port)
}

// RestartCaptureError means a process vanished or was inaccessible before
// its launch parameters could be captured; no termination is attempted
// for that pid.
type RestartCaptureError struct {
	PID   int32
	Cause error
}

func (e *RestartCaptureError) Error() string {
	return fmt.Sprintf("cannot capture launch parameters of pid %d: %v", e.PID, e.Cause)
}

func (e *RestartCaptureError) Unwrap() error { return e.Cause }
