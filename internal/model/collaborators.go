package model

import (
	"context"
	"time"

	coremodel "NetGuard/internal/core/model"
)

// SocketLister enumerates the OS socket table. Implementations must return
// records in a stable order and fail with *coremodel.CollectorError when
// the underlying facility is unavailable or times out.
type SocketLister interface {
	ListConnections(ctx context.Context) ([]coremodel.RawConnectionRecord, error)
}

// ProcessInspector resolves and controls processes by pid.
// Resolve and Terminate fail with coremodel.ErrNoSuchProcess or
// coremodel.ErrAccessDenied; Wait fails with coremodel.ErrWaitTimeout when
// the process outlives the given bound.
type ProcessInspector interface {
	Resolve(pid int32) (coremodel.ProcessInfo, error)
	Terminate(pid int32, force bool) error
	Wait(ctx context.Context, pid int32, timeout time.Duration) error
}

// Relauncher starts a previously captured command line in a new, detached
// process group so the relaunched service outlives the engine.
type Relauncher interface {
	Relaunch(cmdline []string, cwd string) error
}
