package collector

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	coremodel "NetGuard/internal/core/model"

	"github.com/shirou/gopsutil/v4/process"
)

// liveness poll step used by Wait. Process control has no portable
// blocking wait for non-child processes, so Wait polls existence.
const waitPollStep = 100 * time.Millisecond

// Inspector resolves and controls processes through gopsutil.
type Inspector struct{}

// NewInspector creates a process inspector.
func NewInspector() *Inspector {
	return &Inspector{}
}

// Resolve returns name, executable path, command line and working
// directory for a pid. Exe and Cwd are best effort: they may be empty on
// restricted processes while the name still resolves.
func (i *Inspector) Resolve(pid int32) (coremodel.ProcessInfo, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return coremodel.ProcessInfo{}, classify(err)
	}

	name, err := p.Name()
	if err != nil {
		return coremodel.ProcessInfo{}, classify(err)
	}

	info := coremodel.ProcessInfo{PID: pid, Name: name}
	if exe, err := p.Exe(); err == nil {
		info.ExePath = exe
	}
	if cmdline, err := p.CmdlineSlice(); err == nil {
		info.Cmdline = cmdline
	}
	if cwd, err := p.Cwd(); err == nil {
		info.Cwd = cwd
	}
	return info, nil
}

// Terminate sends a stop request to the process: graceful when force is
// false, a hard kill otherwise.
func (i *Inspector) Terminate(pid int32, force bool) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return classify(err)
	}
	if force {
		return classify(p.Kill())
	}
	return classify(p.Terminate())
}

// Wait blocks until the process disappears from the OS process table, the
// timeout elapses (coremodel.ErrWaitTimeout) or the context is cancelled.
func (i *Inspector) Wait(ctx context.Context, pid int32, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(waitPollStep)
	defer ticker.Stop()

	for {
		exists, err := process.PidExistsWithContext(ctx, pid)
		if err == nil && !exists {
			return nil
		}
		if time.Now().After(deadline) {
			return coremodel.ErrWaitTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// classify maps gopsutil and OS errors onto the engine's sentinel errors.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, process.ErrorProcessNotRunning):
		return coremodel.ErrNoSuchProcess
	case errors.Is(err, os.ErrPermission),
		errors.Is(err, syscall.EPERM),
		errors.Is(err, syscall.EACCES):
		return coremodel.ErrAccessDenied
	default:
		return err
	}
}
