package actions

import (
	"context"
	"errors"
	"log"
	"time"

	coremodel "NetGuard/internal/core/model"
	"NetGuard/internal/model"
)

// Runner executes terminate and restart operations with bounded,
// observable escalation. Pids within one invocation are handled
// sequentially: OS process control calls are serialized per call and the
// cost is small for realistic selection sizes.
type Runner struct {
	inspector  model.ProcessInspector
	relauncher model.Relauncher

	graceTimeout  time.Duration
	killTimeout   time.Duration
	relaunchPause time.Duration
}

// New creates a runner. Non-positive timeouts fall back to the defaults:
// 5s for the graceful wait, 3s after a forced stop.
func New(inspector model.ProcessInspector, relauncher model.Relauncher, graceTimeout, killTimeout time.Duration) *Runner {
	if graceTimeout <= 0 {
		graceTimeout = 5 * time.Second
	}
	if killTimeout <= 0 {
		killTimeout = 3 * time.Second
	}
	return &Runner{
		inspector:     inspector,
		relauncher:    relauncher,
		graceTimeout:  graceTimeout,
		killTimeout:   killTimeout,
		relaunchPause: 500 * time.Millisecond,
	}
}

// Terminate stops each pid with escalation: graceful stop, wait up to the
// grace timeout, then forceful stop with a shorter wait. Pids are handled
// independently; one failure never aborts the batch.
func (r *Runner) Terminate(ctx context.Context, pids []int32) map[int32]coremodel.ActionOutcome {
	outcomes := make(map[int32]coremodel.ActionOutcome, len(pids))
	for _, pid := range pids {
		outcomes[pid] = r.terminateOne(ctx, pid)
	}
	return outcomes
}

// Restart captures each pid's launch parameters, terminates it with
// escalation, then relaunches the captured command line detached in its
// original working directory. A failed capture reports
// restart_capture_failed and skips termination for that pid.
func (r *Runner) Restart(ctx context.Context, pids []int32) map[int32]coremodel.ActionOutcome {
	outcomes := make(map[int32]coremodel.ActionOutcome, len(pids))
	for _, pid := range pids {
		outcomes[pid] = r.restartOne(ctx, pid)
	}
	return outcomes
}

func (r *Runner) terminateOne(ctx context.Context, pid int32) coremodel.ActionOutcome {
	err := r.inspector.Terminate(pid, false)
	switch {
	case errors.Is(err, coremodel.ErrNoSuchProcess):
		return coremodel.ActionOutcome{Result: coremodel.OutcomeNotFound}
	case errors.Is(err, coremodel.ErrAccessDenied):
		return coremodel.ActionOutcome{Result: coremodel.OutcomeAccessDenied}
	case err != nil:
		return coremodel.ActionOutcome{Result: coremodel.OutcomeError, Detail: err.Error()}
	}

	err = r.inspector.Wait(ctx, pid, r.graceTimeout)
	if err == nil {
		return coremodel.ActionOutcome{Result: coremodel.OutcomeTerminatedGracefully}
	}
	if !errors.Is(err, coremodel.ErrWaitTimeout) {
		return coremodel.ActionOutcome{Result: coremodel.OutcomeError, Detail: err.Error()}
	}

	// Escalate.
	log.Printf("Process %d survived graceful stop for %s, killing", pid, r.graceTimeout)
	err = r.inspector.Terminate(pid, true)
	switch {
	case errors.Is(err, coremodel.ErrNoSuchProcess):
		// Exited between the wait deadline and the kill.
		return coremodel.ActionOutcome{Result: coremodel.OutcomeTerminatedGracefully}
	case errors.Is(err, coremodel.ErrAccessDenied):
		return coremodel.ActionOutcome{Result: coremodel.OutcomeAccessDenied}
	case err != nil:
		return coremodel.ActionOutcome{Result: coremodel.OutcomeError, Detail: err.Error()}
	}

	if err := r.inspector.Wait(ctx, pid, r.killTimeout); err != nil {
		return coremodel.ActionOutcome{Result: coremodel.OutcomeError, Detail: "still running after forced stop"}
	}
	return coremodel.ActionOutcome{Result: coremodel.OutcomeTerminatedForcefully}
}

func (r *Runner) restartOne(ctx context.Context, pid int32) coremodel.ActionOutcome {
	info, err := r.inspector.Resolve(pid)
	if err != nil {
		capErr := &coremodel.RestartCaptureError{PID: pid, Cause: err}
		return coremodel.ActionOutcome{Result: coremodel.OutcomeCaptureFailed, Detail: capErr.Error()}
	}
	if len(info.Cmdline) == 0 {
		capErr := &coremodel.RestartCaptureError{PID: pid, Cause: errors.New("empty command line")}
		return coremodel.ActionOutcome{Result: coremodel.OutcomeCaptureFailed, Detail: capErr.Error()}
	}

	stop := r.terminateOne(ctx, pid)
	switch stop.Result {
	case coremodel.OutcomeTerminatedGracefully, coremodel.OutcomeTerminatedForcefully, coremodel.OutcomeNotFound:
		// Port release lags process exit; give the OS a moment.
		select {
		case <-time.After(r.relaunchPause):
		case <-ctx.Done():
			return coremodel.ActionOutcome{Result: coremodel.OutcomeError, Detail: ctx.Err().Error()}
		}
	default:
		return stop
	}

	if err := r.relauncher.Relaunch(info.Cmdline, info.Cwd); err != nil {
		return coremodel.ActionOutcome{Result: coremodel.OutcomeError, Detail: err.Error()}
	}
	log.Printf("Relaunched %s (previously pid %d)", info.Name, pid)
	return coremodel.ActionOutcome{Result: coremodel.OutcomeRestarted}
}
