package collector

import (
	"fmt"
	"os/exec"
)

// ExecRelauncher restarts captured command lines through os/exec.
type ExecRelauncher struct{}

// NewExecRelauncher creates a relauncher backed by the local OS.
func NewExecRelauncher() *ExecRelauncher {
	return &ExecRelauncher{}
}

// Relaunch starts the command line in its original working directory, in a
// new process group detached from the engine. The relaunched process is
// released immediately; its lifetime is not tracked.
func (r *ExecRelauncher) Relaunch(cmdline []string, cwd string) error {
	if len(cmdline) == 0 {
		return fmt.Errorf("empty command line")
	}

	cmd := exec.Command(cmdline[0], cmdline[1:]...)
	cmd.Dir = cwd
	cmd.SysProcAttr = detachedProcAttr()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to relaunch %q: %w", cmdline[0], err)
	}
	return cmd.Process.Release()
}
