//go:build !windows

package hook

import (
	"context"
	"os/exec"

	"golang.org/x/sys/unix"
)

// createCommand builds the hook process as the leader of its own process
// group. Cancelling the context kills the whole group, children included.
func (r *Runner) createCommand(ctx context.Context, args []string) *exec.Cmd {
	cmd := r.commandContext(ctx, args[0], args[1:]...)
	cmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}
	if cmd.Cancel != nil {
		cmd.Cancel = func() error {
			return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		}
	}
	return cmd
}
