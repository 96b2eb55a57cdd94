//go:build !windows

package exec

import (
	"errors"
	"os"
	osexec "os/exec"
	"syscall"
)

var (
	terminateSignal = syscall.SIGTERM
	killSignal      = syscall.SIGKILL
)

func setProcessGroup(cmd *osexec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalGroup(proc *os.Process, sig syscall.Signal) error {
	if proc == nil {
		return nil
	}

	err := syscall.Kill(-proc.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	if err != nil {
		// Fall back to the leader when the group is not reachable.
		if sigErr := proc.Signal(sig); sigErr != nil && !isProcessDone(sigErr) {
			return sigErr
		}
	}

	return nil
}
