//go:build windows

package exec

import (
	"os"
	osexec "os/exec"
)

var (
	terminateSignal = os.Kill
	killSignal      = os.Kill
)

func setProcessGroup(*osexec.Cmd) {}

func signalGroup(proc *os.Process, sig os.Signal) error {
	if proc == nil {
		return nil
	}
	if err := proc.Signal(sig); err != nil && !isProcessDone(err) {
		return err
	}

	return nil
}
