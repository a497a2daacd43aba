//go:build unix

package process

import (
	"errors"
	"os/exec"
	"syscall"
)

// configureSysProcAttr detaches cmd into its own session. The child then
// survives the exit of this process, which is what allows a later run to
// adopt a still-running server instead of starting a fresh one. As a session
// leader the child also heads its own process group, so signalGroup can
// terminate the whole tree (the server plus anything it spawned, such as a
// build tool wrapping the real binary).
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}

// signalGroup delivers sig to the process group led by pid, falling back to
// the process itself when no such group exists. The fallback covers pids
// that were not started by this package and are not group leaders.
func signalGroup(pid int, sig syscall.Signal) error {
	err := syscall.Kill(-pid, sig)
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ESRCH) {
		return syscall.Kill(pid, sig)
	}
	return err
}

// Alive reports whether a process with the given pid currently exists.
// Signal 0 performs the existence check without delivering anything; EPERM
// means the process exists but belongs to another user. A recently exited
// child that has not been reaped still reports alive, which is why callers
// pair Alive with health probes before trusting a recorded pid.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
