//go:build !unix

package process

import (
	"os"
	"os/exec"
	"syscall"
)

// configureSysProcAttr is a no-op on non-unix platforms. Session detachment
// is a unix concept; without it a child still survives parent exit on
// Windows, but process-group termination is unavailable.
func configureSysProcAttr(_ *exec.Cmd) {}

// signalGroup degrades to signaling the single process. Graceful SIGTERM
// delivery is not supported everywhere; callers escalate to SIGKILL, which
// maps to (*os.Process).Kill and works on all platforms.
func signalGroup(pid int, sig syscall.Signal) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if sig == syscall.SIGKILL {
		return p.Kill()
	}
	return p.Signal(sig)
}

// Alive degrades to a process handle lookup, which is best-effort on
// platforms without unix signal semantics. The registry layer pairs it with
// health probes before trusting a recorded pid, so a false positive here
// costs one failed probe rather than a wrong reuse decision.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}
