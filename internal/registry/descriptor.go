package registry

import (
	"time"
)

// Descriptor records one running server. It is the unit of exchange between
// runs: the run that starts a server writes a Descriptor, and any later run
// that wants the same configuration reads it back and probes the recorded
// process.
type Descriptor struct {
	// Slot is the name under which the server was registered. One slot
	// holds at most one live server.
	Slot string

	// LaunchID uniquely identifies this launch. It also names the log
	// directory for the launch, so a descriptor leads to the right logs
	// even after the slot has been restarted many times.
	LaunchID string

	// Fingerprint is the hash of the configuration the server was started
	// with. A reuse candidate must match it exactly.
	Fingerprint string

	// PID is the operating system process id of the server.
	PID int

	// BaseURL is the resolved address the server listens on. When the
	// configuration asked for a dynamic port, this carries the port that
	// was actually chosen.
	BaseURL string

	// HealthPaths are the paths that were verified at startup and must
	// keep answering for the server to count as live.
	HealthPaths []string

	// StartedAt is when the server process was launched.
	StartedAt time.Time

	// CheckedAt is when the server last passed a liveness check.
	CheckedAt time.Time
}
