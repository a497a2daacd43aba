// Package process manages the lifecycle of server processes that are
// spawned in their own session so they can outlive the test run that
// started them.
//
// It defines Child for spawning and stopping a process owned by the current
// run, StopDetached for terminating a process recorded by an earlier run,
// WaitReady for polling-based readiness checks, and LogFiles for capturing
// process stdout/stderr to files.
package process
