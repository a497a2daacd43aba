// Package hosting starts servers for the application under test.
//
// Two strategies exist. Direct spawns the configured command as a detached
// child process, captures its output to log files, and polls the health
// endpoints until the server is ready or the startup timeout expires.
// Delegated hands the lifecycle to an external harness (an Orchestrator)
// and only passes configuration across through process environment
// variables, restoring the environment afterwards.
//
// Both strategies produce a Server handle through which the manager stops
// or releases the instance later. Already-running servers recorded by
// earlier runs are wrapped into the same handle via Adopt.
package hosting
