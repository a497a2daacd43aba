// Package envguard captures and restores process-wide environment variables.
//
// Delegated hosting hands configuration to an external harness that reads
// only the process environment, which forces a window of global mutation.
// envguard bounds that window: capture the keys about to change, mutate,
// invoke the harness, and restore every key to its exact prior state on
// every exit path, including keys that were previously unset (use defer).
package envguard
