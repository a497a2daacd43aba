// Package registry persists descriptors of running servers so that
// independent test runs can find and reuse them.
//
// Descriptors live in a SQLite database under the shared data directory.
// Every mutation is a single statement, so concurrent runs never observe a
// half-written descriptor. A database that cannot be opened or written is
// quarantined (renamed aside) and recreated rather than repaired; the worst
// case is a forgotten server that keeps running until PurgeStale or the
// operating system reaps it.
//
// Cross-run mutual exclusion per slot is provided by flock-based lock files
// next to the database. Lock files are never deleted; see LockSlot.
package registry
