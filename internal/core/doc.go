// Package core implements the server lifecycle manager: the component that
// turns "make sure this server is running" into either a fast reuse of a
// process recorded by an earlier run or a fresh verified start.
//
// The package wires together fingerprinting (internal/fingerprint), the
// on-disk registry (internal/registry), and the hosting strategies
// (internal/hosting). The public API in the root package is a thin facade
// over Manager.
package core
