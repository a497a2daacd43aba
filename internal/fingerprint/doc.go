// Package fingerprint computes the deterministic identity hash of a server
// configuration. Two configurations that are field-equal after
// normalization always produce the same fingerprint; changing any
// semantically relevant field produces a different one. The lifecycle
// manager compares fingerprints to decide whether a slot's running process
// still matches what the caller asked for.
package fingerprint
