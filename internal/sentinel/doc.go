// Package sentinel provides a const-able error type for sentinel declarations.
//
// errors.New produces a mutable package variable that any importer could
// reassign. Error is backed by a string, so sentinels can be declared as
// constants and remain immutable while staying fully compatible with
// errors.Is through wrapped chains.
package sentinel
