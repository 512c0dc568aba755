// Package storage persists the duty state and the operator audit trail.
//
// Two drivers share one key/value layout (see codec.go):
//   - "file": a directory of small text/JSON files, one per key
//   - "sqlite": the same keys in a single SQLite database
package storage
