// Package vm implements the tape machine.
//
// This package contains:
//   - the 65536-cell tape and the State threaded between runs
//   - the safe (fail) and unsafe (wrap) arithmetic policies
//   - the dispatch loop with its per-loop iteration watchdog
//   - CBOR snapshots of a State
package vm
