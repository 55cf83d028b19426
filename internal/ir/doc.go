// Package ir provides the shared record types of a harness run.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal, so the host side (runner, sink
// writer) and the launcher side (sink reader, verdict) agree on one model
// without depending on each other.
//
// Key design constraints:
//   - StepResult.Seq is contiguous from 0 and never reused within a run
//   - Message is empty exactly when the outcome is PASS
//   - A run counts as passed only when its completion marker was observed
//   - All JSON tags use snake_case
package ir
