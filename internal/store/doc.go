// Package store provides SQLite-backed durable storage for hostbench.
//
// Two independent record sets live in a store:
//   - Run history: one row per launcher verdict plus its step results,
//     written by the launcher after each run.
//   - Extension state: persisted (section, key) values of a host, written
//     from inside the host process.
//
// # Critical Patterns
//
// Append-only history:
//   - A run row is written once, keyed by run_id (ON CONFLICT DO NOTHING)
//   - Step results are keyed by (run_id, seq) and never updated
//
// Deterministic reads:
//   - Runs are listed by insertion seq DESC
//   - Step results are read by seq ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
