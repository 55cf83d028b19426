// Package sink implements the durable, append-only result channel between
// the host process and the launcher.
//
// Each run writes one line-oriented file, <dir>/<run_id>/results.log:
//
//	0 | init | PASS | 
//	1 | write-value | FAIL | expected 3, got 2
//	2 | read-value | ABORTED | panic: assignment to entry in nil map
//	COMPLETE | 3
//
// Fields are separated by " | ". Inside a field a backslash, a pipe, a
// newline and a carriage return are written as \\, \|, \n and \r, so a
// record always fits on one line.
//
// # Durability
//
// The Writer syncs the file after every record. A host that dies right
// after Record returns has lost nothing; a host that dies inside Record
// leaves at most one partial trailing line, which the Reader ignores.
//
// # Sharing
//
// The file is the only object shared between the two processes. Records are
// written once and never rewritten, so the launcher reads it without locks,
// polling from its last offset.
package sink
