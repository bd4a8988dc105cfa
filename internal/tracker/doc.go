// Package tracker stores job snapshots and enforces the job state machine.
//
// Two implementations satisfy the Tracker contract: Memory, a reader/writer
// locked map for tests and ephemeral deployments, and Store, a SQLite-backed
// tracker that survives restarts. Both hand out deep copies from Get and apply
// Update mutators atomically, rejecting any mutation that would revisit a
// status, leave a terminal state, or shrink the append-only errors and results.
//
// Status flow: queued -> processing -> completed | completed_with_errors | error.
package tracker
