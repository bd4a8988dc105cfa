// Package workflow drains the durable queue and drives each job through one
// processing pass.
//
// The Manager pops one message at a time, upserts the tracker record, moves
// it to processing, and runs fetch, folder validation, automation for every
// mix file, and upload. Errors gathered along the way are committed together
// with the terminal status, after which the callback and lifecycle event are
// emitted exactly once. The job workspace is released on every exit path,
// including a recovered panic.
//
// Passes never overlap. The pass context is detached from daemon shutdown so
// an in-flight automation step finishes; Stop takes effect between jobs.
package workflow
