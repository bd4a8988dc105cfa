// Package daemon coordinates the long-running stemworker process.
//
// It wires the job tracker, durable queue, storage and workflow manager into
// a single lifecycle with flock-based locking to prevent multiple instances.
// The daemon owns admission: Create scans the source folder through storage
// and rejects unprocessable folders before any record or queue message
// exists. An optional chi HTTP server exposes Create, Status, List, Scan and
// Health under /api.
package daemon
