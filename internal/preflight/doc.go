// Package preflight provides readiness checks for the filesystem paths and
// external commands stemworker depends on.
//
// The daemon runs RunAll once at startup and logs any failures; the CLI
// "check" command renders the same results as a table. A missing directory is
// reported, not created.
package preflight
