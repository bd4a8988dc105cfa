// Command stemworker runs the stem-splitting job daemon and talks to a
// running instance over its HTTP API.
//
// `stemworker serve` starts the daemon in the foreground. The remaining
// commands (submit, show, list, scan, status) are thin clients of the API
// configured by paths.api_bind; `check` and `config` work without a daemon.
package main
