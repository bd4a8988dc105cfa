// Package api defines the wire-format types shared by the HTTP admission
// server and its client.
//
// Jobs travel as JobView, a snake_case rendering of the tracker snapshot with
// RFC3339 timestamps. Scan results reuse validator.Result unchanged.
package api
