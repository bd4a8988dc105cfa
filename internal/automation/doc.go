// Package automation drives the external stem-splitting capability.
//
// The capability is opaque: an Adapter receives a mix file and a folder name
// and reports success or error. Exports land in a fixed shared output area
// that every invocation writes into, so Runner wraps each call with the
// process-wide Guard, verifies and collects the exports, and resets the area
// before releasing the guard. A job already inside Process cannot be
// cancelled; only the adapter's own timeout bounds it.
package automation
