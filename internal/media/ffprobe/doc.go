// Package ffprobe wraps the ffprobe CLI for audio inspection.
//
// Inspect runs ffprobe with JSON output and optionally decodes a short prefix
// of packets so callers can confirm samples are actually readable, not just
// that the header parses.
package ffprobe
