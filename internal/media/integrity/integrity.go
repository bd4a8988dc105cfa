// Package integrity checks that audio files are structurally sound before
// they are handed to automation.
//
// A file passes when its container decodes, it reports a positive sample
// rate, channel count and frame count, and a short prefix of samples can be
// read. Two checkers are available: Native decodes WAV in process and Probe
// delegates to ffprobe.
package integrity

import (
	"context"
	"fmt"
	"strings"
)

// DefaultPrefixFrames is how many leading frames a check must read.
const DefaultPrefixFrames = 1000

// Report describes a file that passed its check.
type Report struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Frames     int64
}

// Checker validates one file.
type Checker interface {
	Check(ctx context.Context, path string) (Report, error)
}

// New returns the checker named by kind ("native" or "ffprobe").
func New(kind, ffprobeBinary string, prefixFrames int) (Checker, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "native":
		return Native{PrefixFrames: prefixFrames}, nil
	case "ffprobe":
		return Probe{Binary: ffprobeBinary, PrefixPackets: prefixFrames}, nil
	default:
		return nil, fmt.Errorf("integrity checker: unsupported kind %q", kind)
	}
}

func validateReport(r Report) error {
	switch {
	case r.SampleRate <= 0:
		return fmt.Errorf("invalid sample rate %d", r.SampleRate)
	case r.Channels <= 0:
		return fmt.Errorf("invalid channel count %d", r.Channels)
	case r.Frames <= 0:
		return fmt.Errorf("no audio frames")
	}
	return nil
}
