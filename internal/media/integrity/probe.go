package integrity

import (
	"context"
	"errors"

	"stemworker/internal/media/ffprobe"
)

// Probe validates files through ffprobe.
type Probe struct {
	Binary        string
	PrefixPackets int
}

func (p Probe) Check(ctx context.Context, path string) (Report, error) {
	prefix := p.PrefixPackets
	if prefix <= 0 {
		prefix = DefaultPrefixFrames
	}
	result, err := ffprobe.Inspect(ctx, p.Binary, path, prefix)
	if err != nil {
		return Report{}, err
	}
	return reportFromProbe(result)
}

func reportFromProbe(result ffprobe.Result) (Report, error) {
	stream, ok := result.FirstAudio()
	if !ok {
		return Report{}, errors.New("no audio stream")
	}
	report := Report{
		SampleRate: stream.SampleRateHz(),
		Channels:   stream.Channels,
		Frames:     stream.DurationTS,
	}
	if err := validateReport(report); err != nil {
		return Report{}, err
	}
	if stream.FramesRead() == 0 {
		return Report{}, errors.New("read samples: decoder returned no frames")
	}
	return report, nil
}
