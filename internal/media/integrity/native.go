package integrity

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Native decodes WAV headers and a sample prefix with go-audio/wav.
type Native struct {
	PrefixFrames int
}

func (n Native) Check(_ context.Context, path string) (Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		if err := dec.Err(); err != nil {
			return Report{}, fmt.Errorf("decode header: %w", err)
		}
		return Report{}, errors.New("not a valid WAV container")
	}

	report := Report{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	if err := dec.FwdToPCM(); err != nil {
		return Report{}, fmt.Errorf("locate data chunk: %w", err)
	}
	bytesPerFrame := int64(dec.NumChans) * int64(dec.BitDepth/8)
	if bytesPerFrame > 0 {
		report.Frames = dec.PCMLen() / bytesPerFrame
	}
	if err := validateReport(report); err != nil {
		return Report{}, err
	}

	prefix := int64(n.PrefixFrames)
	if prefix <= 0 {
		prefix = DefaultPrefixFrames
	}
	if report.Frames < prefix {
		prefix = report.Frames
	}
	want := int(prefix) * report.Channels
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: report.Channels, SampleRate: report.SampleRate},
		Data:           make([]int, want),
		SourceBitDepth: report.BitDepth,
	}
	got := 0
	for got < want {
		buf.Data = buf.Data[:want-got]
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return Report{}, fmt.Errorf("read samples: %w", err)
		}
		if n == 0 {
			break
		}
		got += n
	}
	if got < want {
		return Report{}, fmt.Errorf("read samples: got %d of %d", got, want)
	}
	return report, nil
}
