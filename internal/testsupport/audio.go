package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV encodes a 16-bit PCM file holding the given number of frames of a
// simple ramp. Zero frames yields a valid header with an empty data chunk.
func WriteWAV(t testing.TB, path string, sampleRate, channels, frames int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	data := make([]int, frames*channels)
	for i := range data {
		data[i] = (i % 200) - 100
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finalize %s: %v", path, err)
	}
}

// WriteMixFolder populates dir with a valid mix file plus any extra names.
// Names ending in .wav get short valid audio; anything else gets filler bytes.
func WriteMixFolder(t testing.TB, dir, mixName string, extra ...string) string {
	t.Helper()

	mixPath := filepath.Join(dir, mixName)
	WriteWAV(t, mixPath, 44100, 2, 2048)
	for _, name := range extra {
		target := filepath.Join(dir, name)
		if filepath.Ext(name) == ".wav" {
			WriteWAV(t, target, 44100, 1, 2048)
			continue
		}
		WriteFile(t, target, 64)
	}
	return mixPath
}
