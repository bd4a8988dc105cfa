package integrity

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stemworker/internal/media/ffprobe"
	"stemworker/internal/testsupport"
)

func TestNativeAcceptsValidWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song_mix.wav")
	testsupport.WriteWAV(t, path, 48000, 2, 4096)

	report, err := Native{PrefixFrames: 1000}.Check(context.Background(), path)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if report.SampleRate != 48000 || report.Channels != 2 || report.BitDepth != 16 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Frames != 4096 {
		t.Fatalf("expected 4096 frames, got %d", report.Frames)
	}
}

func TestNativeShortFileReadsWholeData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short_mix.wav")
	testsupport.WriteWAV(t, path, 44100, 1, 10)

	if _, err := (Native{PrefixFrames: 1000}).Check(context.Background(), path); err != nil {
		t.Fatalf("expected file shorter than the prefix to pass, got %v", err)
	}
}

func TestNativeRejectsBrokenFiles(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage_mix.wav")
	if err := os.WriteFile(garbage, []byte(strings.Repeat("not a riff file ", 16)), 0o644); err != nil {
		t.Fatal(err)
	}

	empty := filepath.Join(dir, "empty_mix.wav")
	testsupport.WriteWAV(t, empty, 44100, 2, 0)

	truncated := filepath.Join(dir, "truncated_mix.wav")
	testsupport.WriteWAV(t, truncated, 44100, 2, 4096)
	if err := os.Truncate(truncated, 100); err != nil {
		t.Fatal(err)
	}

	zeroBytes := filepath.Join(dir, "zero_mix.wav")
	if err := os.WriteFile(zeroBytes, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	cases := map[string]string{
		"garbage":   garbage,
		"no frames": empty,
		"truncated": truncated,
		"zero size": zeroBytes,
		"missing":   filepath.Join(dir, "missing_mix.wav"),
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := (Native{}).Check(context.Background(), path); err == nil {
				t.Fatalf("expected %s file to fail integrity check", name)
			}
		})
	}
}

func TestReportFromProbe(t *testing.T) {
	cases := []struct {
		name    string
		result  ffprobe.Result
		wantErr string
	}{
		{
			name: "valid",
			result: ffprobe.Result{Streams: []ffprobe.Stream{
				{CodecType: "audio", SampleRate: "44100", Channels: 2, DurationTS: 88200, NBReadFrames: "86"},
			}},
		},
		{
			name:    "no audio stream",
			result:  ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video"}}},
			wantErr: "no audio stream",
		},
		{
			name: "zero sample rate",
			result: ffprobe.Result{Streams: []ffprobe.Stream{
				{CodecType: "audio", SampleRate: "0", Channels: 2, DurationTS: 10, NBReadFrames: "1"},
			}},
			wantErr: "sample rate",
		},
		{
			name: "no frames",
			result: ffprobe.Result{Streams: []ffprobe.Stream{
				{CodecType: "audio", SampleRate: "44100", Channels: 1, DurationTS: 0, NBReadFrames: "0"},
			}},
			wantErr: "no audio frames",
		},
		{
			name: "prefix unreadable",
			result: ffprobe.Result{Streams: []ffprobe.Stream{
				{CodecType: "audio", SampleRate: "44100", Channels: 1, DurationTS: 100, NBReadFrames: "0"},
			}},
			wantErr: "read samples",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			report, err := reportFromProbe(tc.result)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if report.SampleRate != 44100 || report.Frames != 88200 {
					t.Fatalf("unexpected report: %+v", report)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestNewSelectsChecker(t *testing.T) {
	checker, err := New("FFPROBE", "/usr/bin/ffprobe", 50)
	if err != nil {
		t.Fatal(err)
	}
	probe, ok := checker.(Probe)
	if !ok || probe.Binary != "/usr/bin/ffprobe" || probe.PrefixPackets != 50 {
		t.Fatalf("unexpected checker: %#v", checker)
	}
	if _, ok := mustNew(t, "").(Native); !ok {
		t.Fatal("expected native checker by default")
	}
	if _, err := New("sox", "", 0); err == nil {
		t.Fatal("expected error for unknown checker")
	}
}

func mustNew(t *testing.T, kind string) Checker {
	t.Helper()
	checker, err := New(kind, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	return checker
}
