package automation

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"stemworker/internal/services"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "split-stems")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestCommandAdapterOutcomes(t *testing.T) {
	cases := []struct {
		name        string
		script      string
		timeout     time.Duration
		wantStatus  string
		wantMessage string
		wantError   string
	}{
		{name: "success", script: `test "$STEMWORKER_FOLDER" = "$2" || exit 3`, wantStatus: OutcomeSuccess},
		{name: "non-zero exit", script: `echo "window not found" >&2; exit 2`, wantStatus: OutcomeError, wantError: "window not found"},
		{name: "timeout", script: `sleep 5`, timeout: 100 * time.Millisecond, wantStatus: OutcomeError, wantMessage: "timed out"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			adapter := &CommandAdapter{Command: writeScript(t, tc.script), Timeout: tc.timeout}
			out := adapter.Process(context.Background(), "/ws/song/song_mix.wav", "song")
			if out.Status != tc.wantStatus {
				t.Fatalf("status = %q, want %q (%+v)", out.Status, tc.wantStatus, out)
			}
			if tc.wantMessage != "" && !strings.Contains(out.Message, tc.wantMessage) {
				t.Fatalf("message %q missing %q", out.Message, tc.wantMessage)
			}
			if tc.wantError != "" && !strings.Contains(out.Error, tc.wantError) {
				t.Fatalf("error %q missing %q", out.Error, tc.wantError)
			}
			if out.Status == OutcomeError && out.Kind != services.KindAutomation {
				t.Fatalf("expected automation kind, got %q", out.Kind)
			}
		})
	}
}

func TestCommandAdapterWithoutCommand(t *testing.T) {
	out := (&CommandAdapter{}).Process(context.Background(), "x_mix.wav", "x")
	if out.OK() || !strings.Contains(out.Error, "not configured") {
		t.Fatalf("expected not configured error, got %+v", out)
	}
}

func TestGuardSerializesInvocations(t *testing.T) {
	guard := NewGuard(filepath.Join(t.TempDir(), "locks", "automation.lock"))
	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := guard.Run(context.Background(), func() {
				now := atomic.AddInt32(&active, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if now <= old || atomic.CompareAndSwapInt32(&peak, old, now) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
			})
			if err != nil {
				t.Errorf("guard.Run: %v", err)
			}
		}()
	}
	wg.Wait()
	if peak != 1 {
		t.Fatalf("expected at most one concurrent invocation, saw %d", peak)
	}
}

func TestRunnersWithoutGuardShareProcessGuard(t *testing.T) {
	var active, peak int32
	slow := AdapterFunc(func(_ context.Context, mixFilePath, _ string) Outcome {
		now := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if now <= old || atomic.CompareAndSwapInt32(&peak, old, now) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return Outcome{Status: OutcomeError, Error: "no export", File: mixFilePath}
	})
	area := SharedArea{Dir: filepath.Join(t.TempDir(), "Logic")}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runner := &Runner{Adapter: slow, Shared: area}
			runner.Run(context.Background(), "m_mix.wav", "song", t.TempDir())
		}()
	}
	wg.Wait()
	if peak != 1 {
		t.Fatalf("expected at most one concurrent invocation, saw %d", peak)
	}
}

func TestTailKeepsRuneBoundary(t *testing.T) {
	cases := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short", in: "  exit 1  ", n: 16, want: "exit 1"},
		{name: "ascii", in: "abcdefgh", n: 3, want: "...fgh"},
		{name: "cut inside rune", in: "error: ünïcode", n: 5, want: "...code"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tail(tc.in, tc.n)
			if got != tc.want {
				t.Fatalf("tail(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("tail produced invalid utf-8: %q", got)
			}
		})
	}
}

func TestSharedAreaVerifyAndReset(t *testing.T) {
	area := SharedArea{Dir: filepath.Join(t.TempDir(), "Logic")}
	if area.Verify("Song-A") {
		t.Fatal("expected verification to fail for missing area")
	}
	if err := area.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	for _, name := range []string{"song-a_Vocals.WAV", "song-a.aif", "other_bass.wav"} {
		if err := os.WriteFile(filepath.Join(area.Dir, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	matches, err := area.Matches("Song-A")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0] != "song-a_Vocals.WAV" {
		t.Fatalf("unexpected matches: %v", matches)
	}
	if !area.Verify("Song-A") {
		t.Fatal("expected case-insensitive verification to pass")
	}
	if err := area.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	entries, err := os.ReadDir(area.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty area after reset, got %d entries", len(entries))
	}
}

func exportingAdapter(area SharedArea, names ...string) Adapter {
	return AdapterFunc(func(_ context.Context, mixFilePath, _ string) Outcome {
		for _, name := range names {
			_ = os.WriteFile(filepath.Join(area.Dir, name), []byte("stem"), 0o644)
		}
		return Outcome{Status: OutcomeSuccess, Message: "ok", File: mixFilePath}
	})
}

func TestRunnerCollectsVerifiedExports(t *testing.T) {
	area := SharedArea{Dir: filepath.Join(t.TempDir(), "Logic")}
	if err := area.Reset(); err != nil {
		t.Fatal(err)
	}
	collect := filepath.Join(t.TempDir(), "output")
	runner := &Runner{Adapter: exportingAdapter(area, "song_vocals.wav", "song_drums.wav"), Guard: NewGuard(""), Shared: area}

	out := runner.Run(context.Background(), "/ws/song_mix.wav", "song", collect)
	if !out.OK() {
		t.Fatalf("expected success, got %+v", out)
	}
	if out.ExportVerified == nil || !*out.ExportVerified {
		t.Fatalf("expected export verified flag, got %+v", out)
	}
	if len(out.Exports) != 2 {
		t.Fatalf("expected 2 collected exports, got %v", out.Exports)
	}
	if _, err := os.Stat(filepath.Join(collect, "song_drums.wav")); err != nil {
		t.Fatalf("expected collected file: %v", err)
	}
	assertEmpty(t, area.Dir)
}

func TestRunnerDowngradesUnverifiedSuccess(t *testing.T) {
	area := SharedArea{Dir: filepath.Join(t.TempDir(), "Logic")}
	runner := &Runner{Adapter: exportingAdapter(area), Shared: area}

	out := runner.Run(context.Background(), "/ws/song_mix.wav", "song", t.TempDir())
	if out.OK() {
		t.Fatal("expected verification failure")
	}
	if out.Kind != services.KindVerification || out.Error != "export verification failed" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.ExportVerified == nil || *out.ExportVerified {
		t.Fatalf("expected export_verified=false, got %+v", out.ExportVerified)
	}
}

func TestRunnerResetsAfterFailureAndPanic(t *testing.T) {
	area := SharedArea{Dir: filepath.Join(t.TempDir(), "Logic")}
	if err := area.Reset(); err != nil {
		t.Fatal(err)
	}
	residue := filepath.Join(area.Dir, "song_partial.wav")

	failing := AdapterFunc(func(context.Context, string, string) Outcome {
		_ = os.WriteFile(residue, []byte("x"), 0o644)
		return Outcome{Status: OutcomeError, Error: "crashed"}
	})
	out := (&Runner{Adapter: failing, Shared: area}).Run(context.Background(), "m_mix.wav", "song", t.TempDir())
	if out.OK() || out.Kind != services.KindAutomation {
		t.Fatalf("expected automation failure, got %+v", out)
	}
	assertEmpty(t, area.Dir)

	panicking := AdapterFunc(func(context.Context, string, string) Outcome {
		_ = os.WriteFile(residue, []byte("x"), 0o644)
		panic("adapter blew up")
	})
	runner := &Runner{Adapter: panicking, Guard: NewGuard(""), Shared: area}
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		runner.Run(context.Background(), "m_mix.wav", "song", t.TempDir())
	}()
	assertEmpty(t, area.Dir)

	// The guard must be usable again after the panic.
	done := make(chan struct{})
	go func() {
		_ = runner.Guard.Run(context.Background(), func() {})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("guard still held after panic")
	}
}

func assertEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected %s to be empty, found %d entries", dir, len(entries))
	}
}
