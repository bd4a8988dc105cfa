package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"stemworker/internal/api"
	"stemworker/internal/tracker"
)

func TestSubmitShowAndList(t *testing.T) {
	env := setupCLITestEnv(t)
	source := env.folder(t, "song-a")

	out, _, err := runCLI(t, []string{"submit", "--json", source, filepath.Join(env.source, "out")}, env.api)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	var created api.CreateJobResponse
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("decode submit output: %v (%s)", err, out)
	}
	if created.FolderName != "song-a" || created.ExecutionID == "" {
		t.Fatalf("unexpected submit response %+v", created)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err := env.tracker.Get(t.Context(), created.ExecutionID)
		if err == nil && job.IsTerminal() {
			if job.Status != tracker.StatusError {
				t.Fatalf("expected automation failure to end in error, got %s", job.Status)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for job to finish")
		}
		time.Sleep(20 * time.Millisecond)
	}

	out, _, err = runCLI(t, []string{"show", created.ExecutionID}, env.api)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "Error")
	requireContains(t, out, "automation offline")
	requireContains(t, out, "song-a")

	out, _, err = runCLI(t, []string{"list", "--status", "error"}, env.api)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, created.ExecutionID)

	out, _, err = runCLI(t, []string{"list", "--status", "completed"}, env.api)
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	requireContains(t, out, "No jobs")
}

func TestSubmitRejectsUnprocessableFolder(t *testing.T) {
	env := setupCLITestEnv(t)
	source := env.folder(t, "song-b", "bass.wav")

	_, _, err := runCLI(t, []string{"submit", source, "/tmp/out"}, env.api)
	if err == nil {
		t.Fatal("expected submit to fail")
	}
	requireContains(t, err.Error(), "400")

	jobs, _ := env.tracker.List(t.Context())
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
}

func TestScanCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	source := env.folder(t, "song-c")

	out, _, err := runCLI(t, []string{"scan", source}, env.api)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "processable")
	requireContains(t, out, "song-c_mix.wav")

	out, _, err = runCLI(t, []string{"scan", filepath.Join(env.source, "absent")}, env.api)
	if err != nil {
		t.Fatalf("scan missing: %v", err)
	}
	requireContains(t, out, "Input folder does not exist")
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.api)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "running")
	requireContains(t, out, "Dependencies")
	requireContains(t, out, "Automation")
}

func TestShowUnknownJob(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"show", "does-not-exist"}, env.api)
	if err == nil {
		t.Fatal("expected error for unknown job")
	}
	requireContains(t, err.Error(), "404")
}

func TestConfigInitAndValidate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}

	out, _, err = runCLI(t, []string{"--config", target, "config", "validate"}, "")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestDisplayStatus(t *testing.T) {
	cases := map[string]string{
		"completed_with_errors": "Completed With Errors",
		"queued":                "Queued",
		"shared_output":         "Shared Output",
	}
	for in, want := range cases {
		if got := displayStatus(in); got != want {
			t.Fatalf("displayStatus(%q) = %q, want %q", in, got, want)
		}
	}
}
