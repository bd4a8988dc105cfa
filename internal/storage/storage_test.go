package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		raw     string
		want    Location
		wantErr bool
	}{
		{raw: "s3://bucket/songs/track one", want: Location{Scheme: SchemeS3, Bucket: "bucket", Key: "songs/track one"}},
		{raw: "gs://bucket/songs/", want: Location{Scheme: SchemeGS, Bucket: "bucket", Key: "songs"}},
		{raw: "GS://bucket", want: Location{Scheme: SchemeGS, Bucket: "bucket"}},
		{raw: "file:///srv/in/song", want: Location{Scheme: SchemeLocal, Key: "/srv/in/song"}},
		{raw: "/srv/in/song/", want: Location{Scheme: SchemeLocal, Key: "/srv/in/song"}},
		{raw: "", wantErr: true},
		{raw: "s3:///nobucket", wantErr: true},
		{raw: "ftp://host/x", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := Parse(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Parse(%q) = %+v, want %+v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestLocationJoinAndBase(t *testing.T) {
	joined, err := JoinLocation("s3://out/stems", "song-a")
	if err != nil {
		t.Fatal(err)
	}
	if joined != "s3://out/stems/song-a" {
		t.Fatalf("unexpected join: %q", joined)
	}
	root, _ := Parse("gs://bucket")
	if got := root.Join("song").String(); got != "gs://bucket/song" {
		t.Fatalf("unexpected root join: %q", got)
	}
	if root.Base() != "bucket" {
		t.Fatalf("unexpected base for bucket root: %q", root.Base())
	}
	local, _ := Parse("/srv/in/song-b")
	if local.Base() != "song-b" {
		t.Fatalf("unexpected local base: %q", local.Base())
	}
}

func TestFolderPrefix(t *testing.T) {
	if got := folderPrefix("a/b/"); got != "a/b/" {
		t.Fatalf("folderPrefix = %q", got)
	}
	if got := folderPrefix(""); got != "" {
		t.Fatalf("folderPrefix(empty) = %q", got)
	}
	if contentType("x_mix.WAV") != "audio/wav" {
		t.Fatal("expected audio/wav content type")
	}
}

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	for _, name := range []string{"song_mix.wav", "cover.jpg"} {
		if err := os.WriteFile(filepath.Join(src, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var store Local
	listed, err := store.List(ctx, src)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(listed, []string{"cover.jpg", "song_mix.wav"}) {
		t.Fatalf("unexpected listing: %v", listed)
	}

	dst := filepath.Join(t.TempDir(), "ws")
	names, err := store.Download(ctx, "file://"+src, dst)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 downloaded files, got %v", names)
	}

	outDir := filepath.Join(t.TempDir(), "dest", "song")
	if err := store.Upload(ctx, filepath.Join(dst, "song_mix.wav"), outDir); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "song_mix.wav")); err != nil {
		t.Fatalf("expected uploaded file: %v", err)
	}
}

func TestLocalMissingFolderIsNotFound(t *testing.T) {
	_, err := Local{}.List(context.Background(), filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRouterRejectsUnconfiguredScheme(t *testing.T) {
	router := &Router{Local: Local{}}
	_, err := router.List(context.Background(), "s3://bucket/song")
	if err == nil || !strings.Contains(err.Error(), "s3://") {
		t.Fatalf("expected unconfigured scheme error, got %v", err)
	}
	if got := router.Schemes(); !reflect.DeepEqual(got, []Scheme{SchemeLocal}) {
		t.Fatalf("unexpected schemes: %v", got)
	}
}

func TestGsutilListParsesOutput(t *testing.T) {
	bin := writeScript(t, `
case "$1" in
ls)
  echo "gs://bucket/song/"
  echo "gs://bucket/song/b_mix.wav"
  echo "gs://bucket/song/a.txt"
  echo "gs://bucket/song/sub/"
  ;;
esac
`)
	names, err := Gsutil{Binary: bin}.List(context.Background(), "gs://bucket/song")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"a.txt", "b_mix.wav"}) {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestGsutilMissingObjectsIsNotFound(t *testing.T) {
	bin := writeScript(t, `echo "CommandException: One or more URLs matched no objects." >&2; exit 1`)
	_, err := Gsutil{Binary: bin}.Download(context.Background(), "gs://bucket/none", t.TempDir())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGsutilUploadTargetsFolder(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "args.log")
	bin := writeScript(t, `echo "$@" > `+logPath)
	local := filepath.Join(t.TempDir(), "stem_vocals.wav")
	if err := os.WriteFile(local, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := (Gsutil{Binary: bin}).Upload(context.Background(), local, "gs://out/song"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	args, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(args), "gs://out/song/stem_vocals.wav") {
		t.Fatalf("unexpected gsutil args: %q", args)
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gsutil")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}
