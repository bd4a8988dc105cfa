package queue

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"stemworker/internal/config"
)

func TestDecodeAcceptsLegacyFields(t *testing.T) {
	payload := []byte(`{"execution_id":"abc","input_folder":"gs://in/song","destination_location":"gs://out","callback_url":null,"created_at":"2024-05-01T10:20:30.123456"}`)
	msg, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.SourceLocation != "gs://in/song" {
		t.Fatalf("expected input_folder alias, got %q", msg.SourceLocation)
	}
	if msg.CallbackURL != "" {
		t.Fatalf("expected empty callback, got %q", msg.CallbackURL)
	}
	want := time.Date(2024, 5, 1, 10, 20, 30, 123456000, time.UTC)
	if !msg.CreatedAt.Equal(want) {
		t.Fatalf("created_at = %s, want %s", msg.CreatedAt, want)
	}
	if len(msg.Missing()) != 0 {
		t.Fatalf("expected no missing fields, got %v", msg.Missing())
	}
}

func TestDecodePrefersSourceLocation(t *testing.T) {
	msg, err := Decode([]byte(`{"execution_id":"x","source_location":"s3://a/b","input_folder":"ignored","destination_location":"s3://c","created_at":"not a time"}`))
	if err != nil {
		t.Fatal(err)
	}
	if msg.SourceLocation != "s3://a/b" {
		t.Fatalf("unexpected source: %q", msg.SourceLocation)
	}
	if !msg.CreatedAt.IsZero() {
		t.Fatalf("expected unparseable timestamp to be dropped, got %s", msg.CreatedAt)
	}
}

func TestMissingFields(t *testing.T) {
	msg, err := Decode([]byte(`{"execution_id":"  ","source_location":"/in"}`))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"execution_id", "destination_location"}
	if got := msg.Missing(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Missing = %v, want %v", got, want)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("{not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestEncodeStampsCreatedAt(t *testing.T) {
	payload, err := Encode(Message{ExecutionID: "id", SourceLocation: "/in", DestinationLocation: "/out"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(payload), `"created_at"`) || strings.Contains(string(payload), "0001-01-01") {
		t.Fatalf("expected created_at to be stamped, got %s", payload)
	}
	if strings.Contains(string(payload), "callback_url") {
		t.Fatalf("expected empty callback to be omitted, got %s", payload)
	}
}

func TestMemoryQueueFIFOAndTimeout(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	start := time.Now()
	if _, ok, err := q.Pop(ctx, 20*time.Millisecond); ok || err != nil {
		t.Fatalf("expected timeout on empty queue, ok=%v err=%v", ok, err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("expected pop to wait for the timeout")
	}

	for _, id := range []string{"first", "second"} {
		if err := q.Push(ctx, Message{ExecutionID: id, SourceLocation: "/in", DestinationLocation: "/out"}); err != nil {
			t.Fatal(err)
		}
	}
	for _, want := range []string{"first", "second"} {
		payload, ok, err := q.Pop(ctx, time.Second)
		if err != nil || !ok {
			t.Fatalf("expected message, ok=%v err=%v", ok, err)
		}
		msg, err := Decode(payload)
		if err != nil {
			t.Fatal(err)
		}
		if msg.ExecutionID != want {
			t.Fatalf("expected %s, got %s", want, msg.ExecutionID)
		}
	}
}

func TestMemoryQueueWakesWaiter(t *testing.T) {
	q := NewMemory()
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.PushRaw([]byte("late"))
	}()
	payload, ok, err := q.Pop(context.Background(), 2*time.Second)
	if err != nil || !ok || string(payload) != "late" {
		t.Fatalf("unexpected pop: %q ok=%v err=%v", payload, ok, err)
	}
}

func TestMemoryQueueHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := NewMemory().Pop(ctx, time.Second); err == nil {
		t.Fatal("expected context error")
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Queue.Backend = "kafka"
	if _, err := Open(context.Background(), &cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
