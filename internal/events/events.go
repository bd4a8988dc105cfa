// Package events publishes job lifecycle transitions for external observers.
//
// Publication is fire-and-forget: a lost event never affects job state.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"stemworker/internal/tracker"
)

// DefaultSubjectPrefix roots every lifecycle subject.
const DefaultSubjectPrefix = "stemworker.jobs"

// Event is one lifecycle transition.
type Event struct {
	ExecutionID string         `json:"execution_id"`
	Status      tracker.Status `json:"status"`
	FolderName  string         `json:"folder_name,omitempty"`
	Stage       string         `json:"stage,omitempty"`
	Message     string         `json:"message,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// FromJob snapshots a job as an event. The message is the latest error, if
// any.
func FromJob(job tracker.Job, stage string) Event {
	ev := Event{
		ExecutionID: job.ExecutionID,
		Status:      job.Status,
		FolderName:  job.FolderName,
		Stage:       stage,
		OccurredAt:  time.Now().UTC(),
	}
	if n := len(job.Errors); n > 0 {
		ev.Message = job.Errors[n-1].Message
	}
	return ev
}

// Publisher emits lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// Subject returns the subject an event with status is published on.
func Subject(prefix string, status tracker.Status) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return prefix + "." + string(status)
}

// NATS publishes JSON events on <prefix>.<status>.
type NATS struct {
	nc     *nats.Conn
	prefix string
}

// Connect dials a NATS server with unlimited reconnects.
func Connect(url, prefix string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("stemworker"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &NATS{nc: nc, prefix: prefix}, nil
}

func (p *NATS) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.nc.Publish(Subject(p.prefix, event.Status), data)
}

func (p *NATS) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close()                               {}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() {}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
