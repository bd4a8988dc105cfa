package tracker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Tracker. Retention is unbounded.
type Memory struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

// NewMemory returns an empty in-memory tracker.
func NewMemory() *Memory {
	return &Memory{jobs: make(map[string]Job)}
}

func (m *Memory) Create(_ context.Context, job Job) (string, error) {
	if err := validateNew(job); err != nil {
		return "", err
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.ExecutionID]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicate, job.ExecutionID)
	}
	m.jobs[job.ExecutionID] = job.Clone()
	return job.ExecutionID, nil
}

func (m *Memory) Get(_ context.Context, id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return job.Clone(), nil
}

func (m *Memory) Update(_ context.Context, id string, mutate Mutator) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before, ok := m.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	after := before.Clone()
	if err := mutate(&after); err != nil {
		return Job{}, err
	}
	if err := validateCommit(before, after); err != nil {
		return Job{}, err
	}
	after.UpdatedAt = time.Now().UTC()
	m.jobs[id] = after.Clone()
	return after, nil
}

func (m *Memory) List(_ context.Context, statuses ...Status) ([]Job, error) {
	filter := statusFilter(statuses)
	m.mu.RLock()
	out := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		if filter != nil {
			if _, ok := filter[job.Status]; !ok {
				continue
			}
		}
		out = append(out, job.Clone())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ExecutionID < out[j].ExecutionID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) Close() error { return nil }
