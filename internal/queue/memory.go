package queue

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process queue for tests and single-binary runs.
type Memory struct {
	mu     sync.Mutex
	items  [][]byte
	notify chan struct{}
}

// NewMemory returns an empty queue.
func NewMemory() *Memory {
	return &Memory{notify: make(chan struct{}, 1)}
}

func (m *Memory) Push(_ context.Context, msg Message) error {
	payload, err := Encode(msg)
	if err != nil {
		return err
	}
	m.PushRaw(payload)
	return nil
}

// PushRaw appends an already encoded payload, which may be malformed.
func (m *Memory) PushRaw(payload []byte) {
	m.mu.Lock()
	m.items = append(m.items, append([]byte(nil), payload...))
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *Memory) Pop(ctx context.Context, timeout time.Duration) ([]byte, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		if payload, ok := m.take(); ok {
			return payload, true, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-timer.C:
			return nil, false, nil
		case <-m.notify:
		}
	}
}

func (m *Memory) take() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return nil, false
	}
	payload := m.items[0]
	m.items = m.items[1:]
	return payload, true
}

// Len reports how many payloads are waiting.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
