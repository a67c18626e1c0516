package services

import (
	"context"
	"sync"
	"time"

	"mandoub-backend/internal/models"
)

type memOutbox struct {
	mu      sync.Mutex
	entries []*models.OutboxEntry
	next    int64
}

func (m *memOutbox) Enqueue(_ context.Context, e *models.OutboxEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	e.ID = m.next
	e.Status = "pending"
	e.CreatedAt = time.Now()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memOutbox) ListPending(_ context.Context, limit int) ([]*models.OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.OutboxEntry
	for _, e := range m.entries {
		if e.Status == "pending" && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memOutbox) MarkDone(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e.Status = "done"
		}
	}
	return nil
}

func (m *memOutbox) MarkFailed(_ context.Context, id int64, lastErr string, maxAttempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e.Attempts++
			e.LastError = lastErr
			if e.Attempts >= maxAttempts {
				e.Status = "failed"
			}
		}
	}
	return nil
}

func (m *memOutbox) pending() []*models.OutboxEntry {
	out, _ := m.ListPending(context.Background(), 1000)
	return out
}

type recordedEvent struct {
	event string
	kind  models.Kind
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) Notify(event string, kind models.Kind, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{event, kind})
}

type recordingMirror struct {
	mu      sync.Mutex
	actions []string
}

func (m *recordingMirror) Mirror(_ context.Context, action string, _ map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, action)
}

type memClaimer struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func (c *memClaimer) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if c.keys == nil {
		c.keys = make(map[string]bool)
	}
	if c.keys[key] {
		return false, nil
	}
	c.keys[key] = true
	return true, nil
}

func (c *memClaimer) Release(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
}
