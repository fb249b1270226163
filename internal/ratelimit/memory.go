package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process event store implementing Store. It backs the
// limiter in tests and in development setups without a database; production
// uses PostgresStore, where the events are real domain rows.
type MemoryStore struct {
	mu     sync.Mutex
	events map[string][]time.Time
}

// NewMemoryStore creates an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string][]time.Time)}
}

// key scopes events the way the policy's table and timestamp column would.
// visits_per_day and visits_update_per_hour count different columns of the
// same table, so the timestamp column is part of the key.
func key(p Policy, subject string) string {
	return p.Table + "." + p.TimestampColumn + "/" + subject
}

// Record registers one qualifying event. Callers invoke it on the success
// path of the throttled action, mirroring the row-insert a handler performs
// against Postgres.
func (m *MemoryStore) Record(p Policy, subject string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(p, subject)
	m.events[k] = append(m.events[k], at.UTC())
}

// CountSince returns the number of recorded events at or after since.
func (m *MemoryStore) CountSince(ctx context.Context, p Policy, subject string, since time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, ts := range m.events[key(p, subject)] {
		if !ts.Before(since) {
			count++
		}
	}
	return count, nil
}

// OldestSince returns the oldest recorded event at or after since.
func (m *MemoryStore) OldestSince(ctx context.Context, p Policy, subject string, since time.Time) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var oldest time.Time
	found := false
	for _, ts := range m.events[key(p, subject)] {
		if ts.Before(since) {
			continue
		}
		if !found || ts.Before(oldest) {
			oldest = ts
			found = true
		}
	}
	return oldest, found, nil
}

// Clear removes all recorded events for a subject under a policy.
func (m *MemoryStore) Clear(p Policy, subject string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, key(p, subject))
}
