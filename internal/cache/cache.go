// Package cache holds the short-lived cohort candidate cache. Entries are
// keyed by normalised make/model plus the fetch limit and expire after a TTL
// measured in seconds, so stale availability never leaks through. Values are
// deep-copied on return so consumers may mutate freely.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"carma-vehicle-api/internal/model"
)

// Key identifies one cached cohort superset.
type Key struct {
	Make  string
	Model string
	Limit int
}

func (k Key) String() string {
	return fmt.Sprintf("cohort:%s|%s|%d", k.Make, k.Model, k.Limit)
}

// CandidateCache is implemented by the in-process store and the optional
// Redis backend. A failed backend read is reported as a miss.
type CandidateCache interface {
	Get(ctx context.Context, key Key) ([]*model.Listing, bool)
	Set(ctx context.Context, key Key, rows []*model.Listing)
}

type memoryEntry struct {
	rows     []*model.Listing
	storedAt time.Time
}

// Memory is the default process-wide cache: a mutex-guarded map with lazy
// expiry on read.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[Key]memoryEntry
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		entries: make(map[Key]memoryEntry),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key Key) ([]*model.Listing, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if m.now().Sub(entry.storedAt) >= m.ttl {
		delete(m.entries, key)
		return nil, false
	}
	return cloneRows(entry.rows), true
}

func (m *Memory) Set(_ context.Context, key Key, rows []*model.Listing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{rows: cloneRows(rows), storedAt: m.now()}
}

func cloneRows(rows []*model.Listing) []*model.Listing {
	out := make([]*model.Listing, len(rows))
	for i, row := range rows {
		out[i] = row.Clone()
	}
	return out
}
