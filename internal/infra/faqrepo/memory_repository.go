package faqrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
)

// MemoryRepository is an in-memory guard.Repository used for tests/dev.
type MemoryRepository struct {
	mu        sync.RWMutex
	snapshots map[string]guard.Snapshot
	settings  map[string]guard.Settings
}

// NewMemoryRepository constructs a repo backed by memory.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		snapshots: make(map[string]guard.Snapshot),
		settings:  make(map[string]guard.Settings),
	}
}

// Load implements guard.Repository.
func (r *MemoryRepository) Load(_ context.Context, channel string) (guard.Snapshot, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot, ok := r.snapshots[channel]
	if !ok {
		return guard.Snapshot{}, false, nil
	}
	snapshot.Records = append([]guard.Record(nil), snapshot.Records...)
	return snapshot, true, nil
}

// Save implements guard.Repository.
func (r *MemoryRepository) Save(_ context.Context, channel string, snapshot guard.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot.Records = append([]guard.Record(nil), snapshot.Records...)
	r.snapshots[channel] = snapshot
	return nil
}

// LoadSettings implements guard.Repository.
func (r *MemoryRepository) LoadSettings(_ context.Context, channel string) (guard.Settings, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	settings, ok := r.settings[channel]
	return settings, ok, nil
}

// SaveSettings implements guard.Repository.
func (r *MemoryRepository) SaveSettings(_ context.Context, channel string, settings guard.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[channel] = settings
	return nil
}

// Channels lists channels with a stored FAQ.
func (r *MemoryRepository) Channels(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.snapshots))
	for channel := range r.snapshots {
		out = append(out, channel)
	}
	sort.Strings(out)
	return out, nil
}

var _ guard.Repository = (*MemoryRepository)(nil)
