package activity

import (
	"context"
	"slices"
	"strconv"
	"sync"
)

// MemoryStore implements Store using an in-memory slice.
// Intended for demos and testing.
type MemoryStore struct {
	mu      sync.RWMutex
	seq     int64
	entries []Entry
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) WriteEntries(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.seq++
		e.Seq = s.seq
		s.entries = append(s.entries, e)
	}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, sessionID string, opts QueryOptions) ([]Entry, string, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cursor int64
	if opts.Cursor != "" {
		cursor, _ = strconv.ParseInt(opts.Cursor, 10, 64)
	}

	var matched []Entry
	total := 0
	// Walk newest first.
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.SessionID != sessionID {
			continue
		}
		if opts.Since != nil && e.OccurredAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.OccurredAt.After(*opts.Until) {
			continue
		}
		if len(opts.Types) > 0 && !slices.Contains(opts.Types, e.EventType) {
			continue
		}
		if opts.Field != "" && e.Field != opts.Field {
			continue
		}
		total++
		if cursor > 0 && e.Seq >= cursor {
			continue
		}
		matched = append(matched, e)
	}

	limit := opts.limit()
	var nextCursor string
	if len(matched) > limit {
		matched = matched[:limit]
		nextCursor = strconv.FormatInt(matched[len(matched)-1].Seq, 10)
	}
	return matched, nextCursor, total, nil
}
