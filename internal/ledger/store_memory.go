package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	id "participation/pkg/domain"
)

// InMemoryStore keeps audit entries per event. Append-only by construction:
// nothing in the type exposes mutation.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.EventID][]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[id.EventID][]Entry)}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.entries[entry.EventID] = append(s.entries[entry.EventID], entry)
	return entry, nil
}

func (s *InMemoryStore) ListByStudent(_ context.Context, eventID id.EventID, studentID id.StudentID, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, entry := range s.entries[eventID] {
		if entry.StudentID == studentID {
			out = append(out, entry)
		}
	}
	return mostRecentFirst(out, limit), nil
}

func (s *InMemoryStore) ListByEvent(_ context.Context, eventID id.EventID, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]Entry{}, s.entries[eventID]...)
	return mostRecentFirst(out, limit), nil
}

func (s *InMemoryStore) ListByAction(_ context.Context, eventID id.EventID, action ActionType) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, entry := range s.entries[eventID] {
		if entry.ActionType == action {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *InMemoryStore) CountByAction(_ context.Context, eventID id.EventID) (map[ActionType]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[ActionType]int)
	for _, entry := range s.entries[eventID] {
		counts[entry.ActionType]++
	}
	return counts, nil
}

func mostRecentFirst(entries []Entry, limit int) []Entry {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
