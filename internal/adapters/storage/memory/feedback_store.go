package memory

import (
	"context"
	"sync"
	"time"

	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

// FeedbackStore is a simple in-memory implementation of domain.FeedbackStore.
type FeedbackStore struct {
	mu      sync.RWMutex
	entries map[domain.FeedbackID]*domain.FeedbackEntry
	byKey   map[domain.SessionKey][]domain.FeedbackID
}

var _ domain.FeedbackStore = (*FeedbackStore)(nil)

func NewFeedbackStore() *FeedbackStore {
	return &FeedbackStore{
		entries: make(map[domain.FeedbackID]*domain.FeedbackEntry),
		byKey:   make(map[domain.SessionKey][]domain.FeedbackID),
	}
}

func (s *FeedbackStore) AppendFeedback(_ context.Context, entry *domain.FeedbackEntry) error {
	if entry == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = domain.FeedbackID(generateID(time.Now()))
	}

	key := domain.SessionKey{UserID: entry.UserID, PersonaID: entry.PersonaID}
	s.entries[entry.ID] = entry
	s.byKey[key] = append(s.byKey[key], entry.ID)

	return nil
}

// ListFeedback returns the last `limit` entries for key, oldest first.
// If limit <= 0, returns all.
func (s *FeedbackStore) ListFeedback(_ context.Context, key domain.SessionKey, limit int) ([]*domain.FeedbackEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byKey[key]
	if len(ids) == 0 {
		return []*domain.FeedbackEntry{}, nil
	}

	if limit <= 0 || limit > len(ids) {
		limit = len(ids)
	}

	selected := ids[len(ids)-limit:]
	out := make([]*domain.FeedbackEntry, 0, len(selected))
	for _, id := range selected {
		if e, ok := s.entries[id]; ok {
			out = append(out, e)
		}
	}

	return out, nil
}

func generateID(t time.Time) string {
	return t.Format("20060102150405.000000000")
}
