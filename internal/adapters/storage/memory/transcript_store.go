package memory

import (
	"context"
	"sync"

	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

// TranscriptStore is an in-memory, append-only domain.TranscriptStore.
// It is NOT persistent and is only suitable for development / local mode.
type TranscriptStore struct {
	mu   sync.RWMutex
	rows map[domain.SessionKey][]domain.TranscriptRow
}

var _ domain.TranscriptStore = (*TranscriptStore)(nil)

func NewTranscriptStore() *TranscriptStore {
	return &TranscriptStore{
		rows: make(map[domain.SessionKey][]domain.TranscriptRow),
	}
}

func (s *TranscriptStore) AppendRow(_ context.Context, row domain.TranscriptRow) error {
	key := domain.SessionKey{UserID: row.UserID, PersonaID: row.PersonaID}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows[key] = append(s.rows[key], row)
	return nil
}

// QueryByKey returns the rows for key in insertion order.
func (s *TranscriptStore) QueryByKey(_ context.Context, key domain.SessionKey) ([]domain.TranscriptRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.rows[key]
	out := make([]domain.TranscriptRow, len(rows))
	copy(out, rows)
	return out, nil
}
