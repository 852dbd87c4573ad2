package memory

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/PabloGalante/smalltalk-dojo/internal/app/conversation"
	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

var errSessionExists = errors.New("session already exists")

// SessionRegistry holds the live sessions of the HTTP surface. Sessions are
// process-local; the durable part of a conversation lives in the transcript
// store.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*conversation.Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[domain.SessionID]*conversation.Session),
	}
}

func (r *SessionRegistry) Add(s *conversation.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; exists {
		return fmt.Errorf("%w: %s", errSessionExists, s.ID)
	}

	r.sessions[s.ID] = s
	return nil
}

func (r *SessionRegistry) Get(id domain.SessionID) (*conversation.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return s, nil
}

func (r *SessionRegistry) Remove(id domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// ListByUser returns the user's sessions, newest first.
func (r *SessionRegistry) ListByUser(userID domain.UserID, limit int) []*conversation.Session {
	r.mu.RLock()
	var result []*conversation.Session
	for _, s := range r.sessions {
		if s.UserID == userID {
			result = append(result, s)
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
