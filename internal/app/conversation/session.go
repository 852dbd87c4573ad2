package conversation

import (
	"sync"
	"time"

	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

// Session is the explicit per-user state the orchestrator works on. It is
// owned by whoever drives the conversation (HTTP session registry, terminal
// chat loop) and passed to Service methods by reference.
type Session struct {
	ID        domain.SessionID
	UserID    domain.UserID
	CreatedAt time.Time

	mu           sync.Mutex
	persona      domain.Persona
	conversation *domain.Conversation
	updatedAt    time.Time
}

// NewSession returns a session with an empty conversation for persona p.
func NewSession(id domain.SessionID, user domain.UserID, p domain.Persona, now time.Time) *Session {
	return &Session{
		ID:           id,
		UserID:       user,
		CreatedAt:    now,
		persona:      p,
		conversation: domain.NewConversation(domain.SessionKey{UserID: user, PersonaID: p.ID}),
		updatedAt:    now,
	}
}

// Snapshot is a consistent read-only view of a session.
type Snapshot struct {
	ID        domain.SessionID
	UserID    domain.UserID
	Persona   domain.Persona
	Turns     []domain.Turn
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		ID:        s.ID,
		UserID:    s.UserID,
		Persona:   s.persona,
		Turns:     s.conversation.Turns(),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.updatedAt,
	}
}

func (s *Session) Persona() domain.Persona {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persona
}

func (s *Session) Key() domain.SessionKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversation.Key
}
