package domain

import "time"

type UserID string
type PersonaID string
type SessionID string

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Timestamp = time.Time

// SessionKey scopes a conversation to one user talking to one persona.
type SessionKey struct {
	UserID    UserID
	PersonaID PersonaID
}

func (k SessionKey) String() string {
	return string(k.UserID) + "/" + string(k.PersonaID)
}
