package domain

import (
	"context"
	"time"
)

type FeedbackID string

// FeedbackEntry records the coach's critique of one user turn.
type FeedbackEntry struct {
	ID        FeedbackID `json:"id"`
	UserID    UserID     `json:"user_id"`
	PersonaID PersonaID  `json:"persona_id"`

	// The user text the critique is about
	UserText string `json:"user_text"`

	Critique string `json:"critique"`
	Fallback bool   `json:"fallback"`

	CreatedAt time.Time `json:"created_at"`
}

// FeedbackStore defines the minimum operations to persist coaching feedback
type FeedbackStore interface {
	AppendFeedback(ctx context.Context, entry *FeedbackEntry) error
	ListFeedback(ctx context.Context, key SessionKey, limit int) ([]*FeedbackEntry, error)
}
