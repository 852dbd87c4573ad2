// Package feedback reads back the coaching critiques recorded after each
// exchange.
package feedback

import (
	"context"
	"errors"

	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

const DefaultLimit = 20

// Service holds the logic of reading feedback entries.
type Service struct {
	store domain.FeedbackStore
}

// NewService creates a feedback service from a FeedbackStore. A nil store
// yields empty results.
func NewService(store domain.FeedbackStore) *Service {
	return &Service{store: store}
}

// Recent returns the last `limit` critiques for a user talking to a persona,
// oldest first. If limit <= 0, DefaultLimit is used.
func (s *Service) Recent(
	ctx context.Context,
	userID domain.UserID,
	personaID domain.PersonaID,
	limit int,
) ([]*domain.FeedbackEntry, error) {

	if userID == "" {
		return nil, errors.New("user id is required")
	}

	if s.store == nil {
		return []*domain.FeedbackEntry{}, nil
	}

	if limit <= 0 {
		limit = DefaultLimit
	}

	return s.store.ListFeedback(ctx, domain.SessionKey{UserID: userID, PersonaID: personaID}, limit)
}
