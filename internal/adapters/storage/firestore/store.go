// Package firestore stores transcripts and coaching feedback in Cloud
// Firestore.
//
// Layout:
//
//	conversations/{key}            key metadata and the turn counter
//	conversations/{key}/turns/*    one document per row, ordered by seq
//	feedback/{id}                  one document per critique
//
// {key} is ConversationDocID of the (user, persona) pair.
package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

type Store struct {
	client *firestore.Client
}

var (
	_ domain.TranscriptStore = (*Store)(nil)
	_ domain.FeedbackStore   = (*Store)(nil)
)

// NewStore creates a Firestore store.
// Uses the project passed (DOJO_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

// ConversationDocID maps a key onto a document id: the hex sha256 of the
// length-prefixed user and persona. Distinct keys never share a document and
// the id never contains '/' or the reserved __name__ form.
func ConversationDocID(key domain.SessionKey) string {
	h := sha256.New()
	for _, part := range []string{string(key.UserID), string(key.PersonaID)} {
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{':'})
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Store) conversationDoc(key domain.SessionKey) *firestore.DocumentRef {
	return s.client.Collection("conversations").Doc(ConversationDocID(key))
}

func (s *Store) turnsCol(key domain.SessionKey) *firestore.CollectionRef {
	return s.conversationDoc(key).Collection("turns")
}

func (s *Store) feedbackCol() *firestore.CollectionRef {
	return s.client.Collection("feedback")
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type conversationDoc struct {
	UserID    string    `firestore:"user_id"`
	PersonaID string    `firestore:"persona_id"`
	UpdatedAt time.Time `firestore:"updated_at"`

	// Seq is the seq of the last appended turn
	Seq int64 `firestore:"seq"`
}

type turnDoc struct {
	UserID    string    `firestore:"user_id"`
	PersonaID string    `firestore:"persona_id"`
	Role      string    `firestore:"role"`
	Content   string    `firestore:"content"`
	CreatedAt time.Time `firestore:"created_at"`
	Seq       int64     `firestore:"seq"`
}

type feedbackDoc struct {
	UserID    string    `firestore:"user_id"`
	PersonaID string    `firestore:"persona_id"`
	UserText  string    `firestore:"user_text"`
	Critique  string    `firestore:"critique"`
	Fallback  bool      `firestore:"fallback"`
	CreatedAt time.Time `firestore:"created_at"`
}

// ─────────────────────────────────────────
// TranscriptStore implementation
// ─────────────────────────────────────────

// AppendRow adds a turn document and bumps the conversation counter in one
// transaction, so turn order does not depend on instance clocks.
func (s *Store) AppendRow(ctx context.Context, row domain.TranscriptRow) error {
	key := domain.SessionKey{UserID: row.UserID, PersonaID: row.PersonaID}
	convRef := s.conversationDoc(key)
	turnRef := s.turnsCol(key).NewDoc()

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var meta conversationDoc

		snap, err := tx.Get(convRef)
		switch {
		case err == nil:
			if err := snap.DataTo(&meta); err != nil {
				return fmt.Errorf("decode conversationDoc: %w", err)
			}
		case status.Code(err) != codes.NotFound:
			return err
		}

		meta.UserID = string(row.UserID)
		meta.PersonaID = string(row.PersonaID)
		meta.UpdatedAt = row.Timestamp
		meta.Seq++

		turn := turnDoc{
			UserID:    string(row.UserID),
			PersonaID: string(row.PersonaID),
			Role:      string(row.Role),
			Content:   row.Content,
			CreatedAt: row.Timestamp,
			Seq:       meta.Seq,
		}

		if err := tx.Create(turnRef, turn); err != nil {
			return err
		}
		return tx.Set(convRef, meta)
	})
	if err != nil {
		return fmt.Errorf("firestore AppendRow: %w", err)
	}
	return nil
}

func (s *Store) QueryByKey(ctx context.Context, key domain.SessionKey) ([]domain.TranscriptRow, error) {
	iter := s.turnsCol(key).OrderBy("seq", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []domain.TranscriptRow
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			if status.Code(err) == codes.NotFound {
				return nil, nil
			}
			return nil, fmt.Errorf("firestore QueryByKey: %w", err)
		}

		var doc turnDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode turnDoc: %w", err)
		}
		if !matchesKey(doc, key) {
			continue
		}

		out = append(out, domain.TranscriptRow{
			UserID:    domain.UserID(doc.UserID),
			PersonaID: domain.PersonaID(doc.PersonaID),
			Role:      domain.Role(doc.Role),
			Content:   doc.Content,
			Timestamp: doc.CreatedAt,
		})
	}
	return out, nil
}

func matchesKey(doc turnDoc, key domain.SessionKey) bool {
	return doc.UserID == string(key.UserID) && doc.PersonaID == string(key.PersonaID)
}

// ─────────────────────────────────────────
// FeedbackStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendFeedback(ctx context.Context, entry *domain.FeedbackEntry) error {
	if entry == nil {
		return nil
	}

	doc := feedbackDoc{
		UserID:    string(entry.UserID),
		PersonaID: string(entry.PersonaID),
		UserText:  entry.UserText,
		Critique:  entry.Critique,
		Fallback:  entry.Fallback,
		CreatedAt: entry.CreatedAt,
	}

	if entry.ID == "" {
		ref, _, err := s.feedbackCol().Add(ctx, doc)
		if err != nil {
			return fmt.Errorf("firestore AppendFeedback: %w", err)
		}
		entry.ID = domain.FeedbackID(ref.ID)
		return nil
	}

	if _, err := s.feedbackCol().Doc(string(entry.ID)).Create(ctx, doc); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("feedback %s already exists", entry.ID)
		}
		return fmt.Errorf("firestore AppendFeedback: %w", err)
	}
	return nil
}

// ListFeedback returns the last `limit` entries for key, oldest first.
func (s *Store) ListFeedback(ctx context.Context, key domain.SessionKey, limit int) ([]*domain.FeedbackEntry, error) {
	q := s.feedbackCol().
		Where("user_id", "==", string(key.UserID)).
		Where("persona_id", "==", string(key.PersonaID)).
		OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.FeedbackEntry
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("firestore ListFeedback: %w", err)
		}

		var doc feedbackDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode feedbackDoc: %w", err)
		}

		out = append(out, &domain.FeedbackEntry{
			ID:        domain.FeedbackID(snap.Ref.ID),
			UserID:    domain.UserID(doc.UserID),
			PersonaID: domain.PersonaID(doc.PersonaID),
			UserText:  doc.UserText,
			Critique:  doc.Critique,
			Fallback:  doc.Fallback,
			CreatedAt: doc.CreatedAt,
		})
	}

	// newest-first from the query; callers expect oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
