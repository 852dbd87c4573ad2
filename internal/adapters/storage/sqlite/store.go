// Package sqlite stores transcripts and coaching feedback in a local SQLite
// database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcript (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL,
	persona_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcript_key ON transcript(user_id, persona_id, id);

CREATE TABLE IF NOT EXISTS feedback (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	user_id    TEXT NOT NULL,
	persona_id TEXT NOT NULL,
	user_text  TEXT NOT NULL,
	critique   TEXT NOT NULL,
	fallback   BOOLEAN NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_key ON feedback(user_id, persona_id, seq);
`

// Store implements domain.TranscriptStore and domain.FeedbackStore.
type Store struct {
	db *sql.DB
}

var (
	_ domain.TranscriptStore = (*Store)(nil)
	_ domain.FeedbackStore   = (*Store)(nil)
)

// NewStore opens (creating if needed) the database at path. Use ":memory:"
// for an ephemeral database.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// an in-memory database exists per connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) AppendRow(ctx context.Context, row domain.TranscriptRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcript (user_id, persona_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(row.UserID), string(row.PersonaID), string(row.Role), row.Content, row.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite AppendRow: %w", err)
	}
	return nil
}

func (s *Store) QueryByKey(ctx context.Context, key domain.SessionKey) ([]domain.TranscriptRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM transcript WHERE user_id = ? AND persona_id = ? ORDER BY id ASC`,
		string(key.UserID), string(key.PersonaID),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite QueryByKey: %w", err)
	}
	defer rows.Close()

	var out []domain.TranscriptRow
	for rows.Next() {
		var (
			role, content string
			createdAt     time.Time
		)
		if err := rows.Scan(&role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transcript row: %w", err)
		}
		out = append(out, domain.TranscriptRow{
			UserID:    key.UserID,
			PersonaID: key.PersonaID,
			Role:      domain.Role(role),
			Content:   content,
			Timestamp: createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite QueryByKey: %w", err)
	}
	return out, nil
}

func (s *Store) AppendFeedback(ctx context.Context, entry *domain.FeedbackEntry) error {
	if entry == nil {
		return nil
	}
	if entry.ID == "" {
		return fmt.Errorf("sqlite AppendFeedback: entry id is required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, user_id, persona_id, user_text, critique, fallback, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(entry.ID), string(entry.UserID), string(entry.PersonaID),
		entry.UserText, entry.Critique, entry.Fallback, entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite AppendFeedback: %w", err)
	}
	return nil
}

// ListFeedback returns the last `limit` entries for key, oldest first.
// If limit <= 0, returns all.
func (s *Store) ListFeedback(ctx context.Context, key domain.SessionKey, limit int) ([]*domain.FeedbackEntry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_text, critique, fallback, created_at FROM (
			SELECT seq, id, user_text, critique, fallback, created_at FROM feedback
			WHERE user_id = ? AND persona_id = ?
			ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`,
		string(key.UserID), string(key.PersonaID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite ListFeedback: %w", err)
	}
	defer rows.Close()

	out := []*domain.FeedbackEntry{}
	for rows.Next() {
		e := &domain.FeedbackEntry{UserID: key.UserID, PersonaID: key.PersonaID}
		var id string
		if err := rows.Scan(&id, &e.UserText, &e.Critique, &e.Fallback, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback row: %w", err)
		}
		e.ID = domain.FeedbackID(id)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite ListFeedback: %w", err)
	}
	return out, nil
}
