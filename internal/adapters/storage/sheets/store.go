// Package sheets stores transcripts as rows of a Google spreadsheet:
//
//	user_id | persona_id | role | content | timestamp (RFC 3339)
//
// The sheet has no index; QueryByKey reads the whole range and filters here.
package sheets

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

const DefaultRange = "Transcript!A:E"

var header = []interface{}{"user_id", "persona_id", "role", "content", "timestamp"}

type Config struct {
	SpreadsheetID   string
	Range           string
	CredentialsFile string
}

type Store struct {
	svc *sheetsapi.Service
	id  string
	rng string
}

var _ domain.TranscriptStore = (*Store)(nil)

// NewStore connects to the spreadsheet. Extra client options are appended
// after the credentials option.
func NewStore(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Store, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required for sheets store")
	}
	if cfg.Range == "" {
		cfg.Range = DefaultRange
	}

	var all []option.ClientOption
	if cfg.CredentialsFile != "" {
		all = append(all, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	all = append(all, opts...)

	svc, err := sheetsapi.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}

	return &Store{svc: svc, id: cfg.SpreadsheetID, rng: cfg.Range}, nil
}

func (s *Store) AppendRow(ctx context.Context, row domain.TranscriptRow) error {
	values := &sheetsapi.ValueRange{
		Values: [][]interface{}{{
			string(row.UserID),
			string(row.PersonaID),
			string(row.Role),
			row.Content,
			row.Timestamp.UTC().Format(time.RFC3339Nano),
		}},
	}

	_, err := s.svc.Spreadsheets.Values.Append(s.id, s.rng, values).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets AppendRow: %w", err)
	}
	return nil
}

func (s *Store) QueryByKey(ctx context.Context, key domain.SessionKey) ([]domain.TranscriptRow, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.id, s.rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets QueryByKey: %w", err)
	}

	var out []domain.TranscriptRow
	for i, cells := range resp.Values {
		if i == 0 && isHeader(cells) {
			continue
		}

		row, ok := decodeRow(cells)
		if !ok {
			continue
		}
		if row.UserID == key.UserID && row.PersonaID == key.PersonaID {
			out = append(out, row)
		}
	}
	return out, nil
}

func isHeader(cells []interface{}) bool {
	return len(cells) > 0 && fmt.Sprint(cells[0]) == header[0]
}

// decodeRow skips rows that are too short; an unparsable timestamp is kept
// as the zero time.
func decodeRow(cells []interface{}) (domain.TranscriptRow, bool) {
	if len(cells) < 4 {
		return domain.TranscriptRow{}, false
	}

	cell := func(i int) string {
		if i >= len(cells) || cells[i] == nil {
			return ""
		}
		return fmt.Sprint(cells[i])
	}

	ts, _ := time.Parse(time.RFC3339Nano, cell(4))

	return domain.TranscriptRow{
		UserID:    domain.UserID(cell(0)),
		PersonaID: domain.PersonaID(cell(1)),
		Role:      domain.Role(cell(2)),
		Content:   cell(3),
		Timestamp: ts,
	}, true
}
