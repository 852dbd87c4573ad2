package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

const maxNameAttempts = 100

// FileSink writes each reply to <dir>/<timestamp>-<persona>.mp3 and remembers
// the last path so terminal surfaces can point the user at it.
type FileSink struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	last string
}

var _ domain.AudioSink = (*FileSink)(nil)

func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: filepath.Clean(dir), now: time.Now}
}

func (s *FileSink) Play(ctx context.Context, persona domain.PersonaID, audio io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create audio directory: %w", err)
	}

	f, path, err := s.create(persona)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, audio); err != nil {
		_ = f.Close()
		return fmt.Errorf("write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close audio file: %w", err)
	}

	s.mu.Lock()
	s.last = path
	s.mu.Unlock()
	return nil
}

// create opens a new file that no other Play has written. Replies for the
// same persona within one millisecond get a -2, -3, ... suffix.
func (s *FileSink) create(persona domain.PersonaID) (*os.File, string, error) {
	base := fmt.Sprintf("%s-%s", s.now().Format("20060102-150405.000"), persona)

	for n := 1; n <= maxNameAttempts; n++ {
		name := base + ".mp3"
		if n > 1 {
			name = fmt.Sprintf("%s-%d.mp3", base, n)
		}
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("create audio file: %w", err)
		}
	}
	return nil, "", fmt.Errorf("create audio file: %d names taken for %s", maxNameAttempts, base)
}

// LastPath returns the file written by the most recent Play.
func (s *FileSink) LastPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// BufferSink keeps the last played audio in memory.
type BufferSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

var _ domain.AudioSink = (*BufferSink)(nil)

func (s *BufferSink) Play(_ context.Context, _ domain.PersonaID, audio io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Reset()
	_, err := io.Copy(&s.buf, audio)
	return err
}

func (s *BufferSink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf.Bytes()...)
}
