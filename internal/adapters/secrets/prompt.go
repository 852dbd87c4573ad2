package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// PromptSource asks the user for a credential on the terminal, with echo
// disabled when in is a TTY. Any other reader is read one line at a time.
// Each key is asked at most once per process.
type PromptSource struct {
	in  io.Reader
	out io.Writer

	mu     sync.Mutex
	reader *bufio.Reader
	cache  map[string]string
}

var _ Source = (*PromptSource)(nil)

func NewPromptSource(in io.Reader, out io.Writer) *PromptSource {
	return &PromptSource{
		in:     in,
		out:    out,
		reader: bufio.NewReader(in),
		cache:  make(map[string]string),
	}
}

func (p *PromptSource) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := p.cache[key]; ok {
		return v, nil
	}

	fmt.Fprintf(p.out, "Enter %s: ", key)

	var (
		value string
		err   error
	)
	if fd, ok := terminalFd(p.in); ok {
		var raw []byte
		raw, err = term.ReadPassword(fd)
		fmt.Fprintln(p.out)
		value = string(raw)
	} else {
		value, err = p.reader.ReadString('\n')
		if errors.Is(err, io.EOF) && value != "" {
			err = nil
		}
	}
	if err != nil {
		return "", fmt.Errorf("read %s from terminal: %w", key, err)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("prompt %q: %w", key, errNotSet)
	}

	p.cache[key] = value
	return value, nil
}

func terminalFd(r io.Reader) (int, bool) {
	f, ok := r.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}
