package secrets

import (
	"context"
	"fmt"
	"strings"
)

// ValueSource reads credentials from already-loaded configuration, such as
// viper keys bound to environment variables.
type ValueSource struct {
	lookup func(key string) string
}

var _ Source = (*ValueSource)(nil)

func NewValueSource(lookup func(key string) string) *ValueSource {
	return &ValueSource{lookup: lookup}
}

func (s *ValueSource) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	v := strings.TrimSpace(s.lookup(key))
	if v == "" {
		return "", fmt.Errorf("config value %q: %w", key, errNotSet)
	}
	return v, nil
}
