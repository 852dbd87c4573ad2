// Package secrets resolves API credentials from pre-provisioned sources and,
// as a last resort, from an interactive prompt.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

// Well-known credential keys.
const (
	KeyLLMAPIKey    = "llm.api_key"
	KeySpeechAPIKey = "speech.api_key"
)

// Source looks up one credential by key.
type Source interface {
	Get(ctx context.Context, key string) (string, error)
}

var errNotSet = errors.New("not set")

// Resolve returns the credential for key. When src cannot provide a
// non-empty value the error wraps domain.ErrCredentialMissing.
func Resolve(ctx context.Context, src Source, key string) (string, error) {
	if src == nil {
		return "", fmt.Errorf("%w: %s", domain.ErrCredentialMissing, key)
	}

	value, err := src.Get(ctx, key)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %s: %w", domain.ErrCredentialMissing, key, err)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrCredentialMissing, key)
	}
	return value, nil
}
