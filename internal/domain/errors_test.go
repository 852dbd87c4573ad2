package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

func TestCompletionError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	var err error = &domain.CompletionError{Pending: "hello", Err: cause}

	assert.ErrorIs(t, err, domain.ErrCompletionFailed)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")

	var ce *domain.CompletionError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, "hello", ce.Pending)
}

func TestSessionKey_String(t *testing.T) {
	k := domain.SessionKey{UserID: "alice", PersonaID: "gordon"}
	assert.Equal(t, "alice/gordon", k.String())
}
