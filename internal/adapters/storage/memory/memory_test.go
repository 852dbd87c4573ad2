package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/smalltalk-dojo/internal/adapters/storage/memory"
	"github.com/PabloGalante/smalltalk-dojo/internal/app/conversation"
	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
	"github.com/PabloGalante/smalltalk-dojo/internal/persona"
)

func TestTranscriptStore_QueryByKeyKeepsOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTranscriptStore()

	rows := []domain.TranscriptRow{
		{UserID: "u1", PersonaID: "gordon", Role: domain.RoleUser, Content: "hi"},
		{UserID: "u1", PersonaID: "mei", Role: domain.RoleUser, Content: "other persona"},
		{UserID: "u1", PersonaID: "gordon", Role: domain.RoleAssistant, Content: "hello"},
		{UserID: "u2", PersonaID: "gordon", Role: domain.RoleUser, Content: "other user"},
	}
	for _, r := range rows {
		require.NoError(t, store.AppendRow(ctx, r))
	}

	got, err := store.QueryByKey(ctx, domain.SessionKey{UserID: "u1", PersonaID: "gordon"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hi", got[0].Content)
	assert.Equal(t, "hello", got[1].Content)

	empty, err := store.QueryByKey(ctx, domain.SessionKey{UserID: "nobody", PersonaID: "gordon"})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFeedbackStore_ListFeedbackLimit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewFeedbackStore()
	key := domain.SessionKey{UserID: "u1", PersonaID: "gordon"}

	for _, c := range []string{"5 - a", "6 - b", "7 - c"} {
		require.NoError(t, store.AppendFeedback(ctx, &domain.FeedbackEntry{
			UserID:    key.UserID,
			PersonaID: key.PersonaID,
			Critique:  c,
		}))
	}

	last2, err := store.ListFeedback(ctx, key, 2)
	require.NoError(t, err)
	require.Len(t, last2, 2)
	assert.Equal(t, "6 - b", last2[0].Critique)
	assert.Equal(t, "7 - c", last2[1].Critique)
	assert.NotEmpty(t, last2[0].ID)

	all, err := store.ListFeedback(ctx, key, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := store.ListFeedback(ctx, domain.SessionKey{UserID: "u1", PersonaID: "mei"}, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSessionRegistry(t *testing.T) {
	reg := memory.NewSessionRegistry()
	p := persona.Builtin().Default()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	older := conversation.NewSession("s1", "u1", p, base)
	newer := conversation.NewSession("s2", "u1", p, base.Add(time.Minute))
	other := conversation.NewSession("s3", "u2", p, base)

	for _, s := range []*conversation.Session{older, newer, other} {
		require.NoError(t, reg.Add(s))
	}
	assert.Error(t, reg.Add(older))

	got, err := reg.Get("s2")
	require.NoError(t, err)
	assert.Same(t, newer, got)

	list := reg.ListByUser("u1", 0)
	require.Len(t, list, 2)
	assert.Equal(t, domain.SessionID("s2"), list[0].ID)

	reg.Remove("s1")
	_, err = reg.Get("s1")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}
