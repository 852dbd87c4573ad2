package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/smalltalk-dojo/internal/adapters/llm"
	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type capturedGeminiRequest struct {
	Path              string
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction"`
	GenerationConfig  struct {
		Temperature float32 `json:"temperature"`
	} `json:"generationConfig"`
}

func newGeminiServer(t *testing.T, reply string, captured *capturedGeminiRequest) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Path = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "gm-test", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": reply}},
				},
				"finishReason": "STOP",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiClientComplete(t *testing.T) {
	var captured capturedGeminiRequest
	srv := newGeminiServer(t, "Nice to meet you. ||| 8 - warm - ask a question", &captured)

	client, err := llm.NewGeminiClient(context.Background(), llm.GeminiConfig{
		APIKey:  "gm-test",
		Model:   "gemini-test",
		BaseURL: srv.URL,
	})
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), domain.CompletionRequest{
		Messages: []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: "be Gordon"},
			{Role: domain.RoleUser, Content: "hello"},
			{Role: domain.RoleAssistant, Content: "hi"},
			{Role: domain.RoleUser, Content: "how are you"},
		},
		Temperature: 1.3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Nice to meet you. ||| 8 - warm - ask a question", out)

	assert.True(t, strings.HasSuffix(captured.Path, "models/gemini-test:generateContent"), captured.Path)

	// system text leaves contents and becomes the instruction
	require.Len(t, captured.Contents, 3)
	assert.Equal(t, "user", captured.Contents[0].Role)
	assert.Equal(t, "model", captured.Contents[1].Role)
	assert.Equal(t, "user", captured.Contents[2].Role)
	assert.Equal(t, "how are you", captured.Contents[2].Parts[0].Text)

	require.NotNil(t, captured.SystemInstruction)
	require.Len(t, captured.SystemInstruction.Parts, 1)
	assert.Equal(t, "be Gordon", captured.SystemInstruction.Parts[0].Text)
	assert.InDelta(t, 1.3, captured.GenerationConfig.Temperature, 0.0001)
}

func TestGeminiClientEmptyContent(t *testing.T) {
	var captured capturedGeminiRequest
	srv := newGeminiServer(t, "", &captured)

	client, err := llm.NewGeminiClient(context.Background(), llm.GeminiConfig{APIKey: "gm-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), domain.CompletionRequest{
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "hello"}},
	})
	require.ErrorIs(t, err, domain.ErrEmptyCompletion)
	assert.Contains(t, captured.Path, "gemini-2.5-flash")
}

func TestGeminiClientRequiresKey(t *testing.T) {
	_, err := llm.NewGeminiClient(context.Background(), llm.GeminiConfig{})
	require.ErrorIs(t, err, domain.ErrCredentialMissing)
}

func TestGeminiClientVertexRequiresProject(t *testing.T) {
	_, err := llm.NewGeminiClient(context.Background(), llm.GeminiConfig{Vertex: true})
	require.Error(t, err)
}
