package httpadapter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/PabloGalante/smalltalk-dojo/internal/adapters/http"
	"github.com/PabloGalante/smalltalk-dojo/internal/adapters/llm"
	"github.com/PabloGalante/smalltalk-dojo/internal/adapters/storage/memory"
	"github.com/PabloGalante/smalltalk-dojo/internal/app/conversation"
	"github.com/PabloGalante/smalltalk-dojo/internal/app/feedback"
	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(_ context.Context, _ domain.AudioInput) (string, error) {
	return s.text, s.err
}

func newTestServer(t *testing.T, client domain.CompletionClient, collab conversation.Collaborators) http.Handler {
	t.Helper()

	if collab.Store == nil {
		collab.Store = memory.NewTranscriptStore()
	}
	feedbackStore := memory.NewFeedbackStore()
	collab.Feedback = feedbackStore

	convSvc := conversation.NewService(client, nil, collab, conversation.DefaultPromptOptions())
	return httpadapter.NewServer(convSvc, memory.NewSessionRegistry(), feedback.NewService(feedbackStore))
}

func do(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func createSession(t *testing.T, srv http.Handler, persona string) string {
	t.Helper()
	return createSessionFor(t, srv, "test-user", persona)
}

func createSessionFor(t *testing.T, srv http.Handler, user, persona string) string {
	t.Helper()
	w := do(t, srv, http.MethodPost, "/sessions", map[string]string{"user_id": user, "persona_id": persona})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	session := decode(t, w)["session"].(map[string]any)
	return session["id"].(string)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, llm.NewMockLLM(), conversation.Collaborators{})

	w := do(t, srv, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	srv := newTestServer(t, llm.NewMockLLM(), conversation.Collaborators{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestListPersonas(t *testing.T) {
	srv := newTestServer(t, llm.NewMockLLM(), conversation.Collaborators{})

	w := do(t, srv, http.MethodGet, "/personas", nil)
	require.Equal(t, http.StatusOK, w.Code)

	personas := decode(t, w)["personas"].([]any)
	require.NotEmpty(t, personas)
	assert.Equal(t, "gordon", personas[0].(map[string]any)["id"])
}

func TestCreateSessionAndSendMessage(t *testing.T) {
	client := llm.NewScriptedLLM(llm.ScriptedResponse{Text: "Nice to meet you! |||8 - 整體表現自然 - 可以多問一個問題"})
	srv := newTestServer(t, client, conversation.Collaborators{})

	id := createSession(t, srv, "gordon")

	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/messages", map[string]string{"text": "Hi, I'm Alex"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	out := decode(t, w)
	assert.Equal(t, "Nice to meet you!", out["assistant_message"].(map[string]any)["text"])
	assert.Equal(t, "8 - 整體表現自然 - 可以多問一個問題", out["critique"].(map[string]any)["text"])
	assert.NotContains(t, out, "audio")

	w = do(t, srv, http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["messages"].([]any), 2)

	w = do(t, srv, http.MethodGet, "/users/test-user/feedback?persona=gordon", nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode(t, w)["feedback"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "Hi, I'm Alex", entries[0].(map[string]any)["user_text"])
}

func TestCreateSession_Validation(t *testing.T) {
	srv := newTestServer(t, llm.NewMockLLM(), conversation.Collaborators{})

	w := do(t, srv, http.MethodPost, "/sessions", map[string]string{"user_id": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPost, "/sessions", map[string]string{"user_id": "u1", "persona_id": "nobody"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodGet, "/sessions", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestSessionNotFound(t *testing.T) {
	srv := newTestServer(t, llm.NewMockLLM(), conversation.Collaborators{})

	w := do(t, srv, http.MethodGet, "/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodPost, "/sessions/missing/messages", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodGet, "/sessions/missing/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendMessage_CompletionFailure(t *testing.T) {
	client := llm.NewScriptedLLM(llm.ScriptedResponse{Err: errors.New("upstream timeout")})
	srv := newTestServer(t, client, conversation.Collaborators{})
	id := createSession(t, srv, "")

	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/messages", map[string]string{"text": "Hello there"})
	require.Equal(t, http.StatusBadGateway, w.Code)

	out := decode(t, w)
	assert.Equal(t, "Hello there", out["pending_text"])
	assert.Equal(t, "completion call failed", out["error"])
	assert.Equal(t, "upstream timeout", out["detail"])

	w = do(t, srv, http.MethodGet, "/sessions/"+id, nil)
	assert.Empty(t, decode(t, w)["messages"])
}

func TestSendMessage_EmptyText(t *testing.T) {
	srv := newTestServer(t, llm.NewMockLLM(), conversation.Collaborators{})
	id := createSession(t, srv, "")

	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/messages", map[string]string{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSwitchPersona(t *testing.T) {
	srv := newTestServer(t, llm.NewMockLLM(), conversation.Collaborators{})
	id := createSession(t, srv, "gordon")

	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/messages", map[string]string{"text": "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodPut, "/sessions/"+id+"/persona", map[string]string{"persona_id": "mei"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Equal(t, "mei", out["session"].(map[string]any)["persona"].(map[string]any)["id"])
	assert.Empty(t, out["messages"])

	w = do(t, srv, http.MethodPut, "/sessions/"+id+"/persona", map[string]string{"persona_id": "gordon"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["messages"].([]any), 2)

	w = do(t, srv, http.MethodPut, "/sessions/"+id+"/persona", map[string]string{"persona_id": "nobody"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func voiceRequest(t *testing.T, path string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", "turn.webm")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake-audio"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestSendVoice(t *testing.T) {
	client := llm.NewScriptedLLM(llm.ScriptedResponse{Text: "Go on. ||| 7 - ok - more"})
	srv := newTestServer(t, client, conversation.Collaborators{Transcriber: stubTranscriber{text: "I run a startup"}})
	id := createSession(t, srv, "")

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, voiceRequest(t, "/sessions/"+id+"/voice"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	out := decode(t, w)
	assert.Equal(t, "I run a startup", out["transcript"])
	assert.Equal(t, "Go on.", out["assistant_message"].(map[string]any)["text"])
}

func TestSendVoice_TranscriptionFailure(t *testing.T) {
	srv := newTestServer(t, llm.NewScriptedLLM(), conversation.Collaborators{Transcriber: stubTranscriber{err: errors.New("bad audio")}})
	id := createSession(t, srv, "")

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, voiceRequest(t, "/sessions/"+id+"/voice"))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	warnings := decode(t, w)["warnings"].([]any)
	require.Len(t, warnings, 1)
	assert.Equal(t, string(domain.WarnTranscription), warnings[0].(map[string]any)["kind"])
}

func TestSendVoice_MissingFile(t *testing.T) {
	srv := newTestServer(t, llm.NewMockLLM(), conversation.Collaborators{})
	id := createSession(t, srv, "")

	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/voice", map[string]string{"text": "not audio"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListFeedback_BadLimit(t *testing.T) {
	srv := newTestServer(t, llm.NewMockLLM(), conversation.Collaborators{})

	w := do(t, srv, http.MethodGet, "/users/u1/feedback?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodGet, "/users/u1/feedback", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["feedback"])
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, llm.NewMockLLM(), conversation.Collaborators{})

	w := do(t, srv, http.MethodOptions, "/sessions", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestDeleteSession(t *testing.T) {
	srv := newTestServer(t, llm.NewMockLLM(), conversation.Collaborators{})
	id := createSession(t, srv, "")

	w := do(t, srv, http.MethodDelete, "/sessions/"+id, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, srv, http.MethodGet, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodDelete, "/sessions/"+id+"/messages", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestListUserSessions(t *testing.T) {
	srv := newTestServer(t, llm.NewMockLLM(), conversation.Collaborators{})
	first := createSessionFor(t, srv, "alex", "gordon")
	second := createSessionFor(t, srv, "alex", "mei")
	createSessionFor(t, srv, "sam", "gordon")

	w := do(t, srv, http.MethodGet, "/users/alex/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)

	sessions := decode(t, w)["sessions"].([]any)
	require.Len(t, sessions, 2)
	ids := []string{
		sessions[0].(map[string]any)["id"].(string),
		sessions[1].(map[string]any)["id"].(string),
	}
	assert.ElementsMatch(t, []string{first, second}, ids)

	w = do(t, srv, http.MethodGet, "/users/alex/sessions?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["sessions"], 1)

	w = do(t, srv, http.MethodGet, "/users/alex/sessions?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPost, "/users/alex/sessions", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = do(t, srv, http.MethodGet, "/users/alex/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateSession_EvictsBeyondPerUserLimit(t *testing.T) {
	srv := newTestServer(t, llm.NewMockLLM(), conversation.Collaborators{})

	var last string
	for i := 0; i < 8; i++ {
		last = createSessionFor(t, srv, "alex", "")
	}
	createSessionFor(t, srv, "sam", "")

	w := do(t, srv, http.MethodGet, "/sessions/"+last, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodGet, "/users/alex/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["sessions"], 5)

	w = do(t, srv, http.MethodGet, "/users/sam/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["sessions"], 1)
}
