package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PabloGalante/smalltalk-dojo/internal/adapters/storage/memory"
	"github.com/PabloGalante/smalltalk-dojo/internal/app/conversation"
	"github.com/PabloGalante/smalltalk-dojo/internal/app/feedback"
	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
	"github.com/PabloGalante/smalltalk-dojo/internal/observability"
)

// maxAudioBytes is the largest upload the transcription endpoint accepts.
const maxAudioBytes = 25 << 20

// maxSessionsPerUser bounds the live sessions a user can hold; creating one
// more evicts the oldest.
const maxSessionsPerUser = 5

type Server struct {
	svc      *conversation.Service
	sessions *memory.SessionRegistry
	feedback *feedback.Service
}

func NewServer(svc *conversation.Service, sessions *memory.SessionRegistry, fb *feedback.Service) http.Handler {
	if sessions == nil {
		sessions = memory.NewSessionRegistry()
	}
	if fb == nil {
		fb = feedback.NewService(nil)
	}

	s := &Server{svc: svc, sessions: sessions, feedback: fb}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/personas", s.handlePersonas)

	// /sessions → create session (POST)
	mux.HandleFunc("/sessions", s.handleSessions)

	// /sessions/{id}          →  GET: session + messages, DELETE: end session
	// /sessions/{id}/persona  →  PUT: switch persona
	// /sessions/{id}/messages → POST: send message
	// /sessions/{id}/voice    → POST: send recorded audio
	mux.HandleFunc("/sessions/", s.handleSessionWithID)

	// /users/{id}/feedback → GET: recent critiques
	// /users/{id}/sessions → GET: live sessions, newest first
	mux.HandleFunc("/users/", s.handleUsers)

	return chainMiddlewares(mux, withLogging, withRequestID, withCORS)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type personaResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Style        string `json:"style"`
	WinCondition string `json:"win_condition"`
	Voice        string `json:"voice,omitempty"`
	Placeholder  string `json:"placeholder,omitempty"`
}

type sessionResponse struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Persona   personaResponse `json:"persona"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type messageResponse struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type critiqueResponse struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}

type createSessionRequest struct {
	UserID    string `json:"user_id"`
	PersonaID string `json:"persona_id,omitempty"`
}

type switchPersonaRequest struct {
	PersonaID string `json:"persona_id"`
}

type sessionListResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type sessionStateResponse struct {
	Session  sessionResponse   `json:"session"`
	Messages []messageResponse `json:"messages"`
	Warnings []domain.Warning  `json:"warnings,omitempty"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	UserMessage      messageResponse  `json:"user_message"`
	AssistantMessage messageResponse  `json:"assistant_message"`
	Critique         critiqueResponse `json:"critique"`
	Transcript       string           `json:"transcript,omitempty"`
	Audio            []byte           `json:"audio,omitempty"` // base64 mp3
	Warnings         []domain.Warning `json:"warnings,omitempty"`
}

type completionErrorResponse struct {
	Error       string `json:"error"`
	Detail      string `json:"detail"`
	PendingText string `json:"pending_text"`
}

type feedbackResponse struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"persona_id"`
	UserText  string    `json:"user_text"`
	Critique  string    `json:"critique"`
	Fallback  bool      `json:"fallback"`
	CreatedAt time.Time `json:"created_at"`
}

// ─────────────────────────────────────────────
// Basic routing
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// /personas
func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	list := s.svc.Personas().List()
	out := make([]personaResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPersonaResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"personas": out})
}

// /sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSession(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /sessions/{id}[/persona|/messages|/voice]
func (s *Server) handleSessionWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.Split(path, "/")
	id := parts[0]

	if id == "" || len(parts) > 2 {
		http.NotFound(w, r)
		return
	}

	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}

	type sessionHandler func(http.ResponseWriter, *http.Request, domain.SessionID)
	routes := map[string]map[string]sessionHandler{
		"": {
			http.MethodGet:    s.handleGetSession,
			http.MethodDelete: s.handleDeleteSession,
		},
		"persona":  {http.MethodPut: s.handleSwitchPersona},
		"messages": {http.MethodPost: s.handleSendMessage},
		"voice":    {http.MethodPost: s.handleSendVoice},
	}

	methods, ok := routes[sub]
	if !ok {
		http.NotFound(w, r)
		return
	}
	handler, ok := methods[r.Method]
	if !ok {
		methodNotAllowed(w)
		return
	}
	handler(w, r, domain.SessionID(id))
}

// /users/{id}/feedback, /users/{id}/sessions
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/users/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}

	var handler func(http.ResponseWriter, *http.Request, domain.UserID)
	switch parts[1] {
	case "feedback":
		handler = s.handleListFeedback
	case "sessions":
		handler = s.handleListSessions
	default:
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	handler(w, r, domain.UserID(parts[0]))
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.UserID) == "" {
		badRequest(w, "user_id is required")
		return
	}

	out, err := s.svc.StartSession(r.Context(), conversation.StartSessionInput{
		UserID:    domain.UserID(req.UserID),
		PersonaID: domain.PersonaID(req.PersonaID),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.sessions.Add(out.Session); err != nil {
		writeError(w, r, err)
		return
	}
	s.evictOldSessions(r, out.Session)

	writeJSON(w, http.StatusCreated, toSessionState(out.Session.Snapshot(), out.Warnings))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	session, err := s.sessions.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionState(session.Snapshot(), nil))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	if _, err := s.sessions.Get(id); err != nil {
		writeError(w, r, err)
		return
	}

	s.sessions.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

// evictOldSessions keeps the newest maxSessionsPerUser sessions of a user.
// The session just created always survives.
func (s *Server) evictOldSessions(r *http.Request, keep *conversation.Session) {
	live := s.sessions.ListByUser(keep.UserID, 0)
	if len(live) <= maxSessionsPerUser {
		return
	}

	kept := 1
	for _, sess := range live {
		if sess.ID == keep.ID {
			continue
		}
		if kept < maxSessionsPerUser {
			kept++
			continue
		}
		s.sessions.Remove(sess.ID)
		observability.LoggerFromContext(r.Context()).Info("session evicted",
			"session_id", sess.ID,
			"user_id", keep.UserID,
		)
	}
}

func (s *Server) handleSwitchPersona(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	var req switchPersonaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.PersonaID == "" {
		badRequest(w, "persona_id is required")
		return
	}

	session, err := s.sessions.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	warnings, err := s.svc.SwitchPersona(r.Context(), session, domain.PersonaID(req.PersonaID))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionState(session.Snapshot(), warnings))
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(w, "text is required")
		return
	}

	session, err := s.sessions.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ex, err := s.svc.SendMessage(r.Context(), session, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSendMessageResponse(ex))
}

func (s *Server) handleSendVoice(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	session, err := s.sessions.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		badRequest(w, "invalid multipart body")
		return
	}

	file, hdr, err := r.FormFile("audio")
	if err != nil {
		badRequest(w, "audio file is required")
		return
	}
	defer file.Close()

	ex, err := s.svc.SendVoice(r.Context(), session, domain.AudioInput{
		Filename: hdr.Filename,
		Data:     file,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSendMessageResponse(ex))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request, userID domain.UserID) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	live := s.sessions.ListByUser(userID, limit)
	out := sessionListResponse{Sessions: make([]sessionResponse, 0, len(live))}
	for _, session := range live {
		out.Sessions = append(out.Sessions, toSessionResponse(session.Snapshot()))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request, userID domain.UserID) {
	q := r.URL.Query()

	personaID := domain.PersonaID(q.Get("persona"))
	if personaID == "" {
		personaID = s.svc.Personas().Default().ID
	}

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	entries, err := s.feedback.Recent(r.Context(), userID, personaID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]feedbackResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, feedbackResponse{
			ID:        string(e.ID),
			PersonaID: string(e.PersonaID),
			UserText:  e.UserText,
			Critique:  e.Critique,
			Fallback:  e.Fallback,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedback": out})
}

// ─────────────────────────────────────────────
// Conversation Helpers
// ─────────────────────────────────────────────

func toPersonaResponse(p domain.Persona) personaResponse {
	return personaResponse{
		ID:           string(p.ID),
		Name:         p.DisplayName,
		Style:        p.Style,
		WinCondition: p.WinCondition,
		Voice:        p.Voice,
		Placeholder:  p.Placeholder,
	}
}

func toMessageResponse(t domain.Turn) messageResponse {
	return messageResponse{
		Role:      string(t.Role),
		Text:      t.Text,
		Timestamp: t.Timestamp,
	}
}

func toSessionResponse(snap conversation.Snapshot) sessionResponse {
	return sessionResponse{
		ID:        string(snap.ID),
		UserID:    string(snap.UserID),
		Persona:   toPersonaResponse(snap.Persona),
		CreatedAt: snap.CreatedAt,
		UpdatedAt: snap.UpdatedAt,
	}
}

func toSessionState(snap conversation.Snapshot, warnings []domain.Warning) sessionStateResponse {
	msgs := make([]messageResponse, 0, len(snap.Turns))
	for _, t := range snap.Turns {
		msgs = append(msgs, toMessageResponse(t))
	}

	return sessionStateResponse{
		Session:  toSessionResponse(snap),
		Messages: msgs,
		Warnings: warnings,
	}
}

func toSendMessageResponse(ex *conversation.Exchange) sendMessageResponse {
	return sendMessageResponse{
		UserMessage:      toMessageResponse(ex.UserTurn),
		AssistantMessage: toMessageResponse(ex.AssistantTurn),
		Critique: critiqueResponse{
			Text:     ex.Critique.Text,
			Fallback: ex.Critique.Fallback,
		},
		Transcript: ex.Transcript,
		Audio:      ex.Audio,
		Warnings:   ex.Warnings,
	}
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ce *domain.CompletionError

	switch {
	case errors.As(err, &ce):
		writeJSON(w, http.StatusBadGateway, completionErrorResponse{
			Error:       "completion call failed",
			Detail:      ce.Err.Error(),
			PendingText: ce.Pending,
		})
	case errors.Is(err, domain.ErrTranscriptionFailed):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    "transcription failed",
			"warnings": []domain.Warning{domain.NewWarning(domain.WarnTranscription, err)},
		})
	case errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
	case errors.Is(err, domain.ErrPersonaNotFound):
		badRequest(w, err.Error())
	case errors.Is(err, domain.ErrEmptyTurn):
		badRequest(w, "text is required")
	default:
		internalError(w, r, err)
	}
}

// parseLimit reads the optional non-negative ?limit= query value; 0 means
// no limit. It writes a 400 and returns false when the value is invalid.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(w, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context()).Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
