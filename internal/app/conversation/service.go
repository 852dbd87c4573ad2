package conversation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
	"github.com/PabloGalante/smalltalk-dojo/internal/observability"
	"github.com/PabloGalante/smalltalk-dojo/internal/persona"
)

// Collaborators are the optional external services. A nil field means the
// concern is not configured and the service runs without it.
type Collaborators struct {
	Store       domain.TranscriptStore
	Feedback    domain.FeedbackStore
	Transcriber domain.Transcriber
	Synthesizer domain.SpeechSynthesizer
	Sink        domain.AudioSink
}

// Service is the conversation orchestrator: it assembles the model request,
// calls the completion client, parses the payload and keeps history.
type Service struct {
	llm      domain.CompletionClient
	personas *persona.Catalog
	collab   Collaborators
	prompt   PromptOptions
	now      func() time.Time
}

func NewService(
	llm domain.CompletionClient,
	personas *persona.Catalog,
	collab Collaborators,
	prompt PromptOptions,
) *Service {
	if personas == nil {
		personas = persona.Builtin()
	}

	return &Service{
		llm:      llm,
		personas: personas,
		collab:   collab,
		prompt:   prompt.withDefaults(),
		now:      time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Personas() *persona.Catalog {
	return s.personas
}

type StartSessionInput struct {
	UserID    domain.UserID
	PersonaID domain.PersonaID // empty selects the default persona
}

type StartSessionOutput struct {
	Session  *Session
	Warnings []domain.Warning
}

// StartSession creates a session for the user and loads the stored
// conversation with the selected persona, if a store is configured.
func (s *Service) StartSession(ctx context.Context, in StartSessionInput) (*StartSessionOutput, error) {
	log := observability.LoggerFromContext(ctx).With(
		"user_id", in.UserID,
		"persona_id", in.PersonaID,
	)
	log.Info("starting new session")

	if strings.TrimSpace(string(in.UserID)) == "" {
		return nil, errors.New("user id is required")
	}

	p := s.personas.Default()
	if in.PersonaID != "" {
		var err error
		p, err = s.personas.Get(in.PersonaID)
		if err != nil {
			return nil, err
		}
	}

	session := NewSession(domain.SessionID(uuid.NewString()), in.UserID, p, s.now())

	conv, warnings := s.loadConversation(ctx, session.conversation.Key)
	session.conversation = conv

	log.Info("session started", "session_id", session.ID, "turns", conv.Len(), "warnings", len(warnings))

	return &StartSessionOutput{
		Session:  session,
		Warnings: warnings,
	}, nil
}

// SwitchPersona discards the in-memory conversation and loads the one for
// the new (user, persona) pair. Nothing is cached across switches.
func (s *Service) SwitchPersona(ctx context.Context, session *Session, id domain.PersonaID) ([]domain.Warning, error) {
	p, err := s.personas.Get(id)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	log := observability.LoggerFromContext(ctx).With(
		"session_id", session.ID,
		"user_id", session.UserID,
		"from", session.persona.ID,
		"to", p.ID,
	)
	log.Info("switching persona")

	key := domain.SessionKey{UserID: session.UserID, PersonaID: p.ID}
	conv, warnings := s.loadConversation(ctx, key)

	session.persona = p
	session.conversation = conv
	session.updatedAt = s.now()

	return warnings, nil
}

// Exchange is the result of one successful submission.
type Exchange struct {
	UserTurn      domain.Turn
	AssistantTurn domain.Turn
	Critique      domain.Critique

	// Transcript is the recognised text for voice submissions
	Transcript string

	// Audio holds the synthesized reply when speech is configured
	Audio []byte

	Warnings []domain.Warning
}

// SendMessage runs one turn. A completion failure returns a
// *domain.CompletionError and leaves the conversation untouched; store,
// feedback and speech failures are reported as warnings on the Exchange.
func (s *Service) SendMessage(ctx context.Context, session *Session, text string) (*Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyTurn
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	p := session.persona
	log := observability.LoggerFromContext(ctx).With(
		"session_id", session.ID,
		"user_id", session.UserID,
		"persona_id", p.ID,
	)
	log.Info("sending message", "history_turns", session.conversation.Len())

	submittedAt := s.now()
	req := AssembleTurn(p, session.conversation.Turns(), text, s.prompt)

	start := time.Now()
	raw, err := s.llm.Complete(ctx, req)
	if err != nil {
		log.Error("completion failed", "error", err)
		return nil, &domain.CompletionError{Pending: text, Err: err}
	}
	log.Info("completion received", "elapsed_ms", time.Since(start).Milliseconds())

	reply, critique := ParseResponse(raw)
	if critique.Fallback {
		log.Warn("model payload has no critique delimiter")
	}

	userTurn := domain.Turn{Role: domain.RoleUser, Text: text, Timestamp: submittedAt}
	assistantTurn := domain.Turn{Role: domain.RoleAssistant, Text: reply, Timestamp: s.now()}

	if err := session.conversation.AppendExchange(userTurn, assistantTurn); err != nil {
		return nil, err
	}
	session.updatedAt = assistantTurn.Timestamp

	ex := &Exchange{
		UserTurn:      userTurn,
		AssistantTurn: assistantTurn,
		Critique:      critique,
	}

	key := session.conversation.Key
	ex.Warnings = append(ex.Warnings, s.persistExchange(ctx, key, userTurn, assistantTurn)...)
	ex.Warnings = append(ex.Warnings, s.recordFeedback(ctx, key, text, critique)...)

	audio, warnings := s.speak(ctx, p, reply)
	ex.Audio = audio
	ex.Warnings = append(ex.Warnings, warnings...)

	for _, w := range ex.Warnings {
		log.Warn("degraded exchange", "kind", w.Kind, "message", w.Message)
	}
	log.Info("send message completed")

	return ex, nil
}

// SendVoice transcribes recorded speech and submits it as a turn. A
// transcription failure wraps domain.ErrTranscriptionFailed and leaves the
// session untouched.
func (s *Service) SendVoice(ctx context.Context, session *Session, in domain.AudioInput) (*Exchange, error) {
	if s.collab.Transcriber == nil {
		return nil, fmt.Errorf("%w: transcription is not configured", domain.ErrTranscriptionFailed)
	}

	text, err := s.collab.Transcriber.Transcribe(ctx, in)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("transcription failed",
			"session_id", session.ID,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrTranscriptionFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no speech recognised", domain.ErrTranscriptionFailed)
	}

	ex, err := s.SendMessage(ctx, session, text)
	if err != nil {
		return nil, err
	}
	ex.Transcript = text
	return ex, nil
}

// SpeechEnabled reports whether replies are synthesized.
func (s *Service) SpeechEnabled() bool {
	return s.collab.Synthesizer != nil
}

// VoiceEnabled reports whether voice submissions are accepted.
func (s *Service) VoiceEnabled() bool {
	return s.collab.Transcriber != nil
}

func (s *Service) loadConversation(ctx context.Context, key domain.SessionKey) (*domain.Conversation, []domain.Warning) {
	if s.collab.Store == nil {
		return domain.NewConversation(key), nil
	}

	log := observability.LoggerFromContext(ctx).With("key", key.String())

	rows, err := s.collab.Store.QueryByKey(ctx, key)
	if err != nil {
		log.Warn("failed to load history, starting empty", "error", err)
		return domain.NewConversation(key), []domain.Warning{
			domain.NewWarning(domain.WarnStoreLoad, err),
		}
	}

	turns := make([]domain.Turn, 0, len(rows))
	for _, r := range rows {
		turns = append(turns, domain.Turn{Role: r.Role, Text: r.Content, Timestamp: r.Timestamp})
	}

	conv, dropped := domain.RestoreConversation(key, turns)
	log.Info("history loaded", "rows", len(rows), "turns", conv.Len())

	if dropped > 0 {
		return conv, []domain.Warning{{
			Kind:    domain.WarnHistoryRepair,
			Message: fmt.Sprintf("dropped %d unpaired stored turns", dropped),
		}}
	}
	return conv, nil
}

// persistExchange mirrors both turns to the durable store. The assistant row
// is skipped when the user row fails so the store never holds a reply
// without its prompt.
func (s *Service) persistExchange(ctx context.Context, key domain.SessionKey, turns ...domain.Turn) []domain.Warning {
	if s.collab.Store == nil {
		return nil
	}

	for _, t := range turns {
		row := domain.TranscriptRow{
			UserID:    key.UserID,
			PersonaID: key.PersonaID,
			Role:      t.Role,
			Content:   t.Text,
			Timestamp: t.Timestamp,
		}
		if err := s.collab.Store.AppendRow(ctx, row); err != nil {
			return []domain.Warning{domain.NewWarning(domain.WarnStoreAppend, err)}
		}
	}
	return nil
}

func (s *Service) recordFeedback(ctx context.Context, key domain.SessionKey, userText string, c domain.Critique) []domain.Warning {
	if s.collab.Feedback == nil {
		return nil
	}

	entry := &domain.FeedbackEntry{
		ID:        domain.FeedbackID(uuid.NewString()),
		UserID:    key.UserID,
		PersonaID: key.PersonaID,
		UserText:  userText,
		Critique:  c.Text,
		Fallback:  c.Fallback,
		CreatedAt: s.now(),
	}

	if err := s.collab.Feedback.AppendFeedback(ctx, entry); err != nil {
		return []domain.Warning{domain.NewWarning(domain.WarnFeedback, err)}
	}
	return nil
}

func (s *Service) speak(ctx context.Context, p domain.Persona, reply string) ([]byte, []domain.Warning) {
	if s.collab.Synthesizer == nil || reply == "" {
		return nil, nil
	}

	stream, err := s.collab.Synthesizer.Synthesize(ctx, reply, p.Voice)
	if err != nil {
		return nil, []domain.Warning{domain.NewWarning(domain.WarnSynthesis, err)}
	}
	defer stream.Close()

	audio, err := io.ReadAll(stream)
	if err != nil {
		return nil, []domain.Warning{domain.NewWarning(domain.WarnSynthesis, fmt.Errorf("read audio: %w", err))}
	}

	if s.collab.Sink != nil {
		if err := s.collab.Sink.Play(ctx, p.ID, bytes.NewReader(audio)); err != nil {
			return audio, []domain.Warning{domain.NewWarning(domain.WarnSynthesis, fmt.Errorf("play audio: %w", err))}
		}
	}

	return audio, nil
}
