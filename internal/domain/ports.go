package domain

import (
	"context"
	"io"
)

// ChatMessage is one entry of the message list sent to a completion model.
type ChatMessage struct {
	Role    Role
	Content string
}

// CompletionRequest is everything a completion model needs for one turn.
// Messages[0] is always the system instruction.
type CompletionRequest struct {
	Messages    []ChatMessage
	Temperature float32
}

// System returns the synthetic instruction at the head of the message list.
func (r CompletionRequest) System() string {
	if len(r.Messages) == 0 || r.Messages[0].Role != RoleSystem {
		return ""
	}
	return r.Messages[0].Content
}

// CompletionClient defines how the core application talks to a hosted chat model.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// AudioInput is a recorded user utterance.
type AudioInput struct {
	Filename string // used by providers to sniff the format, e.g. "turn.webm"
	Data     io.Reader
}

// Transcriber turns recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, in AudioInput) (string, error)
}

// SpeechSynthesizer turns reply text into audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (io.ReadCloser, error)
}

// AudioSink consumes synthesized audio (a file, a buffer, a player).
type AudioSink interface {
	Play(ctx context.Context, persona PersonaID, audio io.Reader) error
}

// TranscriptRow is one persisted turn.
type TranscriptRow struct {
	UserID    UserID
	PersonaID PersonaID
	Role      Role
	Content   string
	Timestamp Timestamp
}

// TranscriptStore is the durable mirror of conversations. It is append-only;
// QueryByKey returns rows for exactly one key in stored order.
type TranscriptStore interface {
	AppendRow(ctx context.Context, row TranscriptRow) error
	QueryByKey(ctx context.Context, key SessionKey) ([]TranscriptRow, error)
}
