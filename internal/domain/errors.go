package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCredentialMissing   = errors.New("credential missing")
	ErrCompletionFailed    = errors.New("completion call failed")
	ErrEmptyCompletion     = errors.New("completion returned empty text")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrPersonaNotFound     = errors.New("persona not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrEmptyTurn           = errors.New("turn text is empty")
)

// CompletionError is returned when the completion call fails. The user's
// text was not recorded; Pending carries it so a surface can offer it again.
type CompletionError struct {
	Pending string
	Err     error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("%s: %v", ErrCompletionFailed, e.Err)
}

func (e *CompletionError) Unwrap() []error {
	return []error{ErrCompletionFailed, e.Err}
}

type WarningKind string

const (
	WarnStoreLoad     WarningKind = "store_load"
	WarnStoreAppend   WarningKind = "store_append"
	WarnFeedback      WarningKind = "feedback"
	WarnSynthesis     WarningKind = "synthesis"
	WarnTranscription WarningKind = "transcription"
	WarnHistoryRepair WarningKind = "history_repair"
)

// Warning reports a non-fatal failure; orchestration continued in degraded mode.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

func NewWarning(kind WarningKind, err error) Warning {
	return Warning{Kind: kind, Message: err.Error()}
}
