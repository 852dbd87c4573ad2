package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

// MockLLM answers every turn with a canned reply and critique. Useful for
// local runs without an API key.
type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) Complete(_ context.Context, req domain.CompletionRequest) (string, error) {
	last := req.Messages[len(req.Messages)-1].Content
	return fmt.Sprintf("Interesting. You said %q. Tell me more about what you do. ||| 6 - 開場自然但略顯平淡 - 試著提出一個開放式問題", last), nil
}

// ScriptedLLM replays fixed responses in order and records every request.
// A response with a non-nil Err fails that call.
type ScriptedLLM struct {
	mu        sync.Mutex
	responses []ScriptedResponse
	Requests  []domain.CompletionRequest
}

type ScriptedResponse struct {
	Text string
	Err  error
}

func NewScriptedLLM(responses ...ScriptedResponse) *ScriptedLLM {
	return &ScriptedLLM{responses: responses}
}

func (s *ScriptedLLM) Complete(_ context.Context, req domain.CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Requests = append(s.Requests, req)
	if len(s.responses) == 0 {
		return "", fmt.Errorf("scripted llm: no responses left")
	}

	next := s.responses[0]
	s.responses = s.responses[1:]
	return next.Text, next.Err
}
