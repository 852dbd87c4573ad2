package conversation

import (
	"fmt"

	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

// Delimiter separates the persona reply from the coach critique in the
// model output. The instruction template and ParseResponse both depend on it.
const Delimiter = "|||"

const (
	DefaultWordLimit        = 50
	DefaultCritiqueLanguage = "Traditional Chinese"
	DefaultTemperature      = 1.3
)

const systemTemplate = `You are '%s'.
Your style: %s
Task: Engage in small talk for networking. Stay in character at all times.
The user wins when: %s
Constraints:
1. Keep responses under %d words.
2. CRITICAL: After your response, output exactly "%s" followed by a critique in %s.
3. Critique Format: [Score 0-10] - [One sentence critique] - [One sentence improvement]
`

// PromptOptions are the knobs of the instruction template and the request.
type PromptOptions struct {
	WordLimit        int
	CritiqueLanguage string
	Temperature      float32
}

func DefaultPromptOptions() PromptOptions {
	return PromptOptions{
		WordLimit:        DefaultWordLimit,
		CritiqueLanguage: DefaultCritiqueLanguage,
		Temperature:      DefaultTemperature,
	}
}

func (o PromptOptions) withDefaults() PromptOptions {
	if o.WordLimit <= 0 {
		o.WordLimit = DefaultWordLimit
	}
	if o.CritiqueLanguage == "" {
		o.CritiqueLanguage = DefaultCritiqueLanguage
	}
	return o
}

// SystemInstruction renders the persona instruction. Same inputs always
// produce the same text.
func SystemInstruction(p domain.Persona, opts PromptOptions) string {
	opts = opts.withDefaults()
	return fmt.Sprintf(systemTemplate,
		p.DisplayName,
		p.Style,
		p.WinCondition,
		opts.WordLimit,
		Delimiter,
		opts.CritiqueLanguage,
	)
}

// AssembleTurn builds the full request for one user turn: the system
// instruction, every stored turn in order, then the new user text. History is
// sent whole, never truncated.
func AssembleTurn(p domain.Persona, history []domain.Turn, userText string, opts PromptOptions) domain.CompletionRequest {
	msgs := make([]domain.ChatMessage, 0, len(history)+2)
	msgs = append(msgs, domain.ChatMessage{
		Role:    domain.RoleSystem,
		Content: SystemInstruction(p, opts),
	})

	for _, t := range history {
		msgs = append(msgs, domain.ChatMessage{Role: t.Role, Content: t.Text})
	}

	msgs = append(msgs, domain.ChatMessage{Role: domain.RoleUser, Content: userText})

	return domain.CompletionRequest{
		Messages:    msgs,
		Temperature: opts.Temperature,
	}
}
