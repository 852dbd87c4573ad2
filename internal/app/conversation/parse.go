package conversation

import (
	"strings"

	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

// ParseResponse splits a model payload at the first Delimiter into the
// persona reply and the critique. Without a delimiter the whole payload is
// the reply and the critique falls back to domain.FallbackCritique.
func ParseResponse(payload string) (string, domain.Critique) {
	reply, critique, found := strings.Cut(payload, Delimiter)
	if !found {
		return strings.TrimSpace(payload), domain.Critique{
			Text:     domain.FallbackCritique,
			Fallback: true,
		}
	}

	return strings.TrimSpace(reply), domain.Critique{Text: strings.TrimSpace(critique)}
}
