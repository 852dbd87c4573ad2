package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

type styles struct {
	title    lipgloss.Style
	header   lipgloss.Style
	persona  lipgloss.Style
	reply    lipgloss.Style
	critique lipgloss.Style
	warning  lipgloss.Style
	failure  lipgloss.Style
	detail   lipgloss.Style
	empty    lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true),
		header:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		persona: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		reply:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		critique: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("178")).
			Foreground(lipgloss.Color("223")).
			Padding(0, 1),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		failure: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		detail:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		empty:   lipgloss.NewStyle().Faint(true),
	}
}

func (s styles) renderReply(p domain.Persona, text string) string {
	return s.persona.Render(p.DisplayName+":") + " " + s.reply.Render(text)
}

func (s styles) renderCritique(c domain.Critique) string {
	label := "Coach"
	if c.Fallback {
		label = "Coach (no critique)"
	}
	return s.critique.Render(s.title.Render(label) + "\n" + c.Text)
}

func (s styles) renderWarnings(warnings []domain.Warning) string {
	lines := make([]string, 0, len(warnings))
	for _, w := range warnings {
		lines = append(lines, s.warning.Render(fmt.Sprintf("! %s: %s", w.Kind, w.Message)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (s styles) renderError(msg string) string {
	return s.failure.Render("✗ " + msg)
}

func (s styles) renderPersonas(list []domain.Persona, active domain.PersonaID) string {
	lines := []string{s.title.Render("Personas")}
	if len(list) == 0 {
		lines = append(lines, s.empty.Render("No personas configured."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, p := range list {
		marker := "  "
		if p.ID == active {
			marker = "* "
		}
		lines = append(lines,
			marker+s.persona.Render(fmt.Sprintf("%s (%s)", p.DisplayName, p.ID)),
			"    "+s.detail.Render(p.Style),
			"    "+s.header.Render("win: "+p.WinCondition),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (s styles) renderFeedback(entries []*domain.FeedbackEntry) string {
	lines := []string{s.title.Render("Recent feedback")}
	if len(entries) == 0 {
		lines = append(lines, s.empty.Render("No feedback yet."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, e := range entries {
		lines = append(lines,
			s.header.Render(e.CreatedAt.Format("2006-01-02 15:04")+"  "+truncate(e.UserText, 60)),
			"  "+s.reply.Render(e.Critique),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
