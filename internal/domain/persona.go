package domain

// Persona is a simulated counterpart the user practises small talk with.
type Persona struct {
	ID           PersonaID `json:"id"`
	DisplayName  string    `json:"name"`
	Style        string    `json:"style"`                 // behavioural style, e.g. "Direct, professional, slightly impatient"
	WinCondition string    `json:"win_condition"`         // what the user has to achieve for the conversation to count as a success
	Voice        string    `json:"voice,omitempty"`       // optional speech-synthesis voice
	Placeholder  string    `json:"placeholder,omitempty"` // optional input hint shown by chat surfaces
}
