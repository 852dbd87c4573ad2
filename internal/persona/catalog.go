// Package persona holds the fixed table of conversation partners.
package persona

import (
	"fmt"
	"sort"
	"strings"

	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

const DefaultID domain.PersonaID = "gordon"

var builtin = []domain.Persona{
	{
		ID:           "gordon",
		DisplayName:  "Gordon",
		Style:        "A seasoned venture capitalist. Direct, professional, slightly impatient but helpful.",
		WinCondition: "Get Gordon curious enough about you to offer a follow-up coffee meeting.",
		Voice:        "onyx",
		Placeholder:  "向 Gordon 介紹你自己...",
	},
	{
		ID:           "mei",
		DisplayName:  "Mei",
		Style:        "An HR director at a conference mixer. Warm and polite, but guarded about her company's hiring plans.",
		WinCondition: "Find a shared interest and get Mei to mention an open role on her team.",
		Voice:        "nova",
		Placeholder:  "和 Mei 打個招呼...",
	},
	{
		ID:           "kenji",
		DisplayName:  "Kenji",
		Style:        "A procurement manager walking a trade show floor. Skeptical, precise, dislikes sales pitches.",
		WinCondition: "Keep Kenji talking for five exchanges without pitching, and learn his biggest supplier headache.",
		Voice:        "echo",
		Placeholder:  "在展位前叫住 Kenji...",
	},
	{
		ID:           "olivia",
		DisplayName:  "Olivia",
		Style:        "A startup founder sharing an elevator ride. Busy, energetic, checks her phone constantly.",
		WinCondition: "Make Olivia put her phone away and ask for your contact details before the doors open.",
		Voice:        "shimmer",
		Placeholder:  "電梯門剛關上，開口吧...",
	},
}

// Catalog is the immutable set of personas available to sessions.
type Catalog struct {
	byID  map[domain.PersonaID]domain.Persona
	order []domain.PersonaID
	def   domain.PersonaID
}

// NewCatalog builds a catalog from the built-in table plus extra entries.
// Extra entries with an existing id replace the built-in one.
func NewCatalog(extra ...domain.Persona) (*Catalog, error) {
	c := &Catalog{
		byID: make(map[domain.PersonaID]domain.Persona),
		def:  DefaultID,
	}

	for _, p := range builtin {
		c.add(p)
	}
	for _, p := range extra {
		if err := validate(p); err != nil {
			return nil, err
		}
		c.add(p)
	}

	return c, nil
}

// Builtin returns a catalog with only the built-in personas.
func Builtin() *Catalog {
	c, err := NewCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) add(p domain.Persona) {
	if _, exists := c.byID[p.ID]; !exists {
		c.order = append(c.order, p.ID)
	}
	c.byID[p.ID] = p
}

// Get returns the persona with the given id.
func (c *Catalog) Get(id domain.PersonaID) (domain.Persona, error) {
	p, ok := c.byID[id]
	if !ok {
		return domain.Persona{}, fmt.Errorf("%w: %q (available: %s)", domain.ErrPersonaNotFound, id, strings.Join(c.IDs(), ", "))
	}
	return p, nil
}

// List returns personas in table order.
func (c *Catalog) List() []domain.Persona {
	out := make([]domain.Persona, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// IDs returns the sorted persona ids.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.order))
	for _, id := range c.order {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	return ids
}

func (c *Catalog) Default() domain.Persona {
	return c.byID[c.def]
}

func validate(p domain.Persona) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("persona: id is required")
	case p.DisplayName == "":
		return fmt.Errorf("persona %q: name is required", p.ID)
	case p.Style == "":
		return fmt.Errorf("persona %q: style is required", p.ID)
	case p.WinCondition == "":
		return fmt.Errorf("persona %q: win_condition is required", p.ID)
	}
	return nil
}
