package persona

import (
	"errors"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

// fileSchema is the on-disk shape of a personas file:
//
//	[[persona]]
//	id = "gordon"
//	name = "Gordon"
//	style = "..."
//	win_condition = "..."
//	voice = "onyx"
type fileSchema struct {
	Personas []personaSchema `toml:"persona"`
}

type personaSchema struct {
	ID           string `toml:"id"`
	Name         string `toml:"name"`
	Style        string `toml:"style"`
	WinCondition string `toml:"win_condition"`
	Voice        string `toml:"voice"`
	Placeholder  string `toml:"placeholder"`
}

// LoadFile reads extra personas from a TOML file and merges them over the
// built-in table. An empty path returns the built-in catalog.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Builtin(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("personas file %s does not exist", path)
		}
		return nil, fmt.Errorf("read personas file: %w", err)
	}

	return Parse(data)
}

// Parse decodes a personas TOML document.
func Parse(data []byte) (*Catalog, error) {
	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode personas file: %w", err)
	}

	extra := make([]domain.Persona, 0, len(file.Personas))
	for _, p := range file.Personas {
		extra = append(extra, domain.Persona{
			ID:           domain.PersonaID(p.ID),
			DisplayName:  p.Name,
			Style:        p.Style,
			WinCondition: p.WinCondition,
			Voice:        p.Voice,
			Placeholder:  p.Placeholder,
		})
	}

	return NewCatalog(extra...)
}
