package persona_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
	"github.com/PabloGalante/smalltalk-dojo/internal/persona"
)

func TestBuiltinCatalog(t *testing.T) {
	c := persona.Builtin()

	def := c.Default()
	assert.Equal(t, persona.DefaultID, def.ID)
	assert.Equal(t, "Gordon", def.DisplayName)

	list := c.List()
	require.Len(t, list, 4)
	assert.Equal(t, domain.PersonaID("gordon"), list[0].ID)

	for _, p := range list {
		assert.NotEmpty(t, p.Style, p.ID)
		assert.NotEmpty(t, p.WinCondition, p.ID)
		assert.NotEmpty(t, p.Voice, p.ID)
	}
}

func TestGetUnknownPersona(t *testing.T) {
	_, err := persona.Builtin().Get("nobody")
	require.ErrorIs(t, err, domain.ErrPersonaNotFound)
	assert.Contains(t, err.Error(), "available: ")
	assert.Contains(t, err.Error(), "gordon")
}

func TestParseOverridesAndAdds(t *testing.T) {
	doc := []byte(`
[[persona]]
id = "gordon"
name = "Gordon Jr."
style = "Friendlier than his father."
win_condition = "Get his card."

[[persona]]
id = "ana"
name = "Ana"
style = "A sommelier at a wine tasting."
win_condition = "Get a bottle recommendation."
voice = "coral"
`)

	c, err := persona.Parse(doc)
	require.NoError(t, err)

	gordon, err := c.Get("gordon")
	require.NoError(t, err)
	assert.Equal(t, "Gordon Jr.", gordon.DisplayName)
	assert.Empty(t, gordon.Voice)

	ana, err := c.Get("ana")
	require.NoError(t, err)
	assert.Equal(t, "coral", ana.Voice)

	// overriding keeps the original position
	list := c.List()
	require.Len(t, list, 5)
	assert.Equal(t, domain.PersonaID("gordon"), list[0].ID)
	assert.Equal(t, domain.PersonaID("ana"), list[4].ID)
}

func TestParseRejectsIncompletePersona(t *testing.T) {
	testCases := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "missing id", doc: "[[persona]]\nname = \"X\"", wantErr: "id is required"},
		{name: "missing style", doc: "[[persona]]\nid = \"x\"\nname = \"X\"\nwin_condition = \"w\"", wantErr: "style is required"},
		{name: "missing win", doc: "[[persona]]\nid = \"x\"\nname = \"X\"\nstyle = \"s\"", wantErr: "win_condition is required"},
		{name: "bad toml", doc: "[[persona]\n", wantErr: "decode personas file"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := persona.Parse([]byte(tc.doc))
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadFile(t *testing.T) {
	c, err := persona.LoadFile("")
	require.NoError(t, err)
	assert.Len(t, c.List(), 4)

	_, err = persona.LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "does not exist")

	path := filepath.Join(t.TempDir(), "personas.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[persona]]\nid = \"x\"\nname = \"X\"\nstyle = \"s\"\nwin_condition = \"w\"\n"), 0o600))

	c, err = persona.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"gordon", "kenji", "mei", "olivia", "x"}, c.IDs())
}
