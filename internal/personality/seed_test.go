package personality

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/RichardoC/blinky/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingUpserter struct {
	written []models.Personality
}

func (r *recordingUpserter) UpsertPersonality(_ context.Context, p *models.Personality) error {
	p.ID = int64(len(r.written) + 1)
	r.written = append(r.written, *p)
	return nil
}

const seedYAML = `
- name: blinky
  base_prompt: |
    You are Blinky, a friendly assistant. End every answer with a reaction
    such as [HAPPY] or [SAD].
  description: default
- name: pirate
  base_prompt: Talk like a pirate.
`

func TestParseSeed(t *testing.T) {
	list, err := ParseSeed([]byte(seedYAML))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "blinky", list[0].Name)
	assert.Contains(t, list[0].BasePrompt, "[HAPPY]")
	assert.Equal(t, "default", list[0].Description)
	assert.Equal(t, "Talk like a pirate.", list[1].BasePrompt)
}

func TestParseSeedRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"missing name":   "- base_prompt: x\n",
		"missing prompt": "- name: x\n",
		"duplicate":      "- {name: a, base_prompt: x}\n- {name: a, base_prompt: y}\n",
		"not a list":     "name: a\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSeed([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personalities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	store := &recordingUpserter{}
	n, err := SeedFile(context.Background(), path, store)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, store.written, 2)

	_, err = SeedFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), store)
	assert.Error(t, err)
}
