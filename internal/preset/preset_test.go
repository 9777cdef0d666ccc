package preset_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/diceroller/internal/preset"
)

func writePresets(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writePresets(t, `
presets:
  - name: Attack
    roll: "Attack: d20 + 5"
    description: longsword to hit
  - name: fireball
    roll: "Fireball: 8d6"
`)
	set, err := preset.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, []string{"Attack", "fireball"}, set.Names())

	p, ok := set.Lookup("  attack ")
	require.True(t, ok)
	assert.Equal(t, "Attack: d20 + 5", p.Roll)
	assert.Equal(t, "longsword to hit", p.Description)
}

func TestLoad_Errors(t *testing.T) {
	_, err := preset.Load("/nonexistent/presets.yaml")
	assert.Error(t, err)

	_, err = preset.Load(writePresets(t, "presets: [this is: not valid"))
	assert.Error(t, err)

	_, err = preset.Load(writePresets(t, `
presets:
  - name: attack
    roll: d20
  - name: ATTACK
    roll: d20+1
`))
	assert.ErrorIs(t, err, preset.ErrDuplicatePreset)

	_, err = preset.Load(writePresets(t, `
presets:
  - name: ""
    roll: d20
`))
	assert.Error(t, err)

	_, err = preset.Load(writePresets(t, `
presets:
  - name: empty
    roll: "  "
`))
	assert.Error(t, err)
}

func TestExpand(t *testing.T) {
	set, err := preset.NewSet([]preset.Preset{
		{Name: "attack", Roll: "Attack: d20 + 5"},
		{Name: "volley", Roll: "Arrow: d8, Arrow: d8"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Attack: d20 + 5,2d6", set.Expand(" Attack ,2d6"))
	assert.Equal(t, "Arrow: d8, Arrow: d8", set.Expand("volley"))
	assert.Equal(t, "attack adv", set.Expand("attack adv"), "only whole segments expand")
}

func TestNilSet(t *testing.T) {
	var set *preset.Set
	assert.Equal(t, 0, set.Len())
	assert.Equal(t, "d20", set.Expand("d20"))
	_, ok := set.Lookup("d20")
	assert.False(t, ok)
	assert.Nil(t, set.Names())
}

// Property: text with no preset names expands to itself.
func TestPropertyExpandIdentityWithoutMatches(t *testing.T) {
	set, err := preset.NewSet([]preset.Preset{{Name: "zzz-preset", Roll: "d4"}})
	require.NoError(t, err)

	rapid.Check(t, func(rt *rapid.T) {
		text := rapid.StringMatching(`[0-9d+ ,-]{0,40}`).Draw(rt, "text")
		assert.Equal(rt, text, set.Expand(text))
	})
}

func TestLoadBundledPresets(t *testing.T) {
	set, err := preset.Load(filepath.Join("..", "..", "configs", "presets.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5, set.Len())
	assert.Equal(t, "Attack: d20 + 5,Damage: 1d8 + 3", set.Expand("attack, damage"))
}
