package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/diceroller/internal/events"
	"github.com/cory-johannsen/diceroller/internal/roller"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRollSeededIsReproducible(t *testing.T) {
	first, err := execute(t, "roll", "--seed", "42", "Attack:", "d20", "+5,", "Damage:", "2d10")
	require.NoError(t, err)
	second, err := execute(t, "roll", "--seed", "42", "Attack: d20 +5, Damage: 2d10")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	lines := strings.Split(strings.TrimSpace(first), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Attack:")
	assert.Contains(t, lines[0], "Mod: (*+5*)")
	assert.Contains(t, lines[1], "Damage:")
}

func TestRollWithoutArgsShowsUsage(t *testing.T) {
	out, err := execute(t, "roll")
	require.NoError(t, err)
	assert.Contains(t, out, "/roll [label]: [diceType(s)] +/- [modifier] [adv|dis]")
}

func TestRollWithPresets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("presets:\n  - name: fireball\n    roll: \"Fireball: 8d6\"\n"), 0o644))

	out, err := execute(t, "roll", "--seed", "1", "--presets", path, "fireball")
	require.NoError(t, err)
	assert.Contains(t, out, "Fireball:")
	assert.Contains(t, out, "8d6:")
}

func TestRollMissingPresetsFile(t *testing.T) {
	_, err := execute(t, "roll", "--presets", "/nonexistent/presets.yaml", "d20")
	assert.Error(t, err)
}

func TestHistoryRequiresUser(t *testing.T) {
	_, err := execute(t, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--user")
}

func TestWriteHistory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHistory(&buf, nil))
	assert.Equal(t, "no rolls recorded\n", buf.String())

	buf.Reset()
	at := time.Date(2026, 10, 18, 9, 30, 0, 0, time.Local)
	require.NoError(t, writeHistory(&buf, []roller.Record{
		{Frontend: "slack", RollType: "advantage", Total: 23, Line: "Attack: *23*", CreatedAt: at},
		{Frontend: "cli", Line: "Total: roll failed: dice: source exhausted", Failed: true, CreatedAt: at},
	}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "TIME"))
	assert.Contains(t, lines[1], "2026-10-18 09:30:00")
	assert.Contains(t, lines[1], "advantage")
	assert.Contains(t, lines[1], "23")
	assert.Contains(t, lines[2], "-")
}

func TestWatchRequiresNATS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dice.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nats:\n  enabled: false\n"), 0644))

	_, err := execute(t, "watch", "--config", path)
	assert.ErrorContains(t, err, "nats is not enabled")
}

func TestWriteEvent(t *testing.T) {
	var out bytes.Buffer
	at := time.Date(2026, 10, 18, 9, 30, 5, 0, time.Local)
	writeEvent(&out, events.RollEvent{Frontend: "discord", UserID: "u42", Line: "Total: *7*", CreatedAt: at})
	writeEvent(&out, events.RollEvent{Frontend: "cli", Line: "Total: *3*", CreatedAt: at})

	assert.Equal(t, "09:30:05 discord  u42: Total: *7*\n09:30:05 cli      -: Total: *3*\n", out.String())
}
