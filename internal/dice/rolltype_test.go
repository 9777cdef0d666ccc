package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/diceroller/internal/dice"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		input string
		want  dice.RollType
	}{
		{"d20+5", dice.Normal},
		{"", dice.Normal},
		{"d20 adv", dice.Advantage},
		{"d20 /ADV", dice.Advantage},
		{"d20 advantage", dice.Advantage},
		{"d20 dis", dice.Disadvantage},
		{"d20\t/dis", dice.Disadvantage},
		{"d20 adv dis", dice.Disadvantage},
		{"d20 dis adv", dice.Disadvantage},
		{"help", dice.ShowUsage},
		{"d20 adv ?", dice.ShowUsage},
		{"d20 HeLp dis", dice.ShowUsage},
		{"d20adv", dice.Normal},
		{"Disarm: d20", dice.Normal},
		{"Attack to disarm: d20", dice.Disadvantage},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dice.Classify(tt.input), "Classify(%q)", tt.input)
	}
}

func TestRollType_String(t *testing.T) {
	assert.Equal(t, "normal", dice.Normal.String())
	assert.Equal(t, "advantage", dice.Advantage.String())
	assert.Equal(t, "disadvantage", dice.Disadvantage.String())
	assert.Equal(t, "usage", dice.ShowUsage.String())
	assert.Equal(t, "unknown", dice.RollType(42).String())
}

// Property: text made only of notation characters never carries a marker.
func TestPropertyClassifyPlainNotationIsNormal(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		input := rapid.StringMatching(`[0-9d+/ -]{0,30}`).Draw(rt, "input")
		assert.Equal(rt, dice.Normal, dice.Classify(input))
	})
}
