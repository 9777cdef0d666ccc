package dice

import (
	"errors"
	"fmt"
)

// advantageSides is the only die size advantage and disadvantage apply to.
const advantageSides = 20

// fudgeFaces maps raw fudge draws 1, 2, 3 to their face values. The term
// sign does not change the face.
var fudgeFaces = [fudgeSides]int{-1, 0, 1}

// drawer resolves single dice for one roll request and owns its discard pile.
type drawer struct {
	src       Source
	rollType  RollType
	discarded []int
}

// face draws one raw value in [1, sides].
//
// Postcondition: any source failure or out-of-range value is reported as
// ErrSourceExhausted.
func (d *drawer) face(sides int) (int, error) {
	v, err := d.src.Generate(1, sides+1)
	if err != nil {
		if errors.Is(err, ErrSourceExhausted) {
			return 0, fmt.Errorf("rolling d%d: %w", sides, err)
		}
		return 0, fmt.Errorf("rolling d%d: %w: %w", sides, ErrSourceExhausted, err)
	}
	if v < 1 || v > sides {
		return 0, fmt.Errorf("rolling d%d: value %d out of range: %w", sides, v, ErrSourceExhausted)
	}
	return v, nil
}

// draw returns the kept face of one logical die. For a d20 under advantage or
// disadvantage a second face is drawn and the losing face is discarded.
func (d *drawer) draw(sides int) (int, error) {
	kept, err := d.face(sides)
	if err != nil {
		return 0, err
	}
	if sides != advantageSides || (d.rollType != Advantage && d.rollType != Disadvantage) {
		return kept, nil
	}

	second, err := d.face(sides)
	if err != nil {
		return 0, err
	}
	swap := second > kept
	if d.rollType == Disadvantage {
		swap = second < kept
	}
	if swap {
		d.discarded = append(d.discarded, kept)
		return second, nil
	}
	d.discarded = append(d.discarded, second)
	return kept, nil
}

// BuildBucket tokenizes request and rolls every die term with src.
//
// Precondition: rollType is not ShowUsage.
// Postcondition: returns a fresh Bucket and discard pile owned by the caller,
// or an error wrapping ErrSourceExhausted.
func BuildBucket(request string, rollType RollType, src Source) (*Bucket, []int, error) {
	bucket := NewBucket()
	d := &drawer{src: src, rollType: rollType}

	for _, term := range Tokenize(request) {
		switch term.Kind {
		case TermModifier:
			bucket.Add(ModifierKey, term.Value)
		case TermDie:
			key := Key{Sides: term.Sides}
			for i := 0; i < term.Count; i++ {
				v, err := d.draw(term.Sides)
				if err != nil {
					return nil, nil, err
				}
				bucket.Add(key, term.Sign*v)
			}
		case TermFudge:
			key := Key{Sides: fudgeSides, Fudge: true}
			for i := 0; i < term.Count; i++ {
				raw, err := d.draw(fudgeSides)
				if err != nil {
					return nil, nil, err
				}
				bucket.Add(key, fudgeFaces[raw-1])
			}
		}
	}
	return bucket, d.discarded, nil
}
