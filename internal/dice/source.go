package dice

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
	"sync"
)

// ErrSourceExhausted is returned when a Source cannot produce a value in the
// requested range.
var ErrSourceExhausted = errors.New("dice: source exhausted")

// Source is the randomness provider for dice rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Generate returns a uniformly distributed int in [min, maxExclusive).
	//
	// Precondition: min < maxExclusive.
	Generate(min, maxExclusive int) (int, error)
}

// cryptoSource implements Source using crypto/rand.
//
// Invariant: all values produced are uniformly distributed in the requested range.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Generate returns a cryptographically secure int in [min, maxExclusive).
//
// Postcondition: returns ErrSourceExhausted (wrapped) when the range is empty
// or crypto/rand fails.
func (c *cryptoSource) Generate(min, maxExclusive int) (int, error) {
	if maxExclusive <= min {
		return 0, fmt.Errorf("empty range [%d, %d): %w", min, maxExclusive, ErrSourceExhausted)
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(maxExclusive-min)))
	if err != nil {
		return 0, fmt.Errorf("crypto/rand failure: %v: %w", err, ErrSourceExhausted)
	}
	return min + int(val.Int64()), nil
}

// seededSource is a reproducible Source for replaying rolls.
type seededSource struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeededSource returns a deterministic Source. Two sources built from the
// same seed produce the same sequence of values for the same calls.
func NewSeededSource(seed uint64) Source {
	return &seededSource{rng: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Generate returns the next seeded value in [min, maxExclusive).
func (s *seededSource) Generate(min, maxExclusive int) (int, error) {
	if maxExclusive <= min {
		return 0, fmt.Errorf("empty range [%d, %d): %w", min, maxExclusive, ErrSourceExhausted)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + s.rng.IntN(maxExclusive-min), nil
}

// SequenceSource replays a fixed queue of values. It ignores the requested
// range; the roller rejects out-of-range values itself.
type SequenceSource struct {
	mu     sync.Mutex
	values []int
}

// NewSequenceSource returns a SequenceSource that yields values in order.
func NewSequenceSource(values ...int) *SequenceSource {
	queued := make([]int, len(values))
	copy(queued, values)
	return &SequenceSource{values: queued}
}

// Generate pops the next queued value.
//
// Postcondition: returns ErrSourceExhausted once the queue is empty.
func (s *SequenceSource) Generate(_, _ int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0, ErrSourceExhausted
	}
	v := s.values[0]
	s.values = s.values[1:]
	return v, nil
}

// Remaining reports how many queued values have not been consumed.
func (s *SequenceSource) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

// NewSource builds the named Source: "crypto" or "seeded".
func NewSource(name string, seed uint64) (Source, error) {
	switch name {
	case "crypto", "":
		return NewCryptoSource(), nil
	case "seeded":
		return NewSeededSource(seed), nil
	default:
		return nil, fmt.Errorf("unknown dice source %q", name)
	}
}
