package dice

import (
	"sort"
	"strconv"
)

// Key identifies a group of rolled values. Sides 0 is reserved for modifiers.
type Key struct {
	Sides int
	Fudge bool
}

// ModifierKey groups plain integer modifiers.
var ModifierKey = Key{}

// Label returns the die name used in output, e.g. "d20" or "dF".
func (k Key) Label() string {
	if k.Fudge {
		return "dF"
	}
	return "d" + strconv.Itoa(k.Sides)
}

// Bucket groups signed rolled values by die type.
//
// Invariant: values under a key keep insertion (roll) order.
type Bucket struct {
	groups map[Key][]int
}

// NewBucket returns an empty Bucket.
func NewBucket() *Bucket {
	return &Bucket{groups: make(map[Key][]int)}
}

// Add appends value under key.
//
// Precondition: key.Sides >= 0.
func (b *Bucket) Add(key Key, value int) {
	b.groups[key] = append(b.groups[key], value)
}

// Values returns the values stored under key in insertion order.
func (b *Bucket) Values(key Key) []int {
	return b.groups[key]
}

// Keys returns every populated key ordered by descending die size. Standard
// dice sort before fudge dice of equal size, so modifiers always come last.
func (b *Bucket) Keys() []Key {
	keys := make([]Key, 0, len(b.groups))
	for k := range b.groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Sides != keys[j].Sides {
			return keys[i].Sides > keys[j].Sides
		}
		return !keys[i].Fudge && keys[j].Fudge
	})
	return keys
}

// Len returns the number of populated keys.
func (b *Bucket) Len() int {
	return len(b.groups)
}

// Total returns the sum of every stored value.
//
// Postcondition: each stored value contributes exactly once.
func (b *Bucket) Total() int {
	total := 0
	for _, values := range b.groups {
		for _, v := range values {
			total += v
		}
	}
	return total
}
