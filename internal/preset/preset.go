// Package preset loads named roll presets from YAML and expands them in roll text.
package preset

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrDuplicatePreset is returned when two presets share a name.
var ErrDuplicatePreset = errors.New("duplicate preset")

// Preset maps a short name to roll notation.
//
// Precondition: Name and Roll must be non-empty after loading.
type Preset struct {
	Name        string `yaml:"name"`
	Roll        string `yaml:"roll"`
	Description string `yaml:"description"`
}

type file struct {
	Presets []Preset `yaml:"presets"`
}

// Set is an immutable collection of presets keyed by lower-cased name.
// It is safe for concurrent use.
type Set struct {
	byName map[string]Preset
}

// NewSet builds a Set from presets.
//
// Postcondition: Returns ErrDuplicatePreset (wrapped) for case-insensitive
// name collisions, or an error for empty names or rolls.
func NewSet(presets []Preset) (*Set, error) {
	s := &Set{byName: make(map[string]Preset, len(presets))}
	for i, p := range presets {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			return nil, fmt.Errorf("preset %d: name must not be empty", i)
		}
		if strings.ContainsRune(name, ',') {
			return nil, fmt.Errorf("preset %q: name must not contain a comma", p.Name)
		}
		if strings.TrimSpace(p.Roll) == "" {
			return nil, fmt.Errorf("preset %q: roll must not be empty", p.Name)
		}
		if _, ok := s.byName[name]; ok {
			return nil, fmt.Errorf("preset %q: %w", p.Name, ErrDuplicatePreset)
		}
		s.byName[name] = p
	}
	return s, nil
}

// Load reads a presets file of the form:
//
//	presets:
//	  - name: attack
//	    roll: "Attack: d20 + 5"
//
// Postcondition: Returns a Set or a non-nil error.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing presets file %s: %w", path, err)
	}
	return NewSet(f.Presets)
}

// Len returns the number of presets.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byName)
}

// Lookup returns the preset named name, ignoring case and surrounding space.
func (s *Set) Lookup(name string) (Preset, bool) {
	if s == nil {
		return Preset{}, false
	}
	p, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names returns all preset names in sorted order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.byName))
	for _, p := range s.byName {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// Expand replaces every comma-separated segment of text that names a preset
// with that preset's roll. Other segments are kept verbatim. A nil Set
// returns text unchanged.
func (s *Set) Expand(text string) string {
	if s.Len() == 0 {
		return text
	}
	segments := strings.Split(text, ",")
	for i, seg := range segments {
		if p, ok := s.Lookup(seg); ok {
			segments[i] = p.Roll
		}
	}
	return strings.Join(segments, ",")
}
