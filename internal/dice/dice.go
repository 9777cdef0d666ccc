// Package dice parses free-text tabletop dice notation and resolves it into
// auditable roll outcomes grouped by die type.
package dice

import (
	"fmt"
	"regexp"
	"strings"
)

// Usage is returned in place of a roll when help is requested or the request is empty.
const Usage = `
/roll [label]: [diceType(s)] +/- [modifier] [adv|dis]
Examples:
    /roll Attack: d20 +5 adv
    /roll Damage: 2d10 + 1d6 +8
    /roll 12d6`

// DefaultLabel is used when a request carries no "label:" prefix.
const DefaultLabel = "Total:"

// Critical annotates a roll whose single d20 landed on a natural extreme.
type Critical int

const (
	CriticalNone Critical = iota
	CriticalSuccess
	CriticalFail
)

// Annotation returns the output prefix for c, or "" for CriticalNone.
func (c Critical) Annotation() string {
	switch c {
	case CriticalSuccess:
		return "_Critical Success!_ "
	case CriticalFail:
		return "_Critical Fail!_ "
	default:
		return ""
	}
}

// Outcome is the computed result of one roll request.
//
// Invariant: Total == Bucket.Total(); Discarded never contributes to Total.
type Outcome struct {
	Request   string
	Type      RollType
	Total     int
	Bucket    *Bucket
	Discarded []int
	Label     string
	Critical  Critical
}

var labelPattern = regexp.MustCompile(`[^:]+:`)

// ParseLabel returns the text up to and including the first colon, trimmed,
// or DefaultLabel when request has no label.
func ParseLabel(request string) string {
	if label := labelPattern.FindString(request); label != "" {
		return strings.TrimSpace(label)
	}
	return DefaultLabel
}

// DetectCritical inspects the standard d20 group of b. Only a single d20
// qualifies; multiple d20s never produce an annotation.
func DetectCritical(b *Bucket) Critical {
	d20 := b.Values(Key{Sides: advantageSides})
	if len(d20) != 1 {
		return CriticalNone
	}
	switch d20[0] {
	case advantageSides:
		return CriticalSuccess
	case 1:
		return CriticalFail
	default:
		return CriticalNone
	}
}

// Evaluate classifies, rolls, and annotates a single roll request.
//
// Postcondition: a ShowUsage or empty request yields an Outcome of type
// ShowUsage without consuming the source. A whitespace-only request is rolled
// and totals zero. Source failures wrap ErrSourceExhausted.
func Evaluate(request string, src Source) (Outcome, error) {
	rollType := Classify(request)
	if rollType == ShowUsage || request == "" {
		return Outcome{Request: request, Type: ShowUsage}, nil
	}

	bucket, discarded, err := BuildBucket(request, rollType, src)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Request:   request,
		Type:      rollType,
		Total:     bucket.Total(),
		Bucket:    bucket,
		Discarded: discarded,
		Label:     ParseLabel(request),
		Critical:  DetectCritical(bucket),
	}, nil
}

// String renders the outcome as a single mrkdwn line:
//
//	"_Critical Success!_ Attack: *25*  :  1d20: (*+20*), Mod: (*+5*)"
func (o Outcome) String() string {
	if o.Type == ShowUsage {
		return Usage
	}

	var segments []string
	if o.Bucket != nil {
		for _, key := range o.Bucket.Keys() {
			values := o.Bucket.Values(key)
			name := "Mod:"
			if key != ModifierKey {
				name = fmt.Sprintf("%d%s:", len(values), key.Label())
			}
			segments = append(segments, fmt.Sprintf("%s (*%s*)", name, joinInts(values, "%+d")))
		}
	}
	if len(o.Discarded) > 0 {
		segments = append(segments, fmt.Sprintf("Thrown out: (*%s*)", joinInts(o.Discarded, "%d")))
	}

	return fmt.Sprintf("%s%s *%d*  :  %s",
		o.Critical.Annotation(), o.Label, o.Total, strings.Join(segments, ", "))
}

func joinInts(values []int, format string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf(format, v)
	}
	return strings.Join(parts, ", ")
}
