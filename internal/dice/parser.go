package dice

import (
	"regexp"
	"strconv"
)

// Upper bounds for a single die term. Terms beyond them are treated as
// malformed fragments and skipped.
const (
	MaxDice  = 1000
	MaxSides = 1000000
)

// fudgeSides is the face count a fudge die is drawn with.
const fudgeSides = 3

// TermKind classifies a recognised notation fragment.
type TermKind int

const (
	// TermModifier is a signed integer literal.
	TermModifier TermKind = iota
	// TermDie is a standard die term such as "2d6".
	TermDie
	// TermFudge is a fudge die term such as "4dF".
	TermFudge
)

// Term is one recognised fragment of a roll request.
//
// Invariant: Sign is +1 or -1. For dice, Count >= 1 and Sides >= 1.
type Term struct {
	Kind  TermKind
	Text  string // matched fragment, e.g. "-/d10"
	Sign  int
	Count int // dice only
	Sides int // dice only; fudge terms always use fudgeSides
	Value int // modifiers only; already signed
}

// notationPattern tries fudge, standard die, then modifier at each position.
// Go's RE2 alternation is leftmost-first, so the fudge alternative wins any
// overlap with the standard die alternative.
var notationPattern = regexp.MustCompile(
	`(?i)(?P<fsign>[+-]?)\s?(?P<fcount>\d*)df` +
		`|(?P<dsign>[+-]?)\s?/?(?P<dcount>\d*)d(?P<sides>\d+)` +
		`|(?P<msign>[+-]?)\s?(?P<digits>\d+)`,
)

var (
	groupFudgeSign  = notationPattern.SubexpIndex("fsign")
	groupFudgeCount = notationPattern.SubexpIndex("fcount")
	groupDieSign    = notationPattern.SubexpIndex("dsign")
	groupDieCount   = notationPattern.SubexpIndex("dcount")
	groupSides      = notationPattern.SubexpIndex("sides")
	groupModSign    = notationPattern.SubexpIndex("msign")
	groupDigits     = notationPattern.SubexpIndex("digits")
)

// Tokenize scans request left to right and returns every recognised term in
// order. Text matching none of the term shapes is skipped, as are terms whose
// numbers are zero, overflow, or exceed MaxDice/MaxSides.
func Tokenize(request string) []Term {
	matches := notationPattern.FindAllStringSubmatchIndex(request, -1)
	terms := make([]Term, 0, len(matches))
	for _, m := range matches {
		group := func(i int) (string, bool) {
			if m[2*i] < 0 {
				return "", false
			}
			return request[m[2*i]:m[2*i+1]], true
		}
		text := request[m[0]:m[1]]

		// Groups of alternatives that did not match report -1, even when an
		// alternative that did match left its own groups empty.
		if count, ok := group(groupFudgeCount); ok {
			sign, _ := group(groupFudgeSign)
			if t, ok := dieTerm(TermFudge, text, sign, count, fudgeSides); ok {
				terms = append(terms, t)
			}
			continue
		}
		if sidesStr, ok := group(groupSides); ok {
			sign, _ := group(groupDieSign)
			count, _ := group(groupDieCount)
			sides, err := strconv.Atoi(sidesStr)
			if err != nil || sides < 1 || sides > MaxSides {
				continue
			}
			if t, ok := dieTerm(TermDie, text, sign, count, sides); ok {
				terms = append(terms, t)
			}
			continue
		}
		if digits, ok := group(groupDigits); ok {
			sign, _ := group(groupModSign)
			v, err := strconv.Atoi(digits)
			if err != nil {
				continue
			}
			s := signOf(sign)
			terms = append(terms, Term{Kind: TermModifier, Text: text, Sign: s, Value: s * v})
		}
	}
	return terms
}

func dieTerm(kind TermKind, text, sign, countStr string, sides int) (Term, bool) {
	count := 1
	if countStr != "" {
		n, err := strconv.Atoi(countStr)
		if err != nil || n < 1 || n > MaxDice {
			return Term{}, false
		}
		count = n
	}
	return Term{Kind: kind, Text: text, Sign: signOf(sign), Count: count, Sides: sides}, true
}

func signOf(s string) int {
	if s == "-" {
		return -1
	}
	return 1
}
