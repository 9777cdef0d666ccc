package dice

import "regexp"

// RollType selects how a single roll request is resolved.
type RollType int

const (
	// Normal rolls every die once.
	Normal RollType = iota
	// Advantage rolls each d20 twice and keeps the higher face.
	Advantage
	// Disadvantage rolls each d20 twice and keeps the lower face.
	Disadvantage
	// ShowUsage returns the usage text instead of rolling.
	ShowUsage
)

func (t RollType) String() string {
	switch t {
	case Normal:
		return "normal"
	case Advantage:
		return "advantage"
	case Disadvantage:
		return "disadvantage"
	case ShowUsage:
		return "usage"
	default:
		return "unknown"
	}
}

var (
	usagePattern        = regexp.MustCompile(`(?i)\?|help`)
	disadvantagePattern = regexp.MustCompile(`(?i)\s+/?dis`)
	advantagePattern    = regexp.MustCompile(`(?i)\s+/?adv`)
)

// Classify derives the RollType of one roll request from its raw text.
// Markers are checked in priority order: usage, disadvantage, advantage.
//
// Postcondition: returns Normal when no marker is present.
func Classify(request string) RollType {
	switch {
	case usagePattern.MatchString(request):
		return ShowUsage
	case disadvantagePattern.MatchString(request):
		return Disadvantage
	case advantagePattern.MatchString(request):
		return Advantage
	default:
		return Normal
	}
}
