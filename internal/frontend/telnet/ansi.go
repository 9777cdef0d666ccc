// Package telnet provides a line-oriented Telnet dice console.
package telnet

import (
	"regexp"
	"strings"

	"github.com/muesli/reflow/wordwrap"
)

// ANSI escape codes used to render roll lines.
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Italic = "\033[3m"
	Red    = "\033[31m"
	Green  = "\033[32m"
)

var (
	boldSpan   = regexp.MustCompile(`\*([^*\n]+)\*`)
	italicSpan = regexp.MustCompile(`_([^_\n]+)_`)
)

// Colorize wraps text with the given ANSI color code and a reset suffix.
func Colorize(color, text string) string {
	return color + text + Reset
}

// RenderMarkdown converts the chat emphasis in a roll line into ANSI styling:
// *bold* spans become bold, critical annotations are colored, and any other
// _italic_ span becomes italic.
//
// Postcondition: Text outside emphasis markers is unchanged.
func RenderMarkdown(line string) string {
	line = italicSpan.ReplaceAllStringFunc(line, func(span string) string {
		inner := span[1 : len(span)-1]
		switch {
		case strings.HasPrefix(inner, "Critical Success"):
			return Colorize(Bold+Green, inner)
		case strings.HasPrefix(inner, "Critical Fail"):
			return Colorize(Bold+Red, inner)
		default:
			return Colorize(Italic, inner)
		}
	})
	return boldSpan.ReplaceAllString(line, Bold+"${1}"+Reset)
}

// Wrap word-wraps text to width columns. Escape sequences do not count toward
// the width, and words longer than width are left whole.
//
// Postcondition: width <= 0 returns text unchanged.
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	return wordwrap.String(text, width)
}
