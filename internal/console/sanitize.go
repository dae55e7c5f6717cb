package console

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Match all ANSI/VT100 escape sequences including CSI, OSC, and other control sequences
var ansiEscapePattern = regexp.MustCompile(`\x1b(\[[0-9;?!]*[A-Za-z>hp~]|\][^\x07]*\x07|\([B0]|[=>])`)

// maxLineLength bounds what a single console line may carry into the dispatcher
const maxLineLength = 512

// SanitizeLine strips escape sequences and control characters that terminals
// leave behind (arrow keys, bracketed paste markers) from operator input.
func SanitizeLine(line string) string {
	if line == "" {
		return ""
	}
	line = truncate(line, maxLineLength)
	stripped := ansiEscapePattern.ReplaceAllString(line, "")
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return ' '
		}
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, stripped)
}

// truncate cuts line to at most limit bytes without splitting a rune
func truncate(line string, limit int) string {
	if len(line) <= limit {
		return line
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut]
}
