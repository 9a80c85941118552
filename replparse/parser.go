package replparse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hupe1980/rlmharness/core"
)

// replBlockPattern matches a fenced block introduced by the literal
// fence-with-tag "```repl" on its own opening line, terminated by a bare
// closing "```" line. Non-greedy capture keeps adjacent blocks separate.
var replBlockPattern = regexp.MustCompile("(?m)^```repl[ \t]*\r?\n([\\s\\S]*?)\r?\n^```[ \t]*$")

// ExtractCodeBlocks returns the bodies of all non-empty fenced ```repl
// blocks in text, in document order, trimmed of surrounding blank lines.
// Blocks that are empty after trimming are discarded.
func ExtractCodeBlocks(text string) []string {
	matches := replBlockPattern.FindAllStringSubmatch(text, -1)
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		body := trimBlankLines(m[1])
		if body == "" {
			continue
		}
		blocks = append(blocks, body)
	}
	return blocks
}

// trimBlankLines removes leading and trailing whitespace-only lines while
// preserving internal blank lines and indentation.
func trimBlankLines(s string) string {
	lines := strings.Split(s, "\n")

	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}

	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}

	return strings.Join(lines[start:end], "\n")
}

var (
	finalVarPattern = regexp.MustCompile(`(?m)^[ \t]*FINAL_VAR\((.*?)\)[ \t]*$`)
	finalPattern    = regexp.MustCompile(`(?m)^[ \t]*FINAL\((.*)\)[ \t]*$`)
)

// ParseDirective looks for a terminal directive in text (§4.2):
// FINAL_VAR(<name>) is preferred over FINAL(<answer>) whenever both are
// present; matching is case-sensitive and anchored to the start of a
// (possibly indented) non-blank line.
func ParseDirective(text string) (core.Directive, bool) {
	if m := finalVarPattern.FindStringSubmatch(text); m != nil {
		name := stripQuotes(strings.TrimSpace(m[1]))
		return core.Directive{Kind: core.DirectiveFinalVar, Value: name}, true
	}

	if m := finalPattern.FindStringSubmatch(text); m != nil {
		return core.Directive{Kind: core.DirectiveFinal, Value: strings.TrimSpace(m[1])}, true
	}

	return core.Directive{}, false
}

func stripQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

// truncationMarkerPattern recognizes text already produced by Truncate, so
// re-truncating an already-truncated string is a no-op (§8: Truncate is
// idempotent).
var truncationMarkerPattern = regexp.MustCompile(`\n\.\.\. \[truncated \d+ chars\]$`)

// Truncate returns text unchanged if it has at most max runes; otherwise it
// returns the first max runes followed by a marker naming the number of
// omitted characters.
func Truncate(text string, max int) string {
	if truncationMarkerPattern.MatchString(text) {
		return text
	}

	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	omitted := len(runes) - max
	return string(runes[:max]) + fmt.Sprintf("\n... [truncated %d chars]", omitted)
}
