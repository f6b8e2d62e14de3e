package stream

import (
	"regexp"
	"strings"
)

// abortKeywords classify a turn failure as a deliberate interruption rather
// than a backend fault.
var abortKeywords = []string{"abort", "cancel", "interrupt", "killed", "signal"}

// abortLike reports whether any error message reads like a user-initiated
// stop. Such failures keep the resume token; genuine faults clear it.
func abortLike(errs []string) bool {
	for _, msg := range errs {
		lower := strings.ToLower(msg)
		for _, kw := range abortKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

var numberedLine = regexp.MustCompile(`(?m)^\s*(\d+)[.)]\s+(.+)$`)

// numberedOption is one entry of an inline numbered list.
type numberedOption struct {
	Number string
	Label  string
}

// detectNumberedOptions extracts an inline numbered list from settled text.
// A single numbered line is prose, not a menu; two or more qualify.
func detectNumberedOptions(text string) []numberedOption {
	matches := numberedLine.FindAllStringSubmatch(text, -1)
	if len(matches) < 2 {
		return nil
	}
	options := make([]numberedOption, 0, len(matches))
	for _, m := range matches {
		options = append(options, numberedOption{
			Number: m[1],
			Label:  strings.TrimSpace(m[2]),
		})
	}
	return options
}

// looksLikeYesNo reports whether the text closes with a question the user
// would plausibly answer yes or no.
func looksLikeYesNo(text string) bool {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) == 0 {
		return false
	}
	last := strings.TrimSpace(lines[len(lines)-1])
	if !strings.HasSuffix(last, "?") {
		return false
	}
	lower := strings.ToLower(last)
	for _, marker := range []string{"should i", "shall i", "do you want", "would you like", "proceed", "continue", "ok to", "is that", "is this"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
