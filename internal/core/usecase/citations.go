package usecase

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	sourceTokenPattern = regexp.MustCompile(`\[?identifier:[^\s\[\]/]+/[^\s\[\]]+\]?`)
	doubleSpaceRun     = regexp.MustCompile(` {2,}`)
)

// RenumberCitations rewrites inline source tokens in generated text to
// bracketed ordinals matching the surfaced source list: the token at position
// n in orderedTokens becomes "[n+1]". Tokens with no surviving source are
// removed rather than left dangling.
func RenumberCitations(text string, orderedTokens []string) string {
	if text == "" || len(orderedTokens) == 0 {
		return sourceTokenPattern.ReplaceAllString(text, "")
	}

	index := make(map[string]int, len(orderedTokens))
	for i, token := range orderedTokens {
		index[token] = i + 1
	}

	out := sourceTokenPattern.ReplaceAllStringFunc(text, func(raw string) string {
		token := strings.Trim(raw, "[]")
		n, ok := index[token]
		if !ok {
			return ""
		}
		return fmt.Sprintf("[%d]", n)
	})
	return collapseSpacesAroundRemoved(out)
}

func collapseSpacesAroundRemoved(s string) string {
	s = doubleSpaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
