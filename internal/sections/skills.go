package sections

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const skillsFallbackChars = 800

var (
	skillSeparators = regexp.MustCompile(`[,\n;/•·\-]+`)

	genericSkillWords = map[string]struct{}{
		"skills":     {},
		"tools":      {},
		"languages":  {},
		"projects":   {},
		"experience": {},
	}
)

// SkillTokens lists up to limit distinct skill tokens from the skills block,
// or from the head of the text when the block is missing.
func SkillTokens(locator Locator, text string, limit int) []string {
	block := Extract(locator, text, SkillsLabels...)
	if block == "" {
		block = headRunes(text, skillsFallbackChars)
	}

	seen := make(map[string]struct{})
	var out []string
	for _, raw := range skillSeparators.Split(block, -1) {
		tok := strings.TrimSpace(raw)
		if utf8.RuneCountInString(tok) < 2 {
			continue
		}
		low := strings.ToLower(tok)
		if _, generic := genericSkillWords[low]; generic {
			continue
		}
		if _, dup := seen[low]; dup {
			continue
		}
		seen[low] = struct{}{}
		out = append(out, tok)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func headRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
