// Package textnorm prepares raw document text for chunking.
package textnorm

import (
	"iter"
	"strings"
	"unicode"
)

// Normalize collapses every run of whitespace, newlines included, into a
// single space and trims the result.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// Sentences normalizes text and yields its sentences lazily. A sentence ends
// after '.', '!' or '?' when whitespace follows.
func Sentences(text string) iter.Seq[string] {
	normalized := Normalize(text)

	return func(yield func(string) bool) {
		if normalized == "" {
			return
		}

		start := 0
		for i := 1; i < len(normalized); i++ {
			if normalized[i] != ' ' || !isTerminator(normalized[i-1]) {
				continue
			}
			if !yield(normalized[start:i]) {
				return
			}
			start = i + 1
		}

		if start < len(normalized) {
			yield(normalized[start:])
		}
	}
}

// SentenceSlice collects Sentences into a slice.
func SentenceSlice(text string) []string {
	var out []string
	for s := range Sentences(text) {
		out = append(out, s)
	}
	return out
}

// WordCount counts whitespace separated words.
func WordCount(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}

func isTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}
