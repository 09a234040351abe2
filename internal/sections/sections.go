// Package sections locates named heading blocks inside resume text.
package sections

import (
	"regexp"
	"strings"
)

var (
	SkillsLabels     = []string{"SKILLS", "TECHNICAL SKILLS"}
	ExperienceLabels = []string{"EXPERIENCE", "PROFESSIONAL EXPERIENCE"}
)

// DefaultHeadings is the recognized heading set, in canonical form.
var DefaultHeadings = []string{
	"PROFILE",
	"PROFESSIONAL EXPERIENCE", "EXPERIENCE",
	"PROJECTS PORTFOLIO", "PROJECTS",
	"EDUCATION",
	"CERTIFICATES",
	"SKILLS", "TECHNICAL SKILLS",
	"LANGUAGES",
}

var (
	nonHeadingChars = regexp.MustCompile(`[^A-Z ]`)
	inlineSpace     = regexp.MustCompile(`[ \t]+`)
	blankRuns       = regexp.MustCompile(`\n{3,}`)
)

// Block is a located section: its canonical heading and the lines below it.
type Block struct {
	Heading string
	Text    string
}

// Locator finds the first section whose heading matches one of labels.
type Locator interface {
	Locate(labels []string, text string) (Block, bool)
}

// HeadingLocator recognizes a line as a heading when its canonical form is in
// a fixed set.
type HeadingLocator struct {
	headings map[string]struct{}
}

var _ Locator = (*HeadingLocator)(nil)

// NewHeadingLocator builds a locator over headings, or DefaultHeadings when
// none are given.
func NewHeadingLocator(headings ...string) *HeadingLocator {
	if len(headings) == 0 {
		headings = DefaultHeadings
	}

	set := make(map[string]struct{}, len(headings))
	for _, h := range headings {
		if c := Canonical(h); c != "" {
			set[c] = struct{}{}
		}
	}
	return &HeadingLocator{headings: set}
}

// Canonical uppercases s and keeps only letters A-Z and spaces.
func Canonical(s string) string {
	return strings.TrimSpace(nonHeadingChars.ReplaceAllString(strings.ToUpper(s), ""))
}

func (l *HeadingLocator) Locate(labels []string, text string) (Block, bool) {
	lines := contentLines(text)

	wanted := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		wanted[Canonical(label)] = struct{}{}
	}

	start, heading := -1, ""
	for i, line := range lines {
		c := Canonical(line)
		if _, ok := l.headings[c]; !ok {
			continue
		}
		if start >= 0 {
			return Block{Heading: heading, Text: joinBlock(lines[start+1 : i])}, true
		}
		if _, ok := wanted[c]; ok {
			start, heading = i, c
		}
	}

	if start < 0 {
		return Block{}, false
	}

	return Block{Heading: heading, Text: joinBlock(lines[start+1:])}, true
}

// Extract returns the block text for labels or an empty string.
func Extract(locator Locator, text string, labels ...string) string {
	if locator == nil {
		return ""
	}
	block, ok := locator.Locate(labels, text)
	if !ok {
		return ""
	}
	return block.Text
}

func contentLines(text string) []string {
	text = strings.ReplaceAll(text, "\r", "\n")
	text = inlineSpace.ReplaceAllString(text, " ")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func joinBlock(lines []string) string {
	block := strings.TrimSpace(strings.Join(lines, "\n"))
	return blankRuns.ReplaceAllString(block, "\n\n")
}
