package ai

import (
	"context"
	"strings"
)

// Assessment is a language model's verdict on how well a document's evidence
// covers a requirement.
type Assessment struct {
	Score      float64  `json:"score"`
	Highlights []string `json:"highlights"`
	Missing    []string `json:"missing"`
	Raw        string   `json:"-"`
}

// AssessRequest carries the requirement and the evidence retrieved for one
// document.
type AssessRequest struct {
	DocumentID  string
	Requirement string
	Snippets    []string
	Language    string
}

type Assessor interface {
	Assess(ctx context.Context, req AssessRequest) (*Assessment, error)
}

// NormalizeLanguage returns "fr" for French and "en" for anything else.
func NormalizeLanguage(lang string) string {
	if strings.EqualFold(strings.TrimSpace(lang), "fr") {
		return "fr"
	}
	return "en"
}
