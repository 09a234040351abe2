package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/kenzatoreis/hiringbuddy/internal/ai"
	"github.com/kenzatoreis/hiringbuddy/internal/utils"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// Matcher asks Gemini to assess retrieved evidence against a requirement.
type Matcher struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.Assessor = (*Matcher)(nil)

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

var languageHints = map[string]string{
	"en": "IMPORTANT: Write all responses (highlights, missing) in clear, natural English.",
	"fr": "IMPORTANT: Rédige toutes les réponses (highlights, missing) en français naturel, clair et professionnel.",
}

func NewMatcher(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Matcher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Matcher{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (m *Matcher) Assess(ctx context.Context, req ai.AssessRequest) (*ai.Assessment, error) {
	requirement := strings.TrimSpace(req.Requirement)
	if requirement == "" {
		return nil, errors.New("requirement is required")
	}
	if len(req.Snippets) == 0 {
		return nil, errors.New("at least one evidence snippet is required")
	}

	system := buildSystemPrompt(ai.NormalizeLanguage(req.Language))
	message := buildMessage(requirement, req.Snippets)

	m.logger.Debug("gemini generate content request",
		zap.String("document", req.DocumentID),
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", utils.TruncateForLog(message, m.maxLogLen)),
	)

	raw, err := m.generator.GenerateContent(ctx, system, message)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("gemini generate content response",
		zap.String("document", req.DocumentID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, m.maxLogLen)),
	)

	assessment, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}
	assessment.Raw = raw
	return assessment, nil
}

func buildSystemPrompt(language string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "{{LANGUAGE_HINT}}\nReturn ONLY valid JSON: {\"score\": 0-100, \"highlights\": [string], \"missing\": [string]}"
	}
	return strings.ReplaceAll(template, "{{LANGUAGE_HINT}}", languageHints[language])
}

func buildMessage(requirement string, snippets []string) string {
	var b strings.Builder
	b.WriteString("Requirement:\n---\n")
	b.WriteString(requirement)
	b.WriteString("\n---\nTop evidence excerpts (from the candidate):\n---\n")
	b.WriteString(strings.Join(snippets, "\n"))
	b.WriteString("\n---")
	return b.String()
}

type assessmentPayload struct {
	Score      float64  `mapstructure:"score"`
	Highlights []string `mapstructure:"highlights"`
	Missing    []string `mapstructure:"missing"`
}

func parseResponse(raw string) (*ai.Assessment, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	var payload assessmentPayload
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &payload,
	})
	if err != nil {
		return nil, fmt.Errorf("build response decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}

	return &ai.Assessment{
		Score:      clampScore(payload.Score),
		Highlights: cleanList(payload.Highlights),
		Missing:    cleanList(payload.Missing),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start > 0 && end > start {
		raw = raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

// clampScore rounds to a whole number within 0..100.
func clampScore(score float64) float64 {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return math.Max(0, math.Min(100, math.Round(score)))
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
