// Package scoring combines vector similarity with keyword overlap.
package scoring

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultSemanticWeight = 0.85
	DefaultKeywordWeight  = 0.15
	DefaultSaturation     = 5

	minKeywordLength = 3
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Weights controls the hybrid score. The defaults keep results comparable
// with previously recorded rankings.
type Weights struct {
	Semantic   float64 `mapstructure:"semantic-weight"`
	Keyword    float64 `mapstructure:"keyword-weight"`
	Saturation int     `mapstructure:"keyword-saturation"`
}

func DefaultWeights() Weights {
	return Weights{
		Semantic:   DefaultSemanticWeight,
		Keyword:    DefaultKeywordWeight,
		Saturation: DefaultSaturation,
	}
}

func (w Weights) Validate() error {
	if w.Semantic < 0 || w.Keyword < 0 {
		return fmt.Errorf("weights must not be negative: semantic=%v keyword=%v", w.Semantic, w.Keyword)
	}
	if w.Saturation <= 0 {
		return fmt.Errorf("keyword saturation must be positive, got %d", w.Saturation)
	}
	return nil
}

type Scorer struct {
	weights Weights
}

// New returns a Scorer. Zero-valued weights are replaced by the defaults.
func New(w Weights) (*Scorer, error) {
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: w}, nil
}

func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score returns Semantic*cosine + Keyword*bonus for one chunk.
func (s *Scorer) Score(query, chunk []float32, keywords []string, chunkText string) float64 {
	sem := Cosine(query, chunk)
	bonus := Bonus(KeywordHits(keywords, chunkText), s.weights.Saturation)
	return s.weights.Semantic*sem + s.weights.Keyword*bonus
}

// Cosine is the cosine similarity of a and b. It is 0 for empty vectors,
// vectors of different lengths and zero-norm vectors.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Keywords extracts the distinct lowercased word tokens of query longer than
// two characters, in first-occurrence order.
func Keywords(query string) []string {
	tokens := wordPattern.FindAllString(strings.ToLower(query), -1)

	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) < minKeywordLength {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// KeywordHits counts the keywords found as substrings of the lowercased text.
func KeywordHits(keywords []string, text string) int {
	if len(keywords) == 0 {
		return 0
	}

	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return hits
}

// Bonus saturates hits at saturation and maps them to [0, 1].
func Bonus(hits, saturation int) float64 {
	if saturation <= 0 || hits <= 0 {
		return 0
	}
	return float64(min(hits, saturation)) / float64(saturation)
}
