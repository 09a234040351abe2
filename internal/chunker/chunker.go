// Package chunker groups sentences into overlapping chunks bounded by an
// estimated token budget.
package chunker

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/kenzatoreis/hiringbuddy/internal/textnorm"
)

const (
	DefaultMaxTokens = 700
	DefaultOverlap   = 80

	DefaultWindowWords = 800
	DefaultStrideWords = 700

	wordsPerToken = 0.75
)

// Strategy names the policy that produced a chunk set.
type Strategy string

const (
	StrategyNone        Strategy = "none"
	StrategySentences   Strategy = "sentences"
	StrategyWordWindows Strategy = "word-windows"
	StrategyWholeText   Strategy = "whole-text"
)

// Split is the outcome of chunking a whole document.
type Split struct {
	Chunks   []string
	Strategy Strategy
}

type Chunker struct {
	maxTokens int
	overlap   int
	window    int
	stride    int
}

type Option func(*Chunker)

func WithMaxTokens(n int) Option {
	return func(c *Chunker) { c.maxTokens = n }
}

func WithOverlap(n int) Option {
	return func(c *Chunker) { c.overlap = n }
}

// WithWordWindows configures the fallback used when sentence splitting
// degenerates into a single chunk.
func WithWordWindows(window, stride int) Option {
	return func(c *Chunker) {
		c.window = window
		c.stride = stride
	}
}

// ErrInvalidConfig reports chunking parameters that cannot produce chunks.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// New returns a Chunker with the defaults overridden by opts.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		maxTokens: DefaultMaxTokens,
		overlap:   DefaultOverlap,
		window:    DefaultWindowWords,
		stride:    DefaultStrideWords,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.maxTokens <= 0 {
		return nil, fmt.Errorf("%w: max tokens must be positive, got %d", ErrInvalidConfig, c.maxTokens)
	}
	if c.overlap <= 0 {
		return nil, fmt.Errorf("%w: overlap must be positive, got %d", ErrInvalidConfig, c.overlap)
	}
	if c.overlap >= c.maxTokens {
		return nil, fmt.Errorf("%w: overlap %d must be less than max tokens %d", ErrInvalidConfig, c.overlap, c.maxTokens)
	}
	if c.window <= 0 || c.stride <= 0 {
		return nil, fmt.Errorf("%w: word window and stride must be positive", ErrInvalidConfig)
	}

	return c, nil
}

func (c *Chunker) MaxTokens() int { return c.maxTokens }
func (c *Chunker) Overlap() int   { return c.overlap }

// EstimateTokens approximates the token count of s as words / 0.75, rounded,
// and never less than one.
func EstimateTokens(s string) int {
	words := textnorm.WordCount(s)
	return max(1, int(math.Round(float64(words)/wordsPerToken)))
}

// Chunk partitions ordered sentences into chunks. A sentence is never split,
// so a single sentence above the budget becomes a chunk of its own.
func (c *Chunker) Chunk(sentences []string) []string {
	var (
		chunks    []string
		cur       []string
		curTokens int
	)

	for i := 0; i < len(sentences); {
		t := EstimateTokens(sentences[i])
		if curTokens+t <= c.maxTokens || len(cur) == 0 {
			cur = append(cur, sentences[i])
			curTokens += t
			i++
			continue
		}

		if chunk := strings.TrimSpace(strings.Join(cur, " ")); chunk != "" {
			chunks = append(chunks, chunk)
		}

		// The sentence that overflowed is retried against the seeded chunk.
		cur = c.overlapTail(cur, t)
		curTokens = sumTokens(cur)
	}

	if chunk := strings.TrimSpace(strings.Join(cur, " ")); chunk != "" {
		chunks = append(chunks, chunk)
	}

	return chunks
}

// overlapTail walks back from the end of closed until overlap tokens are
// collected. The tail is then trimmed from its oldest side until the pending
// sentence fits, which keeps the loop in Chunk moving forward.
func (c *Chunker) overlapTail(closed []string, pending int) []string {
	start := len(closed)
	acc := 0
	for start > 0 {
		start--
		acc += EstimateTokens(closed[start])
		if acc >= c.overlap {
			break
		}
	}

	tail := closed[start:]
	for len(tail) > 0 && acc+pending > c.maxTokens {
		acc -= EstimateTokens(tail[0])
		tail = tail[1:]
	}

	return append([]string(nil), tail...)
}

// Split chunks a whole document. When sentence chunking yields at most one
// chunk the text is re-chunked by fixed word windows, and when that yields
// nothing the trimmed text is used as a single chunk.
func (c *Chunker) Split(text string) Split {
	chunks := c.Chunk(textnorm.SentenceSlice(text))
	if len(chunks) > 1 {
		return Split{Chunks: chunks, Strategy: StrategySentences}
	}

	if windows := WordWindows(text, c.window, c.stride); len(windows) > 0 {
		return Split{Chunks: windows, Strategy: StrategyWordWindows}
	}

	if trimmed := strings.TrimSpace(text); trimmed != "" {
		return Split{Chunks: []string{trimmed}, Strategy: StrategyWholeText}
	}

	return Split{Strategy: StrategyNone}
}

// WordWindows slices text into windows of window words starting every stride
// words.
func WordWindows(text string, window, stride int) []string {
	words := strings.Fields(text)
	if window <= 0 || stride <= 0 {
		return nil
	}

	var out []string
	for i := 0; i < len(words); i += stride {
		end := min(i+window, len(words))
		out = append(out, strings.Join(words[i:end], " "))
	}
	return out
}

func sumTokens(sentences []string) int {
	total := 0
	for _, s := range sentences {
		total += EstimateTokens(s)
	}
	return total
}
