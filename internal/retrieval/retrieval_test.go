package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kenzatoreis/hiringbuddy/internal/chunker"
	"github.com/kenzatoreis/hiringbuddy/internal/embedding"
	"github.com/kenzatoreis/hiringbuddy/internal/scoring"
	"github.com/kenzatoreis/hiringbuddy/internal/store"
	"github.com/kenzatoreis/hiringbuddy/internal/store/memory"
)

var vocabulary = map[string]int{
	"python":     0,
	"go":         1,
	"team":       2,
	"led":        3,
	"leadership": 3,
	"kubernetes": 4,
	"sales":      5,
}

// bagOfWords embeds text as counts over a tiny vocabulary.
func bagOfWords(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 6)
	for _, w := range scoring.Keywords(text) {
		if i, ok := vocabulary[w]; ok {
			vec[i]++
		}
	}
	if w := strings.ToLower(text); strings.Contains(w, " go") || strings.HasPrefix(w, "go") {
		vec[1]++
	}
	return vec, nil
}

type fixture struct {
	store *memory.Store
	base  time.Time
	n     int
}

func newFixture() *fixture {
	return &fixture{store: memory.New(), base: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
}

// add indexes text for owner; each call is one minute newer than the previous.
func (f *fixture) add(t *testing.T, owner, id, text string) {
	t.Helper()

	f.n++
	doc, err := f.store.SaveDocument(context.Background(), store.Document{
		ID:        id,
		OwnerID:   owner,
		Name:      id + ".txt",
		Text:      text,
		CreatedAt: f.base.Add(time.Duration(f.n) * time.Minute),
	})
	if err != nil {
		t.Fatalf("save document: %v", err)
	}

	c, err := chunker.New()
	if err != nil {
		t.Fatalf("chunker: %v", err)
	}
	var chunks []store.Chunk
	for i, piece := range c.Split(text).Chunks {
		vec, _ := bagOfWords(context.Background(), piece)
		chunks = append(chunks, store.Chunk{DocumentID: doc.ID, Index: i, Text: piece, Vector: vec})
	}
	if err := f.store.SaveChunks(context.Background(), doc.ID, chunks); err != nil {
		t.Fatalf("save chunks: %v", err)
	}
}

func (f *fixture) retriever(t *testing.T, gw embedding.Gateway) *Retriever {
	t.Helper()

	if gw == nil {
		gw = embedding.GatewayFunc(bagOfWords)
	}
	r, err := New(gw, f.store, nil, nil, nil)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	return r
}

func TestRetrievePythonTeamScenario(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.add(t, "u1", "resume", "I know Python. I led a team of five.")

	res, err := f.retriever(t, nil).Retrieve(context.Background(), Request{
		OwnerID:     "u1",
		Requirement: "Python leadership",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Results) != 1 {
		t.Fatalf("expected one result, got %d", len(res.Results))
	}

	got := res.Results[0]
	if got.DocumentID != "resume" || got.DocumentName != "resume.txt" {
		t.Fatalf("unexpected document %+v", got)
	}
	if got.BestScore <= 0 {
		t.Fatalf("expected positive score, got %v", got.BestScore)
	}

	found := false
	for _, s := range got.Snippets {
		if strings.Contains(s, "Python") || strings.Contains(s, "team") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a snippet mentioning Python or team, got %q", got.Snippets)
	}
}

func TestRetrieveValidation(t *testing.T) {
	t.Parallel()

	r := newFixture().retriever(t, nil)

	if _, err := r.Retrieve(context.Background(), Request{OwnerID: "u1", Requirement: "  \n"}); !errors.Is(err, ErrEmptyRequirement) {
		t.Fatalf("expected ErrEmptyRequirement, got %v", err)
	}
	if _, err := r.Retrieve(context.Background(), Request{Requirement: "go"}); !errors.Is(err, store.ErrOwnerMissing) {
		t.Fatalf("expected ErrOwnerMissing, got %v", err)
	}
}

func TestRetrievePropagatesQueryEmbeddingFailure(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.add(t, "u1", "resume", "I know Python.")

	upstream := errors.New("quota exceeded")
	calls := 0
	gw := embedding.GatewayFunc(func(ctx context.Context, _ string) ([]float32, error) {
		calls++
		if embedding.PurposeFrom(ctx) != embedding.PurposeQuery {
			t.Errorf("expected the requirement to be embedded as a query")
		}
		return nil, upstream
	})

	_, err := f.retriever(t, gw).Retrieve(context.Background(), Request{OwnerID: "u1", Requirement: "python"})
	if !errors.Is(err, upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "embed requirement:") {
		t.Fatalf("unexpected error message %q", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one embedding call, got %d", calls)
	}
}

func TestRetrieveLatestOnlyByDefault(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.add(t, "u1", "old", "Python Python team.")
	f.add(t, "u1", "new", "Sales and more sales.")
	f.add(t, "u2", "other", "Python team leadership.")

	r := f.retriever(t, nil)
	res, err := r.Retrieve(context.Background(), Request{OwnerID: "u1", Requirement: "python team"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].DocumentID != "new" {
		t.Fatalf("expected only the latest document, got %+v", res.Results)
	}

	res, err = r.Retrieve(context.Background(), Request{OwnerID: "u1", Requirement: "python team", Scope: ScopeAll})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Results) != 2 || res.Results[0].DocumentID != "old" {
		t.Fatalf("expected old document ranked first, got %+v", res.Results)
	}
	for _, dr := range res.Results {
		if dr.DocumentID == "other" {
			t.Fatal("results leaked another owner's document")
		}
	}
}

func TestRetrieveTiesKeepRecencyOrder(t *testing.T) {
	t.Parallel()

	f := newFixture()
	for _, id := range []string{"a", "b", "c"} {
		f.add(t, "u1", id, "Kubernetes operator.")
	}

	res, err := f.retriever(t, nil).Retrieve(context.Background(), Request{
		OwnerID:       "u1",
		Requirement:   "kubernetes",
		Scope:         ScopeAll,
		TopKDocuments: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Results) != 2 {
		t.Fatalf("expected top 2 documents, got %d", len(res.Results))
	}
	if res.Results[0].DocumentID != "c" || res.Results[1].DocumentID != "b" {
		t.Fatalf("expected recency order c, b; got %s, %s", res.Results[0].DocumentID, res.Results[1].DocumentID)
	}
}

func TestRetrieveScopeLimitAndExclude(t *testing.T) {
	t.Parallel()

	f := newFixture()
	for _, id := range []string{"a", "b", "c", "d"} {
		f.add(t, "u1", id, "Go developer.")
	}

	res, err := f.retriever(t, nil).Retrieve(context.Background(), Request{
		OwnerID:       "u1",
		Requirement:   "go",
		Scope:         ScopeAll,
		Limit:         2,
		ExcludeIDs:    []string{"d"},
		TopKDocuments: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Results) != 2 || res.Results[0].DocumentID != "c" || res.Results[1].DocumentID != "b" {
		t.Fatalf("unexpected results %+v", res.Results)
	}
}

func TestRetrieveSkipsDocumentsWithoutChunks(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.add(t, "u1", "indexed", "Python.")
	if _, err := f.store.SaveDocument(context.Background(), store.Document{
		ID: "empty", OwnerID: "u1", Name: "empty", CreatedAt: f.base.Add(time.Hour),
	}); err != nil {
		t.Fatalf("save document: %v", err)
	}

	res, err := f.retriever(t, nil).Retrieve(context.Background(), Request{OwnerID: "u1", Requirement: "python", Scope: ScopeAll})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].DocumentID != "indexed" {
		t.Fatalf("unexpected results %+v", res.Results)
	}
}

func TestRetrieveAppendsSections(t *testing.T) {
	t.Parallel()

	text := "SKILLS\nPython, Go\nEXPERIENCE\nLed a team at Acme.\nEDUCATION\nBSc"
	f := newFixture()
	f.add(t, "u1", "cv", text)

	res, err := f.retriever(t, nil).Retrieve(context.Background(), Request{
		OwnerID:      "u1",
		Requirement:  "python",
		TopKSnippets: 1,
		Sections:     true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snippets := res.Results[0].Snippets
	if len(snippets) != 3 {
		t.Fatalf("expected 1 snippet plus 2 blocks, got %q", snippets)
	}
	if snippets[1] != "Python, Go" || snippets[2] != "Led a team at Acme." {
		t.Fatalf("unexpected section blocks %q", snippets[1:])
	}
}

func TestRetrieveSuppliedTextOnlyForSingleCandidate(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.add(t, "alice", "cobol", "SKILLS\nCobol\nEXPERIENCE\nMainframe batch jobs.")
	f.add(t, "alice", "rust", "SKILLS\nRust\nEXPERIENCE\nEmbedded firmware.")
	supplied := "SKILLS\nPython, Go, Kubernetes and many more tools\nEXPERIENCE\nLed a platform team for years"

	res, err := f.retriever(t, nil).Retrieve(context.Background(), Request{
		OwnerID:       "alice",
		Requirement:   "python",
		TopKDocuments: 10,
		TopKSnippets:  1,
		Sections:      true,
		Scope:         ScopeAll,
		DocumentText:  supplied,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Results) != 2 {
		t.Fatalf("expected two results, got %+v", res.Results)
	}
	own := map[string]string{"cobol": "Cobol", "rust": "Rust"}
	for _, dr := range res.Results {
		snippets := strings.Join(dr.Snippets, "\n")
		if strings.Contains(snippets, "Kubernetes") {
			t.Fatalf("supplied text leaked into %s: %q", dr.DocumentID, dr.Snippets)
		}
		if !strings.Contains(snippets, own[dr.DocumentID]) {
			t.Fatalf("expected %s skills block, got %q", dr.DocumentID, dr.Snippets)
		}
	}

	res, err = f.retriever(t, nil).Retrieve(context.Background(), Request{
		OwnerID:      "alice",
		Requirement:  "python",
		TopKSnippets: 1,
		Sections:     true,
		DocumentText: supplied,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].DocumentID != "rust" {
		t.Fatalf("expected the latest document, got %+v", res.Results)
	}
	if got := res.Results[0].Snippets; len(got) != 3 || got[1] != "Python, Go, Kubernetes and many more tools" {
		t.Fatalf("expected supplied skills for the single candidate, got %q", got)
	}
}

func TestRetrieveDisableFiltersReportsStatus(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.add(t, "u1", "a", "Go developer.")
	f.add(t, "u1", "b", "Go developer.")

	res, err := f.retriever(t, nil).Retrieve(context.Background(), Request{
		OwnerID:        "u1",
		Requirement:    "go",
		TopKDocuments:  10,
		DisableFilters: []string{" latest_per_owner "},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Results) != 2 {
		t.Fatalf("expected both documents with the per-owner cap disabled, got %+v", res.Results)
	}

	if len(res.Filters) != 3 {
		t.Fatalf("expected three filter statuses, got %+v", res.Filters)
	}
	latest := res.Filters[1]
	if latest.Name != "latest_per_owner" || latest.Enabled || latest.Reason != "disabled by request" {
		t.Fatalf("unexpected latest_per_owner status %+v", latest)
	}
	if res.Filters[0].Enabled || res.Filters[2].Enabled {
		t.Fatalf("expected exclude and limit to be idle, got %+v", res.Filters)
	}
}

func TestScoreChunksFallbackVectorScoresZero(t *testing.T) {
	t.Parallel()

	r := newFixture().retriever(t, nil)
	fallback := embedding.Fallback(6, "upstream down").Vector

	scored := r.ScoreChunks(
		[]float32{1, 0, 0, 0, 0, 0},
		scoring.Keywords("python"),
		[]store.Chunk{
			{Index: 0, Text: "unrelated", Vector: fallback},
			{Index: 1, Text: "also unrelated", Vector: fallback},
			{Index: 2, Text: "python", Vector: fallback},
		},
	)

	if scored[0].Index != 2 {
		t.Fatalf("expected keyword chunk first, got %+v", scored[0])
	}
	if scored[1].Score != 0 || scored[2].Score != 0 {
		t.Fatalf("expected zero scores for fallback vectors, got %+v", scored[1:])
	}
	if scored[1].Index != 0 || scored[2].Index != 1 {
		t.Fatalf("expected chunk order preserved among ties, got %+v", scored)
	}
}

func TestSection(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.add(t, "u1", "cv", "SKILLS\nPython, Go\nEXPERIENCE\nDid stuff")
	r := f.retriever(t, nil)

	got, err := r.Section(context.Background(), "u1", "cv", "SKILLS")
	if err != nil || got != "Python, Go" {
		t.Fatalf("unexpected section %q, %v", got, err)
	}
	if _, err := r.Section(context.Background(), "u2", "cv", "SKILLS"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another owner, got %v", err)
	}
}

func TestPickLongerText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		supplied string
		stored   string
		want     string
	}{
		{name: "empty supplied", supplied: "", stored: "stored", want: "stored"},
		{name: "longer supplied", supplied: "supplied text", stored: "short", want: "supplied text"},
		{name: "longer stored", supplied: "a", stored: "stored", want: "stored"},
		{name: "whitespace supplied", supplied: "        ", stored: "x", want: "x"},
		{name: "tie prefers supplied", supplied: "abc", stored: "xyz", want: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := PickLongerText(tt.supplied, tt.stored); got != tt.want {
				t.Fatalf("PickLongerText(%q, %q) = %q, want %q", tt.supplied, tt.stored, got, tt.want)
			}
		})
	}
}
