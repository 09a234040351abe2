package filtering

import (
	"context"
	"errors"
	"testing"

	"github.com/kenzatoreis/hiringbuddy/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func docs(pairs ...string) []store.Document {
	out := make([]store.Document, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, store.Document{ID: pairs[i], OwnerID: pairs[i+1]})
	}
	return out
}

func ids(in []store.Document) []string {
	out := make([]string, len(in))
	for i, d := range in {
		out[i] = d.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLatestPerOwner(t *testing.T) {
	t.Parallel()

	input := docs("d3", "u1", "d2", "u2", "d1", "u1", "d0", "u2")
	got, info, err := NewLatestPerOwner(1).Apply(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equal(ids(got), []string{"d3", "d2"}) {
		t.Fatalf("unexpected documents %v", ids(got))
	}
	if info != (Step{Initial: 4, Dropped: 2, Left: 2}) {
		t.Fatalf("unexpected step %+v", info)
	}

	if NewLatestPerOwner(0).IsEnabled() {
		t.Fatal("expected non-positive cap to disable the filter")
	}
}

func TestExcludeAndLimit(t *testing.T) {
	t.Parallel()

	input := docs("a", "u", "b", "u", "c", "u")

	got, _, _ := NewExclude([]string{" b ", ""}).Apply(context.Background(), input)
	if !equal(ids(got), []string{"a", "c"}) {
		t.Fatalf("unexpected documents %v", ids(got))
	}
	if NewExclude(nil).IsEnabled() {
		t.Fatal("expected empty exclude list to disable the filter")
	}

	got, info, _ := NewLimit(2).Apply(context.Background(), input)
	if !equal(ids(got), []string{"a", "b"}) || info.Dropped != 1 {
		t.Fatalf("unexpected limit result %v %+v", ids(got), info)
	}
	if NewLimit(0).IsEnabled() {
		t.Fatal("expected zero limit to disable the filter")
	}
}

type failingFilter struct{ toggle }

func (f *failingFilter) Name() string { return "failing" }

func (f *failingFilter) Apply(context.Context, []store.Document) ([]store.Document, Step, error) {
	return nil, Step{}, errors.New("boom")
}

func TestRun(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	input := docs("d3", "u1", "d2", "u1", "d1", "u2")
	steps := []Filter{NewExclude([]string{"d3"}), NewLatestPerOwner(1), NewLimit(5)}

	got, err := Run(context.Background(), logger, steps, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equal(ids(got), []string{"d2", "d1"}) {
		t.Fatalf("unexpected documents %v", ids(got))
	}
	if len(input) != 3 || input[0].ID != "d3" {
		t.Fatalf("input was modified: %v", ids(input))
	}
	if n := observed.FilterMessage("filter step").Len(); n != 3 {
		t.Fatalf("expected 3 step logs, got %d", n)
	}

	DisableByName(steps, "latest_per_owner", "widened by caller")
	got, _ = Run(context.Background(), nil, steps, input)
	if len(got) != 2 {
		t.Fatalf("expected 2 documents once cap is disabled, got %v", ids(got))
	}

	if _, err := Run(context.Background(), nil, []Filter{&failingFilter{}}, input); err == nil {
		t.Fatal("expected error from failing filter")
	}
}

func TestDescribe(t *testing.T) {
	steps := []Filter{NewLatestPerOwner(1), NewExclude(nil), &failingFilter{}}
	statuses := Describe(steps)

	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if !statuses[0].Enabled || statuses[0].Details["per_owner"] != "1" {
		t.Fatalf("unexpected status %+v", statuses[0])
	}
	if statuses[1].Enabled || statuses[1].Reason != "nothing to exclude" {
		t.Fatalf("unexpected status %+v", statuses[1])
	}
	if statuses[2].Name != "failing" || !statuses[2].Enabled {
		t.Fatalf("unexpected status %+v", statuses[2])
	}
}
