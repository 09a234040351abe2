package filtering

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/kenzatoreis/hiringbuddy/internal/store"
)

type latestPerOwnerFilter struct {
	toggle
	perOwner int
}

// NewLatestPerOwner keeps the perOwner most recent documents of every owner.
// A non-positive value disables the step.
func NewLatestPerOwner(perOwner int) Filter {
	f := &latestPerOwnerFilter{perOwner: perOwner}
	if perOwner <= 0 {
		f.Disable("no per-owner cap")
	}
	return f
}

func (f *latestPerOwnerFilter) Name() string { return "latest_per_owner" }

func (f *latestPerOwnerFilter) Apply(_ context.Context, docs []store.Document) ([]store.Document, Step, error) {
	seen := make(map[string]int)
	kept := make([]store.Document, 0, len(docs))
	for _, doc := range docs {
		if seen[doc.OwnerID] >= f.perOwner {
			continue
		}
		seen[doc.OwnerID]++
		kept = append(kept, doc)
	}
	return kept, step(len(docs), len(kept)), nil
}

func (f *latestPerOwnerFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"per_owner": strconv.Itoa(f.perOwner)},
	}
}

type excludeFilter struct {
	toggle
	ids map[string]struct{}
}

// NewExclude drops documents whose ID is listed.
func NewExclude(ids []string) Filter {
	f := &excludeFilter{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			f.ids[id] = struct{}{}
		}
	}
	if len(f.ids) == 0 {
		f.Disable("nothing to exclude")
	}
	return f
}

func (f *excludeFilter) Name() string { return "exclude_documents" }

func (f *excludeFilter) Apply(_ context.Context, docs []store.Document) ([]store.Document, Step, error) {
	kept := make([]store.Document, 0, len(docs))
	for _, doc := range docs {
		if _, skip := f.ids[doc.ID]; skip {
			continue
		}
		kept = append(kept, doc)
	}
	return kept, step(len(docs), len(kept)), nil
}

func (f *excludeFilter) Status() Status {
	ids := make([]string, 0, len(f.ids))
	for id := range f.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	details := map[string]string{}
	if len(ids) > 0 {
		details["documents"] = strings.Join(ids, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type limitFilter struct {
	toggle
	limit int
}

// NewLimit keeps the first limit documents. A non-positive limit disables the step.
func NewLimit(limit int) Filter {
	f := &limitFilter{limit: limit}
	if limit <= 0 {
		f.Disable("unlimited")
	}
	return f
}

func (f *limitFilter) Name() string { return "limit" }

func (f *limitFilter) Apply(_ context.Context, docs []store.Document) ([]store.Document, Step, error) {
	kept := docs
	if len(kept) > f.limit {
		kept = kept[:f.limit]
	}
	return kept, step(len(docs), len(kept)), nil
}

func (f *limitFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"limit": strconv.Itoa(f.limit)},
	}
}

func step(initial, left int) Step {
	return Step{Initial: initial, Dropped: initial - left, Left: left}
}
