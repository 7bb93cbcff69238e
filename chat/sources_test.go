package chat

import (
	"reflect"
	"testing"
)

func TestDedupeSourcesKeepsFirstOccurrence(t *testing.T) {
	in := []Source{
		{Source: "a.pdf", Title: "A", Page: 1},
		{Source: "other.pdf", Title: "A", Page: 1},
		{Source: "b.pdf", Title: "B", Page: 1},
	}

	got := DedupeSources(in)
	want := []Source{
		{Source: "a.pdf", Title: "A", Page: 1},
		{Source: "b.pdf", Title: "B", Page: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected result:\n got %+v\nwant %+v", got, want)
	}
}

func TestDedupeSourcesIsIdempotent(t *testing.T) {
	in := []Source{
		{Title: "B", Page: 2},
		{Title: "A", Page: 1},
		{Title: "B", Page: 2},
		{Title: "A", Page: 3},
		{Title: "A", Page: 1},
	}

	once := DedupeSources(in)
	twice := DedupeSources(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("expected idempotent dedup, got %+v then %+v", once, twice)
	}
	if len(once) != 3 {
		t.Fatalf("expected 3 unique sources, got %d", len(once))
	}
}

func TestDedupeSourcesIsCaseAndSpaceSensitive(t *testing.T) {
	in := []Source{
		{Title: "Guide", Page: 1},
		{Title: "guide", Page: 1},
		{Title: "Guide ", Page: 1},
	}
	if got := DedupeSources(in); len(got) != 3 {
		t.Fatalf("expected no normalization, got %+v", got)
	}
}

func TestDedupeSourcesEmpty(t *testing.T) {
	got := DedupeSources(nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestSourceLabel(t *testing.T) {
	src := Source{Title: "Mieux vivre avec la dépression", Page: 4}
	if got := src.Label(); got != "Mieux vivre avec la dépression (Page 4)" {
		t.Fatalf("unexpected label %q", got)
	}
}
