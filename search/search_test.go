package search_test

import (
	"testing"
	"time"

	"github.com/ZiyanaliSaiyed/GraphiVault/search"
)

func mustParse(t *testing.T, raw string) search.Query {
	t.Helper()

	q, err := search.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}

	return q
}

func sampleRecords() []search.Record {
	now := time.Now().UTC()

	return []search.Record{
		{
			ID:        "1",
			Name:      "vacation_beach.jpg",
			Tags:      []string{"beach", "summer"},
			Metadata:  map[string]any{"caption": "a day at the beach"},
			Size:      2 * 1024 * 1024,
			MimeType:  "image/jpeg",
			DateAdded: now.Add(-time.Hour),
		},
		{
			ID:        "2",
			Name:      "sunset_mountain.png",
			Tags:      []string{"sunset", "landscape"},
			Metadata:  map[string]any{"caption": "mountains at dusk"},
			Size:      512 * 1024,
			MimeType:  "image/png",
			DateAdded: now,
		},
	}
}

func TestParseDropsStopwordsAndKeepsTerms(t *testing.T) {
	q := mustParse(t, "the beach and summer")

	if len(q.Terms) != 2 {
		t.Fatalf("expected 2 terms after stopword removal, got %d: %+v", len(q.Terms), q.Terms)
	}
}

func TestParseFieldFilter(t *testing.T) {
	q := mustParse(t, "tag:beach type:jpeg")

	if len(q.Fields) != 2 {
		t.Fatalf("expected 2 field filters, got %d", len(q.Fields))
	}

	if q.Fields[0].Field != "tag" || q.Fields[0].Value != "beach" {
		t.Fatalf("unexpected first filter: %+v", q.Fields[0])
	}

	if q.Fields[1].Field != "type" || q.Fields[1].Value != "jpeg" {
		t.Fatalf("unexpected second filter: %+v", q.Fields[1])
	}
}

func TestParseSizePredicate(t *testing.T) {
	q := mustParse(t, ">1MB")

	if len(q.Sizes) != 1 {
		t.Fatalf("expected 1 size predicate, got %d", len(q.Sizes))
	}

	if q.Sizes[0].Op != '>' || q.Sizes[0].Bytes != 1024*1024 {
		t.Fatalf("unexpected size predicate: %+v", q.Sizes[0])
	}
}

func TestSearchTermMatchesOnlyRecordContainingIt(t *testing.T) {
	records := sampleRecords()

	results := search.Search(records, mustParse(t, "beach"))
	if len(results) != 1 || results[0].Record.ID != "1" {
		t.Fatalf("expected only record 1 to match 'beach', got %+v", results)
	}
}

func TestSearchPrefixRankedAboveSubstring(t *testing.T) {
	records := []search.Record{
		{ID: "1", Name: "sun_deck.jpg", DateAdded: time.Now().Add(-time.Hour)},
		{ID: "2", Name: "sunset_mountain.png", DateAdded: time.Now()},
		{ID: "3", Name: "afternoon_sun.jpg", DateAdded: time.Now().Add(-2 * time.Hour)},
	}

	results := search.Search(records, mustParse(t, "sun"))
	if len(results) != 3 {
		t.Fatalf("expected all 3 records to match 'sun', got %d", len(results))
	}

	// records 1 and 2 both get the name-prefix bonus (+3.0); record 3
	// only gets the substring bonus (+2.0) and should rank last.
	if results[2].Record.ID != "3" {
		t.Fatalf("expected record 3 ranked last, got order %+v", results)
	}
}

func TestSearchSizePredicateFilters(t *testing.T) {
	records := sampleRecords()

	results := search.Search(records, mustParse(t, ">1MB"))
	if len(results) != 1 || results[0].Record.ID != "1" {
		t.Fatalf("expected only the 2MB record to survive >1MB, got %+v", results)
	}
}

func TestSearchFieldFilterTag(t *testing.T) {
	records := sampleRecords()

	results := search.Search(records, mustParse(t, "tag:landscape"))
	if len(results) != 1 || results[0].Record.ID != "2" {
		t.Fatalf("expected only record 2 to match tag:landscape, got %+v", results)
	}
}

func TestSearchWildcard(t *testing.T) {
	records := sampleRecords()

	results := search.Search(records, mustParse(t, "*beach*"))
	if len(results) != 1 || results[0].Record.ID != "1" {
		t.Fatalf("expected only record 1 to match '*beach*', got %+v", results)
	}
}

func TestSearchNoTermsReturnsAllFilteredByFields(t *testing.T) {
	records := sampleRecords()

	results := search.Search(records, mustParse(t, "type:png"))
	if len(results) != 1 || results[0].Record.ID != "2" {
		t.Fatalf("expected only record 2 for type:png with no bare terms, got %+v", results)
	}
}
