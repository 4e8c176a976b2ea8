package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/medkb/kbgen/internal/cache"
	"github.com/medkb/kbgen/internal/paper"
)

func record(title string, citations int) paper.Record {
	return paper.Record{
		Source:        paper.SourceSemanticScholar,
		Title:         title,
		Authors:       []string{"Jane Smith"},
		Year:          2021,
		CitationCount: citations,
	}
}

func TestRunTagsAndMerges(t *testing.T) {
	svc := SearcherFunc(func(ctx context.Context, query string, limit int) ([]paper.Record, error) {
		return []paper.Record{record("Paper for "+query, 50)}, nil
	})

	a := NewAdapter(WithService(paper.SourceSemanticScholar, svc))
	queries := []paper.SearchQuery{
		{Section: "Causes", Query: "gout causes"},
		{Section: "Treatment", Query: "gout treatment"},
	}

	got, err := a.Run(context.Background(), queries)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Run() returned %d records, want 2", len(got))
	}
	if got[0].Section != "Causes" || got[0].Query != "gout causes" {
		t.Errorf("first record tags = %q/%q", got[0].Section, got[0].Query)
	}
	if got[1].Section != "Treatment" {
		t.Errorf("second record section = %q", got[1].Section)
	}
}

func TestRunSkipsFailedQueries(t *testing.T) {
	svc := SearcherFunc(func(ctx context.Context, query string, limit int) ([]paper.Record, error) {
		if query == "bad" {
			return nil, errors.New("service exploded")
		}
		return []paper.Record{record("Good paper", 50)}, nil
	})

	a := NewAdapter(WithService(paper.SourceSemanticScholar, svc))
	got, err := a.Run(context.Background(), []paper.SearchQuery{
		{Section: "A", Query: "bad"},
		{Section: "B", Query: "good"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(got) != 1 || got[0].Title != "Good paper" {
		t.Errorf("Run() = %+v, want only the good paper", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	svc := SearcherFunc(func(ctx context.Context, query string, limit int) ([]paper.Record, error) {
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewAdapter(WithService(paper.SourceSemanticScholar, svc))
	if _, err := a.Run(ctx, []paper.SearchQuery{{Section: "A", Query: "q"}}); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestSelectTopFiltersAndRanks(t *testing.T) {
	a := NewAdapter(WithTopPerQuery(2), WithMinCitations(10))

	records := []paper.Record{
		record("Low", 3),
		record("High", 200),
		record("Mid", 40),
		{Source: paper.SourceSemanticScholar, Title: "No authors", Year: 2020, CitationCount: 500},
	}

	got := a.selectTop(records)
	if len(got) != 2 {
		t.Fatalf("selectTop() kept %d records, want 2", len(got))
	}
	if got[0].Title != "High" || got[1].Title != "Mid" {
		t.Errorf("selectTop() order = %q, %q", got[0].Title, got[1].Title)
	}
}

func TestSelectTopKeepsUncountedSources(t *testing.T) {
	a := NewAdapter(WithMinCitations(10))

	pm := paper.Record{
		Source:  paper.SourcePubMed,
		Title:   "PubMed paper",
		Authors: []string{"Jane Smith"},
		Year:    2021,
	}
	got := a.selectTop([]paper.Record{pm})
	if len(got) != 1 {
		t.Errorf("selectTop() dropped a PubMed record with no citation count")
	}
}

func TestDedupPrefersCompleteRecord(t *testing.T) {
	sparse := paper.Record{
		Source:  paper.SourcePubMed,
		DOI:     "10.1/same",
		Title:   "Shared Paper",
		Authors: []string{"Jane Smith"},
		Section: "Causes",
		Query:   "first query",
	}
	rich := paper.Record{
		Source:        paper.SourceSemanticScholar,
		DOI:           "10.1/same",
		Title:         "Shared Paper",
		Authors:       []string{"Jane Smith"},
		Year:          2021,
		Venue:         "The Lancet",
		Abstract:      "Full abstract.",
		URL:           "https://example.org",
		CitationCount: 80,
		Section:       "Treatment",
		Query:         "second query",
	}

	got := dedup([]paper.Record{sparse, rich})
	if len(got) != 1 {
		t.Fatalf("dedup() kept %d records, want 1", len(got))
	}
	if got[0].Venue != "The Lancet" {
		t.Errorf("dedup() kept the sparse record: %+v", got[0])
	}
	// Position metadata follows the first sighting, not the richer record.
	if got[0].Section != "Causes" || got[0].Query != "first query" {
		t.Errorf("dedup() tags = %q/%q, want first-seen tags", got[0].Section, got[0].Query)
	}
}

func TestRunUsesCache(t *testing.T) {
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("cache.Open() error = %v", err)
	}
	defer store.Close()

	calls := 0
	svc := SearcherFunc(func(ctx context.Context, query string, limit int) ([]paper.Record, error) {
		calls++
		return []paper.Record{record("Cached paper", 50)}, nil
	})

	a := NewAdapter(
		WithService(paper.SourceSemanticScholar, svc),
		WithCache(store),
	)
	queries := []paper.SearchQuery{{Section: "A", Query: "repeat"}}

	for i := 0; i < 2; i++ {
		if _, err := a.Run(context.Background(), queries); err != nil {
			t.Fatalf("Run() #%d error = %v", i+1, err)
		}
	}
	if calls != 1 {
		t.Errorf("service called %d times, want 1 (second run should hit the cache)", calls)
	}
}
