package s2

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/medkb/kbgen/internal/paper"
	"github.com/medkb/kbgen/internal/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithAPIKey("test-key"),
	)
}

func TestSearch_HydratesThroughBatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/paper/search", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query"); got != "gout prevalence" {
			t.Errorf("query = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"total": 2,
			"data": []map[string]string{
				{"paperId": "aaa"},
				{"paperId": "bbb"},
			},
		})
	})
	mux.HandleFunc("/paper/batch", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs []string `json:"ids"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.IDs) != 2 {
			t.Errorf("batch ids = %v", req.IDs)
		}
		// Second entry null: unknown ID.
		w.Write([]byte(`[{"paperId":"aaa","title":"Gout Review","authors":[{"name":"Smith J"}],"year":2021,"citationCount":120,"externalIds":{"DOI":"10.1/abc"}},null]`))
	})

	c := newTestClient(t, mux.ServeHTTP)
	papers, err := c.Search(context.Background(), "gout prevalence", 20)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(papers) != 1 {
		t.Fatalf("Search() returned %d papers, want 1 (null dropped)", len(papers))
	}
	if papers[0].Title != "Gout Review" || papers[0].ExternalIDs.DOI != "10.1/abc" {
		t.Errorf("paper = %+v", papers[0])
	}
}

func TestSearch_NoResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total":0,"data":[]}`))
	})
	papers, err := c.Search(context.Background(), "nothing", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(papers) != 0 {
		t.Errorf("Search() = %v, want empty", papers)
	}
}

func TestDo_ClassifiesStatuses(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, retry.ErrRateLimited},
		{http.StatusInternalServerError, retry.ErrUnavailable},
		{http.StatusUnauthorized, retry.ErrAuth},
		{http.StatusBadRequest, retry.ErrBadRequest},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		_, err := c.Search(context.Background(), "q", 5)
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: error = %v, want %v", tt.status, err, tt.want)
		}
	}
}

func TestDo_SendsAPIKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Error("missing x-api-key header")
		}
		w.Write([]byte(`{"total":0,"data":[]}`))
	})
	if _, err := c.Search(context.Background(), "q", 5); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
}

func TestMapToRecord(t *testing.T) {
	var p S2Paper
	p.PaperID = "abc123"
	p.Title = "Uric Acid Pathways"
	p.Abstract = "Findings."
	p.Venue = "Nature"
	p.Year = 2020
	p.URL = "https://semanticscholar.org/paper/abc123"
	p.CitationCount = 55
	p.Authors = []S2Author{{Name: "Smith J"}, {Name: ""}, {Name: "Lee K"}}
	p.ExternalIDs.DOI = "10.1038/xyz"
	p.OpenAccessPDF.URL = "https://example.org/paper.pdf"

	rec := MapToRecord(p)
	if rec.Source != paper.SourceSemanticScholar {
		t.Errorf("Source = %q", rec.Source)
	}
	if rec.SourceID != "abc123" || rec.DOI != "10.1038/xyz" {
		t.Errorf("identifiers = %q / %q", rec.SourceID, rec.DOI)
	}
	if len(rec.Authors) != 2 {
		t.Errorf("Authors = %v, empty names should be dropped", rec.Authors)
	}
	if rec.URL != "https://example.org/paper.pdf" {
		t.Errorf("URL = %q, open-access PDF should be preferred", rec.URL)
	}
}
