// Package paper defines the normalized record shape for papers retrieved
// from bibliographic search services.
package paper

import (
	"strings"
	"unicode"
)

// Source identifies which bibliographic service a record came from.
type Source string

const (
	SourcePubMed          Source = "pubmed"
	SourceSemanticScholar Source = "s2"
)

// Record is the canonical, service-independent shape of one retrieved paper.
// Records with a missing abstract or missing DOI are still valid; records
// with no title or no authors are un-citable and are filtered out upstream.
type Record struct {
	Source Source `json:"source"`

	// External identity. DOI is the primary deduplication key; SourceID is
	// the service's own identifier (PMID or S2 paper ID).
	DOI      string `json:"doi,omitempty"`
	SourceID string `json:"source_id,omitempty"`

	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Year     int      `json:"year,omitempty"`
	Venue    string   `json:"venue,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
	URL      string   `json:"url,omitempty"`

	// CitationCount drives quality filtering and per-query ranking.
	CitationCount int `json:"citation_count,omitempty"`

	// Section and Query record which outline section and search query
	// produced this record.
	Section string `json:"section"`
	Query   string `json:"query"`
}

// SearchQuery is a model-generated query targeting the bibliographic
// search services, owned by one outline section.
type SearchQuery struct {
	Section string `json:"section"`
	Query   string `json:"query"`
}

// Citable reports whether the record carries enough metadata to appear
// in a reference list.
func (r Record) Citable() bool {
	return strings.TrimSpace(r.Title) != "" && len(r.Authors) > 0
}

// NormalizeDOI normalizes a DOI to a consistent format for comparison.
// It removes common URL prefixes (https://doi.org/, DOI:) and lowercases.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi.org/")
	doi = strings.TrimPrefix(doi, "DOI:")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.ToLower(doi)
}

// NormalizeTitle reduces a title to a comparison key: lowercase, letters
// and digits only, single-space separated. Deterministic by construction,
// no fuzzy scoring.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	lastSpace := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// SameReference reports whether two records describe the same paper:
// matching DOIs, or normalized-title equality. Either rule suffices, so
// the same paper indexed under different DOIs by different services still
// merges when the titles agree.
func SameReference(a, b Record) bool {
	if a.DOI != "" && b.DOI != "" && NormalizeDOI(a.DOI) == NormalizeDOI(b.DOI) {
		return true
	}
	ta, tb := NormalizeTitle(a.Title), NormalizeTitle(b.Title)
	return ta != "" && ta == tb
}

// Completeness scores how much usable metadata a record carries. Used when
// merging duplicates to pick the canonical copy.
func (r Record) Completeness() int {
	score := 0
	if r.Abstract != "" {
		score += 4
	}
	if r.URL != "" {
		score += 2
	}
	if r.DOI != "" {
		score += 2
	}
	if r.Venue != "" {
		score++
	}
	if r.Year != 0 {
		score++
	}
	return score
}

// FormatAuthors renders an author list for a citation: first three authors
// followed by "et al." when more exist.
func FormatAuthors(authors []string) string {
	if len(authors) == 0 {
		return ""
	}
	shown := authors
	if len(shown) > 3 {
		shown = shown[:3]
	}
	s := strings.Join(shown, ", ")
	if len(authors) > 3 {
		s += " et al."
	}
	return s
}
