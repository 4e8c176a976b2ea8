package s2

import (
	"github.com/medkb/kbgen/internal/paper"
)

// MapToRecord converts an S2Paper into the canonical record shape.
// The open-access PDF URL is preferred over the landing page when present.
func MapToRecord(p S2Paper) paper.Record {
	authors := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		if a.Name != "" {
			authors = append(authors, a.Name)
		}
	}

	u := p.URL
	if p.OpenAccessPDF.URL != "" {
		u = p.OpenAccessPDF.URL
	}

	return paper.Record{
		Source:        paper.SourceSemanticScholar,
		DOI:           p.ExternalIDs.DOI,
		SourceID:      p.PaperID,
		Title:         p.Title,
		Authors:       authors,
		Year:          p.Year,
		Venue:         p.Venue,
		Abstract:      p.Abstract,
		URL:           u,
		CitationCount: p.CitationCount,
	}
}
