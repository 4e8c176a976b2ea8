// Package refs turns the provisional citation markers a model emits into
// a deduplicated, contiguously numbered reference list.
package refs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/medkb/kbgen/internal/article"
	"github.com/medkb/kbgen/internal/paper"
)

// Resolver finalizes one article draft against the paper records that were
// attached during integration, keyed by the provisional reference number
// each record was handed to the model under.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger}
}

// Resolve deduplicates the attached records, renumbers citations in
// first-use document order, rewrites every inline marker, and drops
// records the text never cites. A marker referencing a provisional number
// with no attached record is a data-integrity failure: the error wraps
// article.ErrIntegrity and no article is returned.
func (r *Resolver) Resolve(draft *article.Outline, category string, attached map[int]paper.Record) (*article.Article, error) {
	if err := article.ValidateOutline(draft); err != nil {
		return nil, err
	}

	// Collapse provisional numbers whose records describe the same paper.
	// canonical maps each provisional number to its group leader; the
	// leader's record is the most complete one seen for the group.
	canonical := make(map[int]int, len(attached))
	records := make(map[int]paper.Record, len(attached))

	provisionals := sortedKeys(attached)
	for _, n := range provisionals {
		rec := attached[n]
		merged := false
		for _, leader := range sortedKeys(records) {
			if paper.SameReference(records[leader], rec) {
				canonical[n] = leader
				if rec.Completeness() > records[leader].Completeness() {
					records[leader] = rec
				}
				merged = true
				break
			}
		}
		if !merged {
			canonical[n] = n
			records[n] = rec
		}
	}

	// Assign final numbers in first-use order across the document.
	finalOf := make(map[int]int) // group leader -> final number
	var order []int              // group leaders in final order
	for _, s := range draft.Sections {
		for _, n := range article.ExtractMarkers(s.Content) {
			leader, ok := canonical[n]
			if !ok {
				return nil, fmt.Errorf("%w: marker [%d] in %q has no attached record",
					article.ErrIntegrity, n, s.Heading)
			}
			if _, assigned := finalOf[leader]; !assigned {
				finalOf[leader] = len(order) + 1
				order = append(order, leader)
			}
		}
	}

	// Provisional -> final, for the rewrite.
	renumber := make(map[int]int, len(canonical))
	for n, leader := range canonical {
		if final, ok := finalOf[leader]; ok {
			renumber[n] = final
		}
	}

	if dropped := len(records) - len(order); dropped > 0 {
		r.logger.Debug("dropping uncited records", zap.Int("count", dropped))
	}

	out := &article.Article{
		Title:    draft.Title,
		Subtitle: draft.Subtitle,
		Category: category,
		Sections: make([]article.Section, len(draft.Sections)),
	}
	for i, s := range draft.Sections {
		rewritten, missing := article.RewriteMarkers(s.Content, renumber)
		if len(missing) > 0 {
			return nil, fmt.Errorf("%w: markers %v in %q did not resolve",
				article.ErrIntegrity, missing, s.Heading)
		}
		out.Sections[i] = article.Section{Heading: s.Heading, Content: rewritten}
	}

	for i, leader := range order {
		out.References = append(out.References, citationFor(i+1, records[leader]))
	}
	renderReferenceSection(out)

	if err := article.Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// citationFor formats one record as a numbered reference entry.
func citationFor(number int, rec paper.Record) article.Citation {
	c := article.Citation{
		Number:  number,
		Authors: paper.FormatAuthors(rec.Authors),
		Title:   rec.Title,
		Venue:   rec.Venue,
		URL:     rec.URL,
	}
	if rec.Year > 0 {
		c.Year = strconv.Itoa(rec.Year)
	}
	return c
}

// renderReferenceSection fills the References section body from the final
// reference list, replacing whatever the model wrote there.
func renderReferenceSection(a *article.Article) {
	var b strings.Builder
	for _, ref := range a.References {
		b.WriteString(strconv.Itoa(ref.Number))
		b.WriteString(". ")
		if ref.Authors != "" {
			b.WriteString(ref.Authors)
			b.WriteString(" ")
		}
		if ref.Year != "" {
			b.WriteString("(")
			b.WriteString(ref.Year)
			b.WriteString("). ")
		}
		b.WriteString(ref.Title)
		b.WriteString(".")
		if ref.Venue != "" {
			b.WriteString(" ")
			b.WriteString(ref.Venue)
			b.WriteString(".")
		}
		if ref.URL != "" {
			b.WriteString(" ")
			b.WriteString(ref.URL)
		}
		b.WriteString("\n")
	}

	for i := range a.Sections {
		if strings.EqualFold(a.Sections[i].Heading, "References") {
			a.Sections[i].Content = strings.TrimRight(b.String(), "\n")
			return
		}
	}
}

func sortedKeys(m map[int]paper.Record) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
