package refs

import (
	"errors"
	"strings"
	"testing"

	"github.com/medkb/kbgen/internal/article"
	"github.com/medkb/kbgen/internal/paper"
)

func rec(title, doi string) paper.Record {
	return paper.Record{
		Title:   title,
		DOI:     doi,
		Authors: []string{"Jane Smith"},
		Year:    2021,
		Venue:   "The Lancet",
		URL:     "https://example.org/" + strings.ReplaceAll(strings.ToLower(title), " ", "-"),
	}
}

func draft(sections ...article.Section) *article.Outline {
	return &article.Outline{
		Title:    "Gout",
		Subtitle: "An inflammatory arthritis",
		Sections: sections,
	}
}

func TestResolveRenumbersByFirstUse(t *testing.T) {
	d := draft(
		article.Section{Heading: "Overview", Content: "Common condition [12]."},
		article.Section{Heading: "Causes", Content: "Urate crystals [7] and diet [12,7]."},
		article.Section{Heading: "References", Content: "placeholder"},
	)
	attached := map[int]paper.Record{
		7:  rec("Dietary factors in gout", "10.1/diet"),
		12: rec("Gout epidemiology", "10.1/epi"),
	}

	a, err := NewResolver(nil).Resolve(d, "Rheumatology", attached)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if got := a.Sections[0].Content; got != "Common condition [1]." {
		t.Errorf("Overview = %q", got)
	}
	if got := a.Sections[1].Content; got != "Urate crystals [2] and diet [1,2]." {
		t.Errorf("Causes = %q", got)
	}
	if len(a.References) != 2 {
		t.Fatalf("References = %d entries, want 2", len(a.References))
	}
	if a.References[0].Title != "Gout epidemiology" || a.References[0].Number != 1 {
		t.Errorf("first reference = %+v", a.References[0])
	}
	if a.Category != "Rheumatology" {
		t.Errorf("Category = %q", a.Category)
	}
}

func TestResolveMergesSameDOI(t *testing.T) {
	sparse := paper.Record{Title: "Shared Paper", DOI: "10.1/same", Authors: []string{"Jane Smith"}}
	rich := rec("Shared Paper", "10.1/same")

	d := draft(
		article.Section{Heading: "Overview", Content: "First [3], later again [9]."},
		article.Section{Heading: "References"},
	)
	a, err := NewResolver(nil).Resolve(d, "", map[int]paper.Record{3: sparse, 9: rich})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if got := a.Sections[0].Content; got != "First [1], later again [1]." {
		t.Errorf("content = %q", got)
	}
	if len(a.References) != 1 {
		t.Fatalf("References = %d entries, want 1 after merge", len(a.References))
	}
	// The merged entry carries the richer record's metadata.
	if a.References[0].Venue != "The Lancet" {
		t.Errorf("merged reference = %+v", a.References[0])
	}
}

func TestResolveMergesEquivalentTitlesDespiteDifferingDOIs(t *testing.T) {
	a1 := paper.Record{Title: "Uric Acid and Gout.", DOI: "10.1/aaa", Authors: []string{"A"}, Year: 2020}
	a2 := paper.Record{Title: "uric acid, and gout", DOI: "10.1/bbb", Authors: []string{"A", "B"}, Year: 2020, Venue: "BMJ"}

	d := draft(
		article.Section{Heading: "Overview", Content: "Seen twice [1] and [2]."},
		article.Section{Heading: "References"},
	)
	art, err := NewResolver(nil).Resolve(d, "", map[int]paper.Record{1: a1, 2: a2})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(art.References) != 1 {
		t.Fatalf("References = %d entries, want 1", len(art.References))
	}
	if got := art.Sections[0].Content; got != "Seen twice [1] and [1]." {
		t.Errorf("content = %q", got)
	}
}

func TestResolveMergesByNormalizedTitle(t *testing.T) {
	a1 := paper.Record{Title: "Gout: A Review.", Authors: []string{"A"}, Year: 2020}
	a2 := paper.Record{Title: "gout  a review", Authors: []string{"A", "B"}, Year: 2020, Venue: "BMJ"}

	d := draft(
		article.Section{Heading: "Overview", Content: "[1] and [2]."},
		article.Section{Heading: "References"},
	)
	art, err := NewResolver(nil).Resolve(d, "", map[int]paper.Record{1: a1, 2: a2})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(art.References) != 1 {
		t.Errorf("References = %d entries, want 1", len(art.References))
	}
}

func TestResolveDropsUncitedRecords(t *testing.T) {
	d := draft(
		article.Section{Heading: "Overview", Content: "Only this [2]."},
		article.Section{Heading: "References"},
	)
	attached := map[int]paper.Record{
		2: rec("Cited paper", "10.1/a"),
		5: rec("Never cited", "10.1/b"),
	}

	a, err := NewResolver(nil).Resolve(d, "", attached)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(a.References) != 1 || a.References[0].Title != "Cited paper" {
		t.Errorf("References = %+v", a.References)
	}
}

func TestResolveUnknownMarkerFailsIntegrity(t *testing.T) {
	d := draft(
		article.Section{Heading: "Overview", Content: "Phantom citation [42]."},
		article.Section{Heading: "References"},
	)
	_, err := NewResolver(nil).Resolve(d, "", map[int]paper.Record{1: rec("Real", "10.1/r")})
	if !errors.Is(err, article.ErrIntegrity) {
		t.Errorf("Resolve() error = %v, want ErrIntegrity", err)
	}
}

func TestResolveExpandsRanges(t *testing.T) {
	d := draft(
		article.Section{Heading: "Overview", Content: "Several studies [2,4-5]."},
		article.Section{Heading: "References"},
	)
	attached := map[int]paper.Record{
		2: rec("Paper two", "10.1/2"),
		4: rec("Paper four", "10.1/4"),
		5: rec("Paper five", "10.1/5"),
	}

	a, err := NewResolver(nil).Resolve(d, "", attached)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := a.Sections[0].Content; got != "Several studies [1,2,3]." {
		t.Errorf("content = %q", got)
	}
}

func TestResolveRendersReferenceSection(t *testing.T) {
	d := draft(
		article.Section{Heading: "Overview", Content: "One source [1]."},
		article.Section{Heading: "References", Content: "model-written junk"},
	)
	a, err := NewResolver(nil).Resolve(d, "", map[int]paper.Record{1: rec("Gout epidemiology", "10.1/epi")})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	refSection := a.Sections[1].Content
	if !strings.HasPrefix(refSection, "1. Jane Smith (2021). Gout epidemiology. The Lancet.") {
		t.Errorf("References section = %q", refSection)
	}
	if strings.Contains(refSection, "junk") {
		t.Error("model-written References content should be replaced")
	}
}
