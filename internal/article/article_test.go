package article

import (
	"reflect"
	"testing"
)

func TestExtractMarkers(t *testing.T) {
	tests := []struct {
		text string
		want []int
	}{
		{"Prevalence is rising [1].", []int{1}},
		{"Shown in trials [2,5-7] and reviews [3].", []int{2, 5, 6, 7, 3}},
		{"See [the docs](https://example.com) for more.", nil},
		{"Mixed [1] and [not a marker].", []int{1}},
		{"Range with spaces [2, 4 - 6].", []int{2, 4, 5, 6}},
		{"Inverted range [5-3] is skipped, single [9] kept.", []int{9}},
		{"", nil},
	}
	for _, tt := range tests {
		if got := ExtractMarkers(tt.text); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ExtractMarkers(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestRewriteMarkers(t *testing.T) {
	renumber := map[int]int{1: 1, 2: 1, 3: 2, 4: 3}

	got, missing := RewriteMarkers("a [1] b [2] c [3-4]", renumber)
	if len(missing) != 0 {
		t.Fatalf("unexpected missing markers: %v", missing)
	}
	if got != "a [1] b [1] c [2,3]" {
		t.Errorf("RewriteMarkers = %q", got)
	}

	// Duplicate finals inside one bracket collapse.
	got, _ = RewriteMarkers("[1,2]", renumber)
	if got != "[1]" {
		t.Errorf("RewriteMarkers([1,2]) = %q, want [1]", got)
	}

	// Unknown numbers are reported and the marker left alone.
	got, missing = RewriteMarkers("see [9]", renumber)
	if got != "see [9]" {
		t.Errorf("unresolved marker was rewritten: %q", got)
	}
	if len(missing) != 1 || missing[0] != 9 {
		t.Errorf("missing = %v, want [9]", missing)
	}

	// Non-marker brackets untouched.
	got, missing = RewriteMarkers("[link](url)", renumber)
	if got != "[link](url)" || missing != nil {
		t.Errorf("markdown link altered: %q, missing %v", got, missing)
	}
}

func TestValidateOutline(t *testing.T) {
	valid := &Outline{
		Title:    "Gout",
		Sections: []Section{{Heading: "Overview", Content: "x"}},
	}
	if err := ValidateOutline(valid); err != nil {
		t.Errorf("ValidateOutline(valid) = %v", err)
	}

	for name, o := range map[string]*Outline{
		"nil":        nil,
		"no title":   {Sections: []Section{{Heading: "A"}}},
		"empty":      {Title: "Gout"},
		"no heading": {Title: "Gout", Sections: []Section{{Content: "x"}}},
	} {
		if err := ValidateOutline(o); err == nil {
			t.Errorf("ValidateOutline(%s) expected error", name)
		}
	}
}

func TestValidate(t *testing.T) {
	good := &Article{
		Title: "Gout",
		Sections: []Section{
			{Heading: "Overview", Content: "Common [1]."},
			{Heading: "Treatment", Content: "Allopurinol [1,2]."},
		},
		References: []Citation{
			{Number: 1, Title: "A"},
			{Number: 2, Title: "B"},
		},
	}
	if err := Validate(good); err != nil {
		t.Errorf("Validate(good) = %v", err)
	}

	dangling := &Article{
		Title:      "Gout",
		Sections:   []Section{{Heading: "Overview", Content: "x [1] y [3]"}},
		References: []Citation{{Number: 1, Title: "A"}},
	}
	if err := Validate(dangling); err == nil {
		t.Error("Validate should reject dangling marker")
	}

	unused := &Article{
		Title:      "Gout",
		Sections:   []Section{{Heading: "Overview", Content: "x [1]"}},
		References: []Citation{{Number: 1, Title: "A"}, {Number: 2, Title: "B"}},
	}
	if err := Validate(unused); err == nil {
		t.Error("Validate should reject unused reference")
	}

	outOfOrder := &Article{
		Title:      "Gout",
		Sections:   []Section{{Heading: "Overview", Content: "x [2] y [1]"}},
		References: []Citation{{Number: 1, Title: "A"}, {Number: 2, Title: "B"}},
	}
	if err := Validate(outOfOrder); err == nil {
		t.Error("Validate should reject non-first-use numbering")
	}

	gapped := &Article{
		Title:      "Gout",
		Sections:   []Section{{Heading: "Overview", Content: "x [1]"}},
		References: []Citation{{Number: 1, Title: "A"}, {Number: 3, Title: "B"}},
	}
	if err := Validate(gapped); err == nil {
		t.Error("Validate should reject non-contiguous numbering")
	}
}

func TestOutlineSection(t *testing.T) {
	o := &Outline{Sections: []Section{{Heading: "Overview"}, {Heading: "FAQs"}}}
	if s := o.Section("faqs"); s == nil || s.Heading != "FAQs" {
		t.Errorf("Section(faqs) = %v", s)
	}
	if o.Section("Missing") != nil {
		t.Error("Section(Missing) should be nil")
	}
}
