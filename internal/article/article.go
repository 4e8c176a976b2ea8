// Package article defines the typed contract for outlines, sections, and
// finalized articles, and the inline citation-marker syntax shared by the
// generation stages and the reference resolver.
package article

import (
	"regexp"
	"strconv"
	"strings"
)

// RequiredHeadings is the fixed section set every generated outline must
// contain, in article order.
var RequiredHeadings = []string{
	"Overview",
	"Key Facts",
	"Symptoms",
	"Types",
	"Causes",
	"Risk Factors",
	"Diagnosis",
	"Prevention",
	"Specialist to Visit",
	"Treatment",
	"Home-Care",
	"Living With",
	"Complications",
	"Alternative Therapies",
	"FAQs",
	"References",
}

// Section is one heading of an outline. Content is markdown and may carry
// inline citation markers like [3] or [2,5-7]; markers are provisional
// until the reference resolver rewrites them.
type Section struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// Outline is the per-condition document state mutated by the pipeline
// stages. It is owned by one pipeline run and never shared.
type Outline struct {
	Title    string    `json:"title"`
	Subtitle string    `json:"subtitle"`
	Sections []Section `json:"sections"`
}

// Citation is one finalized, numbered reference entry.
type Citation struct {
	Number  int    `json:"reference_number"`
	Authors string `json:"authors"`
	Year    string `json:"year,omitempty"`
	Title   string `json:"title"`
	Venue   string `json:"journal_source,omitempty"`
	URL     string `json:"url_doi,omitempty"`
}

// Article is the terminal artifact: the outline plus its deduplicated,
// contiguously numbered reference list. Written once, atomically.
type Article struct {
	Title      string     `json:"title"`
	Subtitle   string     `json:"subtitle"`
	Category   string     `json:"category,omitempty"`
	Sections   []Section  `json:"sections"`
	References []Citation `json:"references"`
}

// markerPattern matches bracketed citation markers. Only contents made of
// digits, commas, and hyphens count; other bracketed text (markdown links,
// FAQs arrays) is left alone.
var markerPattern = regexp.MustCompile(`\[(\d+(?:\s*[,-]\s*\d+)*)\]`)

// ExtractMarkers returns every citation number referenced by the text, in
// order of appearance, with ranges expanded: "[2,5-7]" yields 2,5,6,7.
func ExtractMarkers(text string) []int {
	var nums []int
	for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
		nums = append(nums, expandMarker(m[1])...)
	}
	return nums
}

// expandMarker expands the inside of one bracket: "2, 23-25" -> 2,23,24,25.
func expandMarker(body string) []int {
	var nums []int
	for _, part := range strings.Split(body, ",") {
		part = strings.TrimSpace(part)
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err1 := strconv.Atoi(strings.TrimSpace(lo))
			end, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if err1 != nil || err2 != nil || end < start {
				continue
			}
			for n := start; n <= end; n++ {
				nums = append(nums, n)
			}
			continue
		}
		if n, err := strconv.Atoi(part); err == nil {
			nums = append(nums, n)
		}
	}
	return nums
}

// RewriteMarkers replaces every citation number in the text using the
// renumber map. Ranges are expanded to explicit lists since renumbering
// does not preserve contiguity. Markers containing any unmapped number are
// returned in missing and left untouched.
func RewriteMarkers(text string, renumber map[int]int) (rewritten string, missing []int) {
	rewritten = markerPattern.ReplaceAllStringFunc(text, func(m string) string {
		body := m[1 : len(m)-1]
		nums := expandMarker(body)
		if len(nums) == 0 {
			return m
		}

		out := make([]string, 0, len(nums))
		seen := make(map[int]bool, len(nums))
		ok := true
		for _, n := range nums {
			final, found := renumber[n]
			if !found {
				missing = append(missing, n)
				ok = false
				continue
			}
			if seen[final] {
				continue
			}
			seen[final] = true
			out = append(out, strconv.Itoa(final))
		}
		if !ok {
			return m
		}
		return "[" + strings.Join(out, ",") + "]"
	})
	return rewritten, missing
}

// Section returns a pointer to the section with the given heading, or nil.
// Matching is case-insensitive.
func (o *Outline) Section(heading string) *Section {
	for i := range o.Sections {
		if strings.EqualFold(o.Sections[i].Heading, heading) {
			return &o.Sections[i]
		}
	}
	return nil
}
