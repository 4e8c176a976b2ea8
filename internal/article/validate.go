package article

import (
	"errors"
	"fmt"
)

// ErrIntegrity marks data-integrity validation failures. Articles failing
// integrity checks are rejected and never persisted; the fault is not
// retryable.
var ErrIntegrity = errors.New("article integrity")

// ValidateOutline checks the invariants every stage relies on: a title and
// at least one non-empty section.
func ValidateOutline(o *Outline) error {
	if o == nil {
		return fmt.Errorf("%w: nil outline", ErrIntegrity)
	}
	if o.Title == "" {
		return fmt.Errorf("%w: missing title", ErrIntegrity)
	}
	if len(o.Sections) == 0 {
		return fmt.Errorf("%w: empty outline", ErrIntegrity)
	}
	for i, s := range o.Sections {
		if s.Heading == "" {
			return fmt.Errorf("%w: section %d has no heading", ErrIntegrity, i)
		}
	}
	return nil
}

// Validate checks the finalized article: every inline marker resolves to
// exactly one reference entry, every entry is referenced at least once, and
// numbering is contiguous from 1 in first-use order.
func Validate(a *Article) error {
	if a.Title == "" {
		return fmt.Errorf("%w: missing title", ErrIntegrity)
	}
	if len(a.Sections) == 0 {
		return fmt.Errorf("%w: no sections", ErrIntegrity)
	}

	known := make(map[int]bool, len(a.References))
	for i, ref := range a.References {
		if ref.Number != i+1 {
			return fmt.Errorf("%w: reference %d numbered %d (want contiguous from 1)", ErrIntegrity, i, ref.Number)
		}
		if ref.Title == "" {
			return fmt.Errorf("%w: reference %d has no title", ErrIntegrity, ref.Number)
		}
		known[ref.Number] = true
	}

	used := make(map[int]bool, len(known))
	next := 1
	for _, s := range a.Sections {
		for _, n := range ExtractMarkers(s.Content) {
			if !known[n] {
				return fmt.Errorf("%w: marker [%d] in %q resolves to no reference", ErrIntegrity, n, s.Heading)
			}
			if !used[n] {
				if n != next {
					return fmt.Errorf("%w: marker [%d] appears before [%d]", ErrIntegrity, n, next)
				}
				used[n] = true
				next++
			}
		}
	}

	for n := range known {
		if !used[n] {
			return fmt.Errorf("%w: reference [%d] is never cited", ErrIntegrity, n)
		}
	}
	return nil
}
