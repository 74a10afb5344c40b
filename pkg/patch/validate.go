package patch

import (
	"fmt"
	"sort"
)

// ValidationError describes a patch whose range does not fit the content.
type ValidationError struct {
	Patch   Patch
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid patch [%d:%d]: %s", e.Patch.From, e.Patch.To, e.Message)
}

// ConflictError describes two overlapping patches.
type ConflictError struct {
	First  Patch
	Second Patch
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("overlapping patches: [%d:%d] and [%d:%d]",
		e.First.From, e.First.To, e.Second.From, e.Second.To)
}

// Validate checks every patch range against contentLen and returns the
// first problem found.
func Validate(patches []Patch, contentLen int) error {
	for _, p := range patches {
		if p.From < 0 {
			return &ValidationError{Patch: p, Message: "start offset is negative"}
		}
		if p.To < p.From {
			return &ValidationError{Patch: p, Message: "end offset is before start offset"}
		}
		if p.To > contentLen {
			return &ValidationError{
				Patch:   p,
				Message: fmt.Sprintf("end offset %d exceeds content length %d", p.To, contentLen),
			}
		}
	}
	return nil
}

// Sort orders patches by start offset, then end offset, keeping the
// relative order of equal patches.
func Sort(patches []Patch) {
	sort.SliceStable(patches, func(i, j int) bool {
		if patches[i].From != patches[j].From {
			return patches[i].From < patches[j].From
		}
		return patches[i].To < patches[j].To
	})
}

// DetectConflicts returns the first overlap in a sorted slice, or nil.
func DetectConflicts(patches []Patch) error {
	for i := 1; i < len(patches); i++ {
		if patches[i].From < patches[i-1].To {
			return &ConflictError{First: patches[i-1], Second: patches[i]}
		}
	}
	return nil
}

// FilterConflicts splits a sorted slice into patches that can be applied
// together and patches that overlap an earlier accepted one. Insertions at
// the boundary of a replacement do not conflict with it.
func FilterConflicts(patches []Patch) ([]Patch, []Patch) {
	if len(patches) == 0 {
		return nil, nil
	}

	accepted := make([]Patch, 0, len(patches))
	var skipped []Patch

	accepted = append(accepted, patches[0])
	lastEnd := patches[0].To

	for _, p := range patches[1:] {
		if p.From >= lastEnd {
			accepted = append(accepted, p)
			lastEnd = max(lastEnd, p.To)
			continue
		}
		skipped = append(skipped, p)
	}

	return accepted, skipped
}
