// Package patch collects span replacements discovered while scanning a
// document and applies them to the original text in one pass.
package patch

import "sort"

// Patch replaces the bytes [From, To) of the original text with Text.
// From == To is a pure insertion; an empty Text is a deletion.
type Patch struct {
	From int
	To   int
	Text string
}

// List keeps patches ordered by (From, To). Patches may be inserted in any
// order: a rewriter that recurses into a sub-span discovers patches that
// start before ones it has already recorded.
type List struct {
	patches []Patch
}

// NewList returns an empty list.
func NewList() *List {
	return &List{}
}

// Insert splices a patch into position. A patch lands after every existing
// patch that starts earlier, or starts at the same offset and ends no
// later, so insertions at one offset keep their discovery order.
func (l *List) Insert(from, to int, text string) {
	p := Patch{From: from, To: to, Text: text}
	idx := sort.Search(len(l.patches), func(i int) bool {
		q := l.patches[i]
		return q.From > from || (q.From == from && q.To > to)
	})
	l.patches = append(l.patches, Patch{})
	copy(l.patches[idx+1:], l.patches[idx:])
	l.patches[idx] = p
}

// Replace records a replacement of [from, to).
func (l *List) Replace(from, to int, text string) {
	l.Insert(from, to, text)
}

// InsertAt records a pure insertion at offset.
func (l *List) InsertAt(offset int, text string) {
	l.Insert(offset, offset, text)
}

// Delete records removal of [from, to).
func (l *List) Delete(from, to int) {
	l.Insert(from, to, "")
}

// Len returns the number of recorded patches.
func (l *List) Len() int {
	return len(l.patches)
}

// Patches returns a copy of the patches in order.
func (l *List) Patches() []Patch {
	out := make([]Patch, len(l.patches))
	copy(out, l.patches)
	return out
}

// Apply flattens the list over content. Patches out of range are rejected
// with an error; overlapping patches are resolved by keeping the earliest
// and the rest are returned as skipped.
func (l *List) Apply(content string) (string, []Patch, error) {
	if len(l.patches) == 0 {
		return content, nil, nil
	}
	if err := Validate(l.patches, len(content)); err != nil {
		return content, nil, err
	}
	accepted, skipped := FilterConflicts(l.patches)
	return Flatten(content, accepted), skipped, nil
}
