package patch

import "strings"

// Flatten applies sorted, non-overlapping patches to content in a single
// pass.
func Flatten(content string, patches []Patch) string {
	if len(patches) == 0 {
		return content
	}

	delta := 0
	for _, p := range patches {
		delta += len(p.Text) - (p.To - p.From)
	}

	var out strings.Builder
	out.Grow(max(0, len(content)+delta))

	cursor := 0
	for _, p := range patches {
		out.WriteString(content[cursor:p.From])
		out.WriteString(p.Text)
		cursor = p.To
	}
	out.WriteString(content[cursor:])

	return out.String()
}
