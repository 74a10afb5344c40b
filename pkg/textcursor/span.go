package textcursor

import "fmt"

// Span is a half-open [From, To) byte range into the buffer a Cursor was
// created over. Spans are values and never change after creation.
type Span struct {
	From int
	To   int

	src string
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.To - s.From
}

// Empty reports whether the span covers no bytes.
func (s Span) Empty() bool {
	return s.To <= s.From
}

// Text returns the covered substring of the original buffer.
func (s Span) Text() string {
	if s.src == "" || s.Empty() {
		return ""
	}
	return s.src[s.From:s.To]
}

// Inner returns the span shrunk by n bytes on each side, or an empty span
// at the midpoint when the span is shorter than 2n.
func (s Span) Inner(n int) Span {
	if s.Len() < 2*n {
		mid := s.From + s.Len()/2
		return Span{From: mid, To: mid, src: s.src}
	}
	return Span{From: s.From + n, To: s.To - n, src: s.src}
}

func (s Span) String() string {
	return fmt.Sprintf("[%d:%d]", s.From, s.To)
}
