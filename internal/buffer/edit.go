package buffer

import (
	"fmt"
	"unicode/utf8"
)

// Edit replaces the byte range [Start, End) with Text.
type Edit struct {
	Start int
	End   int
	Text  string
}

// IsAppend reports whether e inserts at offset n without removing anything.
func (e Edit) IsAppend(n int) bool {
	return e.Start == n && e.End == n
}

func (e Edit) validate(n int) error {
	if e.Start < 0 || e.End < e.Start || e.End > n {
		return fmt.Errorf("%w: [%d,%d) on %d bytes", ErrInvalidEdit, e.Start, e.End, n)
	}
	return nil
}

func (e Edit) apply(s string) string {
	return s[:e.Start] + e.Text + s[e.End:]
}

// invert returns the edit that undoes e when applied to e.apply(s).
func (e Edit) invert(s string) Edit {
	return Edit{Start: e.Start, End: e.Start + len(e.Text), Text: s[e.Start:e.End]}
}

// shift moves a cursor offset across e. A cursor at or after the replaced
// range moves with it; one inside the range lands after the new text.
func (e Edit) shift(cursor int) int {
	switch {
	case cursor >= e.End:
		return cursor + len(e.Text) - (e.End - e.Start)
	case cursor > e.Start:
		return e.Start + len(e.Text)
	default:
		return cursor
	}
}

// MinimalEdit returns the smallest single range replacement turning from
// into to, trimming the common prefix and suffix on rune boundaries. ok is
// false when the strings are equal.
func MinimalEdit(from, to string) (e Edit, ok bool) {
	if from == to {
		return Edit{}, false
	}

	limit := min(len(from), len(to))
	p := 0
	for p < limit && from[p] == to[p] {
		p++
	}
	for p > 0 && (p < len(from) && !utf8.RuneStart(from[p]) || p < len(to) && !utf8.RuneStart(to[p])) {
		p--
	}

	s := 0
	for s < limit-p && from[len(from)-1-s] == to[len(to)-1-s] {
		s++
	}
	for s > 0 && (!utf8.RuneStart(from[len(from)-s]) || !utf8.RuneStart(to[len(to)-s])) {
		s--
	}

	return Edit{Start: p, End: len(from) - s, Text: to[p : len(to)-s]}, true
}
