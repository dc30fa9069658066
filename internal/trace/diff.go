package trace

import (
	"fmt"
	"io"
)

// Mismatch is a position where two event lists disagree. A missing side is
// the zero Event.
type Mismatch struct {
	Index int
	Want  Event
	Got   Event
}

func (m Mismatch) String() string {
	return fmt.Sprintf("#%d\n  - %s\n  + %s", m.Index, m.Want, m.Got)
}

// Diff compares two event lists position by position and returns up to
// limit mismatches. A limit of zero or less returns all of them.
func Diff(want, got []Event, limit int) []Mismatch {
	n := len(want)
	if len(got) > n {
		n = len(got)
	}
	var out []Mismatch
	for i := 0; i < n; i++ {
		var w, g Event
		if i < len(want) {
			w = want[i]
		}
		if i < len(got) {
			g = got[i]
		}
		if w == g {
			continue
		}
		out = append(out, Mismatch{Index: i, Want: w, Got: g})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Equal reports whether two event lists are identical.
func Equal(a, b []Event) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Print writes one event per line.
func Print(w io.Writer, events []Event) error {
	for _, e := range events {
		if _, err := fmt.Fprintln(w, e); err != nil {
			return err
		}
	}
	return nil
}
