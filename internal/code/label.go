// Package code models a method body between parsing and serialization:
// labels, instructions, verification types and stack-map frames, plus the
// assembler that lays a body out as bytecode.
package code

import (
	"fmt"

	"bytecraft/internal/classfmt"
)

// Label is a handle for a position in a method body whose byte offset may
// not be known yet. Handles are allocated by a Labels arena; offsets are
// stored separately in Offsets so producer and consumer each resolve
// labels against their own layout.
type Label int

// NoLabel is the zero handle for optional label fields.
const NoLabel Label = -1

func (l Label) String() string {
	if l == NoLabel {
		return "L?"
	}
	return fmt.Sprintf("L%d", int(l))
}

// Labels allocates label handles for one method body.
type Labels struct {
	n int
}

// New returns a fresh label.
func (ls *Labels) New() Label {
	ls.n++
	return Label(ls.n - 1)
}

// Len returns how many labels have been allocated.
func (ls *Labels) Len() int { return ls.n }

// Offsets maps labels to byte offsets. A label is placed at most once.
type Offsets struct {
	off []int
}

// NewOffsets returns an empty offset table.
func NewOffsets() *Offsets { return &Offsets{} }

// Place records off as the position of l. It reports false if l was
// already placed.
func (o *Offsets) Place(l Label, off int) bool {
	if l < 0 {
		return false
	}
	for int(l) >= len(o.off) {
		o.off = append(o.off, -1)
	}
	if o.off[l] >= 0 {
		return false
	}
	o.off[l] = off
	return true
}

// Placed reports whether l has an offset.
func (o *Offsets) Placed(l Label) bool {
	return l >= 0 && int(l) < len(o.off) && o.off[l] >= 0
}

// Resolve returns the offset of l or an ErrUnresolvedLabel error.
func (o *Offsets) Resolve(l Label) (int, error) {
	if !o.Placed(l) {
		return 0, classfmt.Unresolved("", int(l))
	}
	return o.off[l], nil
}

// Reset forgets every placement.
func (o *Offsets) Reset() { o.off = o.off[:0] }
