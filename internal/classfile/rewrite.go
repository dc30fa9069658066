package classfile

import (
	"errors"
	"slices"

	"bytecraft/internal/classfmt"
)

// RewriteOptions configures Rewrite.
type RewriteOptions struct {
	Read     ReadOptions
	Write    Config
	CopyPool bool // start the writer's pool as a copy of the input pool
	// Adapt wraps the writer before the reader drives it. Nil keeps the
	// event stream unchanged.
	Adapt func(ClassVisitor) ClassVisitor
	// Check validates the events reaching the writer. A violation fails
	// the rewrite with an error wrapping ErrEventOrder.
	Check bool
}

// Rewrite reads a class and writes it back. The diagnostics of the read
// and write passes are returned even when the rewrite fails.
func Rewrite(data []byte, opts RewriteOptions) ([]byte, []classfmt.Diag, error) {
	r, err := NewReader(data)
	if err != nil {
		return nil, nil, err
	}
	w := NewWriter(opts.Write)
	if opts.CopyPool {
		w = NewWriterFrom(r, opts.Write)
	}
	var cv ClassVisitor = w
	if opts.Check {
		cv = Checked(cv)
	}
	if opts.Adapt != nil {
		cv = opts.Adapt(cv)
	}
	if err := acceptChecked(r, cv, opts.Read); err != nil {
		return nil, slices.Concat(r.Diags.Items(), w.Diags.Items()), err
	}
	out, err := w.Bytes()
	return out, slices.Concat(r.Diags.Items(), w.Diags.Items()), err
}

// acceptChecked drives cv, turning a Checked violation into an error.
func acceptChecked(r *Reader, cv ClassVisitor, opts ReadOptions) (err error) {
	defer func() {
		if v := recover(); v != nil {
			e, ok := v.(error)
			if !ok || !errors.Is(e, ErrEventOrder) {
				panic(v)
			}
			err = e
		}
	}()
	return r.Accept(cv, opts)
}
