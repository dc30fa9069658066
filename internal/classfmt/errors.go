package classfmt

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison with errors.Is.
var (
	ErrMalformedInput       = errors.New("malformed class file")
	ErrInvalidConstantIndex = errors.New("invalid constant pool index")
	ErrUnresolvedLabel      = errors.New("unresolved label")
	ErrVerificationTopology = errors.New("incompatible control-flow merge")
	ErrClassTooLarge        = errors.New("class too large")
)

// Error locates a fatal condition. Kind is one of the sentinels above.
type Error struct {
	Kind   error
	Offset int    // byte offset, -1 if not applicable
	Where  string // attribute, method or instruction context
	Msg    string
}

func (e *Error) Error() string {
	s := e.Kind.Error()
	if e.Where != "" {
		s += " in " + e.Where
	}
	if e.Offset >= 0 {
		s += fmt.Sprintf(" at offset %d", e.Offset)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

func (e *Error) Unwrap() error { return e.Kind }

// Malformed reports truncated or structurally invalid input at offset.
func Malformed(offset int, format string, args ...any) error {
	return &Error{Kind: ErrMalformedInput, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// InvalidIndex reports a constant pool reference that is out of range or
// points at an entry of the wrong kind.
func InvalidIndex(offset int, index int, format string, args ...any) error {
	msg := fmt.Sprintf("#%d", index)
	if format != "" {
		msg += " " + fmt.Sprintf(format, args...)
	}
	return &Error{Kind: ErrInvalidConstantIndex, Offset: offset, Msg: msg}
}

// Unresolved reports a label used but never placed.
func Unresolved(where string, label int) error {
	return &Error{Kind: ErrUnresolvedLabel, Offset: -1, Where: where, Msg: fmt.Sprintf("L%d", label)}
}

// Topology reports a merge with no valid join, at instruction index insn.
func Topology(where string, insn int, format string, args ...any) error {
	loc := fmt.Sprintf("insn %d", insn)
	if where != "" {
		loc = where + " " + loc
	}
	return &Error{Kind: ErrVerificationTopology, Offset: -1, Where: loc, Msg: fmt.Sprintf(format, args...)}
}

// TooLarge reports a structure that exceeds a format limit.
func TooLarge(where string, format string, args ...any) error {
	return &Error{Kind: ErrClassTooLarge, Offset: -1, Where: where, Msg: fmt.Sprintf(format, args...)}
}

// In prefixes the location of an *Error with where, so errors raised deep
// in a codec pick up the method or attribute being processed.
func In(where string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		c := *e
		c.Where = where
		if e.Where != "" {
			c.Where += " " + e.Where
		}
		return &c
	}
	return fmt.Errorf("%s: %w", where, err)
}
