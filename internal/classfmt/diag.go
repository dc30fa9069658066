package classfmt

import "fmt"

// DiagKind classifies a diagnostic message.
type DiagKind string

const (
	DiagUnknownAttribute  DiagKind = "unknown_attribute"
	DiagDeadCode          DiagKind = "dead_code"
	DiagWidened           DiagKind = "widened"
	DiagFramesRecomputed  DiagKind = "frames_recomputed"
	DiagDroppedAttributes DiagKind = "dropped_attribute"
)

// Diag records a recoverable situation handled locally by the reader or
// writer. Diags are never errors.
type Diag struct {
	Where string   `json:"where"`
	Kind  DiagKind `json:"kind"`
	Msg   string   `json:"msg"`
}

func (d Diag) String() string {
	return fmt.Sprintf("[%s] %s: %s", d.Kind, d.Where, d.Msg)
}

// Diags accumulates diagnostics.
type Diags struct {
	items []Diag
}

func (d *Diags) Add(where string, kind DiagKind, msg string) {
	d.items = append(d.items, Diag{Where: where, Kind: kind, Msg: msg})
}

func (d *Diags) Addf(where string, kind DiagKind, format string, args ...any) {
	d.items = append(d.items, Diag{Where: where, Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

func (d *Diags) Items() []Diag { return d.items }
func (d *Diags) Len() int      { return len(d.items) }

// Count returns the number of diagnostics of the given kind.
func (d *Diags) Count(kind DiagKind) int {
	n := 0
	for _, it := range d.items {
		if it.Kind == kind {
			n++
		}
	}
	return n
}
