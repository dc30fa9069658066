package batch

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"bytecraft/internal/classfmt"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// PrintSummary writes a human readable summary of r to w, failures first.
func (r *Report) PrintSummary(w io.Writer) {
	for _, f := range r.Failures {
		fmt.Fprintf(w, "%s %s (%s): %s\n", red("FAIL"), f.Class, f.Source, f.Error)
	}

	s := r.Stats
	status := green("ok")
	if s.Failed > 0 {
		status = red(fmt.Sprintf("%d failed", s.Failed))
	}
	fmt.Fprintf(w, "%s mode=%s workers=%d sources=%d classes=%d %s\n",
		bold("batch"), r.Mode, r.Workers, s.Sources, s.Classes, status)
	fmt.Fprintf(w, "  bytes in=%d out=%d", s.BytesIn, s.BytesOut)
	if s.BytesIn > 0 {
		fmt.Fprintf(w, " (%.1f%%)", float64(s.BytesOut)/float64(s.BytesIn)*100)
	}
	fmt.Fprintf(w, " elapsed=%s\n", s.Elapsed)

	kinds := make([]classfmt.DiagKind, 0, len(s.Diags))
	for k := range s.Diags {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		fmt.Fprintf(w, "  %s %s: %d\n", yellow("diag"), k, s.Diags[k])
	}
}
