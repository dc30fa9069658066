package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bytecraft/internal/classfile"
	"bytecraft/internal/output"
	"bytecraft/internal/trace"
)

type traceFlags struct {
	cbor         string
	diff         string
	expandFrames bool
	skipDebug    bool
	limit        int
}

func newTraceCmd(a *app) *cobra.Command {
	var f traceFlags
	cmd := &cobra.Command{
		Use:   "trace <in.class>",
		Short: "Print the visitor events of a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.trace(args[0], &f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.cbor, "cbor", "", "also write the events as canonical CBOR to this file")
	fl.StringVar(&f.diff, "diff", "", "compare the events with another class instead of printing them")
	fl.BoolVar(&f.expandFrames, "expand-frames", false, "report every stack map frame in expanded form")
	fl.BoolVar(&f.skipDebug, "skip-debug", false, "drop source file, line numbers and local variables")
	fl.IntVar(&f.limit, "limit", 20, "maximum number of differences to print with --diff")
	return cmd
}

func (a *app) recordFile(path string, opts classfile.ReadOptions) ([]trace.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	events, err := trace.Record(data, opts)
	if err != nil {
		return nil, fmt.Errorf("trace %s: %w", path, err)
	}
	return events, nil
}

func (a *app) trace(in string, f *traceFlags) error {
	opts := a.cfg.ReadOptions()
	if f.expandFrames {
		opts.ExpandFrames = true
	}
	if f.skipDebug {
		opts.SkipDebug = true
	}
	events, err := a.recordFile(in, opts)
	if err != nil {
		return err
	}
	if f.cbor != "" {
		if err := output.WriteTraceCBOR(f.cbor, events); err != nil {
			return err
		}
		a.log.Info().Str("path", f.cbor).Int("events", len(events)).Msg("wrote trace")
	}

	if f.diff == "" {
		return trace.Print(a.stdout, events)
	}
	other, err := a.recordFile(f.diff, opts)
	if err != nil {
		return err
	}
	mismatches := trace.Diff(events, other, f.limit)
	for _, m := range mismatches {
		fmt.Fprintln(a.stdout, m)
	}
	if len(mismatches) > 0 {
		return fmt.Errorf("%s and %s differ", in, f.diff)
	}
	fmt.Fprintf(a.stdout, "%d events identical\n", len(events))
	return nil
}
