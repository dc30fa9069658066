package main

import (
	"github.com/spf13/cobra"

	"bytecraft/internal/batch"
	"bytecraft/internal/output"
)

type batchFlags struct {
	mode    string
	workers int
	report  string
	out     string
}

func newBatchCmd(a *app) *cobra.Command {
	var f batchFlags
	cmd := &cobra.Command{
		Use:   "batch <dir|jar>...",
		Short: "Rewrite every class of directories and jars",
		Long: `batch reads and rewrites every class found in the given directories
and jars with a bounded worker pool, then prints a summary. The inputs
are also used to resolve common superclasses.

Modes: copy, plain, maxs, frames, skip-debug.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.batch(cmd, args, &f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.mode, "mode", "", "rewrite mode (default from config)")
	fl.IntVar(&f.workers, "workers", 0, "worker count (default from config)")
	fl.StringVar(&f.report, "report", "", "write the JSON report to this file")
	fl.StringVar(&f.out, "out", "", "write rewritten classes under this directory")
	return cmd
}

func (a *app) batch(cmd *cobra.Command, inputs []string, f *batchFlags) (err error) {
	mode, workers := a.cfg.Batch.Mode, a.cfg.Batch.Workers
	if f.mode != "" {
		mode = f.mode
	}
	if f.workers > 0 {
		workers = f.workers
	}
	m, err := batch.ParseMode(mode)
	if err != nil {
		return err
	}

	path, err := a.hierarchy(inputs...)
	if err != nil {
		return err
	}
	defer closePath(path, &err)
	sources := path.Sources()[len(a.cfg.Classpath):]

	report, runErr := batch.Run(cmd.Context(), sources, batch.Options{
		Mode:      m,
		Workers:   workers,
		Hierarchy: path,
		OutDir:    f.out,
		Log:       a.log,
	})
	if report == nil {
		return runErr
	}
	report.PrintSummary(a.stdout)
	if f.report != "" {
		if err := output.WriteJSON(f.report, report); err != nil {
			return err
		}
	}
	return runErr
}
