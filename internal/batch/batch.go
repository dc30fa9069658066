// Package batch rewrites every class of a set of directories and jars in
// parallel. Each class gets its own reader, pool, writer and analyzer
// state; only the input bytes are shared.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"bytecraft/internal/classfile"
	"bytecraft/internal/classfmt"
	"bytecraft/internal/classpath"
	"bytecraft/internal/flow"
	"bytecraft/internal/output"
)

// Mode selects how each class is deserialized and reserialized.
type Mode string

const (
	// ModeCopy writes with a copy of the input pool and trusts maxs and frames.
	ModeCopy Mode = "copy"
	// ModePlain rebuilds the pool and trusts maxs and frames.
	ModePlain Mode = "plain"
	// ModeMaxs recomputes max stack and max locals.
	ModeMaxs Mode = "maxs"
	// ModeFrames recomputes maxs and every stack map frame.
	ModeFrames Mode = "frames"
	// ModeSkipDebug drops debug information while rewriting.
	ModeSkipDebug Mode = "skip-debug"
)

// Modes lists every mode in a stable order.
var Modes = []Mode{ModeCopy, ModePlain, ModeMaxs, ModeFrames, ModeSkipDebug}

// ParseMode maps a mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown batch mode %q", s)
}

// RewriteOptions returns the rewrite settings for m. h resolves common
// superclasses when frames are computed and may be nil.
func (m Mode) RewriteOptions(h flow.Hierarchy) classfile.RewriteOptions {
	opts := classfile.RewriteOptions{Write: classfile.Config{Hierarchy: h}}
	switch m {
	case ModeCopy:
		opts.CopyPool = true
	case ModeMaxs:
		opts.Write.Compute = classfile.ComputeMaxs
	case ModeFrames:
		opts.Read.SkipFrames = true
		opts.Write.Compute = classfile.ComputeFrames
	case ModeSkipDebug:
		opts.Read.SkipDebug = true
	}
	return opts
}

// Options configures Run.
type Options struct {
	Mode      Mode
	Workers   int            // <= 0 uses GOMAXPROCS
	Hierarchy flow.Hierarchy // nil joins unrelated classes to java/lang/Object
	OutDir    string         // when set, rewritten classes are written here
	Log       zerolog.Logger
}

// ClassResult is the outcome of one class.
type ClassResult struct {
	Class   string
	Source  string
	InSize  int
	OutSize int
	Diags   []classfmt.Diag
	Err     error
	Elapsed time.Duration
}

// Stats summarizes a run.
type Stats struct {
	Sources  int                      `json:"sources"`
	Classes  int                      `json:"classes"`
	Failed   int                      `json:"failed"`
	BytesIn  int64                    `json:"bytes_in"`
	BytesOut int64                    `json:"bytes_out"`
	Diags    map[classfmt.DiagKind]int `json:"diags,omitempty"`
	Elapsed  time.Duration            `json:"elapsed_ns"`
}

// Failure names a class that could not be rewritten.
type Failure struct {
	Class  string `json:"class"`
	Source string `json:"source"`
	Error  string `json:"error"`
}

// Report is the result of a run, suitable for JSON output.
type Report struct {
	Mode     Mode      `json:"mode"`
	Workers  int       `json:"workers"`
	Stats    Stats     `json:"stats"`
	Failures []Failure `json:"failures,omitempty"`
}

// Run rewrites every class of sources with a bounded worker pool. Class
// failures do not stop the run; they are listed in the report and
// returned together as a multierror. Source walk errors and cancellation
// abort the run.
func Run(ctx context.Context, sources []classpath.Source, opts Options) (*Report, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	rw := opts.Mode.RewriteOptions(opts.Hierarchy)
	log := opts.Log.With().Str("mode", string(opts.Mode)).Logger()

	start := time.Now()
	var (
		mu      sync.Mutex
		results []ClassResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, src := range sources {
		err := src.Walk(func(class string, data []byte) error {
			if err := gctx.Err(); err != nil {
				return err
			}
			g.Go(func() error {
				res := Process(class, data, rw, opts.OutDir)
				res.Source = src.Name()
				if res.Err != nil {
					log.Warn().Err(res.Err).Str("class", class).Str("source", res.Source).Msg("rewrite failed")
				} else {
					log.Debug().Str("class", class).Int("in", res.InSize).Int("out", res.OutSize).
						Int("diags", len(res.Diags)).Dur("elapsed", res.Elapsed).Msg("rewrote")
				}
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
				return nil
			})
			return nil
		})
		if err != nil {
			g.Wait()
			return nil, fmt.Errorf("batch: walk %s: %w", src.Name(), err)
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report, errs := summarize(results, opts.Mode, workers, len(sources))
	report.Stats.Elapsed = time.Since(start)
	log.Info().Int("classes", report.Stats.Classes).Int("failed", report.Stats.Failed).
		Int64("bytes_in", report.Stats.BytesIn).Int64("bytes_out", report.Stats.BytesOut).
		Dur("elapsed", report.Stats.Elapsed).Msg("batch done")
	return report, errs
}

// Process rewrites one class and, when outDir is set, writes the result
// there.
func Process(class string, data []byte, opts classfile.RewriteOptions, outDir string) ClassResult {
	start := time.Now()
	res := ClassResult{Class: class, InSize: len(data)}
	out, diags, err := classfile.Rewrite(data, opts)
	res.Diags = diags
	if err == nil && outDir != "" {
		err = output.WriteClass(outDir, class, out)
	}
	res.Err = err
	if err == nil {
		res.OutSize = len(out)
	}
	res.Elapsed = time.Since(start)
	return res
}

// summarize orders results by source and class so reports are stable
// regardless of scheduling.
func summarize(results []ClassResult, mode Mode, workers, sources int) (*Report, error) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Source != results[j].Source {
			return results[i].Source < results[j].Source
		}
		return results[i].Class < results[j].Class
	})
	report := &Report{Mode: mode, Workers: workers, Stats: Stats{Sources: sources}}
	var errs *multierror.Error
	for _, res := range results {
		report.Stats.Classes++
		report.Stats.BytesIn += int64(res.InSize)
		report.Stats.BytesOut += int64(res.OutSize)
		for _, d := range res.Diags {
			if report.Stats.Diags == nil {
				report.Stats.Diags = make(map[classfmt.DiagKind]int)
			}
			report.Stats.Diags[d.Kind]++
		}
		if res.Err != nil {
			report.Stats.Failed++
			report.Failures = append(report.Failures, Failure{Class: res.Class, Source: res.Source, Error: res.Err.Error()})
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", res.Class, res.Err))
		}
	}
	return report, errs.ErrorOrNil()
}
