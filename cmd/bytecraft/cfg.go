package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	lrender "github.com/zboralski/lattice/render"

	"bytecraft/internal/callgraph"
	"bytecraft/internal/classpath"
	"bytecraft/internal/flow"
	"bytecraft/internal/output"
	"bytecraft/internal/render"
	"bytecraft/internal/signal"
)

type cfgFlags struct {
	out       string
	minBlocks int
	maxNodes  int
	title     string
	hops      int
}

func newCFGCmd(a *app) *cobra.Command {
	var f cfgFlags
	cmd := &cobra.Command{
		Use:   "cfg <class|dir|jar>...",
		Short: "Render control flow and call graphs as DOT files",
		Long: `cfg collects every method body of the given classes and writes:

  cfg/<method>.dot           control flow graph of each method
  cfg.dot                    all control flow graphs in one file
  callgraph.dot              plain call graph
  callgraph_clustered.dot    call graph clustered by owner class
  classgraph.dot             class-level call graph
  reachable.dot              call graph with unreachable methods greyed out
  stats.json                 call graph statistics
  signals.json               methods touching URLs, keys, crypto, reflection,
                             process or native APIs, with their callers`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.graphs(args, &f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.out, "out", "o", "", "output directory")
	fl.IntVar(&f.minBlocks, "min-blocks", 2, "skip per-method graphs with fewer basic blocks")
	fl.IntVar(&f.maxNodes, "max-nodes", 0, "limit call graph nodes (0 = unlimited)")
	fl.StringVar(&f.title, "title", "", "graph title (default: first input)")
	fl.IntVar(&f.hops, "signal-hops", 2, "call hops from a signal method kept as context")
	cmd.MarkFlagRequired("out")
	return cmd
}

// collectInputs gathers methods from class files, directories and jars.
func collectInputs(inputs []string) ([]*callgraph.Method, error) {
	var methods []*callgraph.Method
	for _, in := range inputs {
		if strings.HasSuffix(in, ".class") {
			data, err := os.ReadFile(in)
			if err != nil {
				return nil, err
			}
			ms, err := callgraph.Collect(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", in, err)
			}
			methods = append(methods, ms...)
			continue
		}
		src, err := classpath.OpenSource(in)
		if err != nil {
			return nil, err
		}
		err = src.Walk(func(class string, data []byte) error {
			ms, err := callgraph.Collect(data)
			if err != nil {
				return fmt.Errorf("%s: %s: %w", in, class, err)
			}
			methods = append(methods, ms...)
			return nil
		})
		src.Close()
		if err != nil {
			return nil, err
		}
	}
	return methods, nil
}

func (a *app) graphs(inputs []string, f *cfgFlags) error {
	methods, err := collectInputs(inputs)
	if err != nil {
		return err
	}
	title := f.title
	if title == "" {
		title = filepath.Base(inputs[0])
	}
	a.log.Info().Int("methods", len(methods)).Msg("collected")

	cfgDir := filepath.Join(f.out, "cfg")
	written, skipped := 0, 0
	for _, m := range methods {
		g, err := flow.BuildCFG(&m.Body)
		if err != nil {
			a.log.Warn().Err(err).Str("method", m.ID()).Msg("cfg failed")
			continue
		}
		if len(g.Blocks) < f.minBlocks {
			skipped++
			continue
		}
		if err := output.WriteDOT(cfgDir, m.ID(), render.CFGDOT(m, g, render.NASA)); err != nil {
			return err
		}
		written++
	}
	a.log.Info().Int("written", written).Int("skipped", skipped).Str("dir", cfgDir).Msg("method graphs")

	cg, err := callgraph.BuildCFG(methods)
	if err != nil {
		return err
	}
	entries := render.FindEntryPoints(methods)
	reachable := render.ReachableSet(entries, methods)

	graphs := []struct{ name, dot string }{
		{"cfg", lrender.DOTCFG(cg, title)},
		{"callgraph", lrender.DOT(callgraph.BuildCallGraph(methods), title)},
		{"callgraph_clustered", render.CallgraphDOT(methods, title, render.NASA, f.maxNodes)},
		{"classgraph", render.ClassgraphDOT(methods, title, render.NASA, f.maxNodes)},
		{"reachable", render.ReachabilityDOT(methods, reachable, entries, title, render.NASA)},
	}
	for _, g := range graphs {
		if err := output.WriteDOT(f.out, g.name, g.dot); err != nil {
			return err
		}
	}

	stats := render.ComputeStats(methods)
	if err := output.WriteJSON(filepath.Join(f.out, "stats.json"), stats); err != nil {
		return err
	}

	entrySet := make(map[string]bool, len(entries))
	for _, e := range entries {
		entrySet[e] = true
	}
	sg := signal.BuildGraph(methods, f.hops, entrySet)
	if err := output.WriteJSON(filepath.Join(f.out, "signals.json"), sg); err != nil {
		return err
	}
	if sg.Stats.SignalFuncs > 0 {
		a.log.Warn().Int("signal", sg.Stats.SignalFuncs).Int("context", sg.Stats.ContextFuncs).
			Msg("methods with signals")
	}
	a.log.Info().Int("edges", stats.TotalEdges).Int("reachable", len(reachable)).
		Int("entries", len(entries)).Str("dir", f.out).Msg("graphs written")
	return nil
}
