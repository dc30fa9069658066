package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bytecraft/internal/classfile"
	"bytecraft/internal/output"
	"bytecraft/internal/transform"
)

type rewriteFlags struct {
	out              string
	compute          string
	copyPool         bool
	stripAnnotations bool
	skipDebug        bool
	inflate          int
	comments         bool
	check            bool
}

func newRewriteCmd(a *app) *cobra.Command {
	var f rewriteFlags
	cmd := &cobra.Command{
		Use:   "rewrite <in.class>",
		Short: "Read a class and write it back, optionally transformed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.rewrite(cmd, args[0], &f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.out, "out", "o", "", "output class file")
	fl.StringVar(&f.compute, "compute", "", "what to recompute: none, maxs or frames (default from config)")
	fl.BoolVar(&f.copyPool, "copy-pool", false, "keep the input constant pool indices")
	fl.BoolVar(&f.stripAnnotations, "strip-annotations", false, "drop every annotation")
	fl.BoolVar(&f.skipDebug, "skip-debug", false, "drop source file, line numbers and local variables")
	fl.IntVar(&f.inflate, "inflate", 0, "insert N nops after the first forward conditional jump of each class")
	fl.BoolVar(&f.comments, "comments", false, "add Comment and CodeComment attributes")
	fl.BoolVar(&f.check, "check", false, "fail when a transform emits events out of order")
	cmd.MarkFlagRequired("out")
	return cmd
}

func (a *app) rewrite(cmd *cobra.Command, in string, f *rewriteFlags) (err error) {
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	level := a.cfg.ComputeLevel()
	if cmd.Flags().Changed("compute") {
		if level, err = classfile.ParseComputeLevel(f.compute); err != nil {
			return err
		}
	}
	path, err := a.hierarchy()
	if err != nil {
		return err
	}
	defer closePath(path, &err)

	opts := classfile.RewriteOptions{
		Read:     a.cfg.ReadOptions(),
		Write:    classfile.Config{Compute: level, Hierarchy: path},
		CopyPool: a.cfg.Write.CopyPool || f.copyPool,
		Check:    f.check,
	}
	if f.skipDebug {
		opts.Read.SkipDebug = true
	}
	if f.comments {
		reg := transform.CommentRegistry()
		opts.Read.Attributes, opts.Write.Attributes = reg, reg
	}
	var inflater *transform.Inflater
	opts.Adapt = func(next classfile.ClassVisitor) classfile.ClassVisitor {
		cv := next
		if f.comments {
			cv = transform.InjectComments(cv)
		}
		if f.inflate > 0 {
			inflater = transform.Inflate(cv, f.inflate, level == classfile.ComputeFrames)
			cv = inflater
		}
		if f.stripAnnotations {
			cv = transform.DropAnnotations(cv)
		}
		return cv
	}

	out, diags, err := classfile.Rewrite(data, opts)
	for _, d := range diags {
		a.log.Info().Str("kind", string(d.Kind)).Str("where", d.Where).Msg(d.Msg)
	}
	if err != nil {
		return fmt.Errorf("rewrite %s: %w", in, err)
	}
	if f.inflate > 0 && !inflater.Inflated() {
		a.log.Warn().Str("in", in).Msg("no forward conditional jump to inflate")
	}
	if err := output.WriteFile(f.out, out); err != nil {
		return err
	}
	a.log.Info().Str("in", in).Str("out", f.out).Stringer("compute", level).
		Int("bytes_in", len(data)).Int("bytes_out", len(out)).Msg("rewrote")
	return nil
}
