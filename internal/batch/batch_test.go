package batch

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bytecraft/internal/classfile"
	"bytecraft/internal/classfmt"
	"bytecraft/internal/classpath"
	"bytecraft/internal/code"
	"bytecraft/internal/opcode"
	"bytecraft/internal/trace"
)

func emptyClass(t *testing.T, name, super string) []byte {
	t.Helper()
	w := classfile.NewWriter(classfile.Config{})
	w.Visit(classfile.V1_6, classfile.AccPublic|classfile.AccSuper, name, "", super, nil)
	w.VisitEnd()
	data, err := w.Bytes()
	require.NoError(t, err)
	return data
}

// pickClass holds a static method whose branches create an a/A or an
// a/B, so the frame at the join needs their common superclass.
func pickClass(t *testing.T) []byte {
	t.Helper()
	w := classfile.NewWriter(classfile.Config{Compute: classfile.ComputeFrames})
	w.Visit(classfile.V1_6, classfile.AccPublic|classfile.AccSuper, "a/Pick", "", "java/lang/Object", nil)
	mv := w.VisitMethod(classfile.AccPublic|classfile.AccStatic, "pick", "(Z)La/Base;", "", nil)
	labels := &code.Labels{}
	mv.VisitCode(labels)
	other, join := labels.New(), labels.New()
	mv.VisitVarInsn(opcode.ILOAD, 0)
	mv.VisitJumpInsn(opcode.IFEQ, other)
	for _, c := range []string{"a/A", "a/B"} {
		mv.VisitTypeInsn(opcode.NEW, c)
		mv.VisitInsn(opcode.DUP)
		mv.VisitMethodInsn(opcode.INVOKESPECIAL, c, "<init>", "()V", false)
		if c == "a/A" {
			mv.VisitJumpInsn(opcode.GOTO, join)
			mv.VisitLabel(other)
		}
	}
	mv.VisitLabel(join)
	mv.VisitInsn(opcode.ARETURN)
	mv.VisitMaxs(0, 0)
	mv.VisitEnd()
	w.VisitEnd()
	data, err := w.Bytes()
	require.NoError(t, err)
	return data
}

// loopClass holds a static counting loop with line numbers.
func loopClass(t *testing.T) []byte {
	t.Helper()
	w := classfile.NewWriter(classfile.Config{Compute: classfile.ComputeFrames})
	w.Visit(classfile.V1_6, classfile.AccPublic|classfile.AccSuper, "b/Loop", "", "java/lang/Object", nil)
	w.VisitSource("Loop.java", "")
	mv := w.VisitMethod(classfile.AccPublic|classfile.AccStatic, "count", "(I)I", "", nil)
	labels := &code.Labels{}
	mv.VisitCode(labels)
	top, done := labels.New(), labels.New()
	mv.VisitInsn(opcode.ICONST_0)
	mv.VisitVarInsn(opcode.ISTORE, 1)
	mv.VisitLabel(top)
	mv.VisitLineNumber(4, top)
	mv.VisitVarInsn(opcode.ILOAD, 0)
	mv.VisitJumpInsn(opcode.IFLE, done)
	mv.VisitIincInsn(1, 1)
	mv.VisitIincInsn(0, -1)
	mv.VisitJumpInsn(opcode.GOTO, top)
	mv.VisitLabel(done)
	mv.VisitVarInsn(opcode.ILOAD, 1)
	mv.VisitInsn(opcode.IRETURN)
	mv.VisitMaxs(0, 0)
	mv.VisitEnd()
	w.VisitEnd()
	data, err := w.Bytes()
	require.NoError(t, err)
	return data
}

func writeDir(t *testing.T, classes map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range classes {
		path := filepath.Join(dir, filepath.FromSlash(name)+".class")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}
	return dir
}

func writeJar(t *testing.T, classes map[string][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lib.jar")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, data := range classes {
		w, err := zw.Create(name + ".class")
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func hierarchyDir(t *testing.T) string {
	return writeDir(t, map[string][]byte{
		"a/Base": emptyClass(t, "a/Base", "java/lang/Object"),
		"a/A":    emptyClass(t, "a/A", "a/Base"),
		"a/B":    emptyClass(t, "a/B", "a/Base"),
		"a/Pick": pickClass(t),
	})
}

func openSources(t *testing.T, paths ...string) []classpath.Source {
	t.Helper()
	var out []classpath.Source
	for _, p := range paths {
		s, err := classpath.OpenSource(p)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		out = append(out, s)
	}
	return out
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes {
		got, err := ParseMode(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("fast")
	assert.Error(t, err)
}

func TestRunModes(t *testing.T) {
	sources := openSources(t, hierarchyDir(t), writeJar(t, map[string][]byte{"b/Loop": loopClass(t)}))

	for _, mode := range Modes {
		t.Run(string(mode), func(t *testing.T) {
			report, err := Run(context.Background(), sources, Options{Mode: mode, Workers: 2, Log: zerolog.Nop()})
			require.NoError(t, err)
			assert.Equal(t, mode, report.Mode)
			assert.Equal(t, 2, report.Workers)
			assert.Equal(t, 2, report.Stats.Sources)
			assert.Equal(t, 5, report.Stats.Classes)
			assert.Zero(t, report.Stats.Failed)
			assert.Empty(t, report.Failures)
			assert.Positive(t, report.Stats.BytesIn)
			assert.Positive(t, report.Stats.BytesOut)
		})
	}
}

func TestRunSkipDebugShrinks(t *testing.T) {
	sources := openSources(t, writeJar(t, map[string][]byte{"b/Loop": loopClass(t)}))

	plain, err := Run(context.Background(), sources, Options{Mode: ModePlain, Log: zerolog.Nop()})
	require.NoError(t, err)
	skip, err := Run(context.Background(), sources, Options{Mode: ModeSkipDebug, Log: zerolog.Nop()})
	require.NoError(t, err)
	assert.Less(t, skip.Stats.BytesOut, plain.Stats.BytesOut)
}

func TestRunFailures(t *testing.T) {
	dir := writeDir(t, map[string][]byte{
		"b/Loop":     loopClass(t),
		"bad/Broken": []byte{0xCA, 0xFE, 0xBA, 0xBE, 0x00},
	})
	var logs bytes.Buffer
	report, err := Run(context.Background(), openSources(t, dir), Options{Mode: ModeFrames, Log: zerolog.New(&logs)})
	require.Error(t, err)
	require.NotNil(t, report)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 1)
	assert.True(t, errors.Is(merr.Errors[0], classfmt.ErrMalformedInput))

	assert.Equal(t, 2, report.Stats.Classes)
	assert.Equal(t, 1, report.Stats.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "bad/Broken", report.Failures[0].Class)
	assert.Equal(t, dir, report.Failures[0].Source)

	assert.Contains(t, logs.String(), "rewrite failed")
	assert.Contains(t, logs.String(), "batch done")

	color.NoColor = true
	var out bytes.Buffer
	report.PrintSummary(&out)
	text := out.String()
	assert.True(t, strings.HasPrefix(text, "FAIL bad/Broken ("+dir+"): "), text)
	assert.Contains(t, text, "mode=frames")
	assert.Contains(t, text, "classes=2 1 failed")
}

func TestRunOutDir(t *testing.T) {
	out := t.TempDir()
	sources := openSources(t, writeJar(t, map[string][]byte{"b/Loop": loopClass(t)}))
	_, err := Run(context.Background(), sources, Options{Mode: ModeCopy, OutDir: out, Log: zerolog.Nop()})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(out, "b", "Loop.class"))
	require.NoError(t, err)
	r, err := classfile.NewReader(data)
	require.NoError(t, err)
	assert.Equal(t, "b/Loop", r.ClassName())
}

// joinFrame returns the stack map frame recorded at the join of pick.
func joinFrame(t *testing.T, data []byte) string {
	t.Helper()
	events, err := trace.Record(data, classfile.ReadOptions{})
	require.NoError(t, err)
	var frames []string
	for _, e := range events {
		if e.Kind == "VisitFrame" {
			frames = append(frames, e.Args)
		}
	}
	require.Len(t, frames, 2)
	return frames[1]
}

func TestProcessHierarchy(t *testing.T) {
	dir := hierarchyDir(t)
	path, err := classpath.Open(dir)
	require.NoError(t, err)
	defer path.Close()

	data := pickClass(t)
	for _, tt := range []struct {
		name string
		opts Options
		want string
	}{
		{"object", Options{}, "same1 [] [java/lang/Object]"},
		{"classpath", Options{Hierarchy: path}, "same1 [] [a/Base]"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			out := t.TempDir()
			res := Process("a/Pick", data, ModeFrames.RewriteOptions(tt.opts.Hierarchy), out)
			require.NoError(t, res.Err)
			assert.Equal(t, len(data), res.InSize)

			written, err := os.ReadFile(filepath.Join(out, "a", "Pick.class"))
			require.NoError(t, err)
			assert.Equal(t, res.OutSize, len(written))
			assert.Equal(t, tt.want, joinFrame(t, written))
		})
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, openSources(t, hierarchyDir(t)), Options{Mode: ModePlain, Log: zerolog.Nop()})
	assert.ErrorIs(t, err, context.Canceled)
}
