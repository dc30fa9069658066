package classfile_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"bytecraft/internal/classfile"
	"bytecraft/internal/code"
	"bytecraft/internal/opcode"
	"bytecraft/internal/trace"
)

const (
	sampleName  = "eu/mihosoft/vrl/asm/ASMClass"
	sampleIface = "eu/mihosoft/vrl/asm/ASMInterface"
	objectName  = "java/lang/Object"
)

// emitSample drives cv with a small class: an int field set by the
// constructor, two accessors and a static counting loop.
func emitSample(cv classfile.ClassVisitor) {
	cv.Visit(classfile.V1_6, classfile.AccPublic|classfile.AccSuper, sampleName, "", objectName, []string{sampleIface})
	cv.VisitSource("ASMClass.java", "")

	fv := cv.VisitField(classfile.AccPrivate, "i", "I", "", nil)
	fv.VisitEnd()

	mv := cv.VisitMethod(classfile.AccPublic, "<init>", "()V", "", nil)
	labels := &code.Labels{}
	mv.VisitCode(labels)
	start, end := labels.New(), labels.New()
	mv.VisitLabel(start)
	mv.VisitLineNumber(3, start)
	mv.VisitVarInsn(opcode.ALOAD, 0)
	mv.VisitMethodInsn(opcode.INVOKESPECIAL, objectName, "<init>", "()V", false)
	mv.VisitVarInsn(opcode.ALOAD, 0)
	mv.VisitLdcInsn(int32(123))
	mv.VisitFieldInsn(opcode.PUTFIELD, sampleName, "i", "I")
	mv.VisitInsn(opcode.RETURN)
	mv.VisitLabel(end)
	mv.VisitLocalVariable("this", "L"+sampleName+";", "", start, end, 0)
	mv.VisitMaxs(2, 1)
	mv.VisitEnd()

	mv = cv.VisitMethod(classfile.AccPublic, "add", "(II)I", "", nil)
	mv.VisitCode(&code.Labels{})
	mv.VisitVarInsn(opcode.ILOAD, 1)
	mv.VisitVarInsn(opcode.ILOAD, 2)
	mv.VisitInsn(opcode.IADD)
	mv.VisitInsn(opcode.IRETURN)
	mv.VisitMaxs(2, 3)
	mv.VisitEnd()

	mv = cv.VisitMethod(classfile.AccPublic, "get", "()I", "", nil)
	mv.VisitCode(&code.Labels{})
	mv.VisitVarInsn(opcode.ALOAD, 0)
	mv.VisitFieldInsn(opcode.GETFIELD, sampleName, "i", "I")
	mv.VisitInsn(opcode.IRETURN)
	mv.VisitMaxs(1, 1)
	mv.VisitEnd()

	mv = cv.VisitMethod(classfile.AccPublic|classfile.AccStatic, "count", "(I)I", "", nil)
	labels = &code.Labels{}
	mv.VisitCode(labels)
	top, done := labels.New(), labels.New()
	mv.VisitInsn(opcode.ICONST_0)
	mv.VisitVarInsn(opcode.ISTORE, 1)
	mv.VisitLabel(top)
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

	cv.VisitEnd()
}

// build runs emit against a fresh writer and returns the class bytes.
func build(t *testing.T, cfg classfile.Config, emit func(classfile.ClassVisitor)) ([]byte, *classfile.Writer) {
	t.Helper()
	w := classfile.NewWriter(cfg)
	emit(classfile.Checked(w))
	data, err := w.Bytes()
	require.NoError(t, err)
	return data, w
}

// rewrite reads data and writes it back with cfg.
func rewrite(t *testing.T, data []byte, cfg classfile.Config, opts classfile.ReadOptions) ([]byte, *classfile.Writer) {
	t.Helper()
	r, err := classfile.NewReader(data)
	require.NoError(t, err)
	w := classfile.NewWriter(cfg)
	require.NoError(t, r.Accept(classfile.Checked(w), opts))
	out, err := w.Bytes()
	require.NoError(t, err)
	return out, w
}

func record(t *testing.T, data []byte) []trace.Event {
	t.Helper()
	events, err := trace.Record(data, classfile.ReadOptions{})
	require.NoError(t, err)
	return events
}

// methodEvents returns the events of one method, VisitMethod included.
func methodEvents(events []trace.Event, name string) []trace.Event {
	var out []trace.Event
	in := false
	for _, e := range events {
		if e.Scope == "class" {
			in = e.Kind == "VisitMethod" && containsWord(e.Args, name)
			if in {
				out = append(out, e)
			}
			continue
		}
		if in {
			out = append(out, e)
		}
	}
	return out
}

func containsWord(args, name string) bool {
	for i := 0; i+len(name) <= len(args); i++ {
		if args[i:i+len(name)] != name {
			continue
		}
		if i > 0 && args[i-1] != ' ' {
			continue
		}
		if j := i + len(name); j < len(args) && args[j] != '(' {
			continue
		}
		return true
	}
	return false
}

func kinds(events []trace.Event, kind string) []string {
	var out []string
	for _, e := range events {
		if e.Kind == kind {
			out = append(out, e.Args)
		}
	}
	return out
}
