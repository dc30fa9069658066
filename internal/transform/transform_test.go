package transform

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bytecraft/internal/classfile"
	"bytecraft/internal/classfmt"
	"bytecraft/internal/code"
	"bytecraft/internal/opcode"
	"bytecraft/internal/trace"
)

const objectName = "java/lang/Object"

// annotatedClass builds a class with annotations at every level and a
// counting loop.
func annotatedClass(t *testing.T, version int) []byte {
	t.Helper()
	w := classfile.NewWriter(classfile.Config{Compute: classfile.ComputeFrames})
	cv := classfile.Checked(w)
	cv.Visit(version, classfile.AccPublic, "demo/T", "", objectName, nil)
	av := cv.VisitAnnotation("Ldemo/A;", true)
	av.Visit("v", int32(1))
	arr := av.VisitArray("xs")
	arr.Visit("", "a")
	arr.VisitEnd()
	av.VisitEnd()

	fv := cv.VisitField(classfile.AccPrivate, "f", "I", "", nil)
	fv.VisitAnnotation("Ldemo/F;", false).VisitEnd()
	fv.VisitEnd()

	mv := cv.VisitMethod(classfile.AccPublic|classfile.AccAbstract, "dflt", "()I", "", nil)
	dv := mv.VisitAnnotationDefault()
	dv.Visit("", int32(3))
	dv.VisitEnd()
	mv.VisitEnd()

	mv = cv.VisitMethod(classfile.AccPublic|classfile.AccStatic, "count", "(I)I", "", nil)
	mv.VisitAnnotation("Ldemo/M;", true).VisitEnd()
	mv.VisitParameterAnnotation(0, "Ldemo/P;", true).VisitEnd()
	labels := &code.Labels{}
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

	data, err := w.Bytes()
	require.NoError(t, err)
	return data
}

func pipe(t *testing.T, data []byte, cfg classfile.Config, opts classfile.ReadOptions, wrap func(classfile.ClassVisitor) classfile.ClassVisitor) ([]byte, *classfile.Writer) {
	t.Helper()
	r, err := classfile.NewReader(data)
	require.NoError(t, err)
	w := classfile.NewWriter(cfg)
	require.NoError(t, r.Accept(wrap(classfile.Checked(w)), opts))
	out, err := w.Bytes()
	require.NoError(t, err)
	return out, w
}

func countKind(events []trace.Event, kind string) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestAnnotationStrategiesAgree(t *testing.T) {
	data := annotatedClass(t, classfile.V1_6)
	dropped, _ := pipe(t, data, classfile.Config{}, classfile.ReadOptions{}, DropAnnotations)
	sunk, _ := pipe(t, data, classfile.Config{}, classfile.ReadOptions{}, SinkAnnotations)
	assert.Equal(t, dropped, sunk)

	events, err := trace.Record(dropped, classfile.ReadOptions{})
	require.NoError(t, err)
	assert.Zero(t, countKind(events, "VisitAnnotation"))
	assert.Zero(t, countKind(events, "VisitAnnotationDefault"))
	assert.Zero(t, countKind(events, "VisitParameterAnnotation"))
	assert.Equal(t, 2, countKind(events, "VisitMethod"))
	assert.False(t, bytes.Contains(dropped, []byte("RuntimeVisibleAnnotations")))
	assert.Less(t, len(dropped), len(data))
}

func TestInflateWidensFirstForwardBranch(t *testing.T) {
	data := annotatedClass(t, classfile.V1_5)
	var inf *Inflater
	out, w := pipe(t, data, classfile.Config{Compute: classfile.ComputeFrames}, classfile.ReadOptions{}, func(next classfile.ClassVisitor) classfile.ClassVisitor {
		inf = Inflate(next, 33000, true)
		return inf
	})
	assert.True(t, inf.Inflated())
	assert.Equal(t, 1, w.Diags.Count(classfmt.DiagWidened))

	r, err := classfile.NewReader(out)
	require.NoError(t, err)
	assert.Equal(t, classfile.V1_6, r.Version())

	events, err := trace.Record(out, classfile.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 33000, countKind(events, "VisitInsn")-2)
	assert.NotZero(t, countKind(events, "VisitFrame"))
}

func TestInflateKeepsNewerVersion(t *testing.T) {
	data := annotatedClass(t, classfile.V1_8)
	out, w := pipe(t, data, classfile.Config{Compute: classfile.ComputeFrames}, classfile.ReadOptions{}, func(next classfile.ClassVisitor) classfile.ClassVisitor {
		return Inflate(next, 10, true)
	})
	assert.Zero(t, w.Diags.Count(classfmt.DiagWidened))
	r, err := classfile.NewReader(out)
	require.NoError(t, err)
	assert.Equal(t, classfile.V1_8, r.Version())
}

func TestInflateIgnoresBackwardJumps(t *testing.T) {
	w := classfile.NewWriter(classfile.Config{Compute: classfile.ComputeFrames})
	inf := Inflate(w, 5, false)
	inf.Visit(classfile.V1_6, classfile.AccPublic, "demo/Back", "", objectName, nil)
	mv := inf.VisitMethod(classfile.AccStatic, "spin", "(I)V", "", nil)
	labels := &code.Labels{}
	mv.VisitCode(labels)
	top := labels.New()
	mv.VisitLabel(top)
	mv.VisitVarInsn(opcode.ILOAD, 0)
	mv.VisitJumpInsn(opcode.IFNE, top)
	mv.VisitInsn(opcode.RETURN)
	mv.VisitMaxs(0, 0)
	mv.VisitEnd()
	inf.VisitEnd()
	assert.False(t, inf.Inflated())
	_, err := w.Bytes()
	require.NoError(t, err)
}

func TestCommentsRoundTrip(t *testing.T) {
	data := annotatedClass(t, classfile.V1_6)
	reg := CommentRegistry()
	out, _ := pipe(t, data, classfile.Config{Attributes: reg}, classfile.ReadOptions{}, InjectComments)
	assert.True(t, bytes.Contains(out, []byte("CodeComment")))

	r, err := classfile.NewReader(out)
	require.NoError(t, err)
	rec := &trace.Recorder{}
	require.NoError(t, r.Accept(rec, classfile.ReadOptions{Attributes: reg}))
	assert.Zero(t, r.Diags.Count(classfmt.DiagUnknownAttribute))
	assert.Equal(t, 2, countKind(rec.Events, "VisitAttribute"))

	// Injecting again keeps one of each.
	again, _ := pipe(t, out, classfile.Config{Attributes: reg}, classfile.ReadOptions{Attributes: reg}, InjectComments)
	assert.Equal(t, out, again)
}

func TestCommentCodecRejectsPayload(t *testing.T) {
	c := CommentCodecs()[0]
	_, err := c.Read(&classfile.ReadContext{}, []byte{1})
	assert.Error(t, err)
	attr, err := c.Read(&classfile.ReadContext{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Comment", attr.Name())
}
