package trace

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bytecraft/internal/classfile"
	"bytecraft/internal/code"
	"bytecraft/internal/opcode"
)

// emitLoop drives a visitor with a counting loop whose labels come from the
// given arena, allocating junk labels first to shift the handles.
func emitLoop(cv classfile.ClassVisitor, junk int) {
	cv.Visit(classfile.V1_6, classfile.AccPublic, "demo/Loop", "", "java/lang/Object", nil)
	mv := cv.VisitMethod(classfile.AccPublic|classfile.AccStatic, "count", "(I)I", "", nil)
	labels := &code.Labels{}
	for i := 0; i < junk; i++ {
		labels.New()
	}
	mv.VisitCode(labels)
	top, done := labels.New(), labels.New()
	mv.VisitLabel(top)
	mv.VisitVarInsn(opcode.ILOAD, 0)
	mv.VisitJumpInsn(opcode.IFLE, done)
	mv.VisitIincInsn(0, -1)
	mv.VisitJumpInsn(opcode.GOTO, top)
	mv.VisitLabel(done)
	mv.VisitVarInsn(opcode.ILOAD, 0)
	mv.VisitInsn(opcode.IRETURN)
	mv.VisitMaxs(1, 1)
	mv.VisitEnd()
	cv.VisitEnd()
}

func TestRecorderCanonicalLabels(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	emitLoop(a, 0)
	emitLoop(b, 7)

	require.True(t, Equal(a.Events, b.Events), "diff: %v", Diff(a.Events, b.Events, 3))
	assert.Contains(t, a.Events, Event{Depth: 1, Scope: "method", Kind: "VisitLabel", Args: "L0"})
	assert.Contains(t, a.Events, Event{Depth: 1, Scope: "method", Kind: "VisitJumpInsn", Args: "ifle L1"})
}

func TestValueStringKeepsTypes(t *testing.T) {
	assert.NotEqual(t, valueString(int32(5)), valueString(int64(5)))
	assert.Equal(t, `string "x"`, valueString("x"))
	assert.Equal(t, "nil", valueString(nil))
}

func TestMarshalRoundTrip(t *testing.T) {
	rec := &Recorder{}
	emitLoop(rec, 0)

	data, err := Marshal(rec.Events)
	require.NoError(t, err)
	again, err := Marshal(rec.Events)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, rec.Events, got)

	_, err = Unmarshal([]byte{0xff})
	assert.Error(t, err)
}

func TestDiff(t *testing.T) {
	a := []Event{{Scope: "class", Kind: "Visit"}, {Scope: "class", Kind: "VisitEnd"}}
	b := []Event{{Scope: "class", Kind: "Visit"}, {Scope: "class", Kind: "VisitSource"}, {Scope: "class", Kind: "VisitEnd"}}

	d := Diff(a, b, 0)
	require.Len(t, d, 2)
	assert.Equal(t, 1, d[0].Index)
	assert.Equal(t, "VisitSource", d[0].Got.Kind)
	assert.Equal(t, Event{}, d[1].Want)

	assert.Len(t, Diff(a, b, 1), 1)
	assert.Empty(t, Diff(a, a, 0))
	assert.False(t, Equal(a, b))
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, []Event{
		{Scope: "class", Kind: "Visit", Args: "x"},
		{Depth: 1, Scope: "method", Kind: "VisitEnd"},
	}))
	assert.Equal(t, "class.Visit x\n  method.VisitEnd\n", buf.String())
}
