package classfile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bytecraft/internal/classfile"
	"bytecraft/internal/code"
	"bytecraft/internal/opcode"
	"bytecraft/internal/trace"
)

func emitAnnotated(cv classfile.ClassVisitor) {
	cv.Visit(classfile.V1_8, classfile.AccPublic, "demo/Annotated", "", objectName, nil)

	av := cv.VisitAnnotation("Ldemo/Ann;", true)
	av.Visit("s", "hi")
	av.Visit("i", int32(5))
	av.Visit("b", int8(-1))
	av.Visit("z", true)
	av.Visit("c", uint16('x'))
	av.Visit("sh", int16(300))
	av.Visit("t", classfile.TypeValue{Desc: "Ljava/lang/String;"})
	av.VisitEnum("e", "Ldemo/Color;", "RED")
	nested := av.VisitAnnotation("n", "Ldemo/Nested;")
	nested.Visit("v", 1.5)
	nested.VisitEnd()
	arr := av.VisitArray("a")
	arr.Visit("", int32(1))
	arr.Visit("", int32(2))
	arr.VisitEnd()
	av.Visit("p", []int64{7, 8})
	av.VisitEnd()

	cv.VisitAnnotation("Ldemo/Hidden;", false).VisitEnd()

	fv := cv.VisitField(classfile.AccPublic, "f", "I", "", nil)
	fv.VisitAnnotation("Ldemo/FieldAnn;", true).VisitEnd()
	fv.VisitEnd()

	mv := cv.VisitMethod(classfile.AccPublic|classfile.AccAbstract, "value", "()I", "", nil)
	dv := mv.VisitAnnotationDefault()
	dv.Visit("", int32(42))
	dv.VisitEnd()
	mv.VisitEnd()

	mv = cv.VisitMethod(classfile.AccPublic|classfile.AccStatic, "m", "(IJLjava/lang/String;)V", "", []string{"java/io/IOException"})
	pv := mv.VisitParameterAnnotation(2, "Ldemo/NotNull;", true)
	pv.VisitEnd()
	mv.VisitParameterAnnotation(0, "Ldemo/Secret;", false).VisitEnd()
	mv.VisitCode(&code.Labels{})
	mv.VisitInsn(opcode.RETURN)
	mv.VisitMaxs(0, 0)
	mv.VisitEnd()

	cv.VisitEnd()
}

func TestAnnotationEvents(t *testing.T) {
	data, _ := build(t, classfile.Config{Compute: classfile.ComputeFrames}, emitAnnotated)
	events := record(t, data)

	var owners []string
	for _, e := range events {
		if e.Kind == "VisitAnnotation" && e.Scope != "annotation" {
			owners = append(owners, e.Scope+" "+e.Args)
		}
	}
	assert.Equal(t, []string{
		"class Ldemo/Ann; visible=true",
		"class Ldemo/Hidden; visible=false",
		"field Ldemo/FieldAnn; visible=true",
	}, owners)
	assert.Contains(t, kinds(events, "VisitAnnotation"), "n=@Ldemo/Nested;")

	var values []string
	for _, e := range events {
		if e.Scope == "annotation" && e.Kind == "Visit" {
			values = append(values, e.Args)
		}
	}
	assert.Equal(t, []string{
		`s=string "hi"`,
		"i=int32 5",
		"b=int8 -1",
		"z=bool true",
		"c=uint16 120",
		"sh=int16 300",
		"t=classfile.TypeValue {Ljava/lang/String;}",
		"v=float64 1.5",
		"=int32 1",
		"=int32 2",
		"=int64 7",
		"=int64 8",
		"=int32 42",
	}, values)

	assert.Equal(t, []string{"a", "p"}, kinds(events, "VisitArray"))
	assert.Equal(t, []string{"e=Ldemo/Color;.RED"}, kinds(events, "VisitEnum"))
	assert.Len(t, kinds(events, "VisitAnnotationDefault"), 1)
	assert.Equal(t, []string{
		"2 Ldemo/NotNull; visible=true",
		"0 Ldemo/Secret; visible=false",
	}, kinds(events, "VisitParameterAnnotation"))
	assert.Contains(t, kinds(events, "VisitMethod")[1], "throws=[java/io/IOException]")
}

func TestAnnotationRoundTrip(t *testing.T) {
	data, _ := build(t, classfile.Config{Compute: classfile.ComputeFrames}, emitAnnotated)
	out, _ := rewrite(t, data, classfile.Config{}, classfile.ReadOptions{})
	want, got := record(t, data), record(t, out)
	assert.True(t, trace.Equal(want, got), "mismatches: %v", trace.Diff(want, got, 5))
}

func TestAnnotationBadValue(t *testing.T) {
	w := classfile.NewWriter(classfile.Config{})
	w.Visit(classfile.V1_8, classfile.AccPublic, "demo/Bad", "", objectName, nil)
	av := w.VisitAnnotation("Ldemo/Ann;", true)
	av.Visit("x", struct{}{})
	av.VisitEnd()
	w.VisitEnd()
	_, err := w.Bytes()
	require.Error(t, err)
}

func TestForwarderDropsWithNilNext(t *testing.T) {
	fw := &classfile.ClassForwarder{}
	fw.Visit(classfile.V1_6, 0, "demo/X", "", objectName, nil)
	assert.Nil(t, fw.VisitMethod(0, "m", "()V", "", nil))
	assert.Nil(t, fw.VisitField(0, "f", "I", "", nil))
	assert.Nil(t, fw.VisitAnnotation("Ldemo/A;", true))
	fw.VisitEnd()

	rec := &trace.Recorder{}
	fw = &classfile.ClassForwarder{Next: rec}
	emitSample(fw)
	direct := &trace.Recorder{}
	emitSample(direct)
	assert.Equal(t, direct.Events, rec.Events)
}
