package constpool

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bytecraft/internal/classfmt"
)

func TestInternDeduplicates(t *testing.T) {
	p := New()
	a := p.InternMethod("java/lang/Object", "<init>", "()V", false)
	b := p.InternMethod("java/lang/Object", "<init>", "()V", false)
	assert.Equal(t, a, b)

	// Same name and type under an interface ref is a different constant.
	c := p.InternMethod("java/lang/Object", "<init>", "()V", true)
	assert.NotEqual(t, a, c)

	assert.Equal(t, p.InternUTF8("x"), p.InternUTF8("x"))
	assert.Equal(t, p.InternInt(7), p.InternInt(7))
	assert.Equal(t, p.InternString("x"), p.InternString("x"))
	assert.NotEqual(t, p.InternString("x"), p.InternUTF8("x"))
}

func TestInternFloatIdentityIsBitwise(t *testing.T) {
	p := New()
	pos := p.InternDouble(0.0)
	neg := p.InternDouble(math.Copysign(0, -1))
	assert.NotEqual(t, pos, neg, "0.0 and -0.0 are distinct constants")

	nan := p.InternFloat(float32(math.NaN()))
	assert.Equal(t, nan, p.InternFloat(float32(math.NaN())))
}

func TestWideEntriesTakeTwoSlots(t *testing.T) {
	p := New()
	l := p.InternLong(1 << 40)
	next := p.InternUTF8("after")
	assert.Equal(t, l+2, next)

	_, err := p.Get(int(l) + 1)
	assert.True(t, errors.Is(err, classfmt.ErrInvalidConstantIndex))
}

func TestGetRejectsBadIndex(t *testing.T) {
	p := New()
	p.InternUTF8("a")
	for _, i := range []int{0, -1, 2, 100} {
		_, err := p.Get(i)
		assert.ErrorIs(t, err, classfmt.ErrInvalidConstantIndex, "index %d", i)
	}
	// Wrong kind is also an invalid index for the requested use.
	_, err := p.ClassName(1)
	assert.ErrorIs(t, err, classfmt.ErrInvalidConstantIndex)
}

func TestWriteParseRoundTrip(t *testing.T) {
	p := New()
	p.InternField("pkg/A", "i", "I")
	p.InternMethod("pkg/I", "run", "()V", true)
	p.InternLong(-5)
	p.InternDouble(2.5)
	p.InternFloat(1.5)
	p.InternString("héllo\x00")
	p.InternMethodType("(I)V")
	h := Handle{Kind: RefInvokeStatic, Owner: "pkg/A", Name: "bsm", Desc: "()V"}
	p.InternHandle(h)

	v := classfmt.NewVector(256)
	require.NoError(t, p.WriteTo(v))

	q, err := Parse(classfmt.NewStream(v.Bytes()))
	require.NoError(t, err)
	require.Equal(t, p.Count(), q.Count())
	for i := 1; i < p.Count(); i++ {
		assert.Equal(t, p.entries[i], q.entries[i], "entry %d", i)
	}

	got, err := q.Handle(int(p.InternHandle(h)))
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestConstValues(t *testing.T) {
	p := New()
	values := []any{int32(-3), float32(0.5), int64(9), 1.25, "s", Class{Name: "[I"}, MethodType{Desc: "()V"}}
	for _, v := range values {
		i, err := p.InternConst(v)
		require.NoError(t, err)
		got, err := p.Const(int(i))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	_, err := p.InternConst(struct{}{})
	assert.Error(t, err)
}

func TestInvokeDynamicResolves(t *testing.T) {
	p := New()
	bsm := Handle{Kind: RefInvokeStatic, Owner: "pkg/Boot", Name: "bootstrap", Desc: "()Ljava/lang/invoke/CallSite;"}
	i, err := p.InternInvokeDynamic("run", "()V", bsm, []any{int32(1), "tag"})
	require.NoError(t, err)
	j, err := p.InternInvokeDynamic("run", "()V", bsm, []any{int32(1), "tag"})
	require.NoError(t, err)
	assert.Equal(t, i, j)
	assert.Len(t, p.Bootstraps(), 1)

	name, desc, gotBSM, args, err := p.InvokeDynamic(int(i))
	require.NoError(t, err)
	assert.Equal(t, "run", name)
	assert.Equal(t, "()V", desc)
	assert.Equal(t, bsm, gotBSM)
	assert.Equal(t, []any{int32(1), "tag"}, args)
}

func TestCopyPoolKeepsLayout(t *testing.T) {
	src := New()
	cls := src.InternClass("pkg/A")
	unused := src.InternUTF8("unused")
	long := src.InternLong(7)
	bsm := Handle{Kind: RefInvokeStatic, Owner: "pkg/Boot", Name: "bsm", Desc: "()V"}
	bi, err := src.InternBootstrap(bsm, []any{int32(1)})
	require.NoError(t, err)
	// A duplicate already present in the source, as a parsed pool may hold.
	dup := uint16(src.Count())
	src.entries = append(src.entries, Entry{Tag: TagUTF8, Str: "unused"})

	p := NewFrom(src)
	assert.Equal(t, src.Count(), p.Copied())
	got, err := p.ClassName(int(cls))
	require.NoError(t, err)
	assert.Equal(t, "pkg/A", got)

	// Existing constants reuse their copied slots.
	assert.Equal(t, cls, p.InternClass("pkg/A"))
	assert.Equal(t, long, p.InternLong(7))
	assert.Equal(t, unused, p.InternUTF8("unused"))
	gotBI, err := p.InternBootstrap(bsm, []any{int32(1)})
	require.NoError(t, err)
	assert.Equal(t, bi, gotBI)
	assert.Equal(t, src.Count(), p.Count())

	// The source duplicate stays where it was.
	e, err := p.Get(int(dup))
	require.NoError(t, err)
	assert.Equal(t, "unused", e.Str)

	// New constants are appended once.
	n := p.InternUTF8("fresh")
	assert.Equal(t, uint16(src.Count()), n)
	assert.Equal(t, n, p.InternUTF8("fresh"))
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"zero count", []byte{0, 0}},
		{"truncated", []byte{0, 2, 1, 0, 5, 'a'}},
		{"unknown tag", []byte{0, 2, 2}},
		{"long in last slot", []byte{0, 2, 5, 0, 0, 0, 0, 0, 0, 0, 1}},
		{"bad handle kind", []byte{0, 2, 15, 10, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(classfmt.NewStream(tt.data))
			assert.ErrorIs(t, err, classfmt.ErrMalformedInput)
		})
	}
}
