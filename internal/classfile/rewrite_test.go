package classfile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bytecraft/internal/classfile"
	"bytecraft/internal/classfmt"
	"bytecraft/internal/trace"
)

type vendorTagger struct {
	classfile.ClassForwarder
}

func (v *vendorTagger) VisitEnd() {
	v.Next.VisitAttribute(&classfile.RawAttribute{AttrName: "Vendor", Data: []byte{1}})
	v.Next.VisitEnd()
}

// lateSource names the source file after the members, out of grammar order.
type lateSource struct {
	classfile.ClassForwarder
}

func (v *lateSource) VisitEnd() {
	v.Next.VisitSource("Late.java", "")
	v.Next.VisitEnd()
}

func TestRewrite(t *testing.T) {
	data, _ := build(t, classfile.Config{Compute: classfile.ComputeFrames}, emitSample)

	for _, copyPool := range []bool{false, true} {
		out, diags, err := classfile.Rewrite(data, classfile.RewriteOptions{
			Write:    classfile.Config{Compute: classfile.ComputeFrames},
			CopyPool: copyPool,
			Adapt:    classfile.Checked,
		})
		require.NoError(t, err)
		assert.Empty(t, diags)
		assert.True(t, trace.Equal(record(t, data), record(t, out)), "copy pool %t", copyPool)
	}
}

func TestRewriteDiags(t *testing.T) {
	data, _ := build(t, classfile.Config{}, emitSample)

	tagged, diags, err := classfile.Rewrite(data, classfile.RewriteOptions{
		Adapt: func(next classfile.ClassVisitor) classfile.ClassVisitor {
			return &vendorTagger{classfile.ClassForwarder{Next: next}}
		},
	})
	require.NoError(t, err)
	assert.Empty(t, diags)

	_, diags, err = classfile.Rewrite(tagged, classfile.RewriteOptions{})
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, classfmt.DiagUnknownAttribute, diags[0].Kind)
}

func TestRewriteCheck(t *testing.T) {
	data, _ := build(t, classfile.Config{}, emitSample)
	late := func(next classfile.ClassVisitor) classfile.ClassVisitor {
		return &lateSource{classfile.ClassForwarder{Next: next}}
	}

	_, _, err := classfile.Rewrite(data, classfile.RewriteOptions{Adapt: late, Check: true})
	require.ErrorIs(t, err, classfile.ErrEventOrder)
	assert.Contains(t, err.Error(), "VisitSource")

	out, _, err := classfile.Rewrite(data, classfile.RewriteOptions{Check: true})
	require.NoError(t, err)
	assert.True(t, trace.Equal(record(t, data), record(t, out)))
}

func TestRewriteMalformed(t *testing.T) {
	_, diags, err := classfile.Rewrite([]byte{0xCA, 0xFE}, classfile.RewriteOptions{})
	assert.ErrorIs(t, err, classfmt.ErrMalformedInput)
	assert.Nil(t, diags)
}
