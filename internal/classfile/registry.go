package classfile

import (
	"fmt"

	"bytecraft/internal/code"
	"bytecraft/internal/constpool"
)

// ReadContext is handed to a codec's Read function.
type ReadContext struct {
	Pool *constpool.Pool

	labelAt func(off int) (code.Label, error)
}

// LabelAt returns the label for a body-relative byte offset. Only
// code-scoped codecs get a context where this works.
func (c *ReadContext) LabelAt(off int) (code.Label, error) {
	if c.labelAt == nil {
		return code.NoLabel, fmt.Errorf("label at %d requested outside a code attribute", off)
	}
	return c.labelAt(off)
}

// WriteContext is handed to a codec's Write function.
type WriteContext struct {
	Pool *constpool.Pool

	offsets *code.Offsets
}

// OffsetOf resolves a label to its final byte offset in the assembled body.
func (c *WriteContext) OffsetOf(l code.Label) (int, error) {
	if c.offsets == nil {
		return 0, fmt.Errorf("offset of %s requested outside a code attribute", l)
	}
	return c.offsets.Resolve(l)
}

// Codec reads and writes one named attribute. A CodeScoped codec applies
// to attributes nested in Code and may use labels; any other codec applies
// at class, field and method scope.
type Codec struct {
	Name       string
	CodeScoped bool
	Read       func(ctx *ReadContext, data []byte) (Attribute, error)
	Write      func(ctx *WriteContext, attr Attribute) ([]byte, error)
}

// Registry maps attribute names to codecs. The zero value and nil are
// empty registries.
type Registry struct {
	codecs map[string]Codec
}

// NewRegistry returns a registry holding codecs. It panics on a duplicate
// name, like Register would fail.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{}
	for _, c := range codecs {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds c. Names the reader and writer handle themselves cannot be
// overridden.
func (r *Registry) Register(c Codec) error {
	if c.Name == "" || c.Read == nil || c.Write == nil {
		return fmt.Errorf("codec %q: name, Read and Write are required", c.Name)
	}
	if builtin[c.Name] {
		return fmt.Errorf("codec %q: attribute is built in", c.Name)
	}
	if r.codecs == nil {
		r.codecs = make(map[string]Codec)
	}
	if _, dup := r.codecs[c.Name]; dup {
		return fmt.Errorf("codec %q registered twice", c.Name)
	}
	r.codecs[c.Name] = c
	return nil
}

// Lookup returns the codec for name.
func (r *Registry) Lookup(name string) (Codec, bool) {
	if r == nil {
		return Codec{}, false
	}
	c, ok := r.codecs[name]
	return c, ok
}

// lookupScoped returns the codec for name if it applies at the given scope.
func (r *Registry) lookupScoped(name string, inCode bool) (Codec, bool) {
	c, ok := r.Lookup(name)
	if !ok || c.CodeScoped != inCode {
		return Codec{}, false
	}
	return c, true
}

// Attribute names the reader and writer handle themselves.
const (
	attrCode                 = "Code"
	attrConstantValue        = "ConstantValue"
	attrExceptions           = "Exceptions"
	attrSourceFile           = "SourceFile"
	attrSourceDebug          = "SourceDebugExtension"
	attrInnerClasses         = "InnerClasses"
	attrEnclosingMethod      = "EnclosingMethod"
	attrSignature            = "Signature"
	attrDeprecated           = "Deprecated"
	attrSynthetic            = "Synthetic"
	attrLineNumbers          = "LineNumberTable"
	attrLocalVars            = "LocalVariableTable"
	attrLocalVarTypes        = "LocalVariableTypeTable"
	attrStackMap             = "StackMapTable"
	attrBootstrapMethods     = "BootstrapMethods"
	attrAnnotationDefault    = "AnnotationDefault"
	attrVisibleAnnotations   = "RuntimeVisibleAnnotations"
	attrInvisibleAnnotations = "RuntimeInvisibleAnnotations"
	attrVisibleParamAnnots   = "RuntimeVisibleParameterAnnotations"
	attrInvisibleParamAnnots = "RuntimeInvisibleParameterAnnotations"
)

var builtin = map[string]bool{
	attrCode: true, attrConstantValue: true, attrExceptions: true,
	attrSourceFile: true, attrSourceDebug: true, attrInnerClasses: true,
	attrEnclosingMethod: true, attrSignature: true, attrDeprecated: true,
	attrSynthetic: true, attrLineNumbers: true, attrLocalVars: true,
	attrLocalVarTypes: true, attrStackMap: true, attrBootstrapMethods: true,
	attrAnnotationDefault: true, attrVisibleAnnotations: true,
	attrInvisibleAnnotations: true, attrVisibleParamAnnots: true,
	attrInvisibleParamAnnots: true,
}

// encodeAttribute turns attr into its payload. Raw attributes are copied;
// anything else needs a codec.
func encodeAttribute(r *Registry, ctx *WriteContext, attr Attribute, inCode bool) ([]byte, error) {
	if raw, ok := attr.(*RawAttribute); ok {
		return raw.Data, nil
	}
	c, ok := r.lookupScoped(attr.Name(), inCode)
	if !ok {
		return nil, fmt.Errorf("no codec for attribute %q (%T)", attr.Name(), attr)
	}
	return c.Write(ctx, attr)
}
