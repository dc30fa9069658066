package classfile

import (
	"fmt"
	"math"

	"bytecraft/internal/classfmt"
	"bytecraft/internal/constpool"
	"bytecraft/internal/flow"
)

// ComputeLevel selects what the writer derives for method bodies.
type ComputeLevel int

const (
	// ComputeNone trusts the maxs and frames of the incoming events.
	ComputeNone ComputeLevel = iota
	// ComputeMaxs derives max_stack and max_locals; frames pass through.
	ComputeMaxs
	// ComputeFrames derives maxs and every stack map frame.
	ComputeFrames
)

func (l ComputeLevel) String() string {
	switch l {
	case ComputeNone:
		return "none"
	case ComputeMaxs:
		return "maxs"
	case ComputeFrames:
		return "frames"
	}
	return fmt.Sprintf("compute(%d)", int(l))
}

// ParseComputeLevel maps "none", "maxs" or "frames" to a level.
func ParseComputeLevel(s string) (ComputeLevel, error) {
	switch s {
	case "none", "":
		return ComputeNone, nil
	case "maxs":
		return ComputeMaxs, nil
	case "frames":
		return ComputeFrames, nil
	}
	return ComputeNone, fmt.Errorf("unknown compute level %q", s)
}

// Config configures a Writer.
type Config struct {
	Compute    ComputeLevel
	Hierarchy  flow.Hierarchy // nil joins unrelated classes to java/lang/Object
	Attributes *Registry
}

type innerClass struct {
	name, outer, inner string
	access             int
}

// Writer is a ClassVisitor that serializes the events it receives. Method
// bodies are finalized at their VisitEnd; Bytes assembles the class.
type Writer struct {
	cfg  Config
	pool *constpool.Pool

	version    int
	access     int
	name       string
	signature  string
	super      string
	interfaces []string

	source, debug string
	hasOuter      bool
	outerOwner    string
	outerName     string
	outerDesc     string

	annots  [2]annotationSet
	attrs   []Attribute
	inner   []innerClass
	seen    map[string]bool
	fields  []*fieldWriter
	methods []*methodWriter
	ended   bool

	err   error
	Diags classfmt.Diags
}

// NewWriter returns a writer with an empty constant pool.
func NewWriter(cfg Config) *Writer {
	return &Writer{cfg: cfg, pool: constpool.New(), seen: make(map[string]bool)}
}

// NewWriterFrom returns a writer whose pool starts as a copy of r's, so
// unchanged constants keep their indices.
func NewWriterFrom(r *Reader, cfg Config) *Writer {
	w := NewWriter(cfg)
	w.pool = constpool.NewFrom(r.Pool())
	return w
}

// Pool returns the pool being built.
func (w *Writer) Pool() *constpool.Pool { return w.pool }

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *Writer) Visit(version, access int, name, signature, super string, interfaces []string) {
	w.version = version
	w.access = access
	w.name = name
	w.signature = signature
	w.super = super
	w.interfaces = append([]string(nil), interfaces...)
}

func (w *Writer) VisitSource(source, debug string) {
	w.source, w.debug = source, debug
}

func (w *Writer) VisitOuterClass(owner, name, desc string) {
	w.hasOuter = true
	w.outerOwner, w.outerName, w.outerDesc = owner, name, desc
}

func (w *Writer) VisitAnnotation(desc string, visible bool) AnnotationVisitor {
	return w.annots[visIndex(visible)].add(w.pool, desc, &w.err)
}

func (w *Writer) VisitAttribute(attr Attribute) {
	w.attrs = append(w.attrs, attr)
}

func (w *Writer) VisitInnerClass(name, outer, inner string, access int) {
	if w.seen[name] {
		return
	}
	w.seen[name] = true
	w.inner = append(w.inner, innerClass{name: name, outer: outer, inner: inner, access: access})
}

func (w *Writer) VisitField(access int, name, desc, signature string, value any) FieldVisitor {
	f := &fieldWriter{w: w, access: access, name: name, desc: desc, signature: signature, value: value}
	w.fields = append(w.fields, f)
	return f
}

func (w *Writer) VisitMethod(access int, name, desc, signature string, exceptions []string) MethodVisitor {
	m := &methodWriter{
		w:          w,
		access:     access,
		name:       name,
		desc:       desc,
		signature:  signature,
		exceptions: append([]string(nil), exceptions...),
	}
	w.methods = append(w.methods, m)
	return m
}

func (w *Writer) VisitEnd() {
	w.ended = true
}

// Bytes assembles the class file. It returns the first error recorded
// while receiving events or while encoding.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	if !w.ended {
		return nil, fmt.Errorf("class %s: VisitEnd not received", w.name)
	}
	p := w.pool
	body := classfmt.NewVector(1024)
	body.PutU16(uint16(w.access &^ pseudoFlags))
	body.PutU16(p.InternClass(w.name))
	if w.super != "" {
		body.PutU16(p.InternClass(w.super))
	} else {
		body.PutU16(0)
	}
	body.PutU16(uint16(len(w.interfaces)))
	for _, itf := range w.interfaces {
		body.PutU16(p.InternClass(itf))
	}

	body.PutU16(uint16(len(w.fields)))
	for _, f := range w.fields {
		if f.out == nil {
			return nil, fmt.Errorf("field %s.%s: VisitEnd not received", w.name, f.name)
		}
		body.PutBytes(f.out)
	}
	body.PutU16(uint16(len(w.methods)))
	for _, m := range w.methods {
		if m.out == nil {
			return nil, fmt.Errorf("method %s.%s%s: VisitEnd not received", w.name, m.name, m.desc)
		}
		body.PutBytes(m.out)
	}
	if w.err != nil {
		return nil, w.err
	}

	attrs := attrList{pool: p, v: body}
	attrs.begin()
	if w.source != "" {
		attrs.put(attrSourceFile, u16(p.InternUTF8(w.source)))
	}
	if w.debug != "" {
		attrs.put(attrSourceDebug, classfmt.EncodeModifiedUTF8(w.debug))
	}
	if w.hasOuter {
		v := classfmt.NewVector(4)
		v.PutU16(p.InternClass(w.outerOwner))
		if w.outerName != "" {
			v.PutU16(p.InternNameAndType(w.outerName, w.outerDesc))
		} else {
			v.PutU16(0)
		}
		attrs.put(attrEnclosingMethod, v.Bytes())
	}
	putCommon(&attrs, w.access, w.signature)
	if len(w.inner) > 0 {
		v := classfmt.NewVector(2 + 8*len(w.inner))
		v.PutU16(uint16(len(w.inner)))
		for _, ic := range w.inner {
			v.PutU16(optClass(p, ic.name))
			v.PutU16(optClass(p, ic.outer))
			if ic.inner != "" {
				v.PutU16(p.InternUTF8(ic.inner))
			} else {
				v.PutU16(0)
			}
			v.PutU16(uint16(ic.access &^ pseudoFlags))
		}
		attrs.put(attrInnerClasses, v.Bytes())
	}
	putAnnotations(&attrs, &w.annots)
	for _, a := range w.attrs {
		data, err := encodeAttribute(w.cfg.Attributes, &WriteContext{Pool: p}, a, false)
		if err != nil {
			return nil, classfmt.In(w.name, err)
		}
		attrs.put(a.Name(), data)
	}
	if bs := p.Bootstraps(); len(bs) > 0 {
		attrs.put(attrBootstrapMethods, encodeBootstraps(bs))
	}
	attrs.end()
	if attrs.err != nil {
		return nil, classfmt.In(w.name, attrs.err)
	}

	if err := p.Err(); err != nil {
		return nil, err
	}
	if p.Count() > math.MaxUint16 {
		return nil, classfmt.TooLarge("constant pool", "%d entries", p.Count())
	}
	out := classfmt.NewVector(body.Len() + 16*p.Count())
	out.PutU32(magic)
	out.PutU16(uint16(w.version >> 16))
	out.PutU16(uint16(w.version))
	if err := p.WriteTo(out); err != nil {
		return nil, err
	}
	out.PutBytes(body.Bytes())
	return out.Bytes(), nil
}

func encodeBootstraps(bs []constpool.Bootstrap) []byte {
	v := classfmt.NewVector(64)
	v.PutU16(uint16(len(bs)))
	for _, b := range bs {
		v.PutU16(b.Method)
		v.PutU16(uint16(len(b.Args)))
		for _, a := range b.Args {
			v.PutU16(a)
		}
	}
	return v.Bytes()
}

func optClass(p *constpool.Pool, name string) uint16 {
	if name == "" {
		return 0
	}
	return p.InternClass(name)
}

func u16(x uint16) []byte {
	return []byte{byte(x >> 8), byte(x)}
}

func visIndex(visible bool) int {
	if visible {
		return 0
	}
	return 1
}

// attrList writes an attributes_count followed by attributes.
type attrList struct {
	pool  *constpool.Pool
	v     *classfmt.Vector
	pos   int
	count int
	err   error
}

func (a *attrList) begin() { a.pos = a.v.Reserve16() }

func (a *attrList) put(name string, data []byte) {
	if uint64(len(data)) > math.MaxUint32 {
		a.err = classfmt.TooLarge(name, "%d bytes", len(data))
		return
	}
	a.v.PutU16(a.pool.InternUTF8(name))
	a.v.PutU32(uint32(len(data)))
	a.v.PutBytes(data)
	a.count++
}

func (a *attrList) end() { a.v.Patch16(a.pos, uint16(a.count)) }

// putCommon writes the Signature, Deprecated and Synthetic attributes
// shared by classes, fields and methods.
func putCommon(a *attrList, access int, signature string) {
	if signature != "" {
		a.put(attrSignature, u16(a.pool.InternUTF8(signature)))
	}
	if access&AccDeprecated != 0 {
		a.put(attrDeprecated, nil)
	}
	if access&AccSyntheticAttribute != 0 {
		a.put(attrSynthetic, nil)
	}
}

func putAnnotations(a *attrList, sets *[2]annotationSet) {
	if !sets[0].empty() {
		a.put(attrVisibleAnnotations, sets[0].payload())
	}
	if !sets[1].empty() {
		a.put(attrInvisibleAnnotations, sets[1].payload())
	}
}

// fieldWriter buffers one field.
type fieldWriter struct {
	w         *Writer
	access    int
	name      string
	desc      string
	signature string
	value     any
	annots    [2]annotationSet
	attrs     []Attribute
	out       []byte
}

func (f *fieldWriter) VisitAnnotation(desc string, visible bool) AnnotationVisitor {
	return f.annots[visIndex(visible)].add(f.w.pool, desc, &f.w.err)
}

func (f *fieldWriter) VisitAttribute(attr Attribute) {
	f.attrs = append(f.attrs, attr)
}

func (f *fieldWriter) VisitEnd() {
	p := f.w.pool
	where := f.w.name + "." + f.name
	v := classfmt.NewVector(64)
	v.PutU16(uint16(f.access &^ pseudoFlags))
	v.PutU16(p.InternUTF8(f.name))
	v.PutU16(p.InternUTF8(f.desc))
	attrs := attrList{pool: p, v: v}
	attrs.begin()
	if f.value != nil {
		idx, err := constantValue(p, f.value)
		if err != nil {
			f.w.fail(classfmt.In(where, err))
			return
		}
		attrs.put(attrConstantValue, u16(idx))
	}
	putCommon(&attrs, f.access, f.signature)
	putAnnotations(&attrs, &f.annots)
	for _, a := range f.attrs {
		data, err := encodeAttribute(f.w.cfg.Attributes, &WriteContext{Pool: p}, a, false)
		if err != nil {
			f.w.fail(classfmt.In(where, err))
			return
		}
		attrs.put(a.Name(), data)
	}
	attrs.end()
	if attrs.err != nil {
		f.w.fail(classfmt.In(where, attrs.err))
		return
	}
	f.out = v.Bytes()
}

// constantValue interns a field initializer. Sub-int types are widened to
// an Integer constant.
func constantValue(p *constpool.Pool, v any) (uint16, error) {
	switch x := v.(type) {
	case bool:
		if x {
			return p.InternInt(1), nil
		}
		return p.InternInt(0), nil
	case int8:
		return p.InternInt(int32(x)), nil
	case int16:
		return p.InternInt(int32(x)), nil
	case uint16:
		return p.InternInt(int32(x)), nil
	case int32, int, int64, float32, float64, string:
		return p.InternConst(x)
	}
	return 0, fmt.Errorf("field constant of type %T", v)
}
