package classfile

import (
	"fmt"
	"sort"

	"bytecraft/internal/classfmt"
	"bytecraft/internal/code"
	"bytecraft/internal/constpool"
	"bytecraft/internal/opcode"
)

const magic = 0xCAFEBABE

// ReadOptions controls what Accept reports.
type ReadOptions struct {
	SkipDebug    bool // drop SourceFile, line numbers and local variables
	SkipCode     bool // drop method bodies
	SkipFrames   bool // drop StackMapTable frames
	ExpandFrames bool // report every frame as code.FrameNew
	Attributes   *Registry
}

// Reader parses a class file. The header and constant pool are decoded
// eagerly by NewReader; Accept walks the rest on demand and may be called
// any number of times.
type Reader struct {
	data       []byte
	pool       *constpool.Pool
	version    int
	access     int
	name       string
	super      string
	interfaces []string
	members    int // offset of fields_count
	attrs      int // offset of the class attributes_count

	Diags classfmt.Diags
}

// NewReader validates the magic number, parses the constant pool and the
// class header, and loads the bootstrap method table.
func NewReader(b []byte) (*Reader, error) {
	s := classfmt.NewStream(b)
	m, err := s.ReadU32()
	if err != nil {
		return nil, err
	}
	if m != magic {
		return nil, classfmt.Malformed(0, "bad magic %#08x", m)
	}
	minor, err := s.ReadU16()
	if err != nil {
		return nil, err
	}
	major, err := s.ReadU16()
	if err != nil {
		return nil, err
	}
	pool, err := constpool.Parse(s)
	if err != nil {
		return nil, err
	}
	r := &Reader{data: b, pool: pool, version: int(minor)<<16 | int(major)}

	access, err := s.ReadU16()
	if err != nil {
		return nil, err
	}
	r.access = int(access)
	if r.name, err = r.classAt(s); err != nil {
		return nil, err
	}
	superIdx, err := s.ReadU16()
	if err != nil {
		return nil, err
	}
	if superIdx != 0 {
		if r.super, err = pool.ClassName(int(superIdx)); err != nil {
			return nil, err
		}
	}
	n, err := s.ReadU16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		itf, err := r.classAt(s)
		if err != nil {
			return nil, err
		}
		r.interfaces = append(r.interfaces, itf)
	}

	r.members = s.Position()
	for k := 0; k < 2; k++ {
		n, err := s.ReadU16()
		if err != nil {
			return nil, err
		}
		for i := 0; i < int(n); i++ {
			if err := s.Skip(6); err != nil {
				return nil, err
			}
			if _, err := r.attributes(s); err != nil {
				return nil, err
			}
		}
	}
	r.attrs = s.Position()
	attrs, err := r.attributes(s)
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		if a.name == attrBootstrapMethods {
			if err := r.readBootstraps(a.body); err != nil {
				return nil, classfmt.In(attrBootstrapMethods, err)
			}
		}
	}
	return r, nil
}

// Version returns minor<<16 | major.
func (r *Reader) Version() int          { return r.version }
func (r *Reader) Access() int           { return r.access }
func (r *Reader) ClassName() string     { return r.name }
func (r *Reader) SuperName() string     { return r.super }
func (r *Reader) Interfaces() []string  { return r.interfaces }
func (r *Reader) Pool() *constpool.Pool { return r.pool }
func (r *Reader) Bytes() []byte         { return r.data }

// rawAttr is an attribute located in the input.
type rawAttr struct {
	name string
	at   int
	size int
	body *classfmt.Stream
}

func (a rawAttr) bytes() []byte {
	return a.body.Data()[a.at : a.at+a.size]
}

// attributes reads an attributes_count and the attribute headers after it,
// leaving s past the last payload.
func (r *Reader) attributes(s *classfmt.Stream) ([]rawAttr, error) {
	n, err := s.ReadU16()
	if err != nil {
		return nil, err
	}
	out := make([]rawAttr, 0, n)
	for i := 0; i < int(n); i++ {
		name, err := r.utf8At(s)
		if err != nil {
			return nil, err
		}
		size, err := s.ReadU32()
		if err != nil {
			return nil, err
		}
		at := s.Position()
		body, err := s.Sub(at, int(size))
		if err != nil {
			return nil, classfmt.In(name, err)
		}
		if err := s.Skip(int(size)); err != nil {
			return nil, err
		}
		out = append(out, rawAttr{name: name, at: at, size: int(size), body: body})
	}
	return out, nil
}

func (r *Reader) utf8At(s *classfmt.Stream) (string, error) {
	at := s.Position()
	i, err := s.ReadU16()
	if err != nil {
		return "", err
	}
	str, err := r.pool.UTF8(int(i))
	if err != nil {
		return "", relocate(err, at)
	}
	return str, nil
}

func (r *Reader) classAt(s *classfmt.Stream) (string, error) {
	at := s.Position()
	i, err := s.ReadU16()
	if err != nil {
		return "", err
	}
	name, err := r.pool.ClassName(int(i))
	if err != nil {
		return "", relocate(err, at)
	}
	return name, nil
}

// optClassAt reads a class index where zero means none.
func (r *Reader) optClassAt(s *classfmt.Stream) (string, error) {
	at := s.Position()
	i, err := s.ReadU16()
	if err != nil || i == 0 {
		return "", err
	}
	name, err := r.pool.ClassName(int(i))
	if err != nil {
		return "", relocate(err, at)
	}
	return name, nil
}

// relocate fills in the byte offset of a pool lookup error.
func relocate(err error, at int) error {
	if e, ok := err.(*classfmt.Error); ok && e.Offset < 0 {
		c := *e
		c.Offset = at
		return &c
	}
	return err
}

func (r *Reader) readBootstraps(s *classfmt.Stream) error {
	n, err := s.ReadU16()
	if err != nil {
		return err
	}
	out := make([]constpool.Bootstrap, 0, n)
	for i := 0; i < int(n); i++ {
		m, err := s.ReadU16()
		if err != nil {
			return err
		}
		na, err := s.ReadU16()
		if err != nil {
			return err
		}
		b := constpool.Bootstrap{Method: m, Args: make([]uint16, na)}
		for j := range b.Args {
			if b.Args[j], err = s.ReadU16(); err != nil {
				return err
			}
		}
		out = append(out, b)
	}
	r.pool.SetBootstraps(out)
	return nil
}

// customAttribute decodes a with a registered codec, falling back to a raw
// copy.
func (r *Reader) customAttribute(opts *ReadOptions, a rawAttr, where string, labelAt func(int) (code.Label, error)) (Attribute, error) {
	c, ok := opts.Attributes.lookupScoped(a.name, labelAt != nil)
	if !ok {
		r.Diags.Addf(where, classfmt.DiagUnknownAttribute, "%s (%d bytes) kept raw", a.name, a.size)
		data := append([]byte(nil), a.bytes()...)
		return &RawAttribute{AttrName: a.name, Data: data}, nil
	}
	attr, err := c.Read(&ReadContext{Pool: r.pool, labelAt: labelAt}, a.bytes())
	if err != nil {
		return nil, classfmt.In(where+" "+a.name, err)
	}
	return attr, nil
}

// annotationAttrs holds the located annotation attributes of one element.
type annotationAttrs struct {
	visible, invisible             *classfmt.Stream
	visibleParams, invisibleParams *classfmt.Stream
	dflt                           *classfmt.Stream
}

func (aa *annotationAttrs) take(a rawAttr) bool {
	switch a.name {
	case attrVisibleAnnotations:
		aa.visible = a.body
	case attrInvisibleAnnotations:
		aa.invisible = a.body
	case attrVisibleParamAnnots:
		aa.visibleParams = a.body
	case attrInvisibleParamAnnots:
		aa.invisibleParams = a.body
	case attrAnnotationDefault:
		aa.dflt = a.body
	default:
		return false
	}
	return true
}

func (r *Reader) emitAnnotations(aa *annotationAttrs, visit func(desc string, visible bool) AnnotationVisitor) error {
	for _, x := range []struct {
		s       *classfmt.Stream
		visible bool
	}{{aa.visible, true}, {aa.invisible, false}} {
		if x.s == nil {
			continue
		}
		visible := x.visible
		if err := r.readAnnotations(x.s, func(desc string) AnnotationVisitor { return visit(desc, visible) }); err != nil {
			return err
		}
	}
	return nil
}

// Accept reports the class to cv.
func (r *Reader) Accept(cv ClassVisitor, opts ReadOptions) error {
	s := classfmt.NewStreamAt(r.data, r.attrs)
	attrs, err := r.attributes(s)
	if err != nil {
		return err
	}
	access := r.access
	var (
		signature            string
		source, debug        string
		outerOwner           string
		outerName, outerDesc string
		hasOuter             bool
		inner                *classfmt.Stream
		aa                   annotationAttrs
		custom               []Attribute
	)
	for _, a := range attrs {
		if aa.take(a) {
			continue
		}
		switch a.name {
		case attrSignature:
			if signature, err = r.utf8At(a.body); err != nil {
				return err
			}
		case attrSourceFile:
			if source, err = r.utf8At(a.body); err != nil {
				return err
			}
		case attrSourceDebug:
			if debug, err = classfmt.DecodeModifiedUTF8(a.bytes()); err != nil {
				return classfmt.Malformed(a.at, "SourceDebugExtension: %v", err)
			}
		case attrEnclosingMethod:
			hasOuter = true
			if outerOwner, err = r.classAt(a.body); err != nil {
				return err
			}
			nt, err := a.body.ReadU16()
			if err != nil {
				return err
			}
			if nt != 0 {
				if outerName, outerDesc, err = r.pool.NameAndType(int(nt)); err != nil {
					return relocate(err, a.at+2)
				}
			}
		case attrInnerClasses:
			inner = a.body
		case attrDeprecated:
			access |= AccDeprecated
		case attrSynthetic:
			access |= AccSyntheticAttribute
		case attrBootstrapMethods:
		default:
			attr, err := r.customAttribute(&opts, a, r.name, nil)
			if err != nil {
				return err
			}
			custom = append(custom, attr)
		}
	}

	cv.Visit(r.version, access, r.name, signature, r.super, r.interfaces)
	if !opts.SkipDebug && (source != "" || debug != "") {
		cv.VisitSource(source, debug)
	}
	if hasOuter {
		cv.VisitOuterClass(outerOwner, outerName, outerDesc)
	}
	if err := r.emitAnnotations(&aa, cv.VisitAnnotation); err != nil {
		return classfmt.In(r.name, err)
	}
	for _, attr := range custom {
		cv.VisitAttribute(attr)
	}
	if inner != nil {
		if err := r.readInnerClasses(inner, cv); err != nil {
			return err
		}
	}

	s = classfmt.NewStreamAt(r.data, r.members)
	n, err := s.ReadU16()
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		if err := r.readField(s, cv, &opts); err != nil {
			return err
		}
	}
	if n, err = s.ReadU16(); err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		if err := r.readMethod(s, cv, &opts); err != nil {
			return err
		}
	}
	cv.VisitEnd()
	return nil
}

func (r *Reader) readInnerClasses(s *classfmt.Stream, cv ClassVisitor) error {
	n, err := s.ReadU16()
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		name, err := r.optClassAt(s)
		if err != nil {
			return err
		}
		outer, err := r.optClassAt(s)
		if err != nil {
			return err
		}
		at := s.Position()
		ni, err := s.ReadU16()
		if err != nil {
			return err
		}
		var simple string
		if ni != 0 {
			if simple, err = r.pool.UTF8(int(ni)); err != nil {
				return relocate(err, at)
			}
		}
		access, err := s.ReadU16()
		if err != nil {
			return err
		}
		cv.VisitInnerClass(name, outer, simple, int(access))
	}
	return nil
}

// member is the common header of a field or method.
type member struct {
	access    int
	name      string
	desc      string
	signature string
	attrs     []rawAttr
}

func (r *Reader) readMember(s *classfmt.Stream) (*member, error) {
	access, err := s.ReadU16()
	if err != nil {
		return nil, err
	}
	m := &member{access: int(access)}
	if m.name, err = r.utf8At(s); err != nil {
		return nil, err
	}
	if m.desc, err = r.utf8At(s); err != nil {
		return nil, err
	}
	if m.attrs, err = r.attributes(s); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Reader) readField(s *classfmt.Stream, cv ClassVisitor, opts *ReadOptions) error {
	m, err := r.readMember(s)
	if err != nil {
		return err
	}
	where := r.name + "." + m.name
	var (
		value  any
		aa     annotationAttrs
		custom []Attribute
	)
	for _, a := range m.attrs {
		if aa.take(a) {
			continue
		}
		switch a.name {
		case attrConstantValue:
			at := a.body.Position()
			i, err := a.body.ReadU16()
			if err != nil {
				return err
			}
			if value, err = r.pool.Const(int(i)); err != nil {
				return relocate(err, at)
			}
		case attrSignature:
			if m.signature, err = r.utf8At(a.body); err != nil {
				return err
			}
		case attrDeprecated:
			m.access |= AccDeprecated
		case attrSynthetic:
			m.access |= AccSyntheticAttribute
		default:
			attr, err := r.customAttribute(opts, a, where, nil)
			if err != nil {
				return err
			}
			custom = append(custom, attr)
		}
	}
	fv := cv.VisitField(m.access, m.name, m.desc, m.signature, value)
	if fv == nil {
		return nil
	}
	if err := r.emitAnnotations(&aa, fv.VisitAnnotation); err != nil {
		return classfmt.In(where, err)
	}
	for _, attr := range custom {
		fv.VisitAttribute(attr)
	}
	fv.VisitEnd()
	return nil
}

func (r *Reader) readMethod(s *classfmt.Stream, cv ClassVisitor, opts *ReadOptions) error {
	m, err := r.readMember(s)
	if err != nil {
		return err
	}
	where := r.name + "." + m.name + m.desc
	var (
		exceptions []string
		body       *rawAttr
		aa         annotationAttrs
		custom     []rawAttr
	)
	for i, a := range m.attrs {
		if aa.take(a) {
			continue
		}
		switch a.name {
		case attrCode:
			body = &m.attrs[i]
		case attrExceptions:
			n, err := a.body.ReadU16()
			if err != nil {
				return err
			}
			for j := 0; j < int(n); j++ {
				e, err := r.classAt(a.body)
				if err != nil {
					return err
				}
				exceptions = append(exceptions, e)
			}
		case attrSignature:
			if m.signature, err = r.utf8At(a.body); err != nil {
				return err
			}
		case attrDeprecated:
			m.access |= AccDeprecated
		case attrSynthetic:
			m.access |= AccSyntheticAttribute
		default:
			custom = append(custom, a)
		}
	}
	mv := cv.VisitMethod(m.access, m.name, m.desc, m.signature, exceptions)
	if mv == nil {
		return nil
	}
	if aa.dflt != nil {
		av := mv.VisitAnnotationDefault()
		if err := r.readElementValue(aa.dflt, av, ""); err != nil {
			return classfmt.In(where, err)
		}
		if av != nil {
			av.VisitEnd()
		}
	}
	if err := r.emitAnnotations(&aa, mv.VisitAnnotation); err != nil {
		return classfmt.In(where, err)
	}
	for _, x := range []struct {
		s       *classfmt.Stream
		visible bool
	}{{aa.visibleParams, true}, {aa.invisibleParams, false}} {
		if x.s == nil {
			continue
		}
		if err := r.readParamAnnotations(x.s, mv, x.visible); err != nil {
			return classfmt.In(where, err)
		}
	}
	for _, a := range custom {
		attr, err := r.customAttribute(opts, a, where, nil)
		if err != nil {
			return err
		}
		mv.VisitAttribute(attr)
	}
	if body != nil && !opts.SkipCode {
		if err := r.readCode(body.body, mv, m, opts); err != nil {
			return classfmt.In(where, err)
		}
	}
	mv.VisitEnd()
	return nil
}

func (r *Reader) readParamAnnotations(s *classfmt.Stream, mv MethodVisitor, visible bool) error {
	n, err := s.ReadU8()
	if err != nil {
		return err
	}
	for p := 0; p < int(n); p++ {
		param := p
		err := r.readAnnotations(s, func(desc string) AnnotationVisitor {
			return mv.VisitParameterAnnotation(param, desc, visible)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// decoded is an instruction of the input with its body offset.
type decoded struct {
	off  int
	inst code.Inst
}

// lineEntry is a LineNumberTable row.
type lineEntry struct {
	off, line int
}

// codeReader holds the state of one Code attribute across both passes.
type codeReader struct {
	r      *Reader
	start  int // absolute offset of the first instruction
	size   int
	labels *code.Labels
	at     map[int]code.Label
}

func (c *codeReader) labelAt(off int) (code.Label, error) {
	if off < 0 || off > c.size {
		return code.NoLabel, classfmt.Malformed(c.start+off, "code offset %d outside body of %d bytes", off, c.size)
	}
	if l, ok := c.at[off]; ok {
		return l, nil
	}
	l := c.labels.New()
	c.at[off] = l
	return l, nil
}

// branch creates the label of an instruction target, which must be an
// offset inside the body.
func (c *codeReader) branch(from, delta int) (code.Label, error) {
	to := from + delta
	if to < 0 || to >= c.size {
		return code.NoLabel, classfmt.Malformed(c.start+from, "branch target %d outside body of %d bytes", to, c.size)
	}
	return c.labelAt(to)
}

// readCode decodes a Code attribute in two passes: the first decodes every
// instruction and attribute and creates all labels, the second reports
// events in offset order.
func (r *Reader) readCode(s *classfmt.Stream, mv MethodVisitor, m *member, opts *ReadOptions) error {
	maxStack, err := s.ReadU16()
	if err != nil {
		return err
	}
	maxLocals, err := s.ReadU16()
	if err != nil {
		return err
	}
	size, err := s.ReadU32()
	if err != nil {
		return err
	}
	if size == 0 || size > code.MaxCodeSize {
		return classfmt.Malformed(s.Position()-4, "code_length %d", size)
	}
	c := &codeReader{r: r, start: s.Position(), size: int(size), labels: &code.Labels{}, at: make(map[int]code.Label)}
	cs, err := s.Sub(c.start, c.size)
	if err != nil {
		return err
	}
	if err := s.Skip(c.size); err != nil {
		return err
	}

	insts, err := c.decodeAll(cs)
	if err != nil {
		return err
	}

	n, err := s.ReadU16()
	if err != nil {
		return err
	}
	handlers := make([]code.Handler, 0, n)
	for i := 0; i < int(n); i++ {
		var pcs [3]int
		for j := range pcs {
			v, err := s.ReadU16()
			if err != nil {
				return err
			}
			pcs[j] = int(v)
		}
		typ, err := r.optClassAt(s)
		if err != nil {
			return err
		}
		if pcs[0] >= pcs[1] || pcs[1] > c.size || pcs[2] >= c.size {
			return classfmt.Malformed(s.Position()-8, "exception range [%d,%d) handler %d", pcs[0], pcs[1], pcs[2])
		}
		var h code.Handler
		if h.Start, err = c.labelAt(pcs[0]); err != nil {
			return err
		}
		if h.End, err = c.labelAt(pcs[1]); err != nil {
			return err
		}
		if h.Handler, err = c.labelAt(pcs[2]); err != nil {
			return err
		}
		h.Type = typ
		handlers = append(handlers, h)
	}

	attrs, err := r.attributes(s)
	if err != nil {
		return err
	}
	var (
		lines  []lineEntry
		locals []localEntry
		frames []offsetFrame
		custom []Attribute
	)
	for _, a := range attrs {
		switch a.name {
		case attrLineNumbers:
			if opts.SkipDebug {
				continue
			}
			ls, err := c.readLines(a.body)
			if err != nil {
				return err
			}
			lines = append(lines, ls...)
		case attrLocalVars, attrLocalVarTypes:
			if opts.SkipDebug {
				continue
			}
			lv, err := c.readLocals(a.body, a.name == attrLocalVarTypes)
			if err != nil {
				return err
			}
			locals = append(locals, lv...)
		case attrStackMap:
			if opts.SkipFrames {
				continue
			}
			if frames, err = readStackMap(a.body, r.pool, c.labelAt); err != nil {
				return classfmt.In(attrStackMap, err)
			}
			for _, f := range frames {
				if _, err := c.labelAt(f.off); err != nil {
					return err
				}
			}
		default:
			attr, err := r.customAttribute(opts, a, attrCode, c.labelAt)
			if err != nil {
				return err
			}
			custom = append(custom, attr)
		}
	}

	starts := make(map[int]bool, len(insts)+1)
	for _, d := range insts {
		starts[d.off] = true
	}
	starts[c.size] = true
	for off := range c.at {
		if !starts[off] {
			return classfmt.Malformed(c.start+off, "label inside an instruction")
		}
	}

	var prev code.Frame
	if opts.ExpandFrames && len(frames) > 0 {
		if prev, err = code.InitialFrame(r.name, m.name, m.desc, m.access&AccStatic != 0); err != nil {
			return err
		}
	}

	mv.VisitCode(c.labels)
	for _, h := range handlers {
		mv.VisitTryCatchBlock(h.Start, h.End, h.Handler, h.Type)
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].off < lines[j].off })
	li, fi := 0, 0
	for _, d := range insts {
		if l, ok := c.at[d.off]; ok {
			mv.VisitLabel(l)
		}
		for ; li < len(lines) && lines[li].off <= d.off; li++ {
			if lines[li].off == d.off {
				mv.VisitLineNumber(lines[li].line, c.at[d.off])
			}
		}
		for ; fi < len(frames) && frames[fi].off <= d.off; fi++ {
			if frames[fi].off != d.off {
				continue
			}
			f := frames[fi].frame
			if opts.ExpandFrames {
				if f, err = code.Expand(prev, f); err != nil {
					return classfmt.Malformed(c.start+d.off, "%v", err)
				}
				prev = f
			}
			mv.VisitFrame(f)
		}
		emitInst(mv, &d.inst)
	}
	if l, ok := c.at[c.size]; ok {
		mv.VisitLabel(l)
	}
	for _, lv := range locals {
		if lv.typed {
			continue
		}
		mv.VisitLocalVariable(lv.name, lv.desc, signatureFor(locals, lv), lv.start, lv.end, lv.index)
	}
	for _, lv := range locals {
		if lv.typed && !hasPlain(locals, lv) {
			mv.VisitLocalVariable(lv.name, "", lv.desc, lv.start, lv.end, lv.index)
		}
	}
	for _, attr := range custom {
		mv.VisitAttribute(attr)
	}
	mv.VisitMaxs(int(maxStack), int(maxLocals))
	return nil
}

func (c *codeReader) readLines(s *classfmt.Stream) ([]lineEntry, error) {
	n, err := s.ReadU16()
	if err != nil {
		return nil, err
	}
	out := make([]lineEntry, 0, n)
	for i := 0; i < int(n); i++ {
		pc, err := s.ReadU16()
		if err != nil {
			return nil, err
		}
		line, err := s.ReadU16()
		if err != nil {
			return nil, err
		}
		if int(pc) >= c.size {
			return nil, classfmt.Malformed(s.Position()-4, "line number at offset %d", pc)
		}
		if _, err := c.labelAt(int(pc)); err != nil {
			return nil, err
		}
		out = append(out, lineEntry{off: int(pc), line: int(line)})
	}
	return out, nil
}

// localEntry is a LocalVariableTable or LocalVariableTypeTable row. For the
// type table desc holds the signature.
type localEntry struct {
	name, desc string
	start, end code.Label
	index      int
	typed      bool
}

func (c *codeReader) readLocals(s *classfmt.Stream, typed bool) ([]localEntry, error) {
	n, err := s.ReadU16()
	if err != nil {
		return nil, err
	}
	out := make([]localEntry, 0, n)
	for i := 0; i < int(n); i++ {
		pc, err := s.ReadU16()
		if err != nil {
			return nil, err
		}
		length, err := s.ReadU16()
		if err != nil {
			return nil, err
		}
		e := localEntry{typed: typed}
		if e.name, err = c.r.utf8At(s); err != nil {
			return nil, err
		}
		if e.desc, err = c.r.utf8At(s); err != nil {
			return nil, err
		}
		idx, err := s.ReadU16()
		if err != nil {
			return nil, err
		}
		e.index = int(idx)
		if e.start, err = c.labelAt(int(pc)); err != nil {
			return nil, err
		}
		if e.end, err = c.labelAt(int(pc) + int(length)); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// signatureFor returns the generic signature recorded for a plain local.
func signatureFor(locals []localEntry, lv localEntry) string {
	for _, t := range locals {
		if t.typed && t.index == lv.index && t.start == lv.start && t.name == lv.name {
			return t.desc
		}
	}
	return ""
}

func hasPlain(locals []localEntry, lv localEntry) bool {
	for _, p := range locals {
		if !p.typed && p.index == lv.index && p.start == lv.start && p.name == lv.name {
			return true
		}
	}
	return false
}

// decodeAll is the first code pass: it decodes every instruction to its
// canonical form and creates the labels of all branch targets.
func (c *codeReader) decodeAll(s *classfmt.Stream) ([]decoded, error) {
	var out []decoded
	for s.Remaining() > 0 {
		off := s.Position() - c.start
		in, err := c.decode(s, off)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded{off: off, inst: in})
	}
	return out, nil
}

func (c *codeReader) decode(s *classfmt.Stream, off int) (code.Inst, error) {
	b, err := s.ReadU8()
	if err != nil {
		return code.Inst{}, err
	}
	op := opcode.Op(b)
	in := code.Inst{Op: op}
	pool := c.r.pool
	switch op.Kind() {
	case opcode.KindNone:
	case opcode.KindByte:
		v, err := s.ReadI8()
		in.Int = int(v)
		return in, err
	case opcode.KindShort:
		v, err := s.ReadI16()
		in.Int = int(v)
		return in, err
	case opcode.KindNewArray:
		v, err := s.ReadU8()
		in.Int = int(v)
		return in, err
	case opcode.KindVar:
		v, err := s.ReadU8()
		in.Var = int(v)
		return in, err
	case opcode.KindImplicit:
		in.Op, in.Var, _ = opcode.Implicit(op)
	case opcode.KindLdc, opcode.KindLdcWide:
		at := s.Position()
		var idx int
		if op == opcode.LDC {
			v, err := s.ReadU8()
			if err != nil {
				return in, err
			}
			idx = int(v)
		} else {
			v, err := s.ReadU16()
			if err != nil {
				return in, err
			}
			idx = int(v)
		}
		in.Op = opcode.LDC
		if in.Const, err = pool.Const(idx); err != nil {
			return in, relocate(err, at)
		}
	case opcode.KindField, opcode.KindMethod, opcode.KindInterface:
		at := s.Position()
		idx, err := s.ReadU16()
		if err != nil {
			return in, err
		}
		if in.Owner, in.Name, in.Desc, in.Itf, err = pool.Member(int(idx)); err != nil {
			return in, relocate(err, at)
		}
		if op.Kind() == opcode.KindInterface {
			return in, s.Skip(2)
		}
	case opcode.KindIndy:
		at := s.Position()
		idx, err := s.ReadU16()
		if err != nil {
			return in, err
		}
		if in.Name, in.Desc, in.BSM, in.BSMArgs, err = pool.InvokeDynamic(int(idx)); err != nil {
			return in, relocate(err, at)
		}
		return in, s.Skip(2)
	case opcode.KindType:
		if in.Owner, err = c.r.classAt(s); err != nil {
			return in, err
		}
	case opcode.KindMultiANewArray:
		if in.Owner, err = c.r.classAt(s); err != nil {
			return in, err
		}
		dims, err := s.ReadU8()
		in.Int = int(dims)
		return in, err
	case opcode.KindJump:
		d, err := s.ReadI16()
		if err != nil {
			return in, err
		}
		in.Target, err = c.branch(off, int(d))
		return in, err
	case opcode.KindJumpWide:
		d, err := s.ReadI32()
		if err != nil {
			return in, err
		}
		in.Op = opcode.Narrow(op)
		in.Target, err = c.branch(off, int(d))
		return in, err
	case opcode.KindIinc:
		idx, err := s.ReadU8()
		if err != nil {
			return in, err
		}
		inc, err := s.ReadI8()
		in.Var, in.Int = int(idx), int(inc)
		return in, err
	case opcode.KindTableSwitch, opcode.KindLookupSwitch:
		return c.decodeSwitch(s, off, in)
	case opcode.KindWide:
		return c.decodeWide(s, off)
	default:
		return in, classfmt.Malformed(c.start+off, "invalid opcode %#02x", b)
	}
	return in, nil
}

func (c *codeReader) decodeSwitch(s *classfmt.Stream, off int, in code.Inst) (code.Inst, error) {
	if err := s.Skip((4 - (off+1)%4) % 4); err != nil {
		return in, err
	}
	d, err := s.ReadI32()
	if err != nil {
		return in, err
	}
	if in.Default, err = c.branch(off, int(d)); err != nil {
		return in, err
	}
	if in.Op == opcode.TABLESWITCH {
		if in.Min, err = s.ReadI32(); err != nil {
			return in, err
		}
		if in.Max, err = s.ReadI32(); err != nil {
			return in, err
		}
		n := int64(in.Max) - int64(in.Min) + 1
		if n <= 0 || n > int64(s.Remaining()/4) {
			return in, classfmt.Malformed(c.start+off, "tableswitch range %d..%d", in.Min, in.Max)
		}
		in.Targets = make([]code.Label, n)
		for i := range in.Targets {
			d, err := s.ReadI32()
			if err != nil {
				return in, err
			}
			if in.Targets[i], err = c.branch(off, int(d)); err != nil {
				return in, err
			}
		}
		return in, nil
	}
	n, err := s.ReadI32()
	if err != nil {
		return in, err
	}
	if n < 0 || int(n) > s.Remaining()/8 {
		return in, classfmt.Malformed(c.start+off, "lookupswitch with %d pairs", n)
	}
	in.Keys = make([]int32, n)
	in.Targets = make([]code.Label, n)
	for i := 0; i < int(n); i++ {
		if in.Keys[i], err = s.ReadI32(); err != nil {
			return in, err
		}
		d, err := s.ReadI32()
		if err != nil {
			return in, err
		}
		if in.Targets[i], err = c.branch(off, int(d)); err != nil {
			return in, err
		}
	}
	return in, nil
}

func (c *codeReader) decodeWide(s *classfmt.Stream, off int) (code.Inst, error) {
	b, err := s.ReadU8()
	if err != nil {
		return code.Inst{}, err
	}
	op := opcode.Op(b)
	in := code.Inst{Op: op}
	if op.Kind() != opcode.KindVar && op != opcode.IINC {
		return in, classfmt.Malformed(c.start+off, "wide %s", op)
	}
	idx, err := s.ReadU16()
	if err != nil {
		return in, err
	}
	in.Var = int(idx)
	if op == opcode.IINC {
		inc, err := s.ReadI16()
		in.Int = int(inc)
		return in, err
	}
	return in, nil
}

// emitInst reports one canonical instruction to mv.
func emitInst(mv MethodVisitor, in *code.Inst) {
	op := in.Op
	switch op.Kind() {
	case opcode.KindNone:
		mv.VisitInsn(op)
	case opcode.KindByte, opcode.KindShort, opcode.KindNewArray:
		mv.VisitIntInsn(op, in.Int)
	case opcode.KindVar:
		mv.VisitVarInsn(op, in.Var)
	case opcode.KindLdc, opcode.KindLdcWide:
		mv.VisitLdcInsn(in.Const)
	case opcode.KindField:
		mv.VisitFieldInsn(op, in.Owner, in.Name, in.Desc)
	case opcode.KindMethod, opcode.KindInterface:
		mv.VisitMethodInsn(op, in.Owner, in.Name, in.Desc, in.Itf)
	case opcode.KindIndy:
		mv.VisitInvokeDynamicInsn(in.Name, in.Desc, in.BSM, in.BSMArgs...)
	case opcode.KindType:
		mv.VisitTypeInsn(op, in.Owner)
	case opcode.KindMultiANewArray:
		mv.VisitMultiANewArrayInsn(in.Owner, in.Int)
	case opcode.KindJump, opcode.KindJumpWide:
		mv.VisitJumpInsn(op, in.Target)
	case opcode.KindIinc:
		mv.VisitIincInsn(in.Var, in.Int)
	case opcode.KindTableSwitch:
		mv.VisitTableSwitchInsn(in.Min, in.Max, in.Default, in.Targets...)
	case opcode.KindLookupSwitch:
		mv.VisitLookupSwitchInsn(in.Default, in.Keys, in.Targets)
	default:
		panic(fmt.Sprintf("classfile: cannot report %s", op))
	}
}
