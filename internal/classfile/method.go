package classfile

import (
	"fmt"
	"math"
	"sort"

	"bytecraft/internal/classfmt"
	"bytecraft/internal/code"
	"bytecraft/internal/flow"
)

// methodWriter buffers one method and encodes it at VisitEnd.
type methodWriter struct {
	w          *Writer
	access     int
	name       string
	desc       string
	signature  string
	exceptions []string

	annots    [2]annotationSet
	params    [2]paramAnnotations
	dflt      *classfmt.Vector
	attrs     []Attribute
	codeAttrs []Attribute

	BodyBuilder

	out []byte
}

func (m *methodWriter) where() string { return m.w.name + "." + m.name + m.desc }

func (m *methodWriter) VisitAnnotationDefault() AnnotationVisitor {
	m.dflt = classfmt.NewVector(16)
	return newDefaultWriter(m.w.pool, m.dflt, &m.w.err)
}

func (m *methodWriter) VisitAnnotation(desc string, visible bool) AnnotationVisitor {
	return m.annots[visIndex(visible)].add(m.w.pool, desc, &m.w.err)
}

func (m *methodWriter) VisitParameterAnnotation(param int, desc string, visible bool) AnnotationVisitor {
	return m.params[visIndex(visible)].add(m.w.pool, param, desc, &m.w.err)
}

func (m *methodWriter) VisitAttribute(attr Attribute) {
	if m.HasCode {
		m.codeAttrs = append(m.codeAttrs, attr)
		return
	}
	m.attrs = append(m.attrs, attr)
}

func (m *methodWriter) VisitEnd() {
	out, err := m.encode()
	if err != nil {
		m.w.fail(classfmt.In(m.where(), err))
		return
	}
	m.out = out
}

func (m *methodWriter) encode() ([]byte, error) {
	p := m.w.pool
	v := classfmt.NewVector(256)
	v.PutU16(uint16(m.access &^ pseudoFlags))
	v.PutU16(p.InternUTF8(m.name))
	v.PutU16(p.InternUTF8(m.desc))
	attrs := attrList{pool: p, v: v}
	attrs.begin()
	if m.HasCode {
		data, err := m.encodeCode()
		if err != nil {
			return nil, err
		}
		attrs.put(attrCode, data)
	}
	if len(m.exceptions) > 0 {
		ev := classfmt.NewVector(2 + 2*len(m.exceptions))
		ev.PutU16(uint16(len(m.exceptions)))
		for _, e := range m.exceptions {
			ev.PutU16(p.InternClass(e))
		}
		attrs.put(attrExceptions, ev.Bytes())
	}
	putCommon(&attrs, m.access, m.signature)
	if m.dflt != nil {
		attrs.put(attrAnnotationDefault, m.dflt.Bytes())
	}
	putAnnotations(&attrs, &m.annots)
	if !m.params[0].empty() || !m.params[1].empty() {
		args, _, err := code.ParseMethodDesc(m.desc)
		if err != nil {
			return nil, err
		}
		if !m.params[0].empty() {
			attrs.put(attrVisibleParamAnnots, m.params[0].payload(len(args)))
		}
		if !m.params[1].empty() {
			attrs.put(attrInvisibleParamAnnots, m.params[1].payload(len(args)))
		}
	}
	for _, a := range m.attrs {
		data, err := encodeAttribute(m.w.cfg.Attributes, &WriteContext{Pool: p}, a, false)
		if err != nil {
			return nil, err
		}
		attrs.put(a.Name(), data)
	}
	attrs.end()
	return v.Bytes(), attrs.err
}

// encodeCode runs the body pipeline: label allocations, branch relaxation,
// analysis, assembly, dead code replacement and attribute encoding.
func (m *methodWriter) encodeCode() ([]byte, error) {
	w := m.w
	p := w.pool
	b := &m.Body
	where := m.where()
	static := m.access&AccStatic != 0
	asm := &code.Assembler{Pool: p}

	hadFrames := b.HasFrames()
	b.LabelNew(m.Labels)
	widened, err := asm.Relax(b, m.Labels)
	if err != nil {
		return nil, err
	}
	if widened > 0 {
		w.Diags.Addf(where, classfmt.DiagWidened, "%d branches widened", widened)
	}
	level := w.cfg.Compute
	analyze := level == ComputeFrames
	if !analyze && widened > 0 && hadFrames {
		analyze = true
		w.Diags.Add(where, classfmt.DiagFramesRecomputed, "branch widening invalidated the incoming frames")
	}

	maxStack, maxLocals := m.MaxStack, m.MaxLocals
	var result *flow.Result
	switch {
	case analyze:
		b.StripFrames()
		result, err = flow.Analyze(flow.Method{Owner: w.name, Name: m.name, Desc: m.desc, Static: static, Body: b}, w.cfg.Hierarchy)
		if err != nil {
			return nil, err
		}
		if level == ComputeFrames {
			maxStack, maxLocals = result.MaxStack, result.MaxLocals
		} else {
			maxStack, maxLocals = max(maxStack, result.MaxStack), max(maxLocals, result.MaxLocals)
		}
	case level == ComputeMaxs:
		mx, err := flow.ComputeMaxs(b, m.desc, static)
		if err != nil {
			return nil, err
		}
		maxStack, maxLocals = mx.MaxStack, mx.MaxLocals
	}
	if maxStack > math.MaxUint16 || maxLocals > math.MaxUint16 {
		return nil, classfmt.TooLarge(where, "max_stack %d, max_locals %d", maxStack, maxLocals)
	}

	bytes, lay, err := asm.Assemble(b)
	if err != nil {
		return nil, err
	}

	var dead []span
	if result != nil {
		for _, id := range result.Dead {
			blk := &result.CFG.Blocks[id]
			s := span{lay.At(blk.Start), lay.At(blk.End)}
			code.FillDead(bytes[s.start:s.end])
			dead = append(dead, s)
		}
		if len(dead) > 0 {
			w.Diags.Addf(where, classfmt.DiagDeadCode, "%d unreachable blocks replaced", len(dead))
		}
	}

	frames, err := m.frames(result, lay, static)
	if err != nil {
		return nil, err
	}

	v := classfmt.NewVector(len(bytes) + 64)
	v.PutU16(uint16(maxStack))
	v.PutU16(uint16(maxLocals))
	v.PutU32(uint32(len(bytes)))
	v.PutBytes(bytes)
	if err := m.putHandlers(v, lay, dead); err != nil {
		return nil, err
	}

	attrs := attrList{pool: p, v: v}
	attrs.begin()
	if data, err := m.lineTable(lay); err != nil {
		return nil, err
	} else if data != nil {
		attrs.put(attrLineNumbers, data)
	}
	for _, t := range []struct {
		name   string
		locals []code.LocalVar
	}{{attrLocalVars, b.Locals}, {attrLocalVarTypes, b.LocalTypes}} {
		if len(t.locals) == 0 {
			continue
		}
		data, err := m.localTable(t.locals, lay)
		if err != nil {
			return nil, err
		}
		attrs.put(t.name, data)
	}
	if len(frames) > 0 && w.version&0xFFFF >= V1_6 {
		entry, err := code.InitialFrame(w.name, m.name, m.desc, static)
		if err != nil {
			return nil, err
		}
		sv := classfmt.NewVector(16 * len(frames))
		if err := writeStackMap(sv, p, lay.Offsets, entry, frames); err != nil {
			return nil, err
		}
		attrs.put(attrStackMap, sv.Bytes())
	}
	for _, a := range m.codeAttrs {
		data, err := encodeAttribute(w.cfg.Attributes, &WriteContext{Pool: p, offsets: lay.Offsets}, a, true)
		if err != nil {
			return nil, err
		}
		attrs.put(a.Name(), data)
	}
	attrs.end()
	return v.Bytes(), attrs.err
}

// frames returns the expanded frames to encode, by offset. Analyzed frames
// win; otherwise incoming frames are expanded in body order.
func (m *methodWriter) frames(result *flow.Result, lay *code.Layout, static bool) ([]offsetFrame, error) {
	if result != nil {
		out := make([]offsetFrame, 0, len(result.Frames))
		for _, bf := range result.Frames {
			out = append(out, offsetFrame{off: lay.At(result.CFG.Blocks[bf.Block].Start), frame: bf.Frame})
		}
		return out, nil
	}
	if !m.Body.HasFrames() {
		return nil, nil
	}
	prev, err := code.InitialFrame(m.w.name, m.name, m.desc, static)
	if err != nil {
		return nil, err
	}
	var out []offsetFrame
	for i := range m.Body.Nodes {
		n := &m.Body.Nodes[i]
		if n.Kind != code.NodeFrame {
			continue
		}
		f, err := code.Expand(prev, *n.Frame)
		if err != nil {
			return nil, fmt.Errorf("frame at node %d: %w", i, err)
		}
		prev = f
		off := lay.At(i)
		if k := len(out); k > 0 && out[k-1].off == off {
			out[k-1].frame = f
			continue
		}
		out = append(out, offsetFrame{off: off, frame: f})
	}
	return out, nil
}

// span is a half-open byte range of the body.
type span struct {
	start, end int
}

// subtract removes the dead spans from s, splitting it where needed.
func (s span) subtract(dead []span) []span {
	out := []span{s}
	for _, d := range dead {
		var next []span
		for _, r := range out {
			if d.end <= r.start || d.start >= r.end {
				next = append(next, r)
				continue
			}
			if r.start < d.start {
				next = append(next, span{r.start, d.start})
			}
			if d.end < r.end {
				next = append(next, span{d.end, r.end})
			}
		}
		out = next
	}
	return out
}

func (m *methodWriter) putHandlers(v *classfmt.Vector, lay *code.Layout, dead []span) error {
	p := m.w.pool
	type entry struct {
		r       span
		handler int
		typ     uint16
	}
	var entries []entry
	for _, h := range m.Body.Handlers {
		start, err := lay.Offsets.Resolve(h.Start)
		if err != nil {
			return err
		}
		end, err := lay.Offsets.Resolve(h.End)
		if err != nil {
			return err
		}
		handler, err := lay.Offsets.Resolve(h.Handler)
		if err != nil {
			return err
		}
		typ := optClass(p, h.Type)
		for _, r := range (span{start, end}).subtract(dead) {
			if r.start < r.end {
				entries = append(entries, entry{r: r, handler: handler, typ: typ})
			}
		}
	}
	v.PutU16(uint16(len(entries)))
	for _, e := range entries {
		v.PutU16(uint16(e.r.start))
		v.PutU16(uint16(e.r.end))
		v.PutU16(uint16(e.handler))
		v.PutU16(e.typ)
	}
	return nil
}

func (m *methodWriter) lineTable(lay *code.Layout) ([]byte, error) {
	type row struct{ off, line int }
	var rows []row
	for i := range m.Body.Nodes {
		n := &m.Body.Nodes[i]
		if n.Kind != code.NodeLine {
			continue
		}
		off, err := lay.Offsets.Resolve(n.Label)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row{off, n.Line})
	}
	if len(rows) == 0 {
		return nil, nil
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].off < rows[j].off })
	v := classfmt.NewVector(2 + 4*len(rows))
	v.PutU16(uint16(len(rows)))
	for _, r := range rows {
		v.PutU16(uint16(r.off))
		v.PutU16(uint16(r.line))
	}
	return v.Bytes(), nil
}

func (m *methodWriter) localTable(locals []code.LocalVar, lay *code.Layout) ([]byte, error) {
	p := m.w.pool
	v := classfmt.NewVector(2 + 10*len(locals))
	v.PutU16(uint16(len(locals)))
	for _, lv := range locals {
		start, err := lay.Offsets.Resolve(lv.Start)
		if err != nil {
			return nil, err
		}
		end, err := lay.Offsets.Resolve(lv.End)
		if err != nil {
			return nil, err
		}
		if end < start {
			return nil, fmt.Errorf("local %s ends at %d before its start %d", lv.Name, end, start)
		}
		v.PutU16(uint16(start))
		v.PutU16(uint16(end - start))
		v.PutU16(p.InternUTF8(lv.Name))
		v.PutU16(p.InternUTF8(lv.Desc))
		v.PutU16(uint16(lv.Index))
	}
	return v.Bytes(), nil
}
