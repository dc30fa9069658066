package classfile

import (
	"fmt"

	"bytecraft/internal/classfmt"
	"bytecraft/internal/constpool"
)

// readAnnotations decodes a Runtime*Annotations payload, reporting each
// annotation through visit.
func (r *Reader) readAnnotations(s *classfmt.Stream, visit func(desc string) AnnotationVisitor) error {
	n, err := s.ReadU16()
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		desc, err := r.utf8At(s)
		if err != nil {
			return err
		}
		if err := r.readPairs(s, visit(desc)); err != nil {
			return err
		}
	}
	return nil
}

// readPairs decodes num_element_value_pairs and the pairs, then ends av.
func (r *Reader) readPairs(s *classfmt.Stream, av AnnotationVisitor) error {
	n, err := s.ReadU16()
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		name, err := r.utf8At(s)
		if err != nil {
			return err
		}
		if err := r.readElementValue(s, av, name); err != nil {
			return err
		}
	}
	if av != nil {
		av.VisitEnd()
	}
	return nil
}

// readElementValue decodes one element_value. av may be nil, in which case
// the value is only skipped.
func (r *Reader) readElementValue(s *classfmt.Stream, av AnnotationVisitor, name string) error {
	at := s.Position()
	tag, err := s.ReadU8()
	if err != nil {
		return err
	}
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		idx, err := s.ReadU16()
		if err != nil {
			return err
		}
		c, err := r.pool.Const(int(idx))
		if err != nil {
			return err
		}
		v, err := elementConst(tag, c)
		if err != nil {
			return classfmt.Malformed(at, "%v", err)
		}
		if av != nil {
			av.Visit(name, v)
		}
	case 's':
		v, err := r.utf8At(s)
		if err != nil {
			return err
		}
		if av != nil {
			av.Visit(name, v)
		}
	case 'e':
		desc, err := r.utf8At(s)
		if err != nil {
			return err
		}
		val, err := r.utf8At(s)
		if err != nil {
			return err
		}
		if av != nil {
			av.VisitEnum(name, desc, val)
		}
	case 'c':
		desc, err := r.utf8At(s)
		if err != nil {
			return err
		}
		if av != nil {
			av.Visit(name, TypeValue{Desc: desc})
		}
	case '@':
		desc, err := r.utf8At(s)
		if err != nil {
			return err
		}
		var sub AnnotationVisitor
		if av != nil {
			sub = av.VisitAnnotation(name, desc)
		}
		return r.readPairs(s, sub)
	case '[':
		n, err := s.ReadU16()
		if err != nil {
			return err
		}
		var sub AnnotationVisitor
		if av != nil {
			sub = av.VisitArray(name)
		}
		for i := 0; i < int(n); i++ {
			if err := r.readElementValue(s, sub, ""); err != nil {
				return err
			}
		}
		if sub != nil {
			sub.VisitEnd()
		}
	default:
		return classfmt.Malformed(at, "element value tag %q", tag)
	}
	return nil
}

func elementConst(tag byte, c any) (any, error) {
	switch tag {
	case 'J':
		if v, ok := c.(int64); ok {
			return v, nil
		}
	case 'F':
		if v, ok := c.(float32); ok {
			return v, nil
		}
	case 'D':
		if v, ok := c.(float64); ok {
			return v, nil
		}
	default:
		v, ok := c.(int32)
		if !ok {
			break
		}
		switch tag {
		case 'B':
			return int8(v), nil
		case 'C':
			return uint16(v), nil
		case 'S':
			return int16(v), nil
		case 'Z':
			return v != 0, nil
		}
		return v, nil
	}
	return nil, fmt.Errorf("element value %q refers to %T", tag, c)
}

// annotationWriter encodes annotation events into v. Nested annotations and
// arrays write into the same vector, which works because their events are
// complete before the parent's next element.
type annotationWriter struct {
	pool *constpool.Pool
	v    *classfmt.Vector

	named    bool
	countPos int
	count    int
	err      *error
}

// newAnnotationWriter starts an annotation body at the end of v: the type
// index when desc is set, then the pair count placeholder.
func newAnnotationWriter(pool *constpool.Pool, v *classfmt.Vector, desc string, errp *error) *annotationWriter {
	if desc != "" {
		v.PutU16(pool.InternUTF8(desc))
	}
	return &annotationWriter{pool: pool, v: v, named: true, countPos: v.Reserve16(), err: errp}
}

func (w *annotationWriter) fail(err error) {
	if *w.err == nil {
		*w.err = err
	}
}

func (w *annotationWriter) name(name string) {
	w.count++
	if w.named {
		w.v.PutU16(w.pool.InternUTF8(name))
	}
}

func (w *annotationWriter) Visit(name string, value any) {
	w.name(name)
	w.putValue(value)
}

func (w *annotationWriter) putValue(value any) {
	p, v := w.pool, w.v
	switch x := value.(type) {
	case int8:
		v.PutU8('B')
		v.PutU16(p.InternInt(int32(x)))
	case uint16:
		v.PutU8('C')
		v.PutU16(p.InternInt(int32(x)))
	case int16:
		v.PutU8('S')
		v.PutU16(p.InternInt(int32(x)))
	case bool:
		b := int32(0)
		if x {
			b = 1
		}
		v.PutU8('Z')
		v.PutU16(p.InternInt(b))
	case int32:
		v.PutU8('I')
		v.PutU16(p.InternInt(x))
	case int:
		v.PutU8('I')
		v.PutU16(p.InternInt(int32(x)))
	case int64:
		v.PutU8('J')
		v.PutU16(p.InternLong(x))
	case float32:
		v.PutU8('F')
		v.PutU16(p.InternFloat(x))
	case float64:
		v.PutU8('D')
		v.PutU16(p.InternDouble(x))
	case string:
		v.PutU8('s')
		v.PutU16(p.InternUTF8(x))
	case TypeValue:
		v.PutU8('c')
		v.PutU16(p.InternUTF8(x.Desc))
	case []int8:
		putArray(w, x)
	case []bool:
		putArray(w, x)
	case []uint16:
		putArray(w, x)
	case []int16:
		putArray(w, x)
	case []int32:
		putArray(w, x)
	case []int64:
		putArray(w, x)
	case []float32:
		putArray(w, x)
	case []float64:
		putArray(w, x)
	default:
		w.fail(fmt.Errorf("annotation value of type %T", value))
	}
}

func putArray[T any](w *annotationWriter, xs []T) {
	w.v.PutU8('[')
	w.v.PutU16(uint16(len(xs)))
	for _, x := range xs {
		w.putValue(x)
	}
}

func (w *annotationWriter) VisitEnum(name, desc, value string) {
	w.name(name)
	w.v.PutU8('e')
	w.v.PutU16(w.pool.InternUTF8(desc))
	w.v.PutU16(w.pool.InternUTF8(value))
}

func (w *annotationWriter) VisitAnnotation(name, desc string) AnnotationVisitor {
	w.name(name)
	w.v.PutU8('@')
	return newAnnotationWriter(w.pool, w.v, desc, w.err)
}

func (w *annotationWriter) VisitArray(name string) AnnotationVisitor {
	w.name(name)
	w.v.PutU8('[')
	return &annotationWriter{pool: w.pool, v: w.v, countPos: w.v.Reserve16(), err: w.err}
}

func (w *annotationWriter) VisitEnd() {
	if w.countPos >= 0 {
		w.v.Patch16(w.countPos, uint16(w.count))
	}
}

// newDefaultWriter writes a single unnamed element value, the payload of
// AnnotationDefault.
func newDefaultWriter(pool *constpool.Pool, v *classfmt.Vector, errp *error) *annotationWriter {
	return &annotationWriter{pool: pool, v: v, countPos: -1, err: errp}
}

// annotationSet collects the annotations of one attribute.
type annotationSet struct {
	n int
	v *classfmt.Vector
}

func (a *annotationSet) add(pool *constpool.Pool, desc string, errp *error) AnnotationVisitor {
	if a.v == nil {
		a.v = classfmt.NewVector(64)
	}
	a.n++
	return newAnnotationWriter(pool, a.v, desc, errp)
}

func (a *annotationSet) empty() bool { return a.n == 0 }

func (a *annotationSet) payload() []byte {
	out := classfmt.NewVector(2 + a.v.Len())
	out.PutU16(uint16(a.n))
	out.PutBytes(a.v.Bytes())
	return out.Bytes()
}

// paramAnnotations collects parameter annotations, by parameter index.
type paramAnnotations struct {
	sets []annotationSet
}

func (p *paramAnnotations) add(pool *constpool.Pool, param int, desc string, errp *error) AnnotationVisitor {
	for len(p.sets) <= param {
		p.sets = append(p.sets, annotationSet{})
	}
	return p.sets[param].add(pool, desc, errp)
}

func (p *paramAnnotations) empty() bool { return len(p.sets) == 0 }

func (p *paramAnnotations) payload(params int) []byte {
	n := max(params, len(p.sets))
	out := classfmt.NewVector(64)
	out.PutU8(uint8(n))
	for i := 0; i < n; i++ {
		if i >= len(p.sets) || p.sets[i].empty() {
			out.PutU16(0)
			continue
		}
		out.PutBytes(p.sets[i].payload())
	}
	return out.Bytes()
}
