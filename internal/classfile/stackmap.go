package classfile

import (
	"fmt"

	"bytecraft/internal/classfmt"
	"bytecraft/internal/code"
	"bytecraft/internal/constpool"
)

// StackMapTable frame type ranges.
const (
	smSameMax        = 63
	smSame1Min       = 64
	smSame1Max       = 127
	smSame1Extended  = 247
	smChopMin        = 248
	smSameExtended   = 251
	smAppendMax      = 254
	smFull           = 255
	smMaxShortOffset = 63
)

// offsetFrame is a stack map frame at a body offset.
type offsetFrame struct {
	off   int
	frame code.Frame
}

// readStackMap decodes a StackMapTable payload. Uninitialized offsets are
// turned into labels through labelAt.
func readStackMap(s *classfmt.Stream, pool *constpool.Pool, labelAt func(int) (code.Label, error)) ([]offsetFrame, error) {
	n, err := s.ReadU16()
	if err != nil {
		return nil, err
	}
	out := make([]offsetFrame, 0, n)
	off := -1
	for i := 0; i < int(n); i++ {
		at := s.Position()
		typ, err := s.ReadU8()
		if err != nil {
			return nil, err
		}
		var f code.Frame
		var delta int
		switch {
		case typ <= smSameMax:
			f.Kind, delta = code.FrameSame, int(typ)
		case typ <= smSame1Max:
			f.Kind, delta = code.FrameSame1, int(typ-smSame1Min)
			t, err := readVType(s, pool, labelAt)
			if err != nil {
				return nil, err
			}
			f.Stack = []code.VType{t}
		case typ < smSame1Extended:
			return nil, classfmt.Malformed(at, "reserved stack map frame type %d", typ)
		default:
			d, err := s.ReadU16()
			if err != nil {
				return nil, err
			}
			delta = int(d)
			switch {
			case typ == smSame1Extended:
				f.Kind = code.FrameSame1
				t, err := readVType(s, pool, labelAt)
				if err != nil {
					return nil, err
				}
				f.Stack = []code.VType{t}
			case typ < smSameExtended:
				f.Kind, f.Chop = code.FrameChop, smSameExtended-int(typ)
			case typ == smSameExtended:
				f.Kind = code.FrameSame
			case typ <= smAppendMax:
				f.Kind = code.FrameAppend
				if f.Locals, err = readVTypes(s, pool, labelAt, int(typ)-smSameExtended); err != nil {
					return nil, err
				}
			default:
				f.Kind = code.FrameFull
				nl, err := s.ReadU16()
				if err != nil {
					return nil, err
				}
				if f.Locals, err = readVTypes(s, pool, labelAt, int(nl)); err != nil {
					return nil, err
				}
				ns, err := s.ReadU16()
				if err != nil {
					return nil, err
				}
				if f.Stack, err = readVTypes(s, pool, labelAt, int(ns)); err != nil {
					return nil, err
				}
			}
		}
		off += delta + 1
		out = append(out, offsetFrame{off: off, frame: f})
	}
	return out, nil
}

func readVTypes(s *classfmt.Stream, pool *constpool.Pool, labelAt func(int) (code.Label, error), n int) ([]code.VType, error) {
	out := make([]code.VType, 0, n)
	for i := 0; i < n; i++ {
		t, err := readVType(s, pool, labelAt)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func readVType(s *classfmt.Stream, pool *constpool.Pool, labelAt func(int) (code.Label, error)) (code.VType, error) {
	at := s.Position()
	tag, err := s.ReadU8()
	if err != nil {
		return code.TopType, err
	}
	switch k := code.VKind(tag); k {
	case code.Top, code.Integer, code.Float, code.Double, code.Long, code.Null, code.UninitializedThis:
		return code.VType{Kind: k}, nil
	case code.Object:
		idx, err := s.ReadU16()
		if err != nil {
			return code.TopType, err
		}
		name, err := pool.ClassName(int(idx))
		if err != nil {
			return code.TopType, err
		}
		return code.ObjectType(name), nil
	case code.Uninitialized:
		off, err := s.ReadU16()
		if err != nil {
			return code.TopType, err
		}
		l, err := labelAt(int(off))
		if err != nil {
			return code.TopType, err
		}
		return code.UninitType(l), nil
	}
	return code.TopType, classfmt.Malformed(at, "verification type tag %d", tag)
}

// writeStackMap encodes expanded frames, sorted by offset, as the smallest
// StackMapTable relative to initial.
func writeStackMap(v *classfmt.Vector, pool *constpool.Pool, offsets *code.Offsets, initial code.Frame, frames []offsetFrame) error {
	v.PutU16(uint16(len(frames)))
	prev := initial
	last := -1
	for _, of := range frames {
		if of.off <= last {
			return fmt.Errorf("stack map frames at offsets %d and %d", last, of.off)
		}
		delta := of.off - last - 1
		last = of.off
		f := code.Compress(prev, of.frame)
		prev = of.frame
		switch f.Kind {
		case code.FrameSame:
			if delta <= smMaxShortOffset {
				v.PutU8(uint8(delta))
			} else {
				v.PutU8(smSameExtended)
				v.PutU16(uint16(delta))
			}
		case code.FrameSame1:
			if delta <= smMaxShortOffset {
				v.PutU8(uint8(smSame1Min + delta))
			} else {
				v.PutU8(smSame1Extended)
				v.PutU16(uint16(delta))
			}
			if err := writeVType(v, pool, offsets, f.Stack[0]); err != nil {
				return err
			}
		case code.FrameChop:
			v.PutU8(uint8(smSameExtended - f.Chop))
			v.PutU16(uint16(delta))
		case code.FrameAppend:
			v.PutU8(uint8(smSameExtended + len(f.Locals)))
			v.PutU16(uint16(delta))
			if err := writeVTypes(v, pool, offsets, f.Locals); err != nil {
				return err
			}
		default:
			v.PutU8(smFull)
			v.PutU16(uint16(delta))
			v.PutU16(uint16(len(f.Locals)))
			if err := writeVTypes(v, pool, offsets, f.Locals); err != nil {
				return err
			}
			v.PutU16(uint16(len(f.Stack)))
			if err := writeVTypes(v, pool, offsets, f.Stack); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeVTypes(v *classfmt.Vector, pool *constpool.Pool, offsets *code.Offsets, ts []code.VType) error {
	for _, t := range ts {
		if err := writeVType(v, pool, offsets, t); err != nil {
			return err
		}
	}
	return nil
}

func writeVType(v *classfmt.Vector, pool *constpool.Pool, offsets *code.Offsets, t code.VType) error {
	v.PutU8(uint8(t.Kind))
	switch t.Kind {
	case code.Object:
		v.PutU16(pool.InternClass(t.Name))
	case code.Uninitialized:
		off, err := offsets.Resolve(t.Label)
		if err != nil {
			return err
		}
		v.PutU16(uint16(off))
	}
	return nil
}
