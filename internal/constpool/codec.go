package constpool

import (
	"math"

	"bytecraft/internal/classfmt"
)

// Parse reads constant_pool_count and the entries that follow from s.
// Structure is validated eagerly (tags, lengths, UTF-8); cross references
// are validated when resolved.
func Parse(s *classfmt.Stream) (*Pool, error) {
	count, err := s.ReadU16()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, classfmt.Malformed(s.Position()-2, "constant_pool_count is 0")
	}
	p := New()
	for i := 1; i < int(count); i++ {
		off := s.Position()
		tag, err := s.ReadU8()
		if err != nil {
			return nil, err
		}
		e := Entry{Tag: Tag(tag)}
		switch e.Tag {
		case TagUTF8:
			if e.Str, err = s.ReadUTF8(); err != nil {
				return nil, err
			}
		case TagInteger, TagFloat:
			v, err := s.ReadU32()
			if err != nil {
				return nil, err
			}
			e.Bits = uint64(v)
		case TagLong, TagDouble:
			v, err := s.ReadI64()
			if err != nil {
				return nil, err
			}
			e.Bits = uint64(v)
		case TagClass, TagString, TagMethodType:
			if e.Ref1, err = s.ReadU16(); err != nil {
				return nil, err
			}
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagInvokeDynamic:
			if e.Ref1, err = s.ReadU16(); err != nil {
				return nil, err
			}
			if e.Ref2, err = s.ReadU16(); err != nil {
				return nil, err
			}
		case TagMethodHandle:
			kind, err := s.ReadU8()
			if err != nil {
				return nil, err
			}
			if kind < RefGetField || kind > RefInvokeInterface {
				return nil, classfmt.Malformed(off, "method handle kind %d", kind)
			}
			e.Ref1 = uint16(kind)
			if e.Ref2, err = s.ReadU16(); err != nil {
				return nil, err
			}
		default:
			return nil, classfmt.Malformed(off, "constant #%d has unknown tag %d", i, tag)
		}
		if e.Tag.Wide() && i+1 >= int(count) {
			return nil, classfmt.Malformed(off, "constant #%d: %s needs two slots", i, e.Tag)
		}
		p.entries = append(p.entries, e)
		if _, dup := p.index[e]; !dup {
			p.index[e] = uint16(i)
		}
		if e.Tag.Wide() {
			p.entries = append(p.entries, Entry{})
			i++
		}
	}
	return p, nil
}

// WriteTo appends constant_pool_count and all entries to v.
func (p *Pool) WriteTo(v *classfmt.Vector) error {
	if p.err != nil {
		return p.err
	}
	if len(p.entries) > math.MaxUint16 {
		return classfmt.TooLarge("constant pool", "%d slots", len(p.entries))
	}
	v.PutU16(uint16(len(p.entries)))
	for i := 1; i < len(p.entries); i++ {
		e := p.entries[i]
		if e.Tag == 0 {
			continue
		}
		v.PutU8(uint8(e.Tag))
		switch e.Tag {
		case TagUTF8:
			if err := v.PutUTF8(e.Str); err != nil {
				return err
			}
		case TagInteger, TagFloat:
			v.PutU32(uint32(e.Bits))
		case TagLong, TagDouble:
			v.PutI64(int64(e.Bits))
		case TagClass, TagString, TagMethodType:
			v.PutU16(e.Ref1)
		case TagMethodHandle:
			v.PutU8(uint8(e.Ref1))
			v.PutU16(e.Ref2)
		default:
			v.PutU16(e.Ref1)
			v.PutU16(e.Ref2)
		}
	}
	return nil
}
