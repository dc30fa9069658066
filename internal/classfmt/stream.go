// Package classfmt provides the byte-level primitives of the class file
// format: a bounded big-endian reader, a growable writer with patchable
// reservations, modified UTF-8, and the shared error taxonomy.
package classfmt

import (
	"encoding/binary"
	"math"
)

// Stream reads class file data. All multi-byte values are big-endian.
type Stream struct {
	data []byte
	pos  int
	end  int
}

// NewStream creates a stream over the given data.
func NewStream(data []byte) *Stream {
	return &Stream{data: data, pos: 0, end: len(data)}
}

// NewStreamAt creates a stream starting at offset within data.
func NewStreamAt(data []byte, offset int) *Stream {
	if offset > len(data) {
		offset = len(data)
	}
	return &Stream{data: data, pos: offset, end: len(data)}
}

// Sub returns a stream over data[off:off+n], positioned at off. Offsets
// reported by the sub stream stay absolute.
func (s *Stream) Sub(off, n int) (*Stream, error) {
	if off < 0 || n < 0 || off+n > s.end {
		return nil, Malformed(off, "section of %d bytes exceeds input", n)
	}
	return &Stream{data: s.data, pos: off, end: off + n}, nil
}

// Data returns the underlying buffer.
func (s *Stream) Data() []byte { return s.data }

// Position returns the current read position.
func (s *Stream) Position() int { return s.pos }

// SetPosition sets the read position.
func (s *Stream) SetPosition(pos int) {
	if pos > s.end {
		pos = s.end
	}
	s.pos = pos
}

// Remaining returns bytes left to read.
func (s *Stream) Remaining() int { return s.end - s.pos }

func (s *Stream) need(n int) error {
	if s.pos+n > s.end {
		return Malformed(s.pos, "need %d bytes, %d remaining", n, s.end-s.pos)
	}
	return nil
}

// Skip advances n bytes.
func (s *Stream) Skip(n int) error {
	if err := s.need(n); err != nil {
		return err
	}
	s.pos += n
	return nil
}

// ReadU8 reads an unsigned byte.
func (s *Stream) ReadU8() (uint8, error) {
	if err := s.need(1); err != nil {
		return 0, err
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}

// ReadI8 reads a signed byte.
func (s *Stream) ReadI8() (int8, error) {
	b, err := s.ReadU8()
	return int8(b), err
}

// ReadU16 reads a big-endian uint16.
func (s *Stream) ReadU16() (uint16, error) {
	if err := s.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(s.data[s.pos:])
	s.pos += 2
	return v, nil
}

// ReadI16 reads a big-endian int16.
func (s *Stream) ReadI16() (int16, error) {
	v, err := s.ReadU16()
	return int16(v), err
}

// ReadU32 reads a big-endian uint32.
func (s *Stream) ReadU32() (uint32, error) {
	if err := s.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(s.data[s.pos:])
	s.pos += 4
	return v, nil
}

// ReadI32 reads a big-endian int32.
func (s *Stream) ReadI32() (int32, error) {
	v, err := s.ReadU32()
	return int32(v), err
}

// ReadI64 reads a big-endian int64.
func (s *Stream) ReadI64() (int64, error) {
	if err := s.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(s.data[s.pos:])
	s.pos += 8
	return int64(v), nil
}

// ReadF32 reads an IEEE 754 single.
func (s *Stream) ReadF32() (float32, error) {
	v, err := s.ReadU32()
	return math.Float32frombits(v), err
}

// ReadF64 reads an IEEE 754 double.
func (s *Stream) ReadF64() (float64, error) {
	v, err := s.ReadI64()
	return math.Float64frombits(uint64(v)), err
}

// ReadBytes reads n bytes into a new slice.
func (s *Stream) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, Malformed(s.pos, "negative length %d", n)
	}
	if err := s.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, s.data[s.pos:s.pos+n])
	s.pos += n
	return out, nil
}

// ReadUTF8 reads a u2-length-prefixed modified UTF-8 string.
func (s *Stream) ReadUTF8() (string, error) {
	start := s.pos
	n, err := s.ReadU16()
	if err != nil {
		return "", err
	}
	if err := s.need(int(n)); err != nil {
		return "", err
	}
	str, err := DecodeModifiedUTF8(s.data[s.pos : s.pos+int(n)])
	if err != nil {
		return "", Malformed(start, "%v", err)
	}
	s.pos += int(n)
	return str, nil
}

// U8At reads a byte at an absolute offset without moving the cursor.
func (s *Stream) U8At(off int) (uint8, error) {
	if off < 0 || off+1 > s.end {
		return 0, Malformed(off, "read past end")
	}
	return s.data[off], nil
}

// U16At reads a uint16 at an absolute offset without moving the cursor.
func (s *Stream) U16At(off int) (uint16, error) {
	if off < 0 || off+2 > s.end {
		return 0, Malformed(off, "read past end")
	}
	return binary.BigEndian.Uint16(s.data[off:]), nil
}

// U32At reads a uint32 at an absolute offset without moving the cursor.
func (s *Stream) U32At(off int) (uint32, error) {
	if off < 0 || off+4 > s.end {
		return 0, Malformed(off, "read past end")
	}
	return binary.BigEndian.Uint32(s.data[off:]), nil
}
