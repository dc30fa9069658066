package classfmt

import (
	"encoding/binary"
	"math"
)

// Vector is a growable big-endian output buffer.
type Vector struct {
	data []byte
}

// NewVector creates a vector with the given initial capacity.
func NewVector(capacity int) *Vector {
	return &Vector{data: make([]byte, 0, capacity)}
}

// Len returns the number of bytes written.
func (v *Vector) Len() int { return len(v.data) }

// Bytes returns the written bytes. The slice aliases the vector.
func (v *Vector) Bytes() []byte { return v.data }

func (v *Vector) PutU8(b uint8) { v.data = append(v.data, b) }

func (v *Vector) PutU16(x uint16) { v.data = binary.BigEndian.AppendUint16(v.data, x) }

func (v *Vector) PutU32(x uint32) { v.data = binary.BigEndian.AppendUint32(v.data, x) }

func (v *Vector) PutI32(x int32) { v.PutU32(uint32(x)) }

func (v *Vector) PutI64(x int64) { v.data = binary.BigEndian.AppendUint64(v.data, uint64(x)) }

func (v *Vector) PutF32(f float32) { v.PutU32(math.Float32bits(f)) }

func (v *Vector) PutF64(f float64) { v.PutI64(int64(math.Float64bits(f))) }

func (v *Vector) PutBytes(b []byte) { v.data = append(v.data, b...) }

// PutUTF8 writes a u2-length-prefixed modified UTF-8 string.
func (v *Vector) PutUTF8(s string) error {
	enc := EncodeModifiedUTF8(s)
	if len(enc) > math.MaxUint16 {
		return TooLarge("utf8", "encoded string is %d bytes", len(enc))
	}
	v.PutU16(uint16(len(enc)))
	v.PutBytes(enc)
	return nil
}

// Reserve16 writes a zero u2 and returns its position for Patch16.
func (v *Vector) Reserve16() int {
	pos := len(v.data)
	v.PutU16(0)
	return pos
}

// Reserve32 writes a zero u4 and returns its position for Patch32.
func (v *Vector) Reserve32() int {
	pos := len(v.data)
	v.PutU32(0)
	return pos
}

// Patch16 overwrites a reserved u2.
func (v *Vector) Patch16(pos int, x uint16) {
	binary.BigEndian.PutUint16(v.data[pos:], x)
}

// Patch32 overwrites a reserved u4.
func (v *Vector) Patch32(pos int, x uint32) {
	binary.BigEndian.PutUint32(v.data[pos:], x)
}
