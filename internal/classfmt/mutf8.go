package classfmt

import (
	"errors"
	"unicode/utf16"
	"unicode/utf8"
)

var errBadUTF8 = errors.New("invalid modified UTF-8")

// DecodeModifiedUTF8 decodes the class file string encoding: NUL is
// C0 80, and characters above U+FFFF are stored as surrogate pairs, each
// surrogate encoded in three bytes.
func DecodeModifiedUTF8(b []byte) (string, error) {
	ascii := true
	for _, c := range b {
		if c == 0 || c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b), nil
	}

	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == 0:
			return "", errBadUTF8
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xe0 == 0xc0:
			if i+1 >= len(b) || b[i+1]&0xc0 != 0x80 {
				return "", errBadUTF8
			}
			units = append(units, uint16(c&0x1f)<<6|uint16(b[i+1]&0x3f))
			i += 2
		case c&0xf0 == 0xe0:
			if i+2 >= len(b) || b[i+1]&0xc0 != 0x80 || b[i+2]&0xc0 != 0x80 {
				return "", errBadUTF8
			}
			units = append(units, uint16(c&0x0f)<<12|uint16(b[i+1]&0x3f)<<6|uint16(b[i+2]&0x3f))
			i += 3
		default:
			return "", errBadUTF8
		}
	}
	return unitsToString(units), nil
}

// unitsToString joins surrogate pairs. An unpaired surrogate has no UTF-8
// form; it is kept as its generalized three-byte encoding (ED A0 80 to
// ED BF BF) so EncodeModifiedUTF8 can write it back unchanged.
func unitsToString(units []uint16) string {
	out := make([]byte, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		if utf16.IsSurrogate(rune(u)) {
			if u < 0xdc00 && i+1 < len(units) {
				if r := utf16.DecodeRune(rune(u), rune(units[i+1])); r != utf8.RuneError {
					out = utf8.AppendRune(out, r)
					i++
					continue
				}
			}
			out = appendUnit3(out, u)
			continue
		}
		out = utf8.AppendRune(out, rune(u))
	}
	return string(out)
}

// isLoneSurrogate reports whether s starts with the three-byte form of a
// surrogate, as produced by unitsToString.
func isLoneSurrogate(s string) bool {
	return len(s) >= 3 && s[0] == 0xed && s[1]&0xe0 == 0xa0 && s[2]&0xc0 == 0x80
}

// EncodeModifiedUTF8 is the inverse of DecodeModifiedUTF8.
func EncodeModifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		if isLoneSurrogate(s[i:]) {
			out = append(out, s[i:i+3]...)
			i += 3
			continue
		}
		r, n := utf8.DecodeRuneInString(s[i:])
		i += n
		switch {
		case r == 0:
			out = append(out, 0xc0, 0x80)
		case r < 0x80:
			out = append(out, byte(r))
		case r < 0x800:
			out = append(out, 0xc0|byte(r>>6), 0x80|byte(r&0x3f))
		case r < 0x10000:
			out = appendUnit3(out, uint16(r))
		case r <= utf8.MaxRune:
			hi, lo := utf16.EncodeRune(r)
			out = appendUnit3(out, uint16(hi))
			out = appendUnit3(out, uint16(lo))
		}
	}
	return out
}

func appendUnit3(out []byte, u uint16) []byte {
	return append(out, 0xe0|byte(u>>12), 0x80|byte((u>>6)&0x3f), 0x80|byte(u&0x3f))
}
