package code

import (
	"fmt"
	"strings"
)

// ParseMethodDesc splits a method descriptor into its argument and return
// field descriptors.
func ParseMethodDesc(desc string) (args []string, ret string, err error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, "", fmt.Errorf("method descriptor %q: missing '('", desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		n, err := fieldDescLen(desc, i)
		if err != nil {
			return nil, "", err
		}
		args = append(args, desc[i:i+n])
		i += n
	}
	if i >= len(desc) {
		return nil, "", fmt.Errorf("method descriptor %q: missing ')'", desc)
	}
	ret = desc[i+1:]
	if ret != "V" {
		n, err := fieldDescLen(ret, 0)
		if err != nil || n != len(ret) {
			return nil, "", fmt.Errorf("method descriptor %q: bad return type", desc)
		}
	}
	return args, ret, nil
}

func fieldDescLen(s string, i int) (int, error) {
	start := i
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i >= len(s) {
		return 0, fmt.Errorf("descriptor %q: truncated at %d", s, start)
	}
	switch s[i] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return i + 1 - start, nil
	case 'L':
		end := strings.IndexByte(s[i:], ';')
		if end < 0 {
			return 0, fmt.Errorf("descriptor %q: unterminated class type", s)
		}
		return i + end + 1 - start, nil
	}
	return 0, fmt.Errorf("descriptor %q: bad type %q at %d", s, s[i], i)
}

// TypeSize returns the number of slots a value of field descriptor d uses.
func TypeSize(d string) int {
	switch d {
	case "V", "":
		return 0
	case "J", "D":
		return 2
	}
	return 1
}

// ArgSlots returns the slots taken by a method's arguments, not counting
// the receiver.
func ArgSlots(desc string) (int, error) {
	args, _, err := ParseMethodDesc(desc)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range args {
		n += TypeSize(a)
	}
	return n, nil
}

// ReturnSlots returns the slots taken by a method's return value.
func ReturnSlots(desc string) int {
	i := strings.LastIndexByte(desc, ')')
	if i < 0 {
		return 0
	}
	return TypeSize(desc[i+1:])
}

// TypeOf returns the verification type of a value of field descriptor d.
// Boolean, byte, char and short widen to int.
func TypeOf(d string) VType {
	if d == "" {
		return TopType
	}
	switch d[0] {
	case 'Z', 'B', 'C', 'S', 'I':
		return IntType
	case 'F':
		return FloatType
	case 'J':
		return LongType
	case 'D':
		return DoubleType
	case 'L':
		return ObjectType(strings.TrimSuffix(d[1:], ";"))
	case '[':
		return ObjectType(d)
	}
	return TopType
}

// ClassDesc returns the field descriptor of an internal name or array
// descriptor.
func ClassDesc(name string) string {
	if strings.HasPrefix(name, "[") {
		return name
	}
	return "L" + name + ";"
}

// InitialFrame builds the entry frame of a method: the receiver (or
// UninitializedThis in a constructor) followed by the arguments.
func InitialFrame(owner, name, desc string, static bool) (Frame, error) {
	args, _, err := ParseMethodDesc(desc)
	if err != nil {
		return Frame{}, err
	}
	f := Frame{Kind: FrameNew}
	if !static {
		if name == "<init>" && owner != "java/lang/Object" {
			f.Locals = append(f.Locals, UninitThis)
		} else {
			f.Locals = append(f.Locals, ObjectType(owner))
		}
	}
	for _, a := range args {
		f.Locals = append(f.Locals, TypeOf(a))
	}
	return f, nil
}
