package constpool

import (
	"fmt"
	"math"

	"bytecraft/internal/classfmt"
)

// Pool is a constant pool. Index 0 is reserved; the slot after a Long or
// Double entry is unusable and holds a zero Entry.
type Pool struct {
	entries []Entry
	index   map[Entry]uint16

	bootstraps []Bootstrap
	bsmIndex   map[string]uint16

	copied int
	err    error
}

// New returns an empty pool.
func New() *Pool {
	return &Pool{
		entries:  make([]Entry, 1, 64),
		index:    make(map[Entry]uint16),
		bsmIndex: make(map[string]uint16),
	}
}

// NewFrom returns a pool that starts with every entry of src at its
// original index, plus src's bootstrap methods. Copied entries are indexed,
// so interning an existing constant reuses its slot. When src itself holds
// duplicates, the first occurrence is reused and the others stay in place.
func NewFrom(src *Pool) *Pool {
	p := New()
	p.entries = append(p.entries[:1], src.entries[1:]...)
	p.copied = len(p.entries)
	for i, e := range p.entries {
		if e.Tag == 0 {
			continue
		}
		if _, ok := p.index[e]; !ok {
			p.index[e] = uint16(i)
		}
	}
	for i, b := range src.bootstraps {
		args := append([]uint16(nil), b.Args...)
		nb := Bootstrap{Method: b.Method, Args: args}
		p.bootstraps = append(p.bootstraps, nb)
		if _, ok := p.bsmIndex[nb.key()]; !ok {
			p.bsmIndex[nb.key()] = uint16(i)
		}
	}
	return p
}

// Count returns the constant_pool_count value: highest index + 1.
func (p *Pool) Count() int { return len(p.entries) }

// Copied returns how many slots were imported by NewFrom.
func (p *Pool) Copied() int { return p.copied }

// Err returns the first overflow error recorded while interning.
func (p *Pool) Err() error { return p.err }

// Intern returns the index of e, appending it if no equal entry is present.
func (p *Pool) Intern(e Entry) uint16 {
	if i, ok := p.index[e]; ok {
		return i
	}
	i := len(p.entries)
	need := 1
	if e.Tag.Wide() {
		need = 2
	}
	if i+need > math.MaxUint16 {
		if p.err == nil {
			p.err = classfmt.TooLarge("constant pool", "more than %d entries", math.MaxUint16-1)
		}
		return 0
	}
	p.entries = append(p.entries, e)
	if need == 2 {
		p.entries = append(p.entries, Entry{})
	}
	p.index[e] = uint16(i)
	return uint16(i)
}

func (p *Pool) InternUTF8(s string) uint16 {
	return p.Intern(Entry{Tag: TagUTF8, Str: s})
}

func (p *Pool) InternInt(v int32) uint16 {
	return p.Intern(Entry{Tag: TagInteger, Bits: uint64(uint32(v))})
}

func (p *Pool) InternFloat(v float32) uint16 {
	return p.Intern(Entry{Tag: TagFloat, Bits: uint64(math.Float32bits(v))})
}

func (p *Pool) InternLong(v int64) uint16 {
	return p.Intern(Entry{Tag: TagLong, Bits: uint64(v)})
}

func (p *Pool) InternDouble(v float64) uint16 {
	return p.Intern(Entry{Tag: TagDouble, Bits: math.Float64bits(v)})
}

// InternClass interns a Class entry for an internal name or array descriptor.
func (p *Pool) InternClass(name string) uint16 {
	return p.Intern(Entry{Tag: TagClass, Ref1: p.InternUTF8(name)})
}

func (p *Pool) InternString(s string) uint16 {
	return p.Intern(Entry{Tag: TagString, Ref1: p.InternUTF8(s)})
}

func (p *Pool) InternNameAndType(name, desc string) uint16 {
	return p.Intern(Entry{Tag: TagNameAndType, Ref1: p.InternUTF8(name), Ref2: p.InternUTF8(desc)})
}

func (p *Pool) InternField(owner, name, desc string) uint16 {
	return p.Intern(Entry{Tag: TagFieldref, Ref1: p.InternClass(owner), Ref2: p.InternNameAndType(name, desc)})
}

// InternMethod interns a Methodref, or an InterfaceMethodref when itf is set.
func (p *Pool) InternMethod(owner, name, desc string, itf bool) uint16 {
	tag := TagMethodref
	if itf {
		tag = TagInterfaceMethodref
	}
	return p.Intern(Entry{Tag: tag, Ref1: p.InternClass(owner), Ref2: p.InternNameAndType(name, desc)})
}

func (p *Pool) InternMethodType(desc string) uint16 {
	return p.Intern(Entry{Tag: TagMethodType, Ref1: p.InternUTF8(desc)})
}

func (p *Pool) InternHandle(h Handle) uint16 {
	var ref uint16
	if h.Kind <= RefPutStatic {
		ref = p.InternField(h.Owner, h.Name, h.Desc)
	} else {
		ref = p.InternMethod(h.Owner, h.Name, h.Desc, h.Itf || h.Kind == RefInvokeInterface)
	}
	return p.Intern(Entry{Tag: TagMethodHandle, Ref1: uint16(h.Kind), Ref2: ref})
}

// InternBootstrap returns the BootstrapMethods index for bsm applied to args.
func (p *Pool) InternBootstrap(bsm Handle, args []any) (uint16, error) {
	b := Bootstrap{Method: p.InternHandle(bsm)}
	for _, a := range args {
		i, err := p.InternConst(a)
		if err != nil {
			return 0, err
		}
		b.Args = append(b.Args, i)
	}
	k := b.key()
	if i, ok := p.bsmIndex[k]; ok {
		return i, nil
	}
	i := uint16(len(p.bootstraps))
	p.bootstraps = append(p.bootstraps, b)
	p.bsmIndex[k] = i
	return i, nil
}

func (p *Pool) InternInvokeDynamic(name, desc string, bsm Handle, args []any) (uint16, error) {
	bi, err := p.InternBootstrap(bsm, args)
	if err != nil {
		return 0, err
	}
	return p.Intern(Entry{Tag: TagInvokeDynamic, Ref1: bi, Ref2: p.InternNameAndType(name, desc)}), nil
}

// InternConst interns an ldc-style constant: int32, int, float32, int64,
// float64, string, Class, MethodType or Handle.
func (p *Pool) InternConst(v any) (uint16, error) {
	switch c := v.(type) {
	case int32:
		return p.InternInt(c), nil
	case int:
		if c < math.MinInt32 || c > math.MaxInt32 {
			return 0, fmt.Errorf("constpool: int constant %d out of range", c)
		}
		return p.InternInt(int32(c)), nil
	case float32:
		return p.InternFloat(c), nil
	case int64:
		return p.InternLong(c), nil
	case float64:
		return p.InternDouble(c), nil
	case string:
		return p.InternString(c), nil
	case Class:
		return p.InternClass(c.Name), nil
	case MethodType:
		return p.InternMethodType(c.Desc), nil
	case Handle:
		return p.InternHandle(c), nil
	default:
		return 0, fmt.Errorf("constpool: unsupported constant %T", v)
	}
}

// Bootstraps returns the bootstrap method table.
func (p *Pool) Bootstraps() []Bootstrap { return p.bootstraps }

// SetBootstraps installs a table parsed from a BootstrapMethods attribute.
func (p *Pool) SetBootstraps(b []Bootstrap) {
	p.bootstraps = b
	p.bsmIndex = make(map[string]uint16, len(b))
	for i, e := range b {
		if _, ok := p.bsmIndex[e.key()]; !ok {
			p.bsmIndex[e.key()] = uint16(i)
		}
	}
}

// Get returns the entry at index i.
func (p *Pool) Get(i int) (Entry, error) {
	if i <= 0 || i >= len(p.entries) || p.entries[i].Tag == 0 {
		return Entry{}, classfmt.InvalidIndex(-1, i, "")
	}
	return p.entries[i], nil
}

func (p *Pool) get(i int, tags ...Tag) (Entry, error) {
	e, err := p.Get(i)
	if err != nil {
		return e, err
	}
	for _, t := range tags {
		if e.Tag == t {
			return e, nil
		}
	}
	return Entry{}, classfmt.InvalidIndex(-1, i, "is %s, want %v", e.Tag, tags)
}

// UTF8 returns the string at a Utf8 index.
func (p *Pool) UTF8(i int) (string, error) {
	e, err := p.get(i, TagUTF8)
	return e.Str, err
}

// ClassName returns the name referenced by a Class index.
func (p *Pool) ClassName(i int) (string, error) {
	e, err := p.get(i, TagClass)
	if err != nil {
		return "", err
	}
	return p.UTF8(int(e.Ref1))
}

// NameAndType returns the name and descriptor of a NameAndType index.
func (p *Pool) NameAndType(i int) (name, desc string, err error) {
	e, err := p.get(i, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = p.UTF8(int(e.Ref1)); err != nil {
		return "", "", err
	}
	desc, err = p.UTF8(int(e.Ref2))
	return name, desc, err
}

// Member resolves a Fieldref, Methodref or InterfaceMethodref.
func (p *Pool) Member(i int) (owner, name, desc string, itf bool, err error) {
	e, err := p.get(i, TagFieldref, TagMethodref, TagInterfaceMethodref)
	if err != nil {
		return "", "", "", false, err
	}
	if owner, err = p.ClassName(int(e.Ref1)); err != nil {
		return "", "", "", false, err
	}
	name, desc, err = p.NameAndType(int(e.Ref2))
	return owner, name, desc, e.Tag == TagInterfaceMethodref, err
}

// Handle resolves a MethodHandle index.
func (p *Pool) Handle(i int) (Handle, error) {
	e, err := p.get(i, TagMethodHandle)
	if err != nil {
		return Handle{}, err
	}
	owner, name, desc, itf, err := p.Member(int(e.Ref2))
	if err != nil {
		return Handle{}, err
	}
	return Handle{Kind: uint8(e.Ref1), Owner: owner, Name: name, Desc: desc, Itf: itf}, nil
}

// Const resolves a loadable constant into its Go value.
func (p *Pool) Const(i int) (any, error) {
	e, err := p.Get(i)
	if err != nil {
		return nil, err
	}
	switch e.Tag {
	case TagInteger:
		return int32(uint32(e.Bits)), nil
	case TagFloat:
		return math.Float32frombits(uint32(e.Bits)), nil
	case TagLong:
		return int64(e.Bits), nil
	case TagDouble:
		return math.Float64frombits(e.Bits), nil
	case TagString:
		return p.UTF8(int(e.Ref1))
	case TagClass:
		name, err := p.UTF8(int(e.Ref1))
		return Class{Name: name}, err
	case TagMethodType:
		desc, err := p.UTF8(int(e.Ref1))
		return MethodType{Desc: desc}, err
	case TagMethodHandle:
		return p.Handle(i)
	default:
		return nil, classfmt.InvalidIndex(-1, i, "%s is not loadable", e.Tag)
	}
}

// InvokeDynamic resolves an InvokeDynamic index against the bootstrap table.
func (p *Pool) InvokeDynamic(i int) (name, desc string, bsm Handle, args []any, err error) {
	e, err := p.get(i, TagInvokeDynamic)
	if err != nil {
		return "", "", Handle{}, nil, err
	}
	if name, desc, err = p.NameAndType(int(e.Ref2)); err != nil {
		return "", "", Handle{}, nil, err
	}
	if int(e.Ref1) >= len(p.bootstraps) {
		return "", "", Handle{}, nil, classfmt.InvalidIndex(-1, i, "bootstrap method %d of %d", e.Ref1, len(p.bootstraps))
	}
	b := p.bootstraps[e.Ref1]
	if bsm, err = p.Handle(int(b.Method)); err != nil {
		return "", "", Handle{}, nil, err
	}
	for _, a := range b.Args {
		v, err := p.Const(int(a))
		if err != nil {
			return "", "", Handle{}, nil, err
		}
		args = append(args, v)
	}
	return name, desc, bsm, args, nil
}
