package classpath

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"bytecraft/internal/classfile"
	"bytecraft/internal/flow"
)

// Path is an ordered list of sources. Earlier sources shadow later ones.
// It implements flow.Hierarchy and is safe for concurrent use.
type Path struct {
	sources []Source

	mu    sync.Mutex
	cache map[string]cached
	extra flow.Classes
}

type cached struct {
	info flow.ClassInfo
	ok   bool
}

// Open opens every entry as a Source. On failure the sources opened so far
// are closed.
func Open(entries ...string) (*Path, error) {
	p := &Path{cache: make(map[string]cached)}
	for _, e := range entries {
		s, err := OpenSource(e)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.sources = append(p.sources, s)
	}
	return p, nil
}

// Define registers a class that is not on disk, such as one being
// generated. Defined classes win over sources.
func (p *Path) Define(name string, info flow.ClassInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.extra == nil {
		p.extra = make(flow.Classes)
	}
	p.extra[name] = info
}

// Lookup returns the superclass and interface flag of a class.
func (p *Path) Lookup(name string) (flow.ClassInfo, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if info, ok := p.extra[name]; ok {
		return info, true, nil
	}
	if c, ok := p.cache[name]; ok {
		return c.info, c.ok, nil
	}
	for _, s := range p.sources {
		data, ok, err := s.Read(name)
		if err != nil {
			return flow.ClassInfo{}, false, err
		}
		if !ok {
			continue
		}
		r, err := classfile.NewReader(data)
		if err != nil {
			return flow.ClassInfo{}, false, fmt.Errorf("classpath: %s in %s: %w", name, s.Name(), err)
		}
		info := flow.ClassInfo{Super: r.SuperName(), Interface: r.Access()&classfile.AccInterface != 0}
		p.cache[name] = cached{info: info, ok: true}
		return info, true, nil
	}
	p.cache[name] = cached{}
	return flow.ClassInfo{}, false, nil
}

// CommonSuper implements flow.Hierarchy. Classes missing from the path are
// treated as direct subclasses of java/lang/Object.
func (p *Path) CommonSuper(a, b string) (string, error) {
	var firstErr error
	lookup := func(name string) (flow.ClassInfo, bool) {
		info, ok, err := p.Lookup(name)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return info, ok
	}
	s := flow.CommonSuper(a, b, lookup)
	if firstErr != nil {
		return "", firstErr
	}
	return s, nil
}

// Sources returns the opened sources in order.
func (p *Path) Sources() []Source { return p.sources }

// Close closes every source.
func (p *Path) Close() error {
	var result *multierror.Error
	for _, s := range p.sources {
		if err := s.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	p.sources = nil
	return result.ErrorOrNil()
}
