package flow

// Hierarchy answers class hierarchy questions for frame computation.
type Hierarchy interface {
	// CommonSuper returns the nearest common superclass of two internal
	// class names (not arrays). If either is an interface the result is
	// java/lang/Object.
	CommonSuper(a, b string) (string, error)
}

// ClassInfo is what a hierarchy needs to know about one class.
type ClassInfo struct {
	Super     string
	Interface bool
}

// LookupFunc resolves a class by internal name.
type LookupFunc func(name string) (ClassInfo, bool)

// CommonSuper walks superclass chains through lookup. Classes that cannot
// be resolved are treated as direct subclasses of java/lang/Object.
func CommonSuper(a, b string, lookup LookupFunc) string {
	if a == b {
		return a
	}
	ia, okA := lookup(a)
	ib, okB := lookup(b)
	if (okA && ia.Interface) || (okB && ib.Interface) {
		return objectName
	}
	ancestors := map[string]bool{}
	for c, seen := a, 0; c != "" && seen < 1024; seen++ {
		ancestors[c] = true
		info, ok := lookup(c)
		if !ok {
			break
		}
		c = info.Super
	}
	for c, seen := b, 0; c != "" && seen < 1024; seen++ {
		if ancestors[c] {
			return c
		}
		info, ok := lookup(c)
		if !ok {
			break
		}
		c = info.Super
	}
	return objectName
}

const objectName = "java/lang/Object"

// Classes is an in-memory hierarchy keyed by internal name.
type Classes map[string]ClassInfo

func (c Classes) CommonSuper(a, b string) (string, error) {
	return CommonSuper(a, b, func(name string) (ClassInfo, bool) {
		info, ok := c[name]
		return info, ok
	}), nil
}

// ObjectHierarchy knows no classes: distinct types join to
// java/lang/Object.
type ObjectHierarchy struct{}

func (ObjectHierarchy) CommonSuper(a, b string) (string, error) {
	if a == b {
		return a, nil
	}
	return objectName, nil
}
