package signal

import (
	"sort"

	"bytecraft/internal/callgraph"
	"bytecraft/internal/code"
)

// StringRef is a string constant loaded by a method.
type StringRef struct {
	Node       int      `json:"node"`
	Value      string   `json:"value"`
	Categories []string `json:"categories"`
}

// APIRef is a call into a flagged JDK API.
type APIRef struct {
	Node     int    `json:"node"`
	Callee   string `json:"callee"`
	Category string `json:"category"`
}

// Func is a method in the signal graph.
type Func struct {
	Name         string      `json:"name"`
	Owner        string      `json:"owner"`
	Insns        int         `json:"insns"`
	StringRefs   []StringRef `json:"string_refs,omitempty"`
	APIRefs      []APIRef    `json:"api_refs,omitempty"`
	Categories   []string    `json:"categories,omitempty"`
	Severity     string      `json:"severity,omitempty"`
	Role         string      `json:"role"` // "signal", "context" or ""
	IsEntryPoint bool        `json:"is_entry_point,omitempty"`
}

// Edge is a call between two methods of the graph.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Stats summarizes a Graph.
type Stats struct {
	TotalFuncs     int            `json:"total_funcs"`
	SignalFuncs    int            `json:"signal_funcs"`
	ContextFuncs   int            `json:"context_funcs"`
	TotalEdges     int            `json:"total_edges"`
	StringRefCount int            `json:"string_ref_count"`
	APIRefCount    int            `json:"api_ref_count"`
	Categories     map[string]int `json:"categories"`
}

// Graph is the signal graph of a set of methods.
type Graph struct {
	Funcs []Func `json:"funcs"`
	Edges []Edge `json:"edges"`
	Stats Stats  `json:"stats"`
}

type funcSignal struct {
	strs []StringRef
	apis []APIRef
	cats map[string]bool
}

func (fs *funcSignal) add(cat string) {
	fs.cats[cat] = true
}

// scan classifies the string constants and calls of m. It returns nil
// when nothing is flagged.
func scan(m *callgraph.Method) *funcSignal {
	fs := &funcSignal{cats: make(map[string]bool)}
	for i := range m.Body.Nodes {
		n := &m.Body.Nodes[i]
		if n.Kind != code.NodeInsn {
			continue
		}
		s, ok := n.Inst.Const.(string)
		if !ok {
			continue
		}
		if cats := ClassifyString(s); len(cats) > 0 {
			fs.strs = append(fs.strs, StringRef{Node: i, Value: s, Categories: cats})
			for _, c := range cats {
				fs.add(c)
			}
		}
	}
	for _, c := range m.Calls() {
		if c.Owner == "" {
			continue
		}
		in := &m.Body.Nodes[c.Node].Inst
		if cat := ClassifyCall(c.Owner, in.Name); cat != "" {
			fs.apis = append(fs.apis, APIRef{Node: c.Node, Callee: c.Callee, Category: cat})
			fs.add(cat)
		}
	}
	if len(fs.cats) == 0 {
		return nil
	}
	return fs
}

// BuildGraph flags methods with signals and marks every method within k
// call hops of one, in either direction, as context. Edges link methods
// of the set; calls to methods outside it are dropped.
func BuildGraph(methods []*callgraph.Method, k int, entryPoints map[string]bool) *Graph {
	known := make(map[string]bool, len(methods))
	for _, m := range methods {
		known[m.ID()] = true
	}

	signals := make(map[string]*funcSignal)
	catCounts := make(map[string]int)
	stats := Stats{TotalFuncs: len(methods)}
	for _, m := range methods {
		fs := scan(m)
		if fs == nil {
			continue
		}
		signals[m.ID()] = fs
		stats.StringRefCount += len(fs.strs)
		stats.APIRefCount += len(fs.apis)
		for c := range fs.cats {
			catCounts[c]++
		}
	}

	fwd := make(map[string][]string)
	rev := make(map[string][]string)
	var edges []Edge
	seen := make(map[Edge]bool)
	for _, m := range methods {
		for _, c := range m.Calls() {
			e := Edge{From: m.ID(), To: c.Callee}
			if !known[e.To] || seen[e] {
				continue
			}
			seen[e] = true
			edges = append(edges, e)
			fwd[e.From] = append(fwd[e.From], e.To)
			rev[e.To] = append(rev[e.To], e.From)
		}
	}

	// Breadth first from every signal method, k hops both ways.
	type item struct {
		name  string
		depth int
	}
	visited := make(map[string]bool)
	context := make(map[string]bool)
	var queue []item
	for _, name := range sortedNames(signals) {
		visited[name] = true
		queue = append(queue, item{name, 0})
	}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if it.depth >= k {
			continue
		}
		for _, adj := range [][]string{fwd[it.name], rev[it.name]} {
			for _, next := range adj {
				if visited[next] {
					continue
				}
				visited[next] = true
				context[next] = true
				queue = append(queue, item{next, it.depth + 1})
			}
		}
	}

	funcs := make([]Func, 0, len(methods))
	for _, m := range methods {
		f := Func{
			Name:         m.ID(),
			Owner:        m.Owner,
			Insns:        insnCount(&m.Body),
			IsEntryPoint: entryPoints[m.ID()],
		}
		if fs, ok := signals[f.Name]; ok {
			f.Role = "signal"
			f.StringRefs, f.APIRefs = fs.strs, fs.apis
			for c := range fs.cats {
				f.Categories = append(f.Categories, c)
			}
			sort.Strings(f.Categories)
			f.Severity = MaxSeverity(f.Categories)
		} else if context[f.Name] {
			f.Role = "context"
		}
		funcs = append(funcs, f)
	}

	// Signal, then context, then the rest. Signal entry points lead, then
	// severity and category count decide.
	roleOrd := map[string]int{"signal": 0, "context": 1, "": 2}
	sevOrd := map[string]int{SeverityHigh: 0, SeverityMedium: 1, SeverityLow: 2, "": 3}
	sort.SliceStable(funcs, func(i, j int) bool {
		a, b := &funcs[i], &funcs[j]
		if a.Role != b.Role {
			return roleOrd[a.Role] < roleOrd[b.Role]
		}
		if a.Role == "signal" && a.IsEntryPoint != b.IsEntryPoint {
			return a.IsEntryPoint
		}
		if a.Severity != b.Severity {
			return sevOrd[a.Severity] < sevOrd[b.Severity]
		}
		if len(a.Categories) != len(b.Categories) {
			return len(a.Categories) > len(b.Categories)
		}
		return a.Name < b.Name
	})

	stats.SignalFuncs = len(signals)
	stats.ContextFuncs = len(context)
	stats.TotalEdges = len(edges)
	stats.Categories = catCounts
	return &Graph{Funcs: funcs, Edges: edges, Stats: stats}
}

func insnCount(b *code.Body) int {
	n := 0
	for i := range b.Nodes {
		if b.Nodes[i].Kind == code.NodeInsn {
			n++
		}
	}
	return n
}

func sortedNames(m map[string]*funcSignal) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
