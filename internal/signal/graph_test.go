package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bytecraft/internal/callgraph"
	"bytecraft/internal/code"
	"bytecraft/internal/opcode"
)

func method(owner, name, desc string, insns ...code.Inst) *callgraph.Method {
	m := &callgraph.Method{Owner: owner, Name: name, Desc: desc}
	for _, in := range insns {
		m.Body.Insn(in)
	}
	m.Body.Insn(code.Inst{Op: opcode.RETURN})
	return m
}

func call(op opcode.Op, owner, name, desc string) code.Inst {
	return code.Inst{Op: op, Owner: owner, Name: name, Desc: desc}
}

// sampleMethods: main -> load -> fetch, where fetch opens a URL built from
// a constant, and main -> idle, which does nothing interesting.
func sampleMethods() []*callgraph.Method {
	return []*callgraph.Method{
		method("app/Main", "main", "()V",
			call(opcode.INVOKESTATIC, "app/Main", "load", "()V"),
			call(opcode.INVOKESTATIC, "app/Main", "idle", "()V"),
		),
		method("app/Main", "load", "()V",
			call(opcode.INVOKESTATIC, "app/Net", "fetch", "()V"),
			call(opcode.INVOKESTATIC, "app/Net", "fetch", "()V"),
		),
		method("app/Main", "idle", "()V"),
		method("app/Net", "fetch", "()V",
			code.Inst{Op: opcode.NEW, Owner: "java/net/URL"},
			code.Inst{Op: opcode.DUP},
			code.Inst{Op: opcode.LDC, Const: "https://example.com/api"},
			call(opcode.INVOKESPECIAL, "java/net/URL", "<init>", "(Ljava/lang/String;)V"),
			code.Inst{Op: opcode.LDC, Const: int32(7)},
			call(opcode.INVOKESTATIC, "java/lang/Runtime", "getRuntime", "()Ljava/lang/Runtime;"),
			code.Inst{Op: opcode.LDC, Const: "sh"},
			call(opcode.INVOKEVIRTUAL, "java/lang/Runtime", "exec", "(Ljava/lang/String;)Ljava/lang/Process;"),
		),
	}
}

func funcByName(g *Graph, name string) *Func {
	for i := range g.Funcs {
		if g.Funcs[i].Name == name {
			return &g.Funcs[i]
		}
	}
	return nil
}

func TestBuildGraph(t *testing.T) {
	g := BuildGraph(sampleMethods(), 1, map[string]bool{"app/Main.main()V": true})

	fetch := funcByName(g, "app/Net.fetch()V")
	require.NotNil(t, fetch)
	assert.Equal(t, "signal", fetch.Role)
	assert.Equal(t, []string{CatNet, CatProcess, CatURL}, fetch.Categories)
	assert.Equal(t, SeverityHigh, fetch.Severity)
	require.Len(t, fetch.StringRefs, 1)
	assert.Equal(t, "https://example.com/api", fetch.StringRefs[0].Value)
	assert.Equal(t, 2, fetch.StringRefs[0].Node)
	require.Len(t, fetch.APIRefs, 2)
	assert.Equal(t, "java/net/URL.<init>(Ljava/lang/String;)V", fetch.APIRefs[0].Callee)
	assert.Equal(t, CatProcess, fetch.APIRefs[1].Category)
	assert.Equal(t, 9, fetch.Insns)

	assert.Equal(t, "context", funcByName(g, "app/Main.load()V").Role)
	assert.Equal(t, "", funcByName(g, "app/Main.main()V").Role, "two hops away")
	assert.True(t, funcByName(g, "app/Main.main()V").IsEntryPoint)
	assert.Equal(t, "", funcByName(g, "app/Main.idle()V").Role)

	assert.Equal(t, "app/Net.fetch()V", g.Funcs[0].Name, "signal methods sort first")
	assert.Equal(t, "app/Main.load()V", g.Funcs[1].Name)

	// JDK callees are outside the set; the duplicate fetch call collapses.
	assert.ElementsMatch(t, []Edge{
		{From: "app/Main.main()V", To: "app/Main.load()V"},
		{From: "app/Main.main()V", To: "app/Main.idle()V"},
		{From: "app/Main.load()V", To: "app/Net.fetch()V"},
	}, g.Edges)

	assert.Equal(t, Stats{
		TotalFuncs:     4,
		SignalFuncs:    1,
		ContextFuncs:   1,
		TotalEdges:     3,
		StringRefCount: 1,
		APIRefCount:    2,
		Categories:     map[string]int{CatNet: 1, CatProcess: 1, CatURL: 1},
	}, g.Stats)
}

func TestBuildGraphContextHops(t *testing.T) {
	g := BuildGraph(sampleMethods(), 3, nil)
	for _, name := range []string{"app/Main.load()V", "app/Main.main()V", "app/Main.idle()V"} {
		assert.Equal(t, "context", funcByName(g, name).Role, name)
	}
	assert.Equal(t, 3, g.Stats.ContextFuncs)
}

func TestBuildGraphNoSignals(t *testing.T) {
	g := BuildGraph([]*callgraph.Method{method("app/A", "f", "()V")}, 2, nil)
	require.Len(t, g.Funcs, 1)
	assert.Equal(t, "", g.Funcs[0].Role)
	assert.Empty(t, g.Funcs[0].Categories)
	assert.Zero(t, g.Stats.SignalFuncs)
	assert.Empty(t, g.Edges)
}
