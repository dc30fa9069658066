package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bytecraft/internal/callgraph"
	"bytecraft/internal/code"
	"bytecraft/internal/flow"
	"bytecraft/internal/opcode"
)

func call(b *code.Body, op opcode.Op, owner, name, desc string) {
	b.Insn(code.Inst{Op: op, Owner: owner, Name: name, Desc: desc, Itf: op == opcode.INVOKEINTERFACE})
}

// sampleMethods models:
//
//	Main.main -> Util.log (3x), Util.fmt, Object.<init>, indy run
//	Util.fmt  -> Util.log, List.size
//	Util.log  -> (nothing)
//	Main.dead -> Util.fmt
func sampleMethods() []*callgraph.Method {
	main := &callgraph.Method{Owner: "demo/Main", Name: "main", Desc: "()V", Access: 0x9}
	for range 3 {
		call(&main.Body, opcode.INVOKESTATIC, "demo/Util", "log", "()V")
	}
	call(&main.Body, opcode.INVOKESTATIC, "demo/Util", "fmt", "()V")
	call(&main.Body, opcode.INVOKESPECIAL, "java/lang/Object", "<init>", "()V")
	main.Body.Insn(code.Inst{Op: opcode.INVOKEDYNAMIC, Name: "run", Desc: "()Ljava/lang/Runnable;"})
	main.Body.Insn(code.Inst{Op: opcode.RETURN})

	fmtM := &callgraph.Method{Owner: "demo/Util", Name: "fmt", Desc: "()V"}
	call(&fmtM.Body, opcode.INVOKESTATIC, "demo/Util", "log", "()V")
	call(&fmtM.Body, opcode.INVOKEINTERFACE, "java/util/List", "size", "()I")
	fmtM.Body.Insn(code.Inst{Op: opcode.RETURN})

	log := &callgraph.Method{Owner: "demo/Util", Name: "log", Desc: "()V"}
	log.Body.Insn(code.Inst{Op: opcode.RETURN})

	dead := &callgraph.Method{Owner: "demo/Main", Name: "dead", Desc: "()V"}
	call(&dead.Body, opcode.INVOKEVIRTUAL, "demo/Util", "fmt", "()V")
	dead.Body.Insn(code.Inst{Op: opcode.RETURN})

	return []*callgraph.Method{main, fmtM, log, dead}
}

func TestClassifyCall(t *testing.T) {
	for op, want := range map[opcode.Op]string{
		opcode.INVOKESTATIC:    KindStatic,
		opcode.INVOKESPECIAL:   KindSpecial,
		opcode.INVOKEVIRTUAL:   KindVirtual,
		opcode.INVOKEINTERFACE: KindInterface,
		opcode.INVOKEDYNAMIC:   KindDynamic,
	} {
		assert.Equal(t, want, ClassifyCall(callgraph.CallSite{Op: op}), "%s", op)
	}
}

func TestCallgraphDOT(t *testing.T) {
	methods := sampleMethods()
	dot := CallgraphDOT(methods, "sample", NASA, 0)

	assert.True(t, strings.HasPrefix(dot, "digraph callgraph {\n"))
	assert.Contains(t, dot, "subgraph cluster_"+dotID("demo/Util"))
	assert.Contains(t, dot, "label=\"log()V\"")
	assert.Contains(t, dot, dotID("java/lang/Object.<init>()V")+" [label=\"java/lang/Object.<init>()V\", shape=plaintext")
	assert.Contains(t, dot, ">3x</font>")
	assert.Contains(t, dot, "style=\"dotted\"")
	assert.Contains(t, dot, "style=\"dashed\"")

	// Output is stable across runs.
	assert.Equal(t, dot, CallgraphDOT(methods, "sample", NASA, 0))
}

func TestCallgraphDOTMaxNodes(t *testing.T) {
	dot := CallgraphDOT(sampleMethods(), "", NASA, 1)
	assert.Contains(t, dot, dotID("demo/Main.main()V"))
	assert.NotContains(t, dot, dotID("demo/Main.dead()V"))
	assert.NotContains(t, dot, "labelloc")
}

func TestComputeStats(t *testing.T) {
	stats := ComputeStats(sampleMethods())
	assert.Equal(t, 4, stats.TotalMethods)
	assert.Equal(t, 9, stats.TotalEdges)
	assert.Equal(t, 2, stats.UniqueOwners)
	assert.Equal(t, map[string]int{
		KindStatic:    5,
		KindSpecial:   1,
		KindDynamic:   1,
		KindInterface: 1,
		KindVirtual:   1,
	}, stats.KindCounts)
	require.NotEmpty(t, stats.TopCallees)
	assert.Equal(t, NameCount{"demo/Util.log()V", 4}, stats.TopCallees[0])
	assert.Equal(t, NameCount{"demo/Main.main()V", 6}, stats.TopCallers[0])
}

func TestReachability(t *testing.T) {
	methods := sampleMethods()
	entries := FindEntryPoints(methods)
	assert.Equal(t, []string{"demo/Main.dead()V", "demo/Main.main()V"}, entries)

	reachable := ReachableSet([]string{"demo/Main.main()V"}, methods)
	assert.True(t, reachable["demo/Util.log()V"])
	assert.True(t, reachable["java/util/List.size()I"])
	assert.False(t, reachable["demo/Main.dead()V"])

	dot := ReachabilityDOT(methods, reachable, []string{"demo/Main.main()V"}, "reachable", NASA)
	assert.Contains(t, dot, "penwidth=1.5")
	assert.NotContains(t, dot, dotID("demo/Main.dead()V"))
}

func TestClassgraphDOT(t *testing.T) {
	dot := ClassgraphDOT(sampleMethods(), "classes", NASA, 0)
	assert.Contains(t, dot, "demo.Util</font>")
	assert.Contains(t, dot, "2 methods")
	assert.Contains(t, dot, dotID("demo/Main")+" -> "+dotID("demo/Util"))
	// Calls inside demo/Util do not produce a self edge.
	assert.NotContains(t, dot, dotID("demo/Util")+" -> "+dotID("demo/Util"))
}

func TestCFGDOT(t *testing.T) {
	m := &callgraph.Method{Owner: "demo/Main", Name: "skip", Desc: "()V"}
	labels := &code.Labels{}
	end := labels.New()
	m.Body.Insn(code.Inst{Op: opcode.GOTO, Target: end})
	m.Body.Insn(code.Inst{Op: opcode.NOP})
	m.Body.Mark(end)
	m.Body.Insn(code.Inst{Op: opcode.RETURN})

	g, err := flow.BuildCFG(&m.Body)
	require.NoError(t, err)
	require.Len(t, g.Blocks, 3)

	dot := CFGDOT(m, g, NASA)
	assert.Contains(t, dot, "bb0 -> bb2")
	assert.Contains(t, dot, "bb1 -> bb2")
	assert.Contains(t, dot, "bb1 [label=<  1: nop<br align=\"left\"/>>, fillcolor=\""+NASA.DeadFill+"\"]")
	assert.Contains(t, dot, "fillcolor=\""+NASA.StubFill+"\"")
	assert.Contains(t, dot, "demo/Main.skip()V")

	assert.Empty(t, CFGDOT(m, &flow.CFG{}, NASA))
}
