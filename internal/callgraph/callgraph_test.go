package callgraph

import (
	"testing"

	"github.com/zboralski/lattice/render"

	"bytecraft/internal/classfile"
	"bytecraft/internal/code"
	"bytecraft/internal/opcode"
)

const (
	mainName = "demo/Main"
	utilName = "demo/Util"
)

// writeClass assembles a class whose static void methods are produced by
// the given body emitters.
func writeClass(t *testing.T, name string, bodies map[string]func(mv classfile.MethodVisitor, labels *code.Labels)) []byte {
	t.Helper()
	w := classfile.NewWriter(classfile.Config{Compute: classfile.ComputeFrames})
	w.Visit(classfile.V1_6, classfile.AccPublic|classfile.AccSuper, name, "", "java/lang/Object", nil)
	for _, m := range []string{"init", "yes", "no", "log", "run"} {
		emit, ok := bodies[m]
		if !ok {
			continue
		}
		desc := "()V"
		if m == "run" {
			desc = "(I)V"
		}
		mv := w.VisitMethod(classfile.AccPublic|classfile.AccStatic, m, desc, "", nil)
		labels := &code.Labels{}
		mv.VisitCode(labels)
		emit(mv, labels)
		mv.VisitMaxs(0, 0)
		mv.VisitEnd()
	}
	w.VisitEnd()
	data, err := w.Bytes()
	if err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return data
}

func returnOnly(mv classfile.MethodVisitor, _ *code.Labels) { mv.VisitInsn(opcode.RETURN) }

// mainClass holds run(I)V:
//
// entry (B0):
//
//	invokestatic Util.init
//	iload_0
//	ifeq B2
//
// true path (B1):
//
//	invokestatic Util.yes
//	goto B3
//
// false path (B2):
//
//	invokestatic Util.no
//	return
//
// join (B3):
//
//	return
func mainClass(t *testing.T) []byte {
	return writeClass(t, mainName, map[string]func(classfile.MethodVisitor, *code.Labels){
		"run": func(mv classfile.MethodVisitor, labels *code.Labels) {
			no, join := labels.New(), labels.New()
			mv.VisitMethodInsn(opcode.INVOKESTATIC, utilName, "init", "()V", false)
			mv.VisitVarInsn(opcode.ILOAD, 0)
			mv.VisitJumpInsn(opcode.IFEQ, no)
			mv.VisitMethodInsn(opcode.INVOKESTATIC, utilName, "yes", "()V", false)
			mv.VisitJumpInsn(opcode.GOTO, join)
			mv.VisitLabel(no)
			mv.VisitMethodInsn(opcode.INVOKESTATIC, utilName, "no", "()V", false)
			mv.VisitInsn(opcode.RETURN)
			mv.VisitLabel(join)
			mv.VisitInsn(opcode.RETURN)
		},
	})
}

func utilClass(t *testing.T) []byte {
	return writeClass(t, utilName, map[string]func(classfile.MethodVisitor, *code.Labels){
		"init": returnOnly,
		"yes": func(mv classfile.MethodVisitor, _ *code.Labels) {
			mv.VisitMethodInsn(opcode.INVOKESTATIC, utilName, "log", "()V", false)
			mv.VisitMethodInsn(opcode.INVOKESTATIC, utilName, "log", "()V", false)
			mv.VisitInsn(opcode.RETURN)
		},
		"no":  returnOnly,
		"log": returnOnly,
	})
}

func TestCollect(t *testing.T) {
	methods, err := Collect(mainClass(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(methods) != 1 {
		t.Fatalf("expected 1 method, got %d", len(methods))
	}
	m := methods[0]
	if got := m.ID(); got != "demo/Main.run(I)V" {
		t.Errorf("id = %q", got)
	}
	calls := m.Calls()
	want := []string{"demo/Util.init()V", "demo/Util.yes()V", "demo/Util.no()V"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %+v", calls)
	}
	for i, c := range calls {
		if c.Callee != want[i] || c.Op != opcode.INVOKESTATIC {
			t.Errorf("call %d = %+v, want %s", i, c, want[i])
		}
	}
}

func TestCollectSkipsAbstract(t *testing.T) {
	w := classfile.NewWriter(classfile.Config{})
	w.Visit(classfile.V1_6, classfile.AccPublic|classfile.AccInterface|classfile.AccAbstract, "demo/Api", "", "java/lang/Object", nil)
	w.VisitMethod(classfile.AccPublic|classfile.AccAbstract, "call", "()V", "", nil).VisitEnd()
	w.VisitEnd()
	data, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	methods, err := Collect(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(methods) != 0 {
		t.Errorf("expected no methods, got %d", len(methods))
	}
}

func TestBuildCFG_DOTOutput(t *testing.T) {
	methods, err := Collect(mainClass(t))
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := BuildCFG(methods)
	if err != nil {
		t.Fatal(err)
	}

	if len(cfg.Funcs) != 1 {
		t.Fatalf("expected 1 function, got %d", len(cfg.Funcs))
	}
	f := cfg.Funcs[0]
	if f.Name != "demo/Main.run(I)V" {
		t.Errorf("func name = %q", f.Name)
	}
	// Expect 4 blocks: entry, true-path, false-path, join
	if len(f.Blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(f.Blocks))
	}

	// B0: entry, has 1 call (Util.init), 2 successors (T→B2, F→B1)
	b0 := f.Blocks[0]
	if len(b0.Calls) != 1 || b0.Calls[0].Callee != "demo/Util.init()V" {
		t.Errorf("B0 calls = %+v", b0.Calls)
	}
	if len(b0.Succs) != 2 || b0.Succs[0].BlockID != 2 || b0.Succs[0].Cond != "T" || b0.Succs[1].BlockID != 1 {
		t.Errorf("B0 succs = %+v", b0.Succs)
	}

	// B1: true path, has 1 call (Util.yes), 1 unconditional successor
	b1 := f.Blocks[1]
	if len(b1.Calls) != 1 || b1.Calls[0].Callee != "demo/Util.yes()V" {
		t.Errorf("B1 calls = %+v", b1.Calls)
	}
	if len(b1.Succs) != 1 || b1.Succs[0].BlockID != 3 {
		t.Errorf("B1 succs = %+v", b1.Succs)
	}

	// B2: false path, has 1 call (Util.no), terminal
	b2 := f.Blocks[2]
	if len(b2.Calls) != 1 || b2.Calls[0].Callee != "demo/Util.no()V" {
		t.Errorf("B2 calls = %+v", b2.Calls)
	}
	if !b2.Term {
		t.Error("B2 should be terminal")
	}

	// B3: join, terminal
	if !f.Blocks[3].Term {
		t.Error("B3 should be terminal")
	}

	dot := render.DOTCFG(cfg, "bytecraft CFG example")
	if dot == "" {
		t.Error("expected non-empty DOT output")
	}
}

func TestBuildCFG_HandlerEdges(t *testing.T) {
	data := writeClass(t, mainName, map[string]func(classfile.MethodVisitor, *code.Labels){
		"run": func(mv classfile.MethodVisitor, labels *code.Labels) {
			start, end, handler := labels.New(), labels.New(), labels.New()
			mv.VisitTryCatchBlock(start, end, handler, "java/lang/RuntimeException")
			mv.VisitLabel(start)
			mv.VisitMethodInsn(opcode.INVOKESTATIC, utilName, "yes", "()V", false)
			mv.VisitLabel(end)
			mv.VisitInsn(opcode.RETURN)
			mv.VisitLabel(handler)
			mv.VisitInsn(opcode.POP)
			mv.VisitInsn(opcode.RETURN)
		},
	})
	methods, err := Collect(data)
	if err != nil {
		t.Fatal(err)
	}
	f, n, err := BuildFuncCFG(methods[0])
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("expected 3 blocks, got %d", n)
	}
	var handlerEdges int
	for _, s := range f.Blocks[0].Succs {
		if s.Cond == "E" {
			handlerEdges++
			if s.BlockID != 2 {
				t.Errorf("handler edge to B%d, want B2", s.BlockID)
			}
		}
	}
	if handlerEdges != 1 {
		t.Errorf("B0 succs = %+v", f.Blocks[0].Succs)
	}
}

func TestBuildCallGraph_DOTOutput(t *testing.T) {
	var methods []*Method
	for _, data := range [][]byte{mainClass(t), utilClass(t)} {
		ms, err := Collect(data)
		if err != nil {
			t.Fatal(err)
		}
		methods = append(methods, ms...)
	}

	cg := BuildCallGraph(methods)

	if len(cg.Nodes) != 5 {
		t.Errorf("expected 5 nodes, got %d", len(cg.Nodes))
	}
	// yes() calls log() twice; Dedup keeps one edge.
	if len(cg.Edges) != 4 {
		t.Errorf("expected 4 edges, got %+v", cg.Edges)
	}

	dot := render.DOT(cg, "bytecraft call graph example")
	if dot == "" {
		t.Error("expected non-empty DOT output")
	}
}
