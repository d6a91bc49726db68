package codegen_test

import (
	"strings"
	"testing"

	"aplc.dev/aplc/pkg/ast"
	"aplc.dev/aplc/pkg/cfg"
	"aplc.dev/aplc/pkg/codegen"
	"aplc.dev/aplc/pkg/symtab"
	"aplc.dev/aplc/pkg/types"
)

func TestAllocatorExhaustionReturnsInternalAllocator(t *testing.T) {
	a := codegen.NewAllocator("integer", []string{"$t0", "$t1"})
	if _, err := a.Use(); err != nil {
		t.Fatalf("first Use failed: %v", err)
	}
	if _, err := a.Use(); err != nil {
		t.Fatalf("second Use failed: %v", err)
	}

	_, err := a.Use()
	if err == nil {
		t.Fatalf("expected the third Use to fail once the pool is exhausted")
	}
	if _, ok := err.(*codegen.InternalAllocator); !ok {
		t.Errorf("error = %T, want *codegen.InternalAllocator", err)
	}
}

func TestAllocatorFreeReturnsRegisterToPool(t *testing.T) {
	a := codegen.NewAllocator("integer", []string{"$t0"})
	reg, _ := a.Use()
	a.Free(reg)

	again, err := a.Use()
	if err != nil {
		t.Fatalf("expected Use to succeed after Free, got: %v", err)
	}
	if again != reg {
		t.Errorf("Use() after Free = %q, want the freed register %q back", again, reg)
	}
}

func TestBuildLayoutAssignsParamsAboveLocalsBelow(t *testing.T) {
	fnScope := symtab.NewGlobal()
	fnScope.EnterVar("a", types.Int32)          // param
	fnScope.EnterVar("b", types.Make(types.Int, 1)) // param
	fnScope.EnterVar("local", types.Float64)    // local

	layout := codegen.BuildLayout(fnScope, 2)

	a := fnScope.LookUpLocal("a")
	b := fnScope.LookUpLocal("b")
	local := fnScope.LookUpLocal("local")

	if local.Offset != 4 {
		t.Errorf("local offset = %d, want 4 (locals are packed starting just above the new $sp)", local.Offset)
	}
	if a.Offset != 20 {
		t.Errorf("first param offset = %d, want 20 (8 + local_bytes(8) + 4)", a.Offset)
	}
	if b.Offset != 24 {
		t.Errorf("second param offset = %d, want 24 (20 + width of int)", b.Offset)
	}
	if layout.FrameSize != 8 {
		t.Errorf("FrameSize = %d, want 8", layout.FrameSize)
	}
}

func TestBuildLayoutGivesNestedBlockVariablesDistinctSlots(t *testing.T) {
	fnScope := symtab.NewGlobal()
	thenBlock := fnScope.EnterBlock(0)
	thenBlock.EnterVar("x", types.Int32)
	elseBlock := fnScope.EnterBlock(1)
	elseBlock.EnterVar("y", types.Int32)

	codegen.BuildLayout(fnScope, 0)

	x := thenBlock.LookUpLocal("x")
	y := elseBlock.LookUpLocal("y")
	if x.Offset == y.Offset {
		t.Errorf("expected x (%d) and y (%d) to get distinct slots even though their blocks never run together", x.Offset, y.Offset)
	}
}

// buildProgram wires a minimal cfg.Program + symtab.Scope pair for a
// single function, the way the parser+cfg.Build pipeline would.
func buildProgram(t *testing.T, fn *ast.Function, paramTypes []types.Type) (*cfg.Program, *symtab.Scope) {
	t.Helper()
	global := symtab.NewGlobal()
	entry, err := global.EnterFunc(fn.Name, fn.Ret, paramTypes, true)
	if err != nil {
		t.Fatalf("EnterFunc failed: %v", err)
	}
	for _, p := range fn.Params {
		if _, err := entry.Sub.EnterVar(p.Name, p.Typ); err != nil {
			t.Fatalf("EnterVar(%s) failed: %v", p.Name, err)
		}
	}

	cfgFn := cfg.BuildFunction(fn)
	prog := &cfg.Program{Functions: []*cfg.Function{cfgFn}}
	return prog, global
}

func TestGenerateEmitsDataSectionForGlobals(t *testing.T) {
	global := symtab.NewGlobal()
	global.EnterVar("counter", types.Int32)
	global.EnterVar("ratio", types.Float64)

	prog := &cfg.Program{}
	out, err := codegen.NewCodeGenerator(prog, global).Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !strings.Contains(out, "global_counter: .word 0") {
		t.Errorf("output missing int global directive:\n%s", out)
	}
	if !strings.Contains(out, "global_ratio: .space 8") {
		t.Errorf("output missing float global directive:\n%s", out)
	}
}

func TestGenerateFunctionSimpleArithmetic(t *testing.T) {
	// int add(int a, int b) { return a + b; }
	fn := &ast.Function{
		Name: "add",
		Ret:  types.Int32,
		Params: []*ast.Param{
			{Name: "a", Typ: types.Int32},
			{Name: "b", Typ: types.Int32},
		},
		Body: &ast.Block{Body: []ast.Statement{
			&ast.ReturnStmt{Expr: &ast.BinOp{
				Op:  ast.Plus,
				Lhs: &ast.Var{Name: "a", Typ: types.Int32},
				Rhs: &ast.Var{Name: "b", Typ: types.Int32},
				Typ: types.Int32,
			}},
		}},
	}

	prog, global := buildProgram(t, fn, []types.Type{types.Int32, types.Int32})
	out, err := codegen.NewCodeGenerator(prog, global).Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !strings.Contains(out, "add:\n") {
		t.Errorf("missing function label:\n%s", out)
	}
	if !strings.Contains(out, "epilogue_add:") {
		t.Errorf("missing shared epilogue label:\n%s", out)
	}
	if !strings.Contains(out, "add $") {
		t.Errorf("expected an add instruction for a + b:\n%s", out)
	}
	if !strings.Contains(out, "j epilogue_add") {
		t.Errorf("expected the return block to jump to the shared epilogue:\n%s", out)
	}
	if strings.Count(out, "epilogue_add:") != 1 {
		t.Errorf("expected exactly one epilogue per function, even with a single return, got %d", strings.Count(out, "epilogue_add:"))
	}
}

func TestGenerateFunctionFloatComparison(t *testing.T) {
	// int lt(float a, float b) { return a < b; } -- materializes 0/1
	fn := &ast.Function{
		Name: "lt",
		Ret:  types.Int32,
		Params: []*ast.Param{
			{Name: "a", Typ: types.Float64},
			{Name: "b", Typ: types.Float64},
		},
		Body: &ast.Block{Body: []ast.Statement{
			&ast.ReturnStmt{Expr: &ast.BinOp{
				Op:  ast.Lt,
				Lhs: &ast.Var{Name: "a", Typ: types.Float64},
				Rhs: &ast.Var{Name: "b", Typ: types.Float64},
				Typ: types.BoolT,
			}},
		}},
	}

	prog, global := buildProgram(t, fn, []types.Type{types.Float64, types.Float64})
	out, err := codegen.NewCodeGenerator(prog, global).Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !strings.Contains(out, "c.lt.s $f") {
		t.Errorf("expected a c.lt.s instruction comparing the float operands:\n%s", out)
	}
	if !strings.Contains(out, "bc1f ") {
		t.Errorf("expected a bc1f branch bracketing the 0/1 materialization:\n%s", out)
	}
	if strings.Contains(out, "slt $f") {
		t.Errorf("float comparison must not fall back to the integer slt mnemonic against float registers:\n%s", out)
	}
}

func TestGenerateFunctionAddressOf(t *testing.T) {
	// int *f(int x) { return &x; }
	fn := &ast.Function{
		Name: "f",
		Ret:  types.Make(types.Int, 1),
		Params: []*ast.Param{{Name: "x", Typ: types.Int32}},
		Body: &ast.Block{Body: []ast.Statement{
			&ast.ReturnStmt{Expr: &ast.UnaryOp{
				Op:  ast.Addr,
				X:   &ast.Var{Name: "x", Typ: types.Int32},
				Typ: types.Make(types.Int, 1),
			}},
		}},
	}

	prog, global := buildProgram(t, fn, []types.Type{types.Int32})
	out, err := codegen.NewCodeGenerator(prog, global).Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.Contains(out, "la $") {
		t.Errorf("expected a load-address instruction for &x, got:\n%s", out)
	}
}
