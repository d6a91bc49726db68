package cfg_test

import (
	"strings"
	"testing"

	"aplc.dev/aplc/pkg/ast"
	"aplc.dev/aplc/pkg/cfg"
	"aplc.dev/aplc/pkg/types"
)

func TestBuildFunctionStraightLine(t *testing.T) {
	// int f(int a) { int b; b = a + 1; return b; }
	fn := &ast.Function{
		Name: "f",
		Ret:  types.Int32,
		Params: []*ast.Param{{Name: "a", Typ: types.Int32}},
		Body: &ast.Block{Body: []ast.Statement{
			&ast.DeclList{Decls: []*ast.Decl{{Name: "b", Typ: types.Int32}}},
			&ast.Assign{
				Lhs: &ast.Var{Name: "b", Typ: types.Int32},
				Rhs: &ast.BinOp{Op: ast.Plus,
					Lhs: &ast.Var{Name: "a", Typ: types.Int32},
					Rhs: &ast.Const{Value: "1", Typ: types.Int32},
					Typ: types.Int32},
			},
			&ast.ReturnStmt{Expr: &ast.Var{Name: "b", Typ: types.Int32}},
		}},
	}

	got := cfg.BuildFunction(fn)
	if got.Name != "f" {
		t.Fatalf("Name = %q, want f", got.Name)
	}

	// straight-line code lowers into the entry block alone; a trailing,
	// unreferenced end-of-function sentinel block is also always present.
	blk := got.Blocks[0]
	if len(blk.Stmts) != 2 {
		t.Fatalf("expected 2 three-address statements (binop + assign), got %d", len(blk.Stmts))
	}
	if blk.Stmts[0].AsLine() != "t0 = a + 1" {
		t.Errorf("stmt 0 = %q, want %q", blk.Stmts[0].AsLine(), "t0 = a + 1")
	}
	if blk.Stmts[1].AsLine() != "b = t0" {
		t.Errorf("stmt 1 = %q, want %q", blk.Stmts[1].AsLine(), "b = t0")
	}

	ret, ok := blk.Term.(cfg.Return)
	if !ok {
		t.Fatalf("terminator = %#v, want cfg.Return", blk.Term)
	}
	if ret.Value == nil || ret.Value.Name != "b" {
		t.Errorf("return value = %#v, want b", ret.Value)
	}
}

func TestBuildFunctionIfWithoutElseMergesAtJoin(t *testing.T) {
	// void f(int a) { if (a) { a = 1; } return; }
	fn := &ast.Function{
		Name: "f",
		Ret:  types.VoidT,
		Params: []*ast.Param{{Name: "a", Typ: types.Int32}},
		Body: &ast.Block{Body: []ast.Statement{
			&ast.If{
				Cond: &ast.Var{Name: "a", Typ: types.Int32},
				Then: &ast.Block{Body: []ast.Statement{
					&ast.Assign{Lhs: &ast.Var{Name: "a", Typ: types.Int32}, Rhs: &ast.Const{Value: "1", Typ: types.Int32}},
				}},
			},
			&ast.ReturnStmt{},
		}},
	}

	got := cfg.BuildFunction(fn)

	var condBlock *cfg.Block
	for _, blk := range got.Blocks {
		if _, ok := blk.Term.(cfg.CondGoto); ok {
			condBlock = blk
		}
	}
	if condBlock == nil {
		t.Fatalf("expected one block terminated by a CondGoto, got: %s", dumpOf(got))
	}
	cg := condBlock.Term.(cfg.CondGoto)

	falseTarget := got.BlockByID(cg.FalseBB)
	if falseTarget == nil {
		t.Fatalf("FalseBB %d does not resolve to a kept block", cg.FalseBB)
	}
	// with no else branch, the false edge must go straight to the join,
	// not through a since-removed empty else block.
	if len(falseTarget.Stmts) != 0 {
		t.Errorf("expected the join block to be empty before the return, got %v", falseTarget.Stmts)
	}
}

func TestBuildFunctionWhileLoopsBack(t *testing.T) {
	// void f(int a) { while (a) { a = a - 1; } return; }
	fn := &ast.Function{
		Name: "f",
		Ret:  types.VoidT,
		Params: []*ast.Param{{Name: "a", Typ: types.Int32}},
		Body: &ast.Block{Body: []ast.Statement{
			&ast.While{
				Cond: &ast.Var{Name: "a", Typ: types.Int32},
				Body: &ast.Block{Body: []ast.Statement{
					&ast.Assign{
						Lhs: &ast.Var{Name: "a", Typ: types.Int32},
						Rhs: &ast.BinOp{Op: ast.Minus,
							Lhs: &ast.Var{Name: "a", Typ: types.Int32},
							Rhs: &ast.Const{Value: "1", Typ: types.Int32},
							Typ: types.Int32},
					},
				}},
			},
			&ast.ReturnStmt{},
		}},
	}

	got := cfg.BuildFunction(fn)

	var header *cfg.Block
	for _, blk := range got.Blocks {
		if _, ok := blk.Term.(cfg.CondGoto); ok {
			header = blk
		}
	}
	if header == nil {
		t.Fatalf("expected a loop header block with a CondGoto terminator, got: %s", dumpOf(got))
	}
	cg := header.Term.(cfg.CondGoto)

	body := got.BlockByID(cg.TrueBB)
	if body == nil {
		t.Fatalf("TrueBB %d does not resolve to a kept block", cg.TrueBB)
	}
	bodyGoto, ok := body.Term.(cfg.Goto)
	if !ok {
		t.Fatalf("expected the loop body to end in a Goto back to the header, got %#v", body.Term)
	}
	if bodyGoto.Target != header.ID {
		t.Errorf("loop body jumps to %d, want back to header %d", bodyGoto.Target, header.ID)
	}
}

func TestBuildFunctionDerefAddrCollapses(t *testing.T) {
	// int f(int *p) { return *&*p; }  -- *&x collapses to x, so only the
	// inner *p survives as a Unary(deref) assignment.
	ptrType := types.Make(types.Int, 1)
	p := &ast.Var{Name: "p", Typ: ptrType}

	fn := &ast.Function{
		Name: "f",
		Ret:  types.Int32,
		Params: []*ast.Param{{Name: "p", Typ: ptrType}},
		Body: &ast.Block{Body: []ast.Statement{
			&ast.ReturnStmt{Expr: &ast.UnaryOp{
				Op: ast.Deref,
				X: &ast.UnaryOp{
					Op: ast.Addr,
					X:  &ast.UnaryOp{Op: ast.Deref, X: p, Typ: types.Int32},
					Typ: types.Make(types.Int, 2),
				},
				Typ: types.Int32,
			}},
		}},
	}

	got := cfg.BuildFunction(fn)
	blk := got.Blocks[0]
	if len(blk.Stmts) != 1 {
		t.Fatalf("expected the *&x collapse to leave exactly one deref assignment, got %d: %s", len(blk.Stmts), dumpOf(got))
	}
	if blk.Stmts[0].AsLine() != "t0 = *p" {
		t.Errorf("stmt 0 = %q, want %q", blk.Stmts[0].AsLine(), "t0 = *p")
	}
}

func TestBuildFunctionCleanUpRenumbersDensely(t *testing.T) {
	fn := &ast.Function{
		Name: "f",
		Ret:  types.VoidT,
		Body: &ast.Block{Body: []ast.Statement{
			&ast.If{
				Cond: &ast.Const{Value: "1", Typ: types.BoolT},
				Then: &ast.Block{Body: []ast.Statement{}},
				Else: &ast.Block{Body: []ast.Statement{}},
			},
			&ast.ReturnStmt{},
		}},
	}

	got := cfg.BuildFunction(fn)
	for i, blk := range got.Blocks {
		if blk.ID != i {
			t.Errorf("block at index %d has ID %d, want dense renumbering from 0", i, blk.ID)
		}
	}
	if got.Entry != 0 {
		t.Errorf("Entry = %d, want 0 after renumbering", got.Entry)
	}
}

func dumpOf(fn *cfg.Function) string {
	prog := &cfg.Program{Functions: []*cfg.Function{fn}}
	return strings.TrimSpace(prog.AsText())
}
