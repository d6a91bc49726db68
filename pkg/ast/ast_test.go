package ast_test

import (
	"strings"
	"testing"

	"aplc.dev/aplc/pkg/ast"
	"aplc.dev/aplc/pkg/types"
)

func TestFunctionPrototypeAsTree(t *testing.T) {
	fn := &ast.Function{
		Name: "add",
		Ret:  types.Int32,
		Params: []*ast.Param{
			{Name: "a", Typ: types.Int32},
			{Name: "b", Typ: types.Int32},
		},
	}

	got := fn.AsTree(0)
	want := "int add(int a, int b);"
	if got != want {
		t.Errorf("AsTree() = %q, want %q", got, want)
	}
}

func TestFunctionDefinitionAsTree(t *testing.T) {
	fn := &ast.Function{
		Name: "id",
		Ret:  types.Int32,
		Params: []*ast.Param{
			{Name: "x", Typ: types.Int32},
		},
		Body: &ast.Block{Body: []ast.Statement{
			&ast.ReturnStmt{Expr: &ast.Var{Name: "x", Typ: types.Int32}},
		}},
	}

	got := fn.AsTree(0)
	if !strings.HasPrefix(got, "int id(int x)\n") {
		t.Errorf("AsTree() = %q, want it to start with the header line", got)
	}
	if !strings.Contains(got, "return x") {
		t.Errorf("AsTree() = %q, want it to contain the return statement", got)
	}
}

func TestIfAsTreeWithAndWithoutElse(t *testing.T) {
	cond := &ast.Var{Name: "c", Typ: types.BoolT}
	then := &ast.Block{Body: []ast.Statement{&ast.ReturnStmt{}}}

	noElse := &ast.If{Cond: cond, Then: then}
	if strings.Contains(noElse.AsTree(0), "else") {
		t.Errorf("expected no 'else' branch rendered when Else is nil")
	}

	withElse := &ast.If{Cond: cond, Then: then, Else: then}
	if !strings.Contains(withElse.AsTree(0), "else") {
		t.Errorf("expected an 'else' branch rendered when Else is set")
	}
}

func TestExpressionAsLine(t *testing.T) {
	test := func(name string, e ast.Expression, want string) {
		t.Run(name, func(t *testing.T) {
			if got := e.AsLine(); got != want {
				t.Errorf("AsLine() = %q, want %q", got, want)
			}
		})
	}

	x := &ast.Var{Name: "x", Typ: types.Int32}
	test("const", &ast.Const{Value: "42", Typ: types.Int32}, "42")
	test("var", x, "x")
	test("deref", &ast.UnaryOp{Op: ast.Deref, X: x, Typ: types.Int32}, "*x")
	test("addr", &ast.UnaryOp{Op: ast.Addr, X: x, Typ: types.Make(types.Int, 1)}, "&x")
	test("uminus", &ast.UnaryOp{Op: ast.Uminus, X: x, Typ: types.Int32}, "-x")
	test("binop", &ast.BinOp{Op: ast.Plus, Lhs: x, Rhs: x, Typ: types.Int32}, "x + x")
	test("call", &ast.FunctionCall{Name: "f", Args: []ast.Expression{x}, Typ: types.Int32}, "f(x)")
}
