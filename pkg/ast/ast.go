// Package ast defines the in-memory, type-safe representation of an APL
// program: the tree produced by the parser's semantic actions and later
// walked by the CFG builder.
package ast

import (
	"fmt"
	"strings"

	"aplc.dev/aplc/pkg/types"
)

// ----------------------------------------------------------------------------
// General information

// A Program is a flat set of top level functions, in declaration order.
// APL has no notion of modules or translation units beyond "the file",
// so unlike a multi-class language there is no outer container here.
type Program struct {
	Globals   []*Decl
	Functions []*Function
}

// ----------------------------------------------------------------------------
// Operators

// Op enumerates every operator the grammar can reduce to, shared between
// UnaryOp and BinOp so that codegen can switch on one small closed set.
type Op string

const (
	Plus  Op = "+"
	Minus Op = "-"
	Mul   Op = "*"
	Div   Op = "/"

	Uminus Op = "uminus" // unary arithmetic negation, distinct from binary Minus
	Deref  Op = "deref"
	Addr   Op = "addr"
	Not    Op = "!"

	Lt Op = "<"
	Le Op = "<="
	Gt Op = ">"
	Ge Op = ">="
	Eq Op = "=="
	Ne Op = "!="

	And Op = "&&"
	Or  Op = "||"

	Asgn Op = "="
)

// ----------------------------------------------------------------------------
// Expressions

// Expression is the shared interface for every construct that produces a
// value. Each concrete node carries its own computed Type() so that no
// consumer downstream of the parser ever needs to re-derive it.
type Expression interface {
	Type() types.Type
	AsLine() string
}

// Const is a literal leaf, either an int or a float. An assignment whose
// RHS is built entirely out of Const leaves (e.g. `x = 1;`) is accepted
// by the parser like any other assignment.
type Const struct {
	Value string
	Typ   types.Type
}

func (c *Const) Type() types.Type { return c.Typ }
func (c *Const) AsLine() string   { return c.Value }

// Var is a reference to a declared identifier. Symbol is filled in by the
// resolver at the point of reference; it is nil only transiently, during
// construction, and never nil once semantic analysis has succeeded.
type Var struct {
	Name   string
	Symbol interface{} // *symtab.Entry, kept as interface{} to avoid an import cycle
	Typ    types.Type
}

func (v *Var) Type() types.Type { return v.Typ }
func (v *Var) AsLine() string   { return v.Name }

// UnaryOp applies Uminus, Not, Deref or Addr to a single operand.
type UnaryOp struct {
	Op   Op
	X    Expression
	Typ  types.Type
}

func (u *UnaryOp) Type() types.Type { return u.Typ }
func (u *UnaryOp) AsLine() string {
	switch u.Op {
	case Deref:
		return fmt.Sprintf("*%s", u.X.AsLine())
	case Addr:
		return fmt.Sprintf("&%s", u.X.AsLine())
	case Uminus:
		return fmt.Sprintf("-%s", u.X.AsLine())
	default:
		return fmt.Sprintf("%s%s", u.Op, u.X.AsLine())
	}
}

// BinOp combines two operands with an arithmetic, comparison, logical or
// assignment operator. Asgn never nests as a subexpression: the grammar
// only produces it at statement level (see ast.Assign).
type BinOp struct {
	Op       Op
	Lhs, Rhs Expression
	Typ      types.Type
}

func (b *BinOp) Type() types.Type { return b.Typ }
func (b *BinOp) AsLine() string {
	return fmt.Sprintf("%s %s %s", b.Lhs.AsLine(), b.Op, b.Rhs.AsLine())
}

// FunctionCall is an Expression (used as an rvalue); when its result is
// discarded it is wrapped in an ExprStmt to act as a Statement.
type FunctionCall struct {
	Name string
	Args []Expression
	Typ  types.Type
}

func (f *FunctionCall) Type() types.Type { return f.Typ }
func (f *FunctionCall) AsLine() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.AsLine()
	}
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(args, ", "))
}

// ----------------------------------------------------------------------------
// Statements

// Statement is the shared interface for every construct executed for its
// side effect rather than its value.
type Statement interface {
	AsTree(depth int) string
}

func indent(depth int) string { return strings.Repeat("  ", depth) }

// Decl introduces one new identifier of a given type into the current
// scope; it carries no initializer (APL has no combined declare+init).
type Decl struct {
	Name string
	Typ  types.Type
}

func (d *Decl) AsTree(depth int) string {
	return fmt.Sprintf("%sDecl(%s %s)", indent(depth), d.Typ, d.Name)
}

// DeclList groups the comma-separated declarations of a single `type
// name, name, ...;` statement, all sharing the same base type.
type DeclList struct {
	Decls []*Decl
}

func (d *DeclList) AsTree(depth int) string {
	parts := make([]string, len(d.Decls))
	for i, decl := range d.Decls {
		parts[i] = decl.Name
	}
	return fmt.Sprintf("%sDeclList(%s)", indent(depth), strings.Join(parts, ", "))
}

// Assign is LHS = RHS. LHS is either a *Var or a chain of *UnaryOp{Op:
// Deref} wrapping a *Var (i.e. `*p = ...`, `**p = ...`).
type Assign struct {
	Lhs Expression
	Rhs Expression
}

func (a *Assign) AsTree(depth int) string {
	return fmt.Sprintf("%s%s = %s", indent(depth), a.Lhs.AsLine(), a.Rhs.AsLine())
}

// ExprStmt is a FunctionCall whose value is discarded.
type ExprStmt struct {
	Call *FunctionCall
}

func (e *ExprStmt) AsTree(depth int) string {
	return fmt.Sprintf("%s%s", indent(depth), e.Call.AsLine())
}

// ReturnStmt carries an optional value; Expr is nil for `return;` inside
// a void function.
type ReturnStmt struct {
	Expr Expression
}

func (r *ReturnStmt) AsTree(depth int) string {
	if r.Expr == nil {
		return fmt.Sprintf("%sreturn", indent(depth))
	}
	return fmt.Sprintf("%sreturn %s", indent(depth), r.Expr.AsLine())
}

// If is a conditional with an optional else branch (Else is nil when
// absent).
type If struct {
	Cond Expression
	Then *Block
	Else *Block
}

func (i *If) AsTree(depth int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%sif (%s)\n%s", indent(depth), i.Cond.AsLine(), i.Then.AsTree(depth+1))
	if i.Else != nil {
		fmt.Fprintf(&b, "\n%selse\n%s", indent(depth), i.Else.AsTree(depth+1))
	}
	return b.String()
}

// While is the sole looping construct in the language.
type While struct {
	Cond Expression
	Body *Block
}

func (w *While) AsTree(depth int) string {
	return fmt.Sprintf("%swhile (%s)\n%s", indent(depth), w.Cond.AsLine(), w.Body.AsTree(depth+1))
}

// Block is a brace-delimited statement list; it introduces a nested
// scope whenever it is not a function's immediate body (the function
// body reuses the function's own scope for its top level).
type Block struct {
	Body []Statement
}

func (b *Block) AsTree(depth int) string {
	lines := make([]string, len(b.Body))
	for i, s := range b.Body {
		lines[i] = s.AsTree(depth)
	}
	return strings.Join(lines, "\n")
}

// ----------------------------------------------------------------------------
// Functions

// Param is a single formal parameter.
type Param struct {
	Name string
	Typ  types.Type
}

// Function is a full definition (Body != nil) or a bare prototype (Body
// == nil). See symtab for how the two are reconciled.
type Function struct {
	Name   string
	Ret    types.Type
	Params []*Param
	Body   *Block // nil for a prototype
}

func (f *Function) AsTree(depth int) string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("%s %s", p.Typ, p.Name)
	}
	header := fmt.Sprintf("%s%s %s(%s)", indent(depth), f.Ret, f.Name, strings.Join(params, ", "))
	if f.Body == nil {
		return header + ";"
	}
	return header + "\n" + f.Body.AsTree(depth+1)
}

// AsTree renders the whole program in the distilled-spec's indented
// one-per-line format, suitable for a `.ast` dump.
func (p *Program) AsTree() string {
	var b strings.Builder
	for _, g := range p.Globals {
		b.WriteString(g.AsTree(0))
		b.WriteString(";\n")
	}
	for _, f := range p.Functions {
		b.WriteString(f.AsTree(0))
		b.WriteString("\n")
	}
	return b.String()
}
