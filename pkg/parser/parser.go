// Package parser turns a token stream (produced by pkg/lexer) into an
// ast.Program plus its symtab.Scope tree, performing every semantic
// check the moment a construct is reduced: redeclaration, undefined
// identifiers, operand typing, return-type matching, argument arity,
// prototype/definition reconciliation and assignment LHS validity.
//
// This is the "Parser Semantic Actions" component: the token stream
// itself is produced by the external lexer, but everything from here on
// — scope stack discipline, type inference, diagnostics — is ours.
package parser

import (
	"aplc.dev/aplc/pkg/ast"
	"aplc.dev/aplc/pkg/lexer"
	"aplc.dev/aplc/pkg/symtab"
	"aplc.dev/aplc/pkg/types"
)

// Parser drives a hand-written recursive-descent pass over a flat token
// slice, tracking the current scope (global -> function -> block) in
// 'scope'; each production that opens a nested scope saves the previous
// one in a local and restores it on the way out.
type Parser struct {
	toks []lexer.Token
	pos  int

	global       *symtab.Scope
	scope        *symtab.Scope
	blockCounter int
}

// New builds a Parser over an already-tokenized source.
func New(tokens []lexer.Token) *Parser {
	return &Parser{toks: tokens}
}

// Parse runs the full grammar described in SPEC_FULL.md §4.4 over the
// token stream and returns the resulting program and its global scope.
// Parsing is single-shot: the first semantic or syntax error aborts the
// run.
func (p *Parser) Parse() (*ast.Program, *symtab.Scope, error) {
	p.global = symtab.NewGlobal()
	p.scope = p.global

	prog := &ast.Program{}

	for !p.eof() {
		if p.at(lexer.KwVoid) && p.peekN(1).Kind == lexer.KwMain {
			fn, err := p.parseMainDef()
			if err != nil {
				return nil, nil, err
			}
			prog.Functions = append(prog.Functions, fn)
			continue
		}

		base, err := p.parseBaseType()
		if err != nil {
			return nil, nil, err
		}
		ptr, name, err := p.parseStarsIdent()
		if err != nil {
			return nil, nil, err
		}

		if p.at(lexer.LParen) {
			fn, err := p.parseFunction(types.Make(base, ptr), name)
			if err != nil {
				return nil, nil, err
			}
			prog.Functions = append(prog.Functions, fn)
			continue
		}

		decls, err := p.parseDeclListRest(base, ptr, name, p.global)
		if err != nil {
			return nil, nil, err
		}
		prog.Globals = append(prog.Globals, decls...)
	}

	return prog, p.global, nil
}

// ----------------------------------------------------------------------------
// Token cursor helpers

func (p *Parser) peek() lexer.Token {
	if p.pos >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peekN(n int) lexer.Token {
	idx := p.pos + n
	if idx >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[idx]
}

func (p *Parser) advance() lexer.Token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) at(k lexer.Kind) bool { return p.peek().Kind == k }

func (p *Parser) atAny(ks ...lexer.Kind) bool {
	cur := p.peek().Kind
	for _, k := range ks {
		if cur == k {
			return true
		}
	}
	return false
}

func (p *Parser) eof() bool { return p.at(lexer.EOF) }

func (p *Parser) line() int { return p.peek().Line }

func (p *Parser) expect(k lexer.Kind) (lexer.Token, error) {
	if !p.at(k) {
		return lexer.Token{}, newErr(SyntaxError, p.line(), p.peek().Text,
			"expected %s, found %s", k, p.peek().Kind)
	}
	return p.advance(), nil
}

// ----------------------------------------------------------------------------
// Types and declarations

func (p *Parser) parseBaseType() (types.Base, error) {
	switch p.peek().Kind {
	case lexer.KwInt:
		p.advance()
		return types.Int, nil
	case lexer.KwFloat:
		p.advance()
		return types.Float, nil
	case lexer.KwVoid:
		p.advance()
		return types.Void, nil
	default:
		return "", newErr(SyntaxError, p.line(), p.peek().Text, "expected a type keyword")
	}
}

// parseStarsIdent consumes zero or more '*' followed by an identifier,
// returning the pointer level and the identifier's text.
func (p *Parser) parseStarsIdent() (int, string, error) {
	ptr := 0
	for p.at(lexer.Star) {
		p.advance()
		ptr++
	}
	tok, err := p.expect(lexer.Ident)
	if err != nil {
		return 0, "", err
	}
	return ptr, tok.Text, nil
}

// parseDeclListRest finishes a `decl (',' decl)* ';'` production whose
// base type and first (pointer-level, name) pair have already been
// consumed by the caller (needed to disambiguate decl vs function def).
func (p *Parser) parseDeclListRest(base types.Base, firstPtr int, firstName string, scope *symtab.Scope) ([]*ast.Decl, error) {
	var decls []*ast.Decl
	addDecl := func(ptr int, name string) error {
		t := types.Make(base, ptr)
		if _, err := scope.EnterVar(name, t); err != nil {
			return newErr(Redeclaration, p.line(), name, "%s", err)
		}
		decls = append(decls, &ast.Decl{Name: name, Typ: t})
		return nil
	}

	if err := addDecl(firstPtr, firstName); err != nil {
		return nil, err
	}

	for p.at(lexer.Comma) {
		p.advance()
		ptr, name, err := p.parseStarsIdent()
		if err != nil {
			return nil, err
		}
		if err := addDecl(ptr, name); err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(lexer.Semi); err != nil {
		return nil, err
	}
	return decls, nil
}

// parseDeclStmt parses a local `type stars? ID (, stars? ID)* ;`.
func (p *Parser) parseDeclStmt() (ast.Statement, error) {
	base, err := p.parseBaseType()
	if err != nil {
		return nil, err
	}
	ptr, name, err := p.parseStarsIdent()
	if err != nil {
		return nil, err
	}
	decls, err := p.parseDeclListRest(base, ptr, name, p.scope)
	if err != nil {
		return nil, err
	}
	return &ast.DeclList{Decls: decls}, nil
}

// ----------------------------------------------------------------------------
// Functions

func (p *Parser) parseParams() ([]*ast.Param, []types.Type, error) {
	var params []*ast.Param
	var paramTypes []types.Type

	if p.at(lexer.RParen) {
		return params, paramTypes, nil
	}

	for {
		base, err := p.parseBaseType()
		if err != nil {
			return nil, nil, err
		}
		ptr, name, err := p.parseStarsIdent()
		if err != nil {
			return nil, nil, err
		}
		t := types.Make(base, ptr)
		params = append(params, &ast.Param{Name: name, Typ: t})
		paramTypes = append(paramTypes, t)

		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}

	return params, paramTypes, nil
}

func (p *Parser) parseFunction(ret types.Type, name string) (*ast.Function, error) {
	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}
	params, paramTypes, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}

	defining := p.at(lexer.LBrace)

	entry, err := p.global.EnterFunc(name, ret, paramTypes, defining)
	if err != nil {
		return nil, newErr(ProtoMismatch, p.line(), name, "%s", err)
	}

	if !defining {
		if _, err := p.expect(lexer.Semi); err != nil {
			return nil, err
		}
		return &ast.Function{Name: name, Ret: ret, Params: params, Body: nil}, nil
	}

	prevScope := p.scope
	p.scope = entry.Sub
	for _, prm := range params {
		if _, err := p.scope.EnterVar(prm.Name, prm.Typ); err != nil {
			p.scope = prevScope
			return nil, newErr(Redeclaration, p.line(), prm.Name, "%s", err)
		}
	}

	body, err := p.parseBlockBody()
	p.scope = prevScope
	if err != nil {
		return nil, err
	}

	if err := p.checkReturns(body, ret); err != nil {
		return nil, err
	}

	return &ast.Function{Name: name, Ret: ret, Params: params, Body: body}, nil
}

func (p *Parser) parseMainDef() (*ast.Function, error) {
	if _, err := p.expect(lexer.KwVoid); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.KwMain); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}

	entry, err := p.global.EnterFunc("main", types.VoidT, nil, true)
	if err != nil {
		return nil, newErr(Redeclaration, p.line(), "main", "%s", err)
	}

	prevScope := p.scope
	p.scope = entry.Sub
	body, err := p.parseBlockBody()
	p.scope = prevScope
	if err != nil {
		return nil, err
	}

	return &ast.Function{Name: "main", Ret: types.VoidT, Params: nil, Body: body}, nil
}

// checkReturns is a light best-effort pass (not a full reachability
// analysis) over a non-void function's body; type agreement itself is
// already enforced at the point each ReturnStmt is parsed (see
// parseReturn). The body passes if a return statement appears at its top
// level, in a nested block, in a while body, or in an if whose then-arm
// returns and whose else-arm (when present) also returns; an if/else
// with a return in only one arm does not count.
func (p *Parser) checkReturns(body *ast.Block, ret types.Type) error {
	if ret.Base == types.Void {
		return nil
	}
	if !containsReturn(body) {
		return newErr(BadReturn, p.line(), "", "non-void function has no return statement")
	}
	return nil
}

func containsReturn(b *ast.Block) bool {
	for _, stmt := range b.Body {
		switch s := stmt.(type) {
		case *ast.ReturnStmt:
			return true
		case *ast.If:
			if containsReturn(s.Then) && (s.Else == nil || containsReturn(s.Else)) {
				return true
			}
		case *ast.While:
			if containsReturn(s.Body) {
				return true
			}
		case *ast.Block:
			if containsReturn(s) {
				return true
			}
		}
	}
	return false
}

// ----------------------------------------------------------------------------
// Blocks and statements

// parseBlockBody consumes '{' stmt* '}' in the CURRENT scope, without
// pushing a new one — used for a function's immediate body, which
// shares the function's own scope (see ast.Block doc comment).
func (p *Parser) parseBlockBody() (*ast.Block, error) {
	if _, err := p.expect(lexer.LBrace); err != nil {
		return nil, err
	}
	var stmts []ast.Statement
	for !p.at(lexer.RBrace) && !p.eof() {
		st, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
	}
	if _, err := p.expect(lexer.RBrace); err != nil {
		return nil, err
	}
	return &ast.Block{Body: stmts}, nil
}

// parseScopedBlock pushes a fresh nested block scope, the way any `{
// ... }` that is not a function's immediate body must: loop/conditional
// bodies, and any further nested brace group.
func (p *Parser) parseScopedBlock() (*ast.Block, error) {
	p.blockCounter++
	sub := p.scope.EnterBlock(p.blockCounter)
	prev := p.scope
	p.scope = sub
	block, err := p.parseBlockBody()
	p.scope = prev
	return block, err
}

// parseControlBody parses the body of an if/else/while arm: either a
// braced block, or a single bare statement wrapped in a synthetic
// one-statement block so ast.If/ast.While can treat both uniformly.
// Either way a fresh scope is pushed, since `if (c) int x;` is
// syntactically a decl statement and needs somewhere to live.
func (p *Parser) parseControlBody() (*ast.Block, error) {
	if p.at(lexer.LBrace) {
		return p.parseScopedBlock()
	}

	p.blockCounter++
	sub := p.scope.EnterBlock(p.blockCounter)
	prev := p.scope
	p.scope = sub
	st, err := p.parseStmt()
	p.scope = prev
	if err != nil {
		return nil, err
	}
	return &ast.Block{Body: []ast.Statement{st}}, nil
}

func (p *Parser) parseStmt() (ast.Statement, error) {
	switch p.peek().Kind {
	case lexer.KwIf:
		return p.parseIf()
	case lexer.KwWhile:
		return p.parseWhile()
	case lexer.KwReturn:
		return p.parseReturn()
	case lexer.LBrace:
		return p.parseScopedBlock()
	case lexer.KwInt, lexer.KwFloat, lexer.KwVoid:
		return p.parseDeclStmt()
	case lexer.Star:
		return p.parseAssignStmt()
	case lexer.Ident:
		if p.peekN(1).Kind == lexer.LParen {
			return p.parseCallStmt()
		}
		return p.parseAssignStmt()
	default:
		return nil, newErr(SyntaxError, p.line(), p.peek().Text, "unexpected token in statement position")
	}
}

func (p *Parser) parseIf() (ast.Statement, error) {
	p.advance() // 'if'
	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.requireBool(cond, "if condition"); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}

	then, err := p.parseControlBody()
	if err != nil {
		return nil, err
	}

	var els *ast.Block
	if p.at(lexer.KwElse) {
		p.advance()
		els, err = p.parseControlBody()
		if err != nil {
			return nil, err
		}
	}

	return &ast.If{Cond: cond, Then: then, Else: els}, nil
}

func (p *Parser) parseWhile() (ast.Statement, error) {
	p.advance() // 'while'
	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.requireBool(cond, "while condition"); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}

	body, err := p.parseControlBody()
	if err != nil {
		return nil, err
	}

	return &ast.While{Cond: cond, Body: body}, nil
}

func (p *Parser) currentFuncRet() types.Type {
	for s := p.scope; s != nil; s = s.Parent {
		if s.Kind == symtab.FuncKind {
			if fn := s.Parent.LookUpLocal(s.Name); fn != nil {
				return fn.RetType
			}
		}
	}
	return types.VoidT
}

func (p *Parser) parseReturn() (ast.Statement, error) {
	p.advance() // 'return'
	ret := p.currentFuncRet()

	if p.at(lexer.Semi) {
		p.advance()
		if ret.Base != types.Void {
			return nil, newErr(BadReturn, p.line(), "", "expected a %s return value, got none", ret)
		}
		return &ast.ReturnStmt{Expr: nil}, nil
	}

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Semi); err != nil {
		return nil, err
	}
	if err := p.requireIndirect(expr, "return value"); err != nil {
		return nil, err
	}
	if !expr.Type().Equal(ret) {
		return nil, newErr(BadReturn, p.line(), "", "expected return type %s, got %s", ret, expr.Type())
	}
	return &ast.ReturnStmt{Expr: expr}, nil
}

func (p *Parser) parseCallStmt() (ast.Statement, error) {
	call, err := p.parseCall()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Semi); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Call: call}, nil
}

// parseAssignStmt handles `lhs = expr ;` where lhs is either a plain
// identifier or a chain of dereferences over one.
func (p *Parser) parseAssignStmt() (ast.Statement, error) {
	lhs, err := p.parseLHS()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Assign); err != nil {
		return nil, err
	}
	rhs, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Semi); err != nil {
		return nil, err
	}

	if !lhs.Type().Equal(rhs.Type()) {
		return nil, newErr(TypeMismatch, p.line(), "", "assignment: LHS is %s, RHS is %s", lhs.Type(), rhs.Type())
	}

	return &ast.Assign{Lhs: lhs, Rhs: rhs}, nil
}

func (p *Parser) parseLHS() (ast.Expression, error) {
	if p.at(lexer.Star) {
		p.advance()
		inner, err := p.parseLHS()
		if err != nil {
			return nil, err
		}
		if !inner.Type().IsPointer() {
			return nil, newErr(BadPointerUse, p.line(), "", "cannot dereference non-pointer type %s", inner.Type())
		}
		return &ast.UnaryOp{Op: ast.Deref, X: inner, Typ: inner.Type().Deref()}, nil
	}

	tok, err := p.expect(lexer.Ident)
	if err != nil {
		return nil, err
	}
	return p.resolveVar(tok)
}

func (p *Parser) resolveVar(tok lexer.Token) (*ast.Var, error) {
	entry := p.scope.LookUp(tok.Text)
	if entry == nil {
		return nil, newErr(Undefined, tok.Line, tok.Text, "undefined identifier")
	}
	if entry.Kind != symtab.VarEntry {
		return nil, newErr(TypeMismatch, tok.Line, tok.Text, "%s is not a variable", tok.Text)
	}
	return &ast.Var{Name: tok.Text, Symbol: entry, Typ: entry.Type}, nil
}

func (p *Parser) requireBool(e ast.Expression, where string) error {
	if !e.Type().Equal(types.BoolT) {
		return newErr(TypeMismatch, p.line(), "", "%s must be boolean, got %s", where, e.Type())
	}
	return p.requireIndirect(e, where)
}

// requireIndirect rejects a bare, pointer_level==0 Var flowing directly
// into a position that can observe the aggregate: a function argument,
// a return value, or a logical condition. It mirrors the original's
// check_direct_access, but only at these three positions — assignment
// and arithmetic binop operands are ordinary plain-variable uses in
// this dialect (see S1) and are left alone.
func (p *Parser) requireIndirect(e ast.Expression, where string) error {
	v, ok := e.(*ast.Var)
	if !ok || v.Type().IsPointer() {
		return nil
	}
	return newErr(DirectAccess, p.line(), v.Name, "%s: direct access of non-pointer %s", where, v.Name)
}

// ----------------------------------------------------------------------------
// Expressions — one unified precedence chain covering both the
// "logical" and "arith" productions of SPEC_FULL.md §4.4: grouping
// parens always re-enter at the top (parseExpr), so a plain arithmetic
// subexpression and a boolean one share the same grouping rule. A
// misuse (e.g. a comparison where an int is expected) is rejected by
// the type checks at the point of use (assignment, argument, return),
// not by the grammar itself.

func (p *Parser) parseExpr() (ast.Expression, error) { return p.parseOr() }

func (p *Parser) parseOr() (ast.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.Or) {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left, err = p.makeLogical(ast.Or, left, right)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.And) {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left, err = p.makeLogical(ast.And, left, right)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *Parser) parseNot() (ast.Expression, error) {
	if p.at(lexer.Not) {
		p.advance()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		if !x.Type().Equal(types.BoolT) {
			return nil, newErr(TypeMismatch, p.line(), "", "operand of ! must be boolean, got %s", x.Type())
		}
		return &ast.UnaryOp{Op: ast.Not, X: x, Typ: types.BoolT}, nil
	}
	return p.parseComparison()
}

var cmpOps = map[lexer.Kind]ast.Op{
	lexer.Lt: ast.Lt, lexer.Le: ast.Le, lexer.Gt: ast.Gt, lexer.Ge: ast.Ge,
	lexer.Eq: ast.Eq, lexer.Ne: ast.Ne,
}

func (p *Parser) parseComparison() (ast.Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if op, found := cmpOps[p.peek().Kind]; found {
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return p.makeComparison(op, left, right)
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ast.Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.Plus) || p.at(lexer.Minus) {
		op := ast.Plus
		if p.at(lexer.Minus) {
			op = ast.Minus
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left, err = p.makeArith(op, left, right)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.Star) || p.at(lexer.Slash) {
		op := ast.Mul
		if p.at(lexer.Slash) {
			op = ast.Div
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left, err = p.makeArith(op, left, right)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expression, error) {
	switch p.peek().Kind {
	case lexer.Minus:
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if x.Type().IsPointer() || x.Type().Base == types.Void {
			return nil, newErr(TypeMismatch, p.line(), "", "unary - requires a numeric operand, got %s", x.Type())
		}
		return &ast.UnaryOp{Op: ast.Uminus, X: x, Typ: x.Type()}, nil

	case lexer.Star:
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if !x.Type().IsPointer() {
			return nil, newErr(BadPointerUse, p.line(), "", "cannot dereference non-pointer type %s", x.Type())
		}
		return &ast.UnaryOp{Op: ast.Deref, X: x, Typ: x.Type().Deref()}, nil

	case lexer.Amp:
		p.advance()
		tok, err := p.expect(lexer.Ident)
		if err != nil {
			return nil, err
		}
		v, err := p.resolveVar(tok)
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Op: ast.Addr, X: v, Typ: v.Type().Addr()}, nil

	default:
		return p.parsePrimary()
	}
}

func (p *Parser) parsePrimary() (ast.Expression, error) {
	tok := p.peek()
	switch tok.Kind {
	case lexer.IntLit:
		p.advance()
		return &ast.Const{Value: tok.Text, Typ: types.Int32}, nil
	case lexer.RealLit:
		p.advance()
		return &ast.Const{Value: tok.Text, Typ: types.Float64}, nil
	case lexer.LParen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RParen); err != nil {
			return nil, err
		}
		return inner, nil
	case lexer.Ident:
		if p.peekN(1).Kind == lexer.LParen {
			return p.parseCall()
		}
		p.advance()
		return p.resolveVar(tok)
	default:
		return nil, newErr(SyntaxError, p.line(), tok.Text, "unexpected token in expression")
	}
}

func (p *Parser) parseCall() (*ast.FunctionCall, error) {
	tok, err := p.expect(lexer.Ident)
	if err != nil {
		return nil, err
	}
	entry := p.global.LookUpLocal(tok.Text)
	if entry == nil || entry.Kind != symtab.FuncEntry {
		return nil, newErr(Undefined, tok.Line, tok.Text, "call to undeclared function")
	}

	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}

	var args []ast.Expression
	if !p.at(lexer.RParen) {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.requireIndirect(arg, "call argument"); err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.at(lexer.Comma) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}

	if len(args) != entry.NumParams {
		return nil, newErr(Arity, tok.Line, tok.Text, "expected %d argument(s), got %d", entry.NumParams, len(args))
	}

	for i, arg := range args {
		if !arg.Type().Equal(entry.ParamTypes[i]) {
			return nil, newErr(TypeMismatch, tok.Line, tok.Text,
				"argument %d: expected %s, got %s", i+1, entry.ParamTypes[i], arg.Type())
		}
	}

	return &ast.FunctionCall{Name: tok.Text, Args: args, Typ: entry.RetType}, nil
}

// ----------------------------------------------------------------------------
// Operator semantics

func (p *Parser) makeArith(op ast.Op, lhs, rhs ast.Expression) (ast.Expression, error) {
	lt, rt := lhs.Type(), rhs.Type()
	if lt.IsPointer() || rt.IsPointer() || lt.Base == types.Void || rt.Base == types.Void || !lt.Equal(rt) {
		return nil, newErr(TypeMismatch, p.line(), "", "invalid operands to %s: %s and %s", op, lt, rt)
	}
	return &ast.BinOp{Op: op, Lhs: lhs, Rhs: rhs, Typ: lt}, nil
}

func (p *Parser) makeComparison(op ast.Op, lhs, rhs ast.Expression) (ast.Expression, error) {
	lt, rt := lhs.Type(), rhs.Type()
	if lt.IsPointer() || rt.IsPointer() || lt.Base == types.Void || rt.Base == types.Void || !lt.Equal(rt) {
		return nil, newErr(TypeMismatch, p.line(), "", "invalid operands to %s: %s and %s", op, lt, rt)
	}
	return &ast.BinOp{Op: op, Lhs: lhs, Rhs: rhs, Typ: types.BoolT}, nil
}

func (p *Parser) makeLogical(op ast.Op, lhs, rhs ast.Expression) (ast.Expression, error) {
	if !lhs.Type().Equal(types.BoolT) || !rhs.Type().Equal(types.BoolT) {
		return nil, newErr(TypeMismatch, p.line(), "", "operands of %s must be boolean", op)
	}
	return &ast.BinOp{Op: op, Lhs: lhs, Rhs: rhs, Typ: types.BoolT}, nil
}
