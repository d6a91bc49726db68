package cfg

import (
	"fmt"

	"aplc.dev/aplc/pkg/ast"
)

// Builder lowers one function body at a time into basic blocks,
// generating fresh temporaries (`t0`, `t1`, ...) as it goes. Temp
// numbering restarts for every function.
type Builder struct {
	tmp    int
	nextID int
	blocks []*Block
}

// Build lowers every function in prog; prototypes (nil Body) produce no
// blocks and are skipped, since a function with no body has nothing to
// emit code for.
func Build(prog *ast.Program) *Program {
	out := &Program{}
	for _, fn := range prog.Functions {
		if fn.Body == nil {
			continue
		}
		out.Functions = append(out.Functions, BuildFunction(fn))
	}
	return out
}

// BuildFunction lowers a single function's body to a CFG.
func BuildFunction(fn *ast.Function) *Function {
	b := &Builder{}

	params := make([]Value, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = Value{Kind: VarVal, Name: p.Name, Typ: p.Typ}
	}

	entry := b.newBlock(Sequential)
	cur := b.lowerBlockStatements(fn.Body, entry)

	end := b.newBlock(EndKind)
	if cur.Term == nil {
		cur.Term = Goto{Target: end.ID}
	}

	cfgFn := &Function{Name: fn.Name, Ret: fn.Ret, Params: params, Blocks: b.blocks, Entry: entry.ID}
	cleanUp(cfgFn)
	return cfgFn
}

func (b *Builder) newBlock(kind BlockKind) *Block {
	blk := &Block{ID: b.nextID, Kind: kind}
	b.nextID++
	b.blocks = append(b.blocks, blk)
	return blk
}

// ----------------------------------------------------------------------------
// Statements

// lowerBlockStatements lowers a *ast.Block's statement list in order,
// returning the block the straight-line code ends up in. If a Return
// terminates 'cur' partway through, remaining statements are dead code
// and are not lowered (no reachability analysis is performed beyond
// this simple short-circuit).
func (b *Builder) lowerBlockStatements(block *ast.Block, cur *Block) *Block {
	for _, stmt := range block.Body {
		cur = b.lowerStmt(stmt, cur)
		if cur.Term != nil {
			break
		}
	}
	return cur
}

func (b *Builder) lowerStmt(stmt ast.Statement, cur *Block) *Block {
	switch s := stmt.(type) {
	case *ast.DeclList:
		// Declarations only affect the symbol table (already populated
		// during parsing); they have no three-address effect of their
		// own until the frame-layout pass in codegen assigns offsets.
		return cur

	case *ast.Assign:
		return b.lowerAssign(s, cur)

	case *ast.ExprStmt:
		_, next := b.lowerExpr(s.Call, cur)
		return next

	case *ast.ReturnStmt:
		if s.Expr == nil {
			cur.Term = Return{Value: nil}
			return cur
		}
		val, next := b.lowerExpr(s.Expr, cur)
		next.Term = Return{Value: &val}
		return next

	case *ast.If:
		return b.lowerIf(s, cur)

	case *ast.While:
		return b.lowerWhile(s, cur)

	case *ast.Block:
		return b.lowerBlockStatements(s, cur)

	default:
		return cur
	}
}

func (b *Builder) lowerAssign(s *ast.Assign, cur *Block) *Block {
	rhsVal, cur2 := b.lowerExpr(s.Rhs, cur)

	deref, target, cur3 := b.lowerLHS(s.Lhs, cur2)
	cur3.Stmts = append(cur3.Stmts, Assign{Lhs: target, Deref: deref, Rhs: Simple{V: rhsVal}})
	return cur3
}

// lowerLHS evaluates an assignment target down to a single name plus a
// "store through this address" flag, peeling exactly one leading Deref
// (deeper chains like `**p` first load `*p` into a temp address, then
// store through that).
func (b *Builder) lowerLHS(e ast.Expression, cur *Block) (bool, Value, *Block) {
	switch n := e.(type) {
	case *ast.Var:
		return false, Value{Kind: VarVal, Name: n.Name, Typ: n.Typ}, cur
	case *ast.UnaryOp:
		if n.Op == ast.Deref {
			addr, next := b.lowerExpr(n.X, cur)
			return true, addr, next
		}
	}
	// Unreachable for a well-typed AST: the parser only ever produces a
	// Var or a chain of Deref-over-Var as an assignment LHS.
	return false, Value{}, cur
}

func (b *Builder) lowerIf(s *ast.If, cur *Block) *Block {
	condVal, condBlock := b.lowerCond(s.Cond, cur)

	thenEntry := b.newBlock(Sequential)
	thenExit := b.lowerBlockStatements(s.Then, thenEntry)

	var elseEntry, elseExit *Block
	if s.Else != nil {
		elseEntry = b.newBlock(Sequential)
		elseExit = b.lowerBlockStatements(s.Else, elseEntry)
	}

	join := b.newBlock(Sequential)

	falseTarget := join.ID
	if elseEntry != nil {
		falseTarget = elseEntry.ID
	}
	condBlock.Term = CondGoto{Cond: condVal, TrueBB: thenEntry.ID, FalseBB: falseTarget}

	if thenExit.Term == nil {
		thenExit.Term = Goto{Target: join.ID}
	}
	if elseExit != nil && elseExit.Term == nil {
		elseExit.Term = Goto{Target: join.ID}
	}

	return join
}

func (b *Builder) lowerWhile(s *ast.While, cur *Block) *Block {
	header := b.newBlock(Sequential)
	cur.Term = Goto{Target: header.ID}

	condVal, condBlock := b.lowerCond(s.Cond, header)

	bodyEntry := b.newBlock(Sequential)
	bodyExit := b.lowerBlockStatements(s.Body, bodyEntry)

	after := b.newBlock(Sequential)

	condBlock.Term = CondGoto{Cond: condVal, TrueBB: bodyEntry.ID, FalseBB: after.ID}
	if bodyExit.Term == nil {
		bodyExit.Term = Goto{Target: header.ID}
	}

	return after
}

// lowerCond lowers a condition expression and marks the block it ends
// in as 'logical', the kind a CondGoto terminator expects.
func (b *Builder) lowerCond(e ast.Expression, cur *Block) (Value, *Block) {
	val, next := b.lowerExpr(e, cur)
	next.Kind = Logical
	return val, next
}

// ----------------------------------------------------------------------------
// Expressions

func (b *Builder) lowerExpr(e ast.Expression, cur *Block) (Value, *Block) {
	switch n := e.(type) {
	case *ast.Const:
		return Value{Kind: ConstVal, Const: n.Value, Typ: n.Typ}, cur

	case *ast.Var:
		return Value{Kind: VarVal, Name: n.Name, Typ: n.Typ}, cur

	case *ast.UnaryOp:
		// `*&x` collapses to `x`: taking the address of a variable and
		// immediately dereferencing it is a no-op, and skipping the
		// round trip avoids materializing a dead address temp.
		if n.Op == ast.Deref {
			if inner, ok := n.X.(*ast.UnaryOp); ok && inner.Op == ast.Addr {
				return b.lowerExpr(inner.X, cur)
			}
		}
		xVal, next := b.lowerExpr(n.X, cur)
		t := Value{Kind: TempVal, Name: fmt.Sprintf("t%d", b.tmp), Typ: n.Typ}
		b.tmp++
		next.Stmts = append(next.Stmts, Assign{Lhs: t, Rhs: Unary{Op: n.Op, X: xVal}})
		return t, next

	case *ast.BinOp:
		lv, next := b.lowerExpr(n.Lhs, cur)
		rv, next2 := b.lowerExpr(n.Rhs, next)
		t := Value{Kind: TempVal, Name: fmt.Sprintf("t%d", b.tmp), Typ: n.Typ}
		b.tmp++
		next2.Stmts = append(next2.Stmts, Assign{Lhs: t, Rhs: Binary{Op: n.Op, L: lv, R: rv}})
		return t, next2

	case *ast.FunctionCall:
		var args []Value
		next := cur
		for _, a := range n.Args {
			var v Value
			v, next = b.lowerExpr(a, next)
			args = append(args, v)
		}
		t := Value{Kind: TempVal, Name: fmt.Sprintf("t%d", b.tmp), Typ: n.Typ}
		b.tmp++
		next.Stmts = append(next.Stmts, Assign{Lhs: t, Rhs: Call{Name: n.Name, Args: args}})
		return t, next

	default:
		return Value{}, cur
	}
}

// ----------------------------------------------------------------------------
// Clean-up

// cleanUp removes empty pass-through blocks (a block with no statements
// whose only terminator is an unconditional Goto) by retargeting every
// jump that pointed at it directly to its successor, then renumbers the
// survivors densely from 0 in their original relative order.
//
// This reaches the same end state as splicing out dead blocks by
// reverse iteration, just via a forwarding-table rewrite instead of an
// in-place slice splice; the result is the same minimal block set, in
// the same order, just built differently.
func cleanUp(fn *Function) {
	forward := map[int]int{}
	for _, blk := range fn.Blocks {
		if len(blk.Stmts) == 0 && blk.Kind != EndKind {
			if g, ok := blk.Term.(Goto); ok {
				forward[blk.ID] = g.Target
			}
		}
	}

	resolve := func(id int) int {
		seen := map[int]bool{}
		for {
			target, ok := forward[id]
			if !ok || seen[id] {
				return id
			}
			seen[id] = true
			id = target
		}
	}

	kept := make([]*Block, 0, len(fn.Blocks))
	for _, blk := range fn.Blocks {
		if _, dead := forward[blk.ID]; dead {
			continue
		}
		switch t := blk.Term.(type) {
		case Goto:
			t.Target = resolve(t.Target)
			blk.Term = t
		case CondGoto:
			t.TrueBB = resolve(t.TrueBB)
			t.FalseBB = resolve(t.FalseBB)
			blk.Term = t
		}
		kept = append(kept, blk)
	}
	fn.Entry = resolve(fn.Entry)

	remap := map[int]int{}
	for i, blk := range kept {
		remap[blk.ID] = i
	}
	for _, blk := range kept {
		blk.ID = remap[blk.ID]
		switch t := blk.Term.(type) {
		case Goto:
			t.Target = remap[t.Target]
			blk.Term = t
		case CondGoto:
			t.TrueBB = remap[t.TrueBB]
			t.FalseBB = remap[t.FalseBB]
			blk.Term = t
		}
	}
	fn.Entry = remap[fn.Entry]
	fn.Blocks = kept
}
