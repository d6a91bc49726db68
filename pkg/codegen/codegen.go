package codegen

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"aplc.dev/aplc/pkg/ast"
	"aplc.dev/aplc/pkg/cfg"
	"aplc.dev/aplc/pkg/symtab"
	"aplc.dev/aplc/pkg/types"
)

// CodeGenerator walks a lowered cfg.Program, together with the global
// symtab.Scope the parser built alongside it, and emits MIPS-like
// assembly text. One function is generated at a time; the allocator
// pools and the temp/var -> register map are reset at the start of
// each, since no value is ever live across a function boundary.
type CodeGenerator struct {
	prog   *cfg.Program
	global *symtab.Scope

	fnScope *symtab.Scope
	ints    *Allocator
	floats  *Allocator
	regOf   map[string]string

	// fcmpSeq numbers the labels a float comparison's bc1f sequence
	// needs; it climbs across the whole program rather than resetting
	// per function, since label text is the only thing that has to stay
	// unique, not the counter's value.
	fcmpSeq int
}

// NewCodeGenerator builds a CodeGenerator over a fully lowered program
// and the symbol table produced alongside it.
func NewCodeGenerator(prog *cfg.Program, global *symtab.Scope) *CodeGenerator {
	return &CodeGenerator{prog: prog, global: global}
}

// Generate produces the full assembly listing: a .data section with one
// entry per global, then a .text section with one label block per
// function.
func (cg *CodeGenerator) Generate() (string, error) {
	var b strings.Builder

	b.WriteString(".data\n")
	globals := cg.global.Variables()
	sort.Slice(globals, func(i, j int) bool { return globals[i].Name < globals[j].Name })
	for _, g := range globals {
		directive := ".word 0"
		if g.Type.Base == types.Float && !g.Type.IsPointer() {
			directive = ".space 8"
		}
		fmt.Fprintf(&b, "global_%s: %s\n", g.Name, directive)
	}

	b.WriteString(".text\n")
	b.WriteString("j main\n")

	for _, fn := range cg.prog.Functions {
		text, err := cg.GenerateFunction(fn)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// GenerateFunction emits one function's prologue, body and (single,
// shared) epilogue; every Return block jumps to the epilogue rather
// than repeating the teardown sequence inline.
func (cg *CodeGenerator) GenerateFunction(fn *cfg.Function) (string, error) {
	entry := cg.global.LookUpLocal(fn.Name)
	if entry == nil || entry.Sub == nil {
		return "", fmt.Errorf("codegen: no symbol table entry for function %q", fn.Name)
	}

	layout := BuildLayout(entry.Sub, len(fn.Params))
	cg.fnScope = entry.Sub
	cg.ints = NewAllocator("integer", IntRegs)
	cg.floats = NewAllocator("float", FloatRegs)
	cg.regOf = map[string]string{}

	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", fn.Name)
	b.WriteString("  sw $ra, 0($sp)\n")
	b.WriteString("  sw $fp, -4($sp)\n")
	b.WriteString("  addi $fp, $sp, -8\n")
	fmt.Fprintf(&b, "  addi $sp, $sp, -%d\n", layout.FrameSize+savedRegsSize)

	for _, blk := range fn.Blocks {
		text, err := cg.GenerateBlock(fn, blk)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	}

	fmt.Fprintf(&b, "%s:\n", cg.epilogueLabel(fn))
	b.WriteString("  addi $sp, $fp, 8\n")
	b.WriteString("  lw $fp, -4($sp)\n")
	b.WriteString("  lw $ra, 0($sp)\n")
	b.WriteString("  jr $ra\n")

	return b.String(), nil
}

func (cg *CodeGenerator) blockLabel(fn *cfg.Function, id int) string {
	return fmt.Sprintf("label%d_%s", id, fn.Name)
}

func (cg *CodeGenerator) epilogueLabel(fn *cfg.Function) string {
	return fmt.Sprintf("epilogue_%s", fn.Name)
}

// GenerateBlock emits one basic block's straight-line statements
// followed by its single terminator.
func (cg *CodeGenerator) GenerateBlock(fn *cfg.Function, blk *cfg.Block) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", cg.blockLabel(fn, blk.ID))

	for _, stmt := range blk.Stmts {
		if err := cg.GenerateAssign(&b, stmt); err != nil {
			return "", err
		}
	}

	if err := cg.GenerateTerm(&b, fn, blk); err != nil {
		return "", err
	}
	return b.String(), nil
}

// GenerateTerm emits the jump, branch or return that ends a block.
func (cg *CodeGenerator) GenerateTerm(b *strings.Builder, fn *cfg.Function, blk *cfg.Block) error {
	switch t := blk.Term.(type) {
	case cfg.Goto:
		fmt.Fprintf(b, "  j %s\n", cg.blockLabel(fn, t.Target))

	case cfg.CondGoto:
		reg, err := cg.load(b, t.Cond)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "  bnez %s, %s\n", reg, cg.blockLabel(fn, t.TrueBB))
		fmt.Fprintf(b, "  j %s\n", cg.blockLabel(fn, t.FalseBB))
		cg.release(t.Cond, reg)

	case cfg.Return:
		if t.Value != nil {
			reg, err := cg.load(b, *t.Value)
			if err != nil {
				return err
			}
			dst := "$v0"
			if t.Value.Typ.Base == types.Float && !t.Value.Typ.IsPointer() {
				dst = "$f0"
			}
			fmt.Fprintf(b, "  move %s, %s\n", dst, reg)
			cg.release(*t.Value, reg)
		}
		fmt.Fprintf(b, "  j %s\n", cg.epilogueLabel(fn))

	case nil:
		// EndKind sentinel block: nothing further to emit.
	}
	return nil
}

// GenerateAssign emits one three-address statement: evaluate the
// right-hand side into a register, then either store it through an
// address (Deref) or bind it to a name/temp.
func (cg *CodeGenerator) GenerateAssign(b *strings.Builder, stmt cfg.Assign) error {
	rhsReg, owned, err := cg.generateRHS(b, stmt.Rhs, stmt.Lhs.Typ)
	if err != nil {
		return err
	}

	if stmt.Deref {
		addrReg, err := cg.load(b, stmt.Lhs)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "  %s %s, 0(%s)\n", storeOp(stmt.Lhs.Typ.Deref()), rhsReg, addrReg)
		cg.release(stmt.Lhs, addrReg)
		cg.releaseTemp(rhsReg, owned)
		return nil
	}

	cg.bind(stmt.Lhs, rhsReg)
	if stmt.Lhs.Kind != cfg.TempVal {
		cg.storeVar(b, stmt.Lhs, rhsReg)
	}
	return nil
}

// generateRHS evaluates an Assign's right-hand side, returning the
// register the result now lives in and whether that register was
// freshly allocated for this statement (as opposed to an already-live
// variable register handed back by load), which tells the caller
// whether it's theirs to free.
func (cg *CodeGenerator) generateRHS(b *strings.Builder, rhs interface{}, lhsType types.Type) (string, bool, error) {
	switch r := rhs.(type) {
	case cfg.Simple:
		reg, err := cg.load(b, r.V)
		return reg, r.V.Kind == cfg.TempVal, err

	case cfg.Unary:
		return cg.generateUnary(b, r)

	case cfg.Binary:
		lReg, err := cg.load(b, r.L)
		if err != nil {
			return "", false, err
		}
		rReg, err := cg.load(b, r.R)
		if err != nil {
			return "", false, err
		}
		// dst is allocated by the statement's own result type (always
		// an integer register for a comparison or logical op, whatever
		// the operands' type), not the operands' type.
		dst, err := cg.alloc(lhsType)
		if err != nil {
			return "", false, err
		}

		isFloat := r.L.Typ.Base == types.Float && !r.L.Typ.IsPointer()
		if isComparison(r.Op) && isFloat {
			if err := cg.generateFloatCompare(b, r.Op, lReg, rReg, dst); err != nil {
				return "", false, err
			}
		} else {
			op, err := binOpMnemonic(r.Op, r.L.Typ)
			if err != nil {
				return "", false, err
			}
			fmt.Fprintf(b, "  %s %s, %s, %s\n", op, dst, lReg, rReg)
		}
		cg.release(r.L, lReg)
		cg.release(r.R, rReg)
		return dst, true, nil

	case cfg.Call:
		return cg.generateCall(b, r, lhsType)

	default:
		return "", false, fmt.Errorf("codegen: unsupported right-hand side %T", rhs)
	}
}

// generateCall stores each argument to the outgoing stack area below
// $sp, at offset 4 - total + the combined width of the arguments before
// it (total being the width of all arguments), so that once $sp drops by
// total the callee finds argument 0 at exactly the offset its own
// parameter-layout formula expects (see BuildLayout). $sp is dropped only
// for the duration of the call and restored right after, since no value
// is ever kept live across one.
func (cg *CodeGenerator) generateCall(b *strings.Builder, r cfg.Call, lhsType types.Type) (string, bool, error) {
	total := 0
	for _, arg := range r.Args {
		total += arg.Typ.Width()
	}
	offset := 4 - total
	for _, arg := range r.Args {
		reg, err := cg.load(b, arg)
		if err != nil {
			return "", false, err
		}
		fmt.Fprintf(b, "  %s %s, %d($sp)\n", storeOp(arg.Typ), reg, offset)
		cg.release(arg, reg)
		offset += arg.Typ.Width()
	}

	if total > 0 {
		fmt.Fprintf(b, "  sub $sp, $sp, %d\n", total)
	}
	fmt.Fprintf(b, "  jal %s\n", r.Name)
	if total > 0 {
		fmt.Fprintf(b, "  addi $sp, $sp, %d\n", total)
	}

	src := "$v0"
	if lhsType.Base == types.Float && !lhsType.IsPointer() {
		src = "$f0"
	}
	dst, err := cg.alloc(lhsType)
	if err != nil {
		return "", false, err
	}
	fmt.Fprintf(b, "  move %s, %s\n", dst, src)
	return dst, true, nil
}

func (cg *CodeGenerator) generateUnary(b *strings.Builder, r cfg.Unary) (string, bool, error) {
	// Addr never loads its operand's value: it needs the operand's frame
	// slot address instead, so it's handled before the generic "load X
	// first" path the other unary operators share.
	if r.Op == ast.Addr {
		loc, err := cg.resolveVar(r.X.Name)
		if err != nil {
			return "", false, fmt.Errorf("codegen: %w in address-of", err)
		}
		dst, err := cg.alloc(types.Make(r.X.Typ.Base, r.X.Typ.Pointer+1))
		if err != nil {
			return "", false, err
		}
		fmt.Fprintf(b, "  la %s, %s\n", dst, loc.operand())
		return dst, true, nil
	}

	xReg, err := cg.load(b, r.X)
	if err != nil {
		return "", false, err
	}
	dst, err := cg.alloc(r.X.Typ)
	if err != nil {
		return "", false, err
	}
	switch r.Op {
	case ast.Uminus:
		fmt.Fprintf(b, "  %s %s, $zero, %s\n", subOp(r.X.Typ), dst, xReg)
	case ast.Not:
		fmt.Fprintf(b, "  seq %s, %s, $zero\n", dst, xReg)
	case ast.Deref:
		fmt.Fprintf(b, "  %s %s, 0(%s)\n", loadOp(r.X.Typ.Deref()), dst, xReg)
	default:
		return "", false, fmt.Errorf("codegen: unsupported unary operator %q", r.Op)
	}
	cg.release(r.X, xReg)
	return dst, true, nil
}

// ----------------------------------------------------------------------------
// Operand loading and register bookkeeping

// load materializes v's current value into a register, emitting
// whatever instruction that takes: an immediate load for a constant, a
// frame read for a variable not already resident, or nothing at all for
// a temp or variable already tracked in regOf.
func (cg *CodeGenerator) load(b *strings.Builder, v cfg.Value) (string, error) {
	if reg, ok := cg.regOf[v.Name]; ok && v.Kind != cfg.ConstVal {
		return reg, nil
	}

	switch v.Kind {
	case cfg.ConstVal:
		reg, err := cg.alloc(v.Typ)
		if err != nil {
			return "", err
		}
		if v.Typ.Base == types.Float && !v.Typ.IsPointer() {
			fmt.Fprintf(b, "  li.s %s, %s\n", reg, v.Const)
			return reg, nil
		}
		if _, err := strconv.Atoi(v.Const); err != nil {
			return "", fmt.Errorf("codegen: malformed integer literal %q", v.Const)
		}
		fmt.Fprintf(b, "  li %s, %s\n", reg, v.Const)
		return reg, nil

	case cfg.VarVal:
		loc, err := cg.resolveVar(v.Name)
		if err != nil {
			return "", err
		}
		reg, err := cg.alloc(v.Typ)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(b, "  %s %s, %s\n", loadOp(v.Typ), reg, loc.operand())
		cg.regOf[v.Name] = reg
		return reg, nil

	default:
		return "", fmt.Errorf("codegen: temp %q used before definition", v.Name)
	}
}

// bind records that v's value now lives in reg, without emitting code;
// callers that already produced reg via generateRHS use this instead of
// load to avoid a redundant allocation.
func (cg *CodeGenerator) bind(v cfg.Value, reg string) {
	cg.regOf[v.Name] = reg
}

// storeVar spills a named variable's register back to its frame slot (or
// its .data entry, if it's a global). Temps never need this: once their
// one use has consumed them they're dead, so there's nothing to
// preserve across blocks.
func (cg *CodeGenerator) storeVar(b *strings.Builder, v cfg.Value, reg string) {
	loc, err := cg.resolveVar(v.Name)
	if err != nil {
		return
	}
	fmt.Fprintf(b, "  %s %s, %s\n", storeOp(v.Typ), reg, loc.operand())
}

// varLoc is where a named variable lives: either an offset off $sp, as
// it stands right after the function's prologue (a parameter or local),
// or a fixed .data label (a global).
type varLoc struct {
	Label  string
	Offset int
}

func (l *varLoc) operand() string {
	if l.Label != "" {
		return l.Label
	}
	return fmt.Sprintf("%d($sp)", l.Offset)
}

// resolveVar finds name in the current function's scope tree first
// (parameters, locals, nested blocks), falling back to the global scope
// for a file-level variable.
func (cg *CodeGenerator) resolveVar(name string) (*varLoc, error) {
	if entry := findEntry(cg.fnScope, name); entry != nil {
		return &varLoc{Offset: entry.Offset}, nil
	}
	if entry := cg.global.LookUpLocal(name); entry != nil && entry.Kind == symtab.VarEntry {
		return &varLoc{Label: "global_" + name}, nil
	}
	return nil, fmt.Errorf("unresolved variable %q", name)
}

func (cg *CodeGenerator) alloc(t types.Type) (string, error) {
	if t.Base == types.Float && !t.IsPointer() {
		return cg.floats.Use()
	}
	return cg.ints.Use()
}

// release frees v's register once its last use here has been emitted.
// Named variables stay resident (their slot is reused on every
// subsequent read within the function), temps are freed immediately
// since each is consumed exactly once.
func (cg *CodeGenerator) release(v cfg.Value, reg string) {
	if v.Kind == cfg.TempVal {
		cg.releaseTemp(reg, true)
	}
}

func (cg *CodeGenerator) releaseTemp(reg string, owned bool) {
	if !owned {
		return
	}
	if strings.HasPrefix(reg, "$f") {
		cg.floats.Free(reg)
		return
	}
	cg.ints.Free(reg)
}

// findEntry searches scope and every nested block scope (depth-first)
// for a variable named name. The CFG only carries a flat name, not the
// lexical block it came from, so resolution has to search rather than
// walk a single parent chain the way the parser's own lookups do.
func findEntry(scope *symtab.Scope, name string) *symtab.Entry {
	if e := scope.LookUpLocal(name); e != nil && e.Kind == symtab.VarEntry {
		return e
	}
	for _, key := range scope.Entries.Keys() {
		entry, _ := scope.Entries.Get(key)
		if entry.Kind != symtab.BlockEntry {
			continue
		}
		if found := findEntry(entry.Block, name); found != nil {
			return found
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Mnemonic tables

func loadOp(t types.Type) string {
	if t.Base == types.Float && !t.IsPointer() {
		return "l.s"
	}
	return "lw"
}

func storeOp(t types.Type) string {
	if t.Base == types.Float && !t.IsPointer() {
		return "s.s"
	}
	return "sw"
}

func subOp(t types.Type) string {
	if t.Base == types.Float && !t.IsPointer() {
		return "sub.s"
	}
	return "sub"
}

// floatCmpOps maps a comparison operator to the c.*.s mnemonic that
// sets the FP condition flag a float comparison branches on.
var floatCmpOps = map[ast.Op]string{
	ast.Lt: "c.lt.s", ast.Le: "c.le.s", ast.Gt: "c.gt.s", ast.Ge: "c.ge.s",
	ast.Eq: "c.eq.s", ast.Ne: "c.ne.s",
}

func isComparison(op ast.Op) bool {
	_, ok := floatCmpOps[op]
	return ok
}

// generateFloatCompare emits a float comparison: the c.*.s instruction
// sets the FP condition flag, then a bc1f around a 0/1 materialization
// brackets it into dst, an integer register (a comparison's result is
// always boolean, regardless of its operands' type).
func (cg *CodeGenerator) generateFloatCompare(b *strings.Builder, op ast.Op, lReg, rReg, dst string) error {
	mnemonic, ok := floatCmpOps[op]
	if !ok {
		return fmt.Errorf("codegen: unsupported float comparison %q", op)
	}
	cg.fcmpSeq++
	label := fmt.Sprintf("fcmp_true%d", cg.fcmpSeq)
	fmt.Fprintf(b, "  %s %s, %s\n", mnemonic, lReg, rReg)
	fmt.Fprintf(b, "  li %s, 0\n", dst)
	fmt.Fprintf(b, "  bc1f %s\n", label)
	fmt.Fprintf(b, "  li %s, 1\n", dst)
	fmt.Fprintf(b, "%s:\n", label)
	return nil
}

func binOpMnemonic(op ast.Op, operandType types.Type) (string, error) {
	isFloat := operandType.Base == types.Float && !operandType.IsPointer()

	table := map[ast.Op]string{
		ast.Plus: "add", ast.Minus: "sub", ast.Mul: "mul", ast.Div: "div",
		ast.Lt: "slt", ast.Le: "sle", ast.Gt: "sgt", ast.Ge: "sge",
		ast.Eq: "seq", ast.Ne: "sne",
		ast.And: "and", ast.Or: "or",
	}
	mnemonic, ok := table[op]
	if !ok {
		return "", fmt.Errorf("codegen: unsupported binary operator %q", op)
	}
	if isFloat {
		switch op {
		case ast.Plus, ast.Minus, ast.Mul, ast.Div:
			return mnemonic + ".s", nil
		}
	}
	return mnemonic, nil
}
