package codegen

import (
	"sort"

	"aplc.dev/aplc/pkg/symtab"
)

// savedRegsSize is the space reserved for the saved $ra/$fp pair at the
// top of every frame; parameter offsets start above it and above every
// local, per the descending-stack frame convention.
const savedRegsSize = 8

// Layout records the total local-frame size computed for one function.
// The per-variable offsets themselves are written directly onto each
// symtab.Entry (codegen looks a Value up by name through the symbol
// table, not through this struct).
type Layout struct {
	FrameSize int
}

// BuildLayout assigns every variable reachable from a function's scope
// a stack offset relative to $sp as it stands right after the
// function's prologue. Locals (the function's immediate, non-parameter
// entries) are sorted by name and packed starting at offset 4; nested
// block scopes (if/while bodies) are then walked depth-first in
// declaration order and appended above them, each variable getting its
// own slot, since APL performs no stack-size optimization and two
// variables never share a slot even when their blocks can't both run.
// Parameters come last, starting at offset 8 + local_bytes + 4 and
// continuing in declaration order, matching where the caller left them.
func BuildLayout(fnScope *symtab.Scope, numParams int) *Layout {
	vars := fnScope.Variables()
	params := vars[:numParams]
	locals := append([]*symtab.Entry(nil), vars[numParams:]...)
	sort.Slice(locals, func(i, j int) bool { return locals[i].Name < locals[j].Name })

	off := 4
	for _, entry := range locals {
		entry.Offset = off
		off += entry.Type.Width()
	}
	walkBlocks(fnScope, &off)
	localBytes := off - 4

	paramOff := savedRegsSize + localBytes + 4
	for _, entry := range params {
		entry.Offset = paramOff
		paramOff += entry.Type.Width()
	}

	return &Layout{FrameSize: localBytes}
}

// walkBlocks assigns offsets to every variable in scope's nested block
// scopes, recursing depth-first in declaration order, continuing the
// running offset left off by the function's own locals.
func walkBlocks(scope *symtab.Scope, off *int) {
	for _, key := range scope.Entries.Keys() {
		entry, _ := scope.Entries.Get(key)
		if entry.Kind != symtab.BlockEntry {
			continue
		}
		for _, v := range entry.Block.Variables() {
			v.Offset = *off
			*off += v.Type.Width()
		}
		walkBlocks(entry.Block, off)
	}
}
