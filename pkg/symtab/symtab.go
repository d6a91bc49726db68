// Package symtab implements the nested scope tree (global, function,
// block) that the parser's semantic actions populate and the code
// generator later walks to compute frame offsets.
package symtab

import (
	"fmt"
	"strings"

	"aplc.dev/aplc/pkg/types"
	"aplc.dev/aplc/pkg/utils"
)

// Kind distinguishes the three shapes a scope can take.
type Kind string

const (
	Global   Kind = "global"
	FuncKind Kind = "function"
	Block    Kind = "block"
)

// EntryKind distinguishes what a single name in a scope denotes.
type EntryKind string

const (
	VarEntry   EntryKind = "variable"
	FuncEntry  EntryKind = "function"
	BlockEntry EntryKind = "block"
)

// Entry is one name bound inside a Scope. Only the fields relevant to
// its Kind are meaningful; the rest are zero values.
type Entry struct {
	Name string
	Kind EntryKind

	// VarEntry
	Type   types.Type
	Offset int // filled in by codegen's frame layout pass

	// FuncEntry
	RetType    types.Type
	NumParams  int
	ParamTypes []types.Type // positional types, known even before the body (if any) is parsed
	Sub        *Scope       // parameters first, then locals/nested blocks
	Defined    bool         // false while only a prototype has been seen

	// BlockEntry
	Block *Scope
}

// Scope is one node of the scope tree. Entries preserve insertion order
// via utils.OrderedMap so that a .sym dump is deterministic.
type Scope struct {
	Parent  *Scope
	Name    string
	Kind    Kind
	Entries utils.OrderedMap[string, *Entry]
	Width   int // combined width of the variables entered directly here, grown by each EnterVar
}

// NewGlobal creates the root scope of a compilation unit.
func NewGlobal() *Scope {
	return &Scope{Name: "global", Kind: Global}
}

// mktable allocates a child scope linked to its parent.
func mktable(parent *Scope, name string, kind Kind) *Scope {
	return &Scope{Parent: parent, Name: name, Kind: kind}
}

// EnterVar inserts a new variable into scope, in declaration order.
// Returns an error if the name already exists in this exact scope
// (shadowing an outer scope is legal, redeclaring in the same one is
// not).
func (s *Scope) EnterVar(name string, t types.Type) (*Entry, error) {
	if s.Entries.Has(name) {
		return nil, fmt.Errorf("redeclaration of %q in scope %q", name, s.Name)
	}
	entry := &Entry{Name: name, Kind: VarEntry, Type: t}
	s.Entries.Set(name, entry)
	s.Width += t.Width()
	return entry, nil
}

// EnterFunc inserts a new function, or reconciles a definition against
// a previously seen prototype. A new entry gets a fresh, empty nested
// scope (Sub); the caller enters the parameters and, while parsing the
// body, the locals into it. A reconciled definition reuses the
// prototype's entry and Sub.
func (s *Scope) EnterFunc(name string, ret types.Type, params []types.Type, defining bool) (*Entry, error) {
	existing, found := s.Entries.Get(name)
	if !found {
		sub := mktable(s, name, FuncKind)
		entry := &Entry{Name: name, Kind: FuncEntry, RetType: ret, NumParams: len(params), ParamTypes: params, Sub: sub, Defined: defining}
		s.Entries.Set(name, entry)
		return entry, nil
	}

	if existing.Kind != FuncEntry {
		return nil, fmt.Errorf("%q already declared as a non-function in scope %q", name, s.Name)
	}
	if existing.Defined && defining {
		return nil, fmt.Errorf("redefinition of function %q", name)
	}
	if !existing.RetType.Equal(ret) {
		return nil, fmt.Errorf("prototype mismatch for %q: return type %s does not match prior %s", name, ret, existing.RetType)
	}
	if existing.NumParams != len(params) {
		return nil, fmt.Errorf("prototype mismatch for %q: expected %d parameters, got %d", name, existing.NumParams, len(params))
	}
	for i, t := range params {
		if !existing.ParamTypes[i].Equal(t) {
			return nil, fmt.Errorf("prototype mismatch for %q: parameter %d is %s, expected %s", name, i+1, t, existing.ParamTypes[i])
		}
	}
	if defining {
		existing.Defined = true
	}
	return existing, nil
}

// EnterBlock allocates an anonymous nested block scope (used for loop
// and conditional bodies that are not a function's immediate body).
func (s *Scope) EnterBlock(index int) *Scope {
	name := fmt.Sprintf("@block_%d", index)
	sub := mktable(s, name, Block)
	s.Entries.Set(name, &Entry{Name: name, Kind: BlockEntry, Block: sub})
	return sub
}

// LookUp walks the parent chain starting at s and returns the first
// entry found for 'name', or nil if none exists anywhere up the chain.
func (s *Scope) LookUp(name string) *Entry {
	for scope := s; scope != nil; scope = scope.Parent {
		if entry, found := scope.Entries.Get(name); found {
			return entry
		}
	}
	return nil
}

// LookUpLocal looks up 'name' only within s, without consulting parents.
func (s *Scope) LookUpLocal(name string) *Entry {
	entry, _ := s.Entries.Get(name)
	return entry
}

// AddWidth adds w to the scope's recorded total size.
func (s *Scope) AddWidth(w int) { s.Width += w }

// Variables returns, in declaration order, every VarEntry directly owned
// by s (not recursing into nested blocks).
func (s *Scope) Variables() []*Entry {
	var out []*Entry
	for _, key := range s.Entries.Keys() {
		entry, _ := s.Entries.Get(key)
		if entry.Kind == VarEntry {
			out = append(out, entry)
		}
	}
	return out
}

// Functions returns every FuncEntry owned by s, in declaration order.
func (s *Scope) Functions() []*Entry {
	var out []*Entry
	for _, key := range s.Entries.Keys() {
		entry, _ := s.Entries.Get(key)
		if entry.Kind == FuncEntry {
			out = append(out, entry)
		}
	}
	return out
}

// AsText renders the whole scope tree rooted at s as two flat tables,
// suitable for a `.sym` dump: every function prototype/definition seen,
// then every variable with the scope that owns it.
func (s *Scope) AsText() string {
	var b strings.Builder

	b.WriteString("Procedure table\n")
	walkFuncs(s, &b)

	b.WriteString("\nVariable table\n")
	walkVars(s, &b)

	return b.String()
}

func walkFuncs(s *Scope, b *strings.Builder) {
	for _, fn := range s.Functions() {
		params := make([]string, len(fn.ParamTypes))
		for i, t := range fn.ParamTypes {
			params[i] = t.String()
		}
		fmt.Fprintf(b, "%s | %s | %s\n", fn.Name, fn.RetType, strings.Join(params, ", "))
		if fn.Sub != nil {
			walkFuncs(fn.Sub, b)
		}
	}
}

func walkVars(s *Scope, b *strings.Builder) {
	for _, v := range s.Variables() {
		stars := strings.Repeat("*", v.Type.Pointer)
		fmt.Fprintf(b, "%s | %s | %s | %s\n", v.Name, s.Name, v.Type.Base, stars)
	}
	for _, key := range s.Entries.Keys() {
		entry, _ := s.Entries.Get(key)
		switch entry.Kind {
		case FuncEntry:
			if entry.Sub != nil {
				walkVars(entry.Sub, b)
			}
		case BlockEntry:
			walkVars(entry.Block, b)
		}
	}
}
