// Package types implements the small closed type universe of the APL
// language: a base kind paired with a pointer level.
package types

import "strings"

// Base is one of the handful of scalar kinds APL programs can name.
type Base string

const (
	Int   Base = "int"
	Float Base = "float"
	Void  Base = "void"
	// Bool never appears in source, it's the result kind of comparisons
	// and logical operators.
	Bool Base = "bool"
)

// Type pairs a base kind with a pointer level (0 means "not a pointer").
type Type struct {
	Base    Base
	Pointer int
}

// Int32, Float64, VoidT and BoolT are the zero-pointer-level primitives.
var (
	Int32   = Type{Base: Int}
	Float64 = Type{Base: Float}
	VoidT   = Type{Base: Void}
	BoolT   = Type{Base: Bool}
)

// Make builds a Type from a base kind and pointer level.
func Make(base Base, pointer int) Type { return Type{Base: base, Pointer: pointer} }

// Deref returns the type one pointer level down. Callers must check
// IsPointer first.
func (t Type) Deref() Type { return Type{Base: t.Base, Pointer: t.Pointer - 1} }

// Addr returns the type one pointer level up.
func (t Type) Addr() Type { return Type{Base: t.Base, Pointer: t.Pointer + 1} }

// IsPointer reports whether t has at least one level of indirection.
func (t Type) IsPointer() bool { return t.Pointer > 0 }

// Equal reports whether two types denote the same base and pointer level.
func (t Type) Equal(other Type) bool { return t.Base == other.Base && t.Pointer == other.Pointer }

// Width returns the storage size in bytes this type occupies in a frame
// or in the .data section. Pointers are always word-sized regardless of
// the pointee; bool has no storage of its own (it only ever lives in a
// register as an intermediate value).
func (t Type) Width() int {
	if t.IsPointer() {
		return 4
	}
	switch t.Base {
	case Int:
		return 4
	case Float:
		return 8
	case Void, Bool:
		return 0
	default:
		return 0
	}
}

// String renders a type the way the source language spells it, e.g.
// "int", "float **".
func (t Type) String() string {
	if t.Pointer == 0 {
		return string(t.Base)
	}
	return string(t.Base) + " " + strings.Repeat("*", t.Pointer)
}
