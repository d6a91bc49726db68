package types_test

import (
	"testing"

	"aplc.dev/aplc/pkg/types"
)

func TestWidth(t *testing.T) {
	test := func(name string, ty types.Type, want int) {
		t.Run(name, func(t *testing.T) {
			if got := ty.Width(); got != want {
				t.Errorf("Width() = %d, want %d", got, want)
			}
		})
	}

	test("int", types.Int32, 4)
	test("float", types.Float64, 8)
	test("void", types.VoidT, 0)
	test("bool", types.BoolT, 0)
	test("pointer to int", types.Make(types.Int, 1), 4)
	test("pointer to float", types.Make(types.Float, 1), 4)
	test("pointer to pointer to int", types.Make(types.Int, 2), 4)
}

func TestEqual(t *testing.T) {
	if !types.Int32.Equal(types.Make(types.Int, 0)) {
		t.Errorf("expected int32 to equal a zero-level int")
	}
	if types.Int32.Equal(types.Float64) {
		t.Errorf("expected int and float to differ")
	}
	if types.Make(types.Int, 1).Equal(types.Make(types.Int, 2)) {
		t.Errorf("expected different pointer levels to differ")
	}
}

func TestDerefAddr(t *testing.T) {
	ptr := types.Make(types.Int, 2)
	if got := ptr.Deref(); !got.Equal(types.Make(types.Int, 1)) {
		t.Errorf("Deref() = %v, want int *", got)
	}
	if got := ptr.Addr(); !got.Equal(types.Make(types.Int, 3)) {
		t.Errorf("Addr() = %v, want int ***", got)
	}
}

func TestString(t *testing.T) {
	test := func(ty types.Type, want string) {
		if got := ty.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}

	test(types.Int32, "int")
	test(types.Make(types.Float, 2), "float **")
}
