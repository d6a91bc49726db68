// Package codegen walks a lowered pkg/cfg.Program and emits MIPS-like
// assembly text, allocating registers from a fixed pool with no
// spilling (see InternalAllocator).
package codegen

import "fmt"

// IntRegs and FloatRegs are the fixed register pools available to
// allocation. Pinning the exact set up front (rather than treating the
// whole register file as fair game) lets the allocator fail
// predictably instead of silently clobbering something the frame
// layout or a caller relies on ($sp, $fp, $ra, $a0-$a3, $v0, $f0 are
// never handed out).
var IntRegs = []string{
	"$s0", "$s1", "$s2", "$s3", "$s4", "$s5", "$s6", "$s7",
	"$t0", "$t1", "$t2", "$t3", "$t4", "$t5", "$t6", "$t7", "$t8", "$t9",
}

var FloatRegs = []string{
	"$f2", "$f4", "$f6", "$f8", "$f10", "$f12", "$f14",
	"$f16", "$f18", "$f20", "$f22", "$f24", "$f26", "$f28", "$f30",
}

// InternalAllocator is raised when a function needs more live registers
// at once than its pool holds. Spilling to the stack would fix this but
// is out of scope: it's a signal that something pathological is being
// compiled, not a case worth the added bookkeeping.
type InternalAllocator struct {
	Pool string
}

func (e *InternalAllocator) Error() string {
	return fmt.Sprintf("out of %s registers: no spilling support", e.Pool)
}

// Allocator hands out registers from a fixed pool, first-free, and
// expects every Use to be matched by exactly one later Free.
type Allocator struct {
	pool string
	free []string
	used map[string]bool
}

// NewAllocator builds an Allocator over a copy of regs, so repeated
// calls (one per function) start from a clean pool.
func NewAllocator(pool string, regs []string) *Allocator {
	free := make([]string, len(regs))
	copy(free, regs)
	return &Allocator{pool: pool, free: free, used: map[string]bool{}}
}

// Use claims the next free register, or fails with InternalAllocator if
// the pool is exhausted.
func (a *Allocator) Use() (string, error) {
	if len(a.free) == 0 {
		return "", &InternalAllocator{Pool: a.pool}
	}
	reg := a.free[0]
	a.free = a.free[1:]
	a.used[reg] = true
	return reg, nil
}

// Free returns reg to the pool. Freeing a register not currently in use
// is a no-op, so releasing the same register twice never puts it in the
// pool twice.
func (a *Allocator) Free(reg string) {
	if !a.used[reg] {
		return
	}
	delete(a.used, reg)
	a.free = append(a.free, reg)
}
