package x86_64

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// FramebaseAllocator hands out monotonically increasing, 8-byte aligned
// stack slots relative to the callee's frame base (spec §4.3).
type FramebaseAllocator struct {
	current int64
}

// NewFramebaseAllocator starts a new stack cursor at offset 8, the first
// slot above the return address.
func NewFramebaseAllocator() *FramebaseAllocator {
	return &FramebaseAllocator{current: 8}
}

// Next returns the location string for a size-byte value at the current
// offset, then advances the cursor to the next multiple of 8 at or above
// current+size (minimum step of 8 bytes).
func (f *FramebaseAllocator) Next(size int64) string {
	loc := fmt.Sprintf("framebase+%d", f.current)
	step := ((size + 7) / 8) * 8
	if step < 8 {
		step = 8
	}
	f.current += step
	return loc
}

// integerRegisters and sseRegisters are the System V AMD64 argument pools,
// head-to-tail (spec §4.3).
var integerRegisters = []string{"%rdi", "%rsi", "%rdx", "%rcx", "%r8", "%r9"}
var sseRegisters = []string{"%xmm0", "%xmm1", "%xmm2", "%xmm3", "%xmm4", "%xmm5", "%xmm6", "%xmm7"}

// RegisterAllocator is the stateful argument-mode allocator: a pool of
// integer registers, a pool of SSE registers, and an embedded framebase
// cursor. One is constructed fresh per function's parameter list (spec §3
// Allocator state, §5: "created fresh for each function's parameters").
type RegisterAllocator struct {
	intRegs   []string
	sseRegs   []string
	framebase *FramebaseAllocator
}

// NewRegisterAllocator returns a RegisterAllocator with full register
// pools and a framebase cursor starting at 8.
func NewRegisterAllocator() *RegisterAllocator {
	intRegs := make([]string, len(integerRegisters))
	copy(intRegs, integerRegisters)
	sseRegs := make([]string, len(sseRegisters))
	copy(sseRegs, sseRegisters)
	return &RegisterAllocator{
		intRegs:   intRegs,
		sseRegs:   sseRegs,
		framebase: NewFramebaseAllocator(),
	}
}

func (a *RegisterAllocator) popInt() (string, bool) {
	if len(a.intRegs) == 0 {
		return "", false
	}
	r := a.intRegs[0]
	a.intRegs = a.intRegs[1:]
	return r, true
}

func (a *RegisterAllocator) popSSE() (string, bool) {
	if len(a.sseRegs) == 0 {
		return "", false
	}
	r := a.sseRegs[0]
	a.sseRegs = a.sseRegs[1:]
	return r, true
}

// Allocate implements the argument-mode decision table (spec §4.3) for a
// single scalar/pointer/enum value classified to (lo, hi). size is in
// bytes.
func (a *RegisterAllocator) Allocate(lo, hi RegisterClass, size int64) (string, error) {
	switch {
	case lo == NO_CLASS && size == 0:
		// An empty aggregate occupies no storage.
		return "none", nil
	case lo == NO_CLASS:
		return "", errors.Errorf("can't allocate {NO_CLASS, %s}", hi)
	case lo == MEMORY:
		return a.framebase.Next(size), nil
	case lo == INTEGER:
		if r, ok := a.popInt(); ok {
			return r, nil
		}
		return a.framebase.Next(size), nil
	case lo == SSE:
		// When hi == SSEUP, the value's upper half rides along in the
		// same vector register; no second register is consumed.
		if r, ok := a.popSSE(); ok {
			return r, nil
		}
		return a.framebase.Next(size), nil
	case lo == X87 || lo == COMPLEX_X87 || hi == X87UP:
		return a.framebase.Next(size), nil
	default:
		return "", errors.Errorf("can't allocate {%s, %s}", lo, hi)
	}
}

// AggregateField describes one member of a struct/union/array for the
// purpose of aggregate refinement: its byte offset within the aggregate,
// its byte size, and the register class its own value reduces to.
type AggregateField struct {
	Offset int64
	Size   int64
	Lo     RegisterClass
}

// AllocateAggregate implements the ABI's aggregate refinement rule (spec
// §4.3): it buckets fields into eightbytes by offset, decides whether the
// whole aggregate fits in the remaining registers, and either spills it
// as one framebase slot or hands back one register per eightbyte,
// coalescing fields that share an eightbyte onto the same register.
//
// It returns the aggregate's own location string (registers joined by
// '|', or a single framebase slot) and, parallel to fields, the location
// assigned to each individual field.
func (a *RegisterAllocator) AllocateAggregate(totalSize int64, fields []AggregateField) (string, []string, error) {
	if len(fields) == 0 {
		return "none", nil, nil
	}

	type eightbyte struct {
		lo  RegisterClass
		reg string
	}

	buckets := map[int64]*eightbyte{}
	var order []int64
	fieldBucket := make([]int64, len(fields))

	for i, f := range fields {
		idx := f.Offset / 8
		fieldBucket[i] = idx
		eb, ok := buckets[idx]
		if !ok {
			eb = &eightbyte{lo: NO_CLASS}
			buckets[idx] = eb
			order = append(order, idx)
		}
		eb.lo = merge(eb.lo, f.Lo)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	availInt, availSSE := len(a.intRegs), len(a.sseRegs)
	intNeeded, sseNeeded := 0, 0
	for _, idx := range order {
		switch buckets[idx].lo {
		case INTEGER:
			intNeeded++
		case SSE:
			sseNeeded++
		default:
			// MEMORY- and x87-classed aggregates are placed on the stack
			// by allocateBase before they get here; NO_CLASS eightbytes
			// need nothing.
		}
	}

	if intNeeded > availInt || sseNeeded > availSSE || intNeeded+sseNeeded > availInt+availSSE {
		loc := a.framebase.Next(totalSize)
		locations := make([]string, len(fields))
		for i := range locations {
			locations[i] = loc
		}
		return loc, locations, nil
	}

	var parts []string
	for _, idx := range order {
		eb := buckets[idx]
		var reg string
		var ok bool
		switch eb.lo {
		case INTEGER:
			reg, ok = a.popInt()
		case SSE:
			reg, ok = a.popSSE()
		default:
			continue
		}
		if !ok {
			return "", nil, errors.New("aggregate register accounting mismatch")
		}
		eb.reg = reg
		parts = append(parts, reg)
	}

	locations := make([]string, len(fields))
	for i := range fields {
		locations[i] = buckets[fieldBucket[i]].reg
	}

	return strings.Join(parts, "|"), locations, nil
}

// ReturnAllocator implements the return-value decision table (spec §4.3
// Return mode). Unlike RegisterAllocator it has no pool state: a return
// value is allocated in a single call with fixed registers.
type ReturnAllocator struct{}

// Allocate returns the location string for a return value classified to
// (lo, hi) with the given bit size.
func (ReturnAllocator) Allocate(lo, hi RegisterClass, sizeBits int64) (string, error) {
	switch lo {
	case MEMORY:
		// The caller's hidden first argument holds the destination
		// address; %rax echoes it back on return.
		return "%rax", nil
	case INTEGER:
		if sizeBits > 64 {
			return "%rax|%rdx", nil
		}
		return "%rax", nil
	case SSE:
		if sizeBits > 64 {
			return "%xmm0|%xmm1", nil
		}
		return "%xmm0", nil
	case SSEUP:
		// Placeholder: the correct behavior is "upper half of the last
		// vector register used" (spec §9 open question); preserved as a
		// literal sentinel rather than guessed at.
		return "SSEUP", nil
	case X87, X87UP:
		return "%st0", nil
	case COMPLEX_X87:
		return "%st0|%st1", nil
	default:
		return "", errors.Errorf("can't allocate return value of class %s", lo)
	}
}
