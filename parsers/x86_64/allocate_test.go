package x86_64

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAllocatorSingleInteger(t *testing.T) {
	// spec §8 scenario 1.
	a := NewRegisterAllocator()
	loc, err := a.Allocate(INTEGER, NO_CLASS, 4)
	require.NoError(t, err)
	assert.Equal(t, "%rdi", loc)
}

func TestRegisterAllocatorSevenIntegersSpillsToFramebase(t *testing.T) {
	// spec §8 scenario 2.
	a := NewRegisterAllocator()
	want := []string{"%rdi", "%rsi", "%rdx", "%rcx", "%r8", "%r9", "framebase+8"}
	for i, w := range want {
		loc, err := a.Allocate(INTEGER, NO_CLASS, 4)
		require.NoError(t, err)
		assert.Equal(t, w, loc, "parameter %d", i)
	}
	eighth, err := a.Allocate(INTEGER, NO_CLASS, 4)
	require.NoError(t, err)
	assert.Equal(t, "framebase+16", eighth)
}

func TestRegisterAllocatorSSEPool(t *testing.T) {
	a := NewRegisterAllocator()
	for i := 0; i < 8; i++ {
		loc, err := a.Allocate(SSE, SSEUP, 8)
		require.NoError(t, err)
		assert.NotEqual(t, "", loc)
	}
	loc, err := a.Allocate(SSE, SSEUP, 8)
	require.NoError(t, err)
	assert.Equal(t, "framebase+8", loc)
}

func TestRegisterAllocatorMemoryAlwaysFramebase(t *testing.T) {
	a := NewRegisterAllocator()
	loc, err := a.Allocate(MEMORY, NO_CLASS, 96)
	require.NoError(t, err)
	assert.Equal(t, "framebase+8", loc)
	next, err := a.Allocate(MEMORY, NO_CLASS, 8)
	require.NoError(t, err)
	assert.Equal(t, "framebase+104", next)
}

func TestRegisterAllocatorEmptyAggregateIsNone(t *testing.T) {
	a := NewRegisterAllocator()
	loc, err := a.Allocate(NO_CLASS, NO_CLASS, 0)
	require.NoError(t, err)
	assert.Equal(t, "none", loc)
}

func TestRegisterAllocatorNoClassNonEmptyIsError(t *testing.T) {
	a := NewRegisterAllocator()
	_, err := a.Allocate(NO_CLASS, NO_CLASS, 4)
	assert.Error(t, err)
}

func TestRegisterAllocatorX87AlwaysFramebase(t *testing.T) {
	a := NewRegisterAllocator()
	loc, err := a.Allocate(X87, X87UP, 16)
	require.NoError(t, err)
	assert.Equal(t, "framebase+8", loc)
}

func TestFramebaseOffsetsAreNonDecreasingMultiplesOfEight(t *testing.T) {
	f := NewFramebaseAllocator()
	sizes := []int64{4, 1, 8, 12, 96, 3}
	var offsets []int64
	for _, s := range sizes {
		loc := f.Next(s)
		var n int64
		_, err := fmt.Sscanf(loc, "framebase+%d", &n)
		require.NoError(t, err)
		offsets = append(offsets, n)
	}
	for i, n := range offsets {
		assert.Zero(t, n%8, "offset %d not a multiple of 8", i)
		if i > 0 {
			assert.GreaterOrEqual(t, n, offsets[i-1])
		}
	}
}

func TestAllocateAggregateSmallStructCoalesces(t *testing.T) {
	// spec §8 scenario 5: struct{int a; int b;} -> one eightbyte, "%rdi".
	a := NewRegisterAllocator()
	fields := []AggregateField{
		{Offset: 0, Size: 4, Lo: INTEGER},
		{Offset: 4, Size: 4, Lo: INTEGER},
	}
	loc, fieldLocs, err := a.AllocateAggregate(8, fields)
	require.NoError(t, err)
	assert.Equal(t, "%rdi", loc)
	require.Len(t, fieldLocs, 2)
	assert.Equal(t, "%rdi", fieldLocs[0])
	assert.Equal(t, "%rdi", fieldLocs[1])
}

func TestAllocateAggregateSpillsWhenRegistersExhausted(t *testing.T) {
	a := NewRegisterAllocator()
	// Exhaust all six integer registers first.
	for i := 0; i < 6; i++ {
		_, err := a.Allocate(INTEGER, NO_CLASS, 8)
		require.NoError(t, err)
	}
	fields := []AggregateField{{Offset: 0, Size: 8, Lo: INTEGER}}
	loc, fieldLocs, err := a.AllocateAggregate(8, fields)
	require.NoError(t, err)
	assert.Equal(t, "framebase+8", loc)
	assert.Equal(t, "framebase+8", fieldLocs[0])
}

func TestReturnAllocatorInt(t *testing.T) {
	// spec §8 scenario 7.
	var r ReturnAllocator
	loc, err := r.Allocate(INTEGER, NO_CLASS, 32)
	require.NoError(t, err)
	assert.Equal(t, "%rax", loc)
}

func TestReturnAllocator128BitIntegerAggregate(t *testing.T) {
	// spec §8 scenario 8.
	var r ReturnAllocator
	loc, err := r.Allocate(INTEGER, INTEGER, 128)
	require.NoError(t, err)
	assert.Equal(t, "%rax|%rdx", loc)
}

func TestReturnAllocatorMemoryEchoesRax(t *testing.T) {
	var r ReturnAllocator
	loc, err := r.Allocate(MEMORY, NO_CLASS, 256)
	require.NoError(t, err)
	assert.Equal(t, "%rax", loc)
}

func TestReturnAllocatorSSEUpPlaceholder(t *testing.T) {
	var r ReturnAllocator
	loc, err := r.Allocate(SSEUP, NO_CLASS, 64)
	require.NoError(t, err)
	assert.Equal(t, "SSEUP", loc)
}
