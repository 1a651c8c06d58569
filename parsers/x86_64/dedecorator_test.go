package x86_64

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vsoch/gosmeagle/pkg/debug/dwarf"
)

func TestDedecoratePlainScalarHasNoIndirections(t *testing.T) {
	i := intType("int", 32)
	base, count := Dedecorate(i)
	assert.Same(t, i, base)
	assert.Zero(t, count)
}

func TestDedecoratePointerCountsOneIndirection(t *testing.T) {
	i := intType("int", 32)
	p := &dwarf.PtrType{CommonType: dwarf.CommonType{Name: "int *"}, Type: i}
	base, count := Dedecorate(p)
	assert.Same(t, i, base)
	assert.EqualValues(t, 1, count)
}

func TestDedecoratePointerToPointerCountsTwoIndirections(t *testing.T) {
	i := intType("int", 32)
	p1 := &dwarf.PtrType{CommonType: dwarf.CommonType{Name: "int *"}, Type: i}
	p2 := &dwarf.PtrType{CommonType: dwarf.CommonType{Name: "int **"}, Type: p1}
	base, count := Dedecorate(p2)
	assert.Same(t, i, base)
	assert.EqualValues(t, 2, count)
}

func TestDedecorateReferenceCountsAsOneIndirection(t *testing.T) {
	i := intType("int", 32)
	r := &dwarf.ReferenceType{CommonType: dwarf.CommonType{Name: "int &"}, Type: i}
	base, count := Dedecorate(r)
	assert.Same(t, i, base)
	assert.EqualValues(t, 1, count)
}

func TestDedecorateUnwrapsTypedefsAndQualifiersTransparently(t *testing.T) {
	i := intType("int", 32)
	q := &dwarf.QualType{CommonType: dwarf.CommonType{Name: "const int"}, Qual: "const", Type: i}
	td := &dwarf.TypedefType{CommonType: dwarf.CommonType{Name: "myint"}, Type: q}
	base, count := Dedecorate(td)
	assert.Same(t, i, base)
	assert.Zero(t, count)
}

func TestRemoveTypedefLeavesPointersIntact(t *testing.T) {
	i := intType("int", 32)
	p := &dwarf.PtrType{CommonType: dwarf.CommonType{Name: "int *"}, Type: i}
	td := &dwarf.TypedefType{CommonType: dwarf.CommonType{Name: "intptr"}, Type: p}
	result := RemoveTypedef(td)
	assert.Same(t, p, result)
}

func TestIsPrimitiveRecognizesScalarsAndEnums(t *testing.T) {
	assert.True(t, isPrimitive(intType("int", 32)))
	assert.True(t, isPrimitive(&dwarf.EnumType{CommonType: dwarf.CommonType{Name: "e"}}))
	assert.False(t, isPrimitive(&dwarf.StructType{CommonType: dwarf.CommonType{Name: "s"}, Kind: "struct"}))
}
