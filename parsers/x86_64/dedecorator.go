package x86_64

import "github.com/vsoch/gosmeagle/pkg/debug/dwarf"

// Dedecorate unwraps the outermost typedef, qualifier, pointer, and
// reference wrappers from t, returning the underlying non-decorated base
// type and the number of pointer-like indirections encountered along the
// way. References count as one level of indirection, same as pointers
// (spec §4.1); qualifiers (const/volatile) are transparent and never
// bump the count.
func Dedecorate(t dwarf.Type) (dwarf.Type, int64) {
	var count int64
	for {
		switch v := t.(type) {
		case *dwarf.TypedefType:
			t = v.Type
		case *dwarf.QualType:
			t = v.Type
		case *dwarf.PtrType:
			t = v.Type
			count++
		case *dwarf.ReferenceType:
			t = v.Type
			count++
		default:
			return t, count
		}
	}
}

// RemoveTypedef strips one or more outer typedef/qualifier layers only,
// leaving any pointer or reference wrapper untouched. Used by the
// directionality rule (spec §4.4 step 5), which needs to know whether
// the type *as declared* (before chasing pointers) is itself a pointer
// or reference.
func RemoveTypedef(t dwarf.Type) dwarf.Type {
	for {
		switch v := t.(type) {
		case *dwarf.TypedefType:
			t = v.Type
		case *dwarf.QualType:
			t = v.Type
		default:
			return t
		}
	}
}

// isPointerLike reports whether t (with typedefs/qualifiers already
// removed) is a pointer or reference.
func isPointerLike(t dwarf.Type) bool {
	switch t.(type) {
	case *dwarf.PtrType, *dwarf.ReferenceType:
		return true
	default:
		return false
	}
}

// isPrimitive reports whether t is a scalar or enum -- the two base-type
// shapes the directionality rule treats as "import" even behind a
// pointer (spec §4.4 step 5, §8 invariant).
func isPrimitive(t dwarf.Type) bool {
	switch t.(type) {
	case *dwarf.IntType, *dwarf.UintType, *dwarf.CharType, *dwarf.UcharType,
		*dwarf.BoolType, *dwarf.FloatType, *dwarf.ComplexType, *dwarf.AddrType,
		*dwarf.UnspecifiedType, *dwarf.BasicType, *dwarf.EnumType:
		return true
	default:
		return false
	}
}
