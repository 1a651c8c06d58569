package x86_64

// A register class for AMD64 is defined on page 16 of the System V ABI pdf.

import (
	"strings"

	"github.com/vsoch/gosmeagle/pkg/debug/dwarf"
)

type RegisterClass int

const (
	INTEGER RegisterClass = iota // fits into a general purpose register
	SSE                          // fits into an SSE register
	SSEUP                        // ^.. passed/returned in the upper half of it
	X87                          // returned via the x87 FPU
	X87UP                        // ^
	COMPLEX_X87                  // returned via the x87 FPU
	NO_CLASS                     // initializer, used for padding and empty structs/unions
	MEMORY                       // passed and returned in memory via the stack
)

func (r RegisterClass) String() string {
	switch r {
	case INTEGER:
		return "INTEGER"
	case SSE:
		return "SSE"
	case SSEUP:
		return "SSEUP"
	case X87:
		return "X87"
	case X87UP:
		return "X87UP"
	case COMPLEX_X87:
		return "COMPLEX_X87"
	case NO_CLASS:
		return "NO_CLASS"
	case MEMORY:
		return "MEMORY"
	}
	return "UNKNOWN"
}

// Classification is the result of classifying one non-decorated type: the
// pair of eightbyte register classes it reduces to, plus a human readable
// category name used both for display and as the JSON "class" field.
type Classification struct {
	Lo                  RegisterClass
	Hi                  RegisterClass
	Name                string
	PointerIndirections int64
}

// ClassifyPointer classifies a pointer (or reference, or pointer chain).
// Its ABI class is always fixed to (INTEGER, NO_CLASS); this overrides
// whatever the pointee would classify to (spec §4.2 Pointer rule).
func ClassifyPointer(ptrCount int64) Classification {
	return Classification{Lo: INTEGER, Hi: NO_CLASS, Name: "Pointer", PointerIndirections: ptrCount}
}

// ClassifyArray classifies an array. Arrays over 64 bytes go to memory;
// otherwise the array takes on its element's classification, with the
// category relabeled "Array" (spec §4.2 Array rule).
func ClassifyArray(t *dwarf.ArrayType) Classification {
	if t.Size() > 64 {
		return Classification{Lo: MEMORY, Hi: NO_CLASS, Name: "Array"}
	}

	elemBase, elemPtrCount := Dedecorate(t.Type)
	elemClass := ClassifyType(elemBase, elemPtrCount)
	return Classification{Lo: elemClass.Lo, Hi: elemClass.Hi, Name: "Array"}
}

// ClassifyStruct classifies a struct, class, or union. Unions take a
// fixed classification (no field merge); structs and classes merge their
// fields per the ABI's merge/post-merge procedure (spec §4.2).
func ClassifyStruct(t *dwarf.StructType) Classification {
	size := t.Size()
	kind := categoryForKind(t.Kind)

	if kind == "Union" {
		if size > 64 {
			return Classification{Lo: MEMORY, Hi: NO_CLASS, Name: "Union"}
		}
		return Classification{Lo: INTEGER, Hi: NO_CLASS, Name: "Union"}
	}

	if size > 64 {
		return Classification{Lo: MEMORY, Hi: NO_CLASS, Name: kind}
	}

	lo, hi := NO_CLASS, NO_CLASS
	for _, field := range t.Field {
		fieldBase, fieldPtrCount := Dedecorate(field.Type)
		fieldClass := ClassifyType(fieldBase, fieldPtrCount)
		lo = merge(lo, fieldClass.Lo)
		hi = merge(hi, fieldClass.Hi)
	}

	postMerge(&lo, &hi, size)
	return Classification{Lo: lo, Hi: hi, Name: kind}
}

// categoryForKind maps a DWARF struct Kind ("struct", "union", "class")
// onto the closed set of category names the JSON schema allows -- "class"
// behaves identically to "struct" under the ABI, so both map to "Struct".
func categoryForKind(kind string) string {
	if strings.EqualFold(kind, "union") {
		return "Union"
	}
	return "Struct"
}

// merge combines two eightbyte classes per the ABI merge procedure
// (System V ABI, p.21).
func merge(originalReg RegisterClass, newReg RegisterClass) RegisterClass {
	// (a) If both classes are equal, this is the resulting class.
	if originalReg == newReg {
		return originalReg
	}

	// (b) If one of the classes is NO_CLASS, the resulting class is the other.
	if originalReg == NO_CLASS {
		return newReg
	}
	if newReg == NO_CLASS {
		return originalReg
	}

	// (c) If one of the classes is MEMORY, the result is the MEMORY class.
	if newReg == MEMORY || originalReg == MEMORY {
		return MEMORY
	}

	// (d) If one of the classes is INTEGER, the result is INTEGER.
	if newReg == INTEGER || originalReg == INTEGER {
		return INTEGER
	}

	// (e) If one of the classes is X87, X87UP, or COMPLEX_X87, MEMORY is used.
	if newReg == X87 || newReg == X87UP || newReg == COMPLEX_X87 {
		return MEMORY
	}
	if originalReg == X87 || originalReg == X87UP || originalReg == COMPLEX_X87 {
		return MEMORY
	}

	// (f) Otherwise class SSE is used.
	return SSE
}

// postMerge is the ABI's post-merge cleanup step (System V ABI, p.22
// point 5), applied to the combined (lo, hi) once all fields have merged.
func postMerge(lo *RegisterClass, hi *RegisterClass, size int64) {
	// (a) If one of the classes is MEMORY, the whole argument is passed in memory.
	if *lo == MEMORY || *hi == MEMORY {
		*lo = MEMORY
		*hi = MEMORY
	}

	// (b) If X87UP is not preceded by X87, the whole argument is passed in memory.
	if *hi == X87UP && *lo != X87 {
		*lo = MEMORY
		*hi = MEMORY
	}

	// (c) If the aggregate exceeds two eightbytes (16 bytes) and the first
	// eightbyte isn't SSE, or the second isn't SSEUP, pass in memory.
	if size > 16 && (*lo != SSE || *hi != SSEUP) {
		*lo = MEMORY
		*hi = MEMORY
	}

	// (d) If SSEUP is not preceded by SSE or SSEUP, it is converted to SSE.
	if *hi == SSEUP && (*lo != SSE && *lo != SSEUP) {
		*hi = SSE
	}
}

// ClassifyFunction classifies a bare function type. A function type can
// only ever be encountered behind a pointer; ptrCount>0 defers to
// ClassifyPointer, otherwise it has no register class of its own.
func ClassifyFunction(ptrCount int64) Classification {
	if ptrCount > 0 {
		return ClassifyPointer(ptrCount)
	}
	return Classification{Lo: NO_CLASS, Hi: NO_CLASS, Name: "Function"}
}

// ClassifyEnum classifies an enum: always a single INTEGER eightbyte.
func ClassifyEnum() Classification {
	return Classification{Lo: INTEGER, Hi: NO_CLASS, Name: "Enum"}
}

// ClassifyType is the top level dispatcher: given a non-decorated base
// type and the pointer-indirection count dedecorate() found along the
// way to it, produce its Classification.
func ClassifyType(base dwarf.Type, ptrCount int64) Classification {
	if ptrCount > 0 {
		return ClassifyPointer(ptrCount)
	}

	switch t := base.(type) {
	case *dwarf.FuncType:
		return ClassifyFunction(ptrCount)
	case *dwarf.ArrayType:
		return ClassifyArray(t)
	case *dwarf.EnumType:
		return ClassifyEnum()
	case *dwarf.StructType:
		return ClassifyStruct(t)
	case *dwarf.IntType, *dwarf.UintType, *dwarf.CharType, *dwarf.UcharType,
		*dwarf.BoolType, *dwarf.FloatType, *dwarf.ComplexType, *dwarf.AddrType,
		*dwarf.UnspecifiedType, *dwarf.BasicType:
		return ClassifyBasic(base)
	default:
		return Classification{Lo: NO_CLASS, Hi: NO_CLASS, Name: "Unknown"}
	}
}

// ClassifyBasic classifies a scalar using its byte size and the
// is_integral / is_UTF / is_floating_point / is_complex_float predicates
// (spec §4.2 Scalars table) -- never by matching the type's name, which
// cannot tell __int128 from int and breaks on user typedef names (spec
// §9 design note).
func ClassifyBasic(base dwarf.Type) Classification {
	sizeBits := base.Size() * 8
	isIntegral, isUTF, isFloating, isComplex := scalarProperties(base)

	if isComplex {
		if sizeBits == 128 {
			// x87 `complex long double`.
			return Classification{Lo: COMPLEX_X87, Hi: NO_CLASS, Name: "CplxFloat"}
		}
		// Correct model is struct{T real; T imag;}, not yet handled; see
		// the open question preserved from the original implementation.
		return Classification{Lo: MEMORY, Hi: NO_CLASS, Name: "CplxFloat"}
	}

	if isIntegral || isUTF {
		switch {
		case sizeBits > 128:
			return Classification{Lo: SSE, Hi: SSEUP, Name: "IntegerVec"}
		case sizeBits == 128:
			// __int128 should be two INTEGER eightbytes; preserved as-is
			// per the open question in the original implementation.
			return Classification{Lo: MEMORY, Hi: NO_CLASS, Name: "Integer"}
		default:
			return Classification{Lo: INTEGER, Hi: NO_CLASS, Name: "Integer"}
		}
	}

	if isFloating {
		switch {
		case sizeBits <= 64:
			return Classification{Lo: SSE, Hi: SSEUP, Name: "Float"}
		case sizeBits == 128:
			// x87 `long double`, or a 128-bit vector type we can't
			// distinguish without more than byte size to go on.
			return Classification{Lo: X87, Hi: X87UP, Name: "Float"}
		default:
			return Classification{Lo: SSE, Hi: SSEUP, Name: "FloatVec"}
		}
	}

	return Classification{Lo: NO_CLASS, Hi: NO_CLASS, Name: "Unknown"}
}

// scalarProperties derives the ABI-relevant scalar predicates from a
// DWARF base type's Go shape.
func scalarProperties(t dwarf.Type) (isIntegral, isUTF, isFloating, isComplex bool) {
	switch v := t.(type) {
	case *dwarf.IntType, *dwarf.UintType, *dwarf.BoolType, *dwarf.AddrType,
		*dwarf.UnspecifiedType, *dwarf.BasicType:
		isIntegral = true
	case *dwarf.CharType:
		if v.IsUTF {
			isUTF = true
		} else {
			isIntegral = true
		}
	case *dwarf.UcharType:
		if v.IsUTF {
			isUTF = true
		} else {
			isIntegral = true
		}
	case *dwarf.FloatType:
		isFloating = true
	case *dwarf.ComplexType:
		isFloating = true
		isComplex = true
	}
	return
}
