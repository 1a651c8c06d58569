// Package dwarf is a thin, renamed layer over the standard library's
// debug/dwarf type hierarchy. It exists because the stdlib package has no
// representation for DW_TAG_reference_type (C++ references): gosmeagle
// needs references recognized as an indirection, counted like pointers by
// the dedecorator and treated like pointers by the directionality rule
// (§4.4), so this package re-declares the same shape the stdlib uses and
// adds the one case it's missing.
//
// Everything here is a data description produced by a DWARF reader
// (parsers/file); this package does not itself read DWARF sections.
package dwarf

import "fmt"

// Type is the common interface implemented by every node in a type tree.
type Type interface {
	Common() *CommonType
	Size() int64
	String() string
}

// CommonType holds fields shared by every Type.
type CommonType struct {
	Name     string
	ByteSize int64
}

func (c *CommonType) Common() *CommonType { return c }
func (c *CommonType) Size() int64         { return c.ByteSize }
func (c *CommonType) String() string      { return c.Name }

// BasicType is the parent of every scalar kind below. The embedding Go
// type (IntType, FloatType, ...) together with IsUTF discriminates the
// scalar-classification predicates the ABI classifier reads
// (is_integral / is_UTF / is_floating_point / is_complex_float).
type BasicType struct {
	CommonType
	BitSize int64
	// IsUTF marks a character scalar encoded DW_ATE_UTF (char16_t,
	// char32_t, ...) rather than plain DW_ATE_signed_char/unsigned_char.
	IsUTF bool
}

// IntType is a signed integer scalar (DW_ATE_signed).
type IntType struct{ BasicType }

// UintType is an unsigned integer scalar (DW_ATE_unsigned).
type UintType struct{ BasicType }

// CharType is a signed character scalar (DW_ATE_signed_char).
type CharType struct{ BasicType }

// UcharType is an unsigned character scalar (DW_ATE_unsigned_char).
type UcharType struct{ BasicType }

// BoolType is a boolean scalar (DW_ATE_boolean).
type BoolType struct{ BasicType }

// FloatType is a floating-point scalar (DW_ATE_float).
type FloatType struct{ BasicType }

// ComplexType is a complex floating-point scalar (DW_ATE_complex_float).
type ComplexType struct{ BasicType }

// AddrType is a bare address scalar (DW_ATE_address).
type AddrType struct{ BasicType }

// UnspecifiedType covers DW_ATE_unspecified (e.g. plain "void" used as a
// scalar placeholder, not the same as a void pointee).
type UnspecifiedType struct{ BasicType }

// StructField describes one member of a struct/union/class.
type StructField struct {
	Name       string
	Type       Type
	ByteOffset int64
}

// StructType covers DW_TAG_structure_type, DW_TAG_union_type and
// DW_TAG_class_type; Kind distinguishes them ("struct", "union", "class").
type StructType struct {
	CommonType
	Kind  string
	Field []*StructField
}

func (t *StructType) String() string {
	if t.Name != "" {
		return fmt.Sprintf("%s %s", t.Kind, t.Name)
	}
	return fmt.Sprintf("%s {...}", t.Kind)
}

// ArrayType covers DW_TAG_array_type.
type ArrayType struct {
	CommonType
	Type  Type // element type
	Count int64
}

// EnumValue is one enumerator. The input may list the same name more than
// once; callers de-duplicate by name (spec §5 ordering guarantee).
type EnumValue struct {
	Name string
	Val  int64
}

// EnumType covers DW_TAG_enumeration_type.
type EnumType struct {
	CommonType
	EnumValue []*EnumValue
}

// FuncType covers DW_TAG_subroutine_type: a bare function type, which can
// only appear behind a pointer per the ABI (spec §4.2 Function rule).
type FuncType struct {
	CommonType
	ParamType  []Type
	ReturnType Type
}

// PtrType covers DW_TAG_pointer_type.
type PtrType struct {
	CommonType
	Type Type // pointee, nil for void*
}

func (t *PtrType) String() string {
	if t.Type == nil {
		return "void *"
	}
	return t.Type.String() + " *"
}

// ReferenceType covers DW_TAG_reference_type (and, with IsRValue set,
// DW_TAG_rvalue_reference_type). Not present in the standard library's
// debug/dwarf; this is the reason this package exists.
type ReferenceType struct {
	CommonType
	Type     Type // referent
	IsRValue bool
}

func (t *ReferenceType) String() string {
	if t.IsRValue {
		return t.Type.String() + " &&"
	}
	return t.Type.String() + " &"
}

// TypedefType covers DW_TAG_typedef.
type TypedefType struct {
	CommonType
	Type Type // aliased type
}

func (t *TypedefType) String() string { return t.Name }

// QualType covers DW_TAG_const_type / DW_TAG_volatile_type. Qualifiers do
// not participate in ABI classification; the dedecorator strips these
// exactly like typedefs (it treats any QualType as a transparent wrapper).
type QualType struct {
	CommonType
	Qual string // "const" or "volatile"
	Type Type
}

func (t *QualType) String() string { return t.Qual + " " + t.Type.String() }
