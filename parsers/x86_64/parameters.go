package x86_64

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/vsoch/gosmeagle/parsers/file"
	"github.com/vsoch/gosmeagle/pkg/debug/dwarf"
)

// EnumConstant is one {name, value} pair of an enum's constants, kept as
// a slice rather than a map so JSON encoding preserves the order the
// input declared them in (spec §5 ordering guarantee), after de-dup by
// name (done once, in parsers/file.TypeReader).
type EnumConstant struct {
	Name  string
	Value int64
}

// EnumConstants renders as a JSON object, in order, rather than the
// alphabetically-sorted object encoding/json would produce for a map.
type EnumConstants []EnumConstant

func (e EnumConstants) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range e {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatInt(c.Value, 10))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Parameter is the structured record the Parameter Builder produces for
// one function parameter, return value, call-site argument, or (when
// nested) pointer pointee / struct field (spec §3, §4.4). It is built
// once and never mutated afterward.
type Parameter struct {
	Name                string
	TypeName            string
	Category            string
	Direction           string
	Location            string
	Size                int64
	PointerIndirections int64
	Underlying          *Parameter
	Fields              []*Parameter
	Constants           EnumConstants
}

// MarshalJSON renders Parameter per the schema in spec §6: missing
// optional keys are omitted, empty-string core keys are omitted, and
// size/indirections are encoded as strings.
func (p *Parameter) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true

	write := func(key string, value interface{}) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(v)
		return nil
	}

	var err error
	if p.Name != "" {
		err = write("name", p.Name)
	}
	if err == nil && p.TypeName != "" {
		err = write("type", p.TypeName)
	}
	if err == nil && p.Category != "" {
		err = write("class", p.Category)
	}
	if err == nil && p.Location != "" {
		err = write("location", p.Location)
	}
	if err == nil && p.Direction != "" {
		err = write("direction", p.Direction)
	}
	if err == nil {
		err = write("size", strconv.FormatInt(p.Size, 10))
	}
	if err == nil && p.Category == "Pointer" {
		err = write("indirections", strconv.FormatInt(p.PointerIndirections, 10))
		if err == nil && p.Underlying != nil {
			err = write("underlying_type", p.Underlying)
		}
	}
	if err == nil && len(p.Fields) > 0 {
		err = write("fields", p.Fields)
	}
	if err == nil && len(p.Constants) > 0 {
		err = write("constants", p.Constants)
	}
	if err != nil {
		return nil, err
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// noneParameter is the sentinel emitted for a function with no return
// type (spec §4.4).
func noneParameter() *Parameter {
	return &Parameter{Name: "None", TypeName: "None", Category: "None"}
}

// BuildReturnValue builds the record for a function's return value (spec
// §4.4 Return mode). declared == nil means the function returns void; the
// corpus records this as the fixed "None" sentinel rather than omitting
// the key entirely.
func BuildReturnValue(declared dwarf.Type) (*Parameter, error) {
	if declared == nil {
		return noneParameter(), nil
	}

	base, ptrCount := Dedecorate(declared)
	seen := map[string]bool{}
	var ret ReturnAllocator

	if ptrCount > 0 {
		loc, err := ret.Allocate(INTEGER, NO_CLASS, 64)
		if err != nil {
			return nil, errors.Wrap(err, "allocating pointer return location")
		}
		underlying, err := buildComposite("", base, seen, declared)
		if err != nil {
			return nil, errors.Wrap(err, "building return pointee")
		}
		return &Parameter{
			TypeName:            file.TypeName(declared, declared.String()),
			Category:            "Pointer",
			Location:            loc,
			Size:                8,
			PointerIndirections: ptrCount,
			Underlying:          underlying,
		}, nil
	}

	param, err := buildComposite("", base, seen, declared)
	if err != nil {
		return nil, err
	}

	class := ClassifyType(base, 0)
	loc, err := ret.Allocate(class.Lo, class.Hi, param.Size*8)
	if err != nil {
		return nil, errors.Wrap(err, "allocating return location")
	}
	param.Location = loc
	return param, nil
}

// BuildFunctionParameters builds the records for every parameter of a
// function, left to right, sharing one RegisterAllocator so registers are
// consumed in declaration order (spec §5 ordering guarantee).
func BuildFunctionParameters(params []file.Param) ([]*Parameter, error) {
	alloc := NewRegisterAllocator()
	out := make([]*Parameter, 0, len(params))
	for _, p := range params {
		seen := map[string]bool{}
		param, err := BuildParameter(p.Name, p.Type, alloc, seen)
		if err != nil {
			return nil, errors.Wrapf(err, "building parameter %q", p.Name)
		}
		out = append(out, param)
	}
	return out, nil
}

// BuildParameter builds the record for one parameter (spec §4.4): it
// dedecorates the declared type, classifies and allocates a location for
// either the pointer itself or the base value, computes directionality,
// and recurses into pointees/fields. seen is the recursion guard for this
// one top-level parameter (spec §4.4, §9); it must not be reused across
// different parameters.
func BuildParameter(name string, declared dwarf.Type, alloc *RegisterAllocator, seen map[string]bool) (*Parameter, error) {
	base, ptrCount := Dedecorate(declared)
	direction := directionOf(declared, base)

	if ptrCount > 0 {
		loc, err := alloc.Allocate(INTEGER, NO_CLASS, 8)
		if err != nil {
			return nil, errors.Wrap(err, "allocating pointer location")
		}

		underlying, err := buildComposite("", base, seen, declared)
		if err != nil {
			return nil, errors.Wrap(err, "building pointee")
		}
		underlying.Location = ""

		return &Parameter{
			Name:                name,
			TypeName:            file.TypeName(declared, declared.String()),
			Category:            "Pointer",
			Direction:           direction,
			Location:            loc,
			Size:                8,
			PointerIndirections: ptrCount,
			Underlying:          underlying,
		}, nil
	}

	param, err := buildComposite(name, base, seen, declared)
	if err != nil {
		return nil, err
	}
	param.Direction = direction

	loc, err := allocateBase(alloc, base, param)
	if err != nil {
		return nil, errors.Wrapf(err, "allocating location for %q", name)
	}
	param.Location = loc
	return param, nil
}

// directionOf implements spec §4.4 step 5: "import" iff the parameter is
// passed by value, or the fully-dereferenced type is a scalar or enum;
// "unknown" otherwise (references are indirect for allocation but follow
// the same rule as pointers).
func directionOf(declared dwarf.Type, fullyDedecorated dwarf.Type) string {
	noTypedef := RemoveTypedef(declared)
	if !isPointerLike(noTypedef) {
		return "import"
	}
	if isPrimitive(fullyDedecorated) {
		return "import"
	}
	return "unknown"
}

// buildComposite classifies base and, for structs/unions and enums,
// recursively builds its fields/constants; arrays stay flat. It does not set Direction or
// Location -- those depend on whether the caller is building a top-level
// value or a pointer's pointee.
func buildComposite(name string, base dwarf.Type, seen map[string]bool, declaringType dwarf.Type) (*Parameter, error) {
	class := ClassifyType(base, 0)
	typeName := file.TypeName(base, declaringType.String())

	param := &Parameter{
		Name:     name,
		TypeName: typeName,
		Category: class.Name,
		Size:     base.Size(),
	}

	switch t := base.(type) {
	case *dwarf.StructType:
		if seen[typeName] {
			// Recursion guard: re-entering a type already being emitted
			// in this top-level parameter; emit the shell only.
			return param, nil
		}
		seen[typeName] = true
		for _, field := range t.Field {
			fieldParam, err := buildField(field.Name, field.Type, seen)
			if err != nil {
				return nil, errors.Wrapf(err, "building field %q of %q", field.Name, typeName)
			}
			param.Fields = append(param.Fields, fieldParam)
		}

	case *dwarf.EnumType:
		for _, ev := range t.EnumValue {
			param.Constants = append(param.Constants, EnumConstant{Name: ev.Name, Value: ev.Val})
		}
	}

	return param, nil
}

// buildField builds one struct/union field as a nested Parameter: its
// location is filled in by the caller once the parent aggregate's
// register/stack assignment is known.
func buildField(name string, declared dwarf.Type, seen map[string]bool) (*Parameter, error) {
	base, ptrCount := Dedecorate(declared)
	direction := directionOf(declared, base)

	if ptrCount > 0 {
		underlying, err := buildComposite("", base, seen, declared)
		if err != nil {
			return nil, err
		}
		return &Parameter{
			Name:                name,
			TypeName:            file.TypeName(declared, declared.String()),
			Category:            "Pointer",
			Direction:           direction,
			Size:                8,
			PointerIndirections: ptrCount,
			Underlying:          underlying,
		}, nil
	}

	param, err := buildComposite(name, base, seen, declared)
	if err != nil {
		return nil, err
	}
	param.Direction = direction
	return param, nil
}

// allocateBase allocates a location for a non-pointer value: structs and
// unions classified MEMORY or x87 take one framebase slot; the others go
// through field-by-field aggregate refinement, with the
// resulting per-field locations written back onto param.Fields; arrays
// are allocated as one flat unit by their whole-array classification;
// everything else is a plain scalar/enum allocation.
func allocateBase(alloc *RegisterAllocator, base dwarf.Type, param *Parameter) (string, error) {
	size := param.Size

	switch t := base.(type) {
	case *dwarf.StructType:
		class := ClassifyStruct(t)
		if class.Lo == MEMORY || class.Lo == X87 || class.Lo == COMPLEX_X87 || class.Hi == X87UP {
			loc := alloc.framebase.Next(size)
			for _, f := range param.Fields {
				f.Location = loc
			}
			return loc, nil
		}
		fields := aggregateFields(t)
		loc, fieldLocs, err := alloc.AllocateAggregate(size, fields)
		if err != nil {
			return "", err
		}
		for i, f := range param.Fields {
			if i < len(fieldLocs) {
				f.Location = fieldLocs[i]
			}
		}
		return loc, nil

	case *dwarf.ArrayType:
		// Arrays are a flat record classified as a whole by the §4.2
		// Array rule (element classification, or MEMORY past 64 bytes),
		// not an aggregate refined field-by-field -- no nested "fields"
		// (original_source/source/parser/x86_64/types.hpp array_t::toJson
		// emits the same flat shape as a scalar).
		class := ClassifyArray(t)
		return alloc.Allocate(class.Lo, class.Hi, size)

	default:
		class := ClassifyType(base, 0)
		return alloc.Allocate(class.Lo, class.Hi, size)
	}
}

// aggregateFields flattens a struct's direct fields into the offset/size/
// class triples AllocateAggregate needs.
func aggregateFields(t *dwarf.StructType) []AggregateField {
	fields := make([]AggregateField, 0, len(t.Field))
	for _, f := range t.Field {
		base, ptrCount := Dedecorate(f.Type)
		var lo RegisterClass
		if ptrCount > 0 {
			lo = INTEGER
		} else {
			lo = ClassifyType(base, 0).Lo
		}
		fields = append(fields, AggregateField{Offset: f.ByteOffset, Size: f.Type.Size(), Lo: lo})
	}
	return fields
}
