package file

import (
	stddwarf "debug/dwarf"
	"fmt"

	"github.com/pkg/errors"
	"github.com/vsoch/gosmeagle/pkg/debug/dwarf"
)

// TypeReader converts the standard library's debug/dwarf type tree into
// gosmeagle's own pkg/debug/dwarf tree, adding the one case the standard
// library doesn't parse: DW_TAG_reference_type. A TypeReader is created
// once per library's *dwarf.Data (see Open) and caches conversions by DWARF
// offset so self-referential structs convert to a single shared node
// instead of recursing forever.
type TypeReader struct {
	data  *stddwarf.Data
	cache map[stddwarf.Offset]dwarf.Type
}

// NewTypeReader builds a TypeReader over d.
func NewTypeReader(d *stddwarf.Data) *TypeReader {
	return &TypeReader{data: d, cache: map[stddwarf.Offset]dwarf.Type{}}
}

// Convert resolves the DWARF type at off into gosmeagle's Type tree.
func (r *TypeReader) Convert(off stddwarf.Offset) (dwarf.Type, error) {
	if off == 0 {
		return nil, nil
	}
	if cached, ok := r.cache[off]; ok {
		return cached, nil
	}
	t, err := r.data.Type(off)
	if err != nil {
		return nil, errors.Wrapf(err, "reading DWARF type at offset %v", off)
	}
	return r.convert(t)
}

func (r *TypeReader) convert(t stddwarf.Type) (dwarf.Type, error) {
	if t == nil {
		return nil, nil
	}
	off := t.Common().Offset
	if off != 0 {
		if cached, ok := r.cache[off]; ok {
			return cached, nil
		}
	}

	switch v := t.(type) {
	case *stddwarf.CharType:
		out := &dwarf.CharType{BasicType: basic(v.CommonType, v.BitSize)}
		r.cache[off] = out
		return out, nil
	case *stddwarf.UcharType:
		out := &dwarf.UcharType{BasicType: basic(v.CommonType, v.BitSize)}
		r.cache[off] = out
		return out, nil
	case *stddwarf.IntType:
		out := &dwarf.IntType{BasicType: basic(v.CommonType, v.BitSize)}
		r.cache[off] = out
		return out, nil
	case *stddwarf.UintType:
		out := &dwarf.UintType{BasicType: basic(v.CommonType, v.BitSize)}
		r.cache[off] = out
		return out, nil
	case *stddwarf.BoolType:
		out := &dwarf.BoolType{BasicType: basic(v.CommonType, v.BitSize)}
		r.cache[off] = out
		return out, nil
	case *stddwarf.FloatType:
		out := &dwarf.FloatType{BasicType: basic(v.CommonType, v.BitSize)}
		r.cache[off] = out
		return out, nil
	case *stddwarf.ComplexType:
		out := &dwarf.ComplexType{BasicType: basic(v.CommonType, v.BitSize)}
		r.cache[off] = out
		return out, nil
	case *stddwarf.AddrType:
		out := &dwarf.AddrType{BasicType: basic(v.CommonType, v.BitSize)}
		r.cache[off] = out
		return out, nil
	case *stddwarf.UnspecifiedType:
		out := &dwarf.UnspecifiedType{BasicType: basic(v.CommonType, 0)}
		r.cache[off] = out
		return out, nil

	case *stddwarf.PtrType:
		out := &dwarf.PtrType{CommonType: common(v.CommonType)}
		r.cache[off] = out
		pointee, err := r.convert(v.Type)
		if err != nil {
			return nil, errors.Wrap(err, "converting pointee")
		}
		out.Type = pointee
		return out, nil

	case *stddwarf.TypedefType:
		out := &dwarf.TypedefType{CommonType: common(v.CommonType)}
		r.cache[off] = out
		aliased, err := r.convert(v.Type)
		if err != nil {
			return nil, errors.Wrap(err, "converting typedef alias")
		}
		out.Type = aliased
		return out, nil

	case *stddwarf.QualType:
		out := &dwarf.QualType{CommonType: common(v.CommonType), Qual: v.Qual}
		r.cache[off] = out
		inner, err := r.convert(v.Type)
		if err != nil {
			return nil, errors.Wrap(err, "converting qualified type")
		}
		out.Type = inner
		return out, nil

	case *stddwarf.ArrayType:
		out := &dwarf.ArrayType{CommonType: common(v.CommonType), Count: v.Count}
		r.cache[off] = out
		elem, err := r.convert(v.Type)
		if err != nil {
			return nil, errors.Wrap(err, "converting array element type")
		}
		out.Type = elem
		return out, nil

	case *stddwarf.EnumType:
		out := &dwarf.EnumType{CommonType: common(v.CommonType)}
		r.cache[off] = out
		seen := map[string]bool{}
		for _, ev := range v.Val {
			// the input may redundantly report the same constant more
			// than once; de-duplicate by name and preserve order (spec §5).
			if seen[ev.Name] {
				continue
			}
			seen[ev.Name] = true
			out.EnumValue = append(out.EnumValue, &dwarf.EnumValue{Name: ev.Name, Val: ev.Val})
		}
		return out, nil

	case *stddwarf.StructType:
		kind := v.Kind
		if kind == "" {
			kind = "struct"
		}
		out := &dwarf.StructType{CommonType: common(v.CommonType), Kind: kind}
		r.cache[off] = out
		for _, f := range v.Field {
			ft, err := r.convert(f.Type)
			if err != nil {
				return nil, errors.Wrapf(err, "converting field %q of %q", f.Name, v.StructName)
			}
			out.Field = append(out.Field, &dwarf.StructField{
				Name: f.Name, Type: ft, ByteOffset: f.ByteOffset,
			})
		}
		return out, nil

	case *stddwarf.FuncType:
		out := &dwarf.FuncType{CommonType: common(v.CommonType)}
		r.cache[off] = out
		ret, err := r.convert(v.ReturnType)
		if err != nil {
			return nil, errors.Wrap(err, "converting function return type")
		}
		out.ReturnType = ret
		for _, pt := range v.ParamType {
			ct, err := r.convert(pt)
			if err != nil {
				return nil, errors.Wrap(err, "converting function parameter type")
			}
			out.ParamType = append(out.ParamType, ct)
		}
		return out, nil

	case *stddwarf.UnsupportedType:
		if v.Tag == stddwarf.TagReferenceType || v.Tag == stddwarf.TagRvalueReferenceType {
			referent, err := r.resolveReferenceReferent(off)
			if err != nil {
				return nil, errors.Wrap(err, "resolving reference referent")
			}
			out := &dwarf.ReferenceType{
				CommonType: common(v.CommonType),
				Type:       referent,
				IsRValue:   v.Tag == stddwarf.TagRvalueReferenceType,
			}
			r.cache[off] = out
			return out, nil
		}
		return nil, fmt.Errorf("unsupported DWARF tag %v for type %q", v.Tag, v.CommonType.Name)

	default:
		return nil, fmt.Errorf("unhandled DWARF type %T for %q", t, t.Common().Name)
	}
}

// resolveReferenceReferent re-reads the raw DIE at off to recover the
// DW_AT_type attribute the standard library's Type() drops for tags it
// doesn't understand (reference_type/rvalue_reference_type).
func (r *TypeReader) resolveReferenceReferent(off stddwarf.Offset) (dwarf.Type, error) {
	reader := r.data.Reader()
	reader.Seek(off)
	entry, err := reader.Next()
	if err != nil {
		return nil, errors.Wrap(err, "reading reference_type entry")
	}
	if entry == nil {
		return nil, fmt.Errorf("no DIE at offset %v", off)
	}
	typeOff, ok := entry.Val(stddwarf.AttrType).(stddwarf.Offset)
	if !ok {
		// A bare "T&" with no referent attribute is malformed DWARF; treat
		// it as a reference to void rather than erroring the whole symbol.
		return nil, nil
	}
	return r.Convert(typeOff)
}

func basic(c stddwarf.CommonType, bitSize int64) dwarf.BasicType {
	return dwarf.BasicType{CommonType: common(c), BitSize: bitSize}
}

func common(c stddwarf.CommonType) dwarf.CommonType {
	return dwarf.CommonType{Name: c.Name, ByteSize: c.ByteSize}
}
