// Package x86_64 implements the System V AMD64 ABI classification and
// register-allocation engine: given the DWARF type information a library
// exposes for a function, variable, or call site, it produces the
// Parameter records describing where each value lives on entry to (or
// exit from) a call (spec §4).
package x86_64

import (
	"github.com/pkg/errors"
	"github.com/vsoch/gosmeagle/parsers/file"
)

// Function is the ABI-annotated record for one exported function: its
// parameters (in declaration order, sharing one RegisterAllocator) and
// its return value.
type Function struct {
	Name          string
	DemangledName string
	Parameters    []*Parameter
	Return        *Parameter
}

// Variable is the ABI-annotated record for one exported global. Globals
// have no register allocation of their own (they live at a fixed
// address); only their type is classified.
type Variable struct {
	Name  string
	Value *Parameter
}

// CallSite is the ABI-annotated record for one external call a library
// makes. When DWARF has no prototype for it, it has no parameters and a
// "None" return value.
type CallSite struct {
	Name       string
	Parameters []*Parameter
	Return     *Parameter
}

// Inline is the ABI-annotated record for a DW_AT_inline subprogram: it
// has no call-site registers of its own, just a classified type.
type Inline struct {
	Name  string
	Value *Parameter
}

// BuildFunction builds the full ABI record for a function symbol (spec
// §4.5). A failure to allocate any one parameter or the return value is
// fatal to this function only -- callers skip it and continue with the
// rest of the library (spec §7 kind 2).
func BuildFunction(sym *file.FunctionSymbol) (*Function, error) {
	params, err := BuildFunctionParameters(sym.Params)
	if err != nil {
		return nil, errors.Wrapf(err, "function %q", sym.Name)
	}

	ret, err := BuildReturnValue(sym.ReturnType)
	if err != nil {
		return nil, errors.Wrapf(err, "function %q return value", sym.Name)
	}

	return &Function{
		Name:          sym.Name,
		DemangledName: sym.DemangledName,
		Parameters:    params,
		Return:        ret,
	}, nil
}

// BuildVariable builds the ABI record for a global variable (spec §4.5):
// its type is classified but no register or stack location is allocated,
// so the record's location is empty. Directionality
// is never computed for globals -- there is no caller/callee boundary to
// reason about, so the record always reports an empty direction.
func BuildVariable(sym *file.VariableSymbol) (*Variable, error) {
	seen := map[string]bool{}
	base, ptrCount := Dedecorate(sym.Type)

	if ptrCount > 0 {
		underlying, err := buildComposite("", base, seen, sym.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "variable %q", sym.Name)
		}
		return &Variable{
			Name: sym.Name,
			Value: &Parameter{
				TypeName:            file.TypeName(sym.Type, sym.Type.String()),
				Category:            "Pointer",
				Size:                8,
				PointerIndirections: ptrCount,
				Underlying:          underlying,
			},
		}, nil
	}

	param, err := buildComposite("", base, seen, sym.Type)
	if err != nil {
		return nil, errors.Wrapf(err, "variable %q", sym.Name)
	}
	return &Variable{Name: sym.Name, Value: param}, nil
}

// BuildCallSite builds the ABI record for one external call (spec §4.5):
// identical machinery to BuildFunction, over the synthesized param_iN
// parameter list resolveCallSites produced.
func BuildCallSite(site *file.CallSite) (*CallSite, error) {
	params, err := BuildFunctionParameters(site.Params)
	if err != nil {
		return nil, errors.Wrapf(err, "call site %q", site.Name)
	}

	ret, err := BuildReturnValue(site.ReturnType)
	if err != nil {
		return nil, errors.Wrapf(err, "call site %q return value", site.Name)
	}

	return &CallSite{Name: site.Name, Parameters: params, Return: ret}, nil
}

// BuildInline builds the ABI record for an inlined subprogram: just its
// classified type, since inlined code has no call boundary of its own.
func BuildInline(fn *file.InlineFunction) (*Inline, error) {
	if fn.Type == nil {
		return &Inline{Name: fn.Name, Value: noneParameter()}, nil
	}

	seen := map[string]bool{}
	base, _ := Dedecorate(fn.Type)
	param, err := buildComposite("", base, seen, fn.Type)
	if err != nil {
		return nil, errors.Wrapf(err, "inline %q", fn.Name)
	}
	return &Inline{Name: fn.Name, Value: param}, nil
}
