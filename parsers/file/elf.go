package file

import (
	stddwarf "debug/dwarf"
	"debug/elf"
	"fmt"

	"github.com/ianlancetaylor/demangle"
	"github.com/pkg/errors"
	"github.com/vsoch/gosmeagle/pkg/debug/dwarf"
)

// Param is one parameter of a function or call-site prototype as read off
// a DWARF subprogram DIE: a name (synthesized for call-sites, per spec
// §4.5) paired with its declared type.
type Param struct {
	Name string
	Type dwarf.Type
}

// FunctionSymbol is a library-exported function: its mangled name, its
// ordered parameter list, and its return type (nil for void).
type FunctionSymbol struct {
	Name          string
	DemangledName string
	Params        []Param
	ReturnType    dwarf.Type
}

// VariableSymbol is a library-exported global variable.
type VariableSymbol struct {
	Name string
	Type dwarf.Type
	Size int64
}

// CallSite is an external function referenced from inside the library
// (resolved through the PLT/GOT), annotated with whatever prototype DWARF
// could recover for it; with none, Params is empty and ReturnType nil.
type CallSite struct {
	Name       string
	Params     []Param
	ReturnType dwarf.Type
}

// InlineFunction is a subprogram DWARF reports as DW_AT_inline; it has no
// dynamic symbol table entry, so the driver surfaces it separately.
type InlineFunction struct {
	Name string
	Type dwarf.Type
}

// Library is an opened shared object ready to be walked for symbols.
type Library struct {
	Path string

	elf    *elf.File
	dwarf  *stddwarf.Data
	reader *TypeReader

	Functions []*FunctionSymbol
	Variables []*VariableSymbol
	CallSites []*CallSite
	Inlines   []*InlineFunction
}

// Architecture returns the ELF machine architecture as a GNU-style
// string ("x86_64", "aarch64", "ppc64", ...). Drivers compare this
// against the single architecture the x86_64 parser supports (spec §4.5,
// §7 kind 1): anything else is acknowledged and skipped, never fatal to
// the whole run.
func (l *Library) Architecture() string {
	switch l.elf.Machine {
	case elf.EM_X86_64:
		return "x86_64"
	case elf.EM_AARCH64:
		return "aarch64"
	case elf.EM_PPC64:
		return "ppc64"
	default:
		return l.elf.Machine.String()
	}
}

// Open reads the ELF and DWARF data for path without yet walking symbols.
func Open(path string) (*Library, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening ELF file %q", path)
	}

	d, err := f.DWARF()
	if err != nil {
		return nil, errors.Wrapf(err, "reading DWARF data from %q", path)
	}

	return &Library{
		Path:   path,
		elf:    f,
		dwarf:  d,
		reader: NewTypeReader(d),
	}, nil
}

// Close releases the underlying file handle.
func (l *Library) Close() error {
	return l.elf.Close()
}

// subprogram is what we recover about a DW_TAG_subprogram DIE while
// walking the compile units once.
type subprogram struct {
	name       string
	params     []Param
	returnType dwarf.Type
	isInline   bool
	isExternal bool
}

// Walk populates Functions, Variables, CallSites and Inlines by cross
// referencing the dynamic symbol table against DWARF subprogram and
// variable DIEs. Symbols with no DWARF prototype are skipped without a
// log line; this mirrors original_source/source/corpora.cpp, which
// only emits entries it can fully type.
func (l *Library) Walk() error {
	subprograms, variables, err := l.readDebugInfo()
	if err != nil {
		return errors.Wrap(err, "reading debug info")
	}

	syms, err := l.elf.DynamicSymbols()
	if err != nil {
		return errors.Wrap(err, "reading dynamic symbols")
	}

	for _, sym := range syms {
		if elf.ST_BIND(sym.Info) != elf.STB_GLOBAL && elf.ST_BIND(sym.Info) != elf.STB_WEAK {
			continue
		}
		switch elf.ST_TYPE(sym.Info) {
		case elf.STT_FUNC:
			sp, ok := subprograms[sym.Name]
			if !ok {
				continue
			}
			l.Functions = append(l.Functions, &FunctionSymbol{
				Name:          sym.Name,
				DemangledName: demangleName(sym.Name),
				Params:        sp.params,
				ReturnType:    sp.returnType,
			})
		case elf.STT_OBJECT:
			vt, ok := variables[sym.Name]
			if !ok {
				continue
			}
			l.Variables = append(l.Variables, &VariableSymbol{
				Name: sym.Name,
				Type: vt,
				Size: int64(sym.Size),
			})
		}
	}

	for _, sp := range subprograms {
		if sp.isInline {
			l.Inlines = append(l.Inlines, &InlineFunction{Name: sp.name, Type: sp.returnType})
		}
	}

	callSites, err := l.resolveCallSites(subprograms)
	if err != nil {
		return errors.Wrap(err, "resolving call sites")
	}
	l.CallSites = callSites

	return nil
}

// readDebugInfo walks every compile unit once, collecting subprogram and
// top-level variable DIEs keyed by name.
func (l *Library) readDebugInfo() (map[string]*subprogram, map[string]dwarf.Type, error) {
	subprograms := map[string]*subprogram{}
	variables := map[string]dwarf.Type{}

	reader := l.dwarf.Reader()
	for {
		entry, err := reader.Next()
		if err != nil {
			return nil, nil, errors.Wrap(err, "reading DWARF entry")
		}
		if entry == nil {
			break
		}

		switch entry.Tag {
		case stddwarf.TagSubprogram:
			sp, err := l.readSubprogram(reader, entry)
			if err != nil {
				return nil, nil, err
			}
			if sp != nil {
				subprograms[sp.name] = sp
			}
		case stddwarf.TagVariable:
			name, _ := entry.Val(stddwarf.AttrName).(string)
			if name == "" {
				continue
			}
			typeOff, ok := entry.Val(stddwarf.AttrType).(stddwarf.Offset)
			if !ok {
				continue
			}
			t, err := l.reader.Convert(typeOff)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "converting type for variable %q", name)
			}
			variables[name] = t
		}
	}

	return subprograms, variables, nil
}

func (l *Library) readSubprogram(reader *stddwarf.Reader, entry *stddwarf.Entry) (*subprogram, error) {
	name, _ := entry.Val(stddwarf.AttrName).(string)
	if name == "" {
		// Anonymous/compiler-generated subprograms carry no linkable name.
		reader.SkipChildren()
		return nil, nil
	}

	sp := &subprogram{name: name}
	if _, ok := entry.Val(stddwarf.AttrInline).(int64); ok {
		sp.isInline = true
	}
	if external, ok := entry.Val(stddwarf.AttrExternal).(bool); ok {
		sp.isExternal = external
	}

	if retOff, ok := entry.Val(stddwarf.AttrType).(stddwarf.Offset); ok {
		ret, err := l.reader.Convert(retOff)
		if err != nil {
			return nil, errors.Wrapf(err, "converting return type for %q", name)
		}
		sp.returnType = ret
	}

	if !entry.Children {
		return sp, nil
	}

	for {
		child, err := reader.Next()
		if err != nil {
			return nil, errors.Wrap(err, "reading subprogram children")
		}
		if child == nil || child.Tag == 0 {
			break
		}
		if child.Tag == stddwarf.TagFormalParameter {
			pname, _ := child.Val(stddwarf.AttrName).(string)
			if pTypeOff, ok := child.Val(stddwarf.AttrType).(stddwarf.Offset); ok {
				pt, err := l.reader.Convert(pTypeOff)
				if err != nil {
					return nil, errors.Wrapf(err, "converting parameter %q of %q", pname, name)
				}
				sp.params = append(sp.params, Param{Name: pname, Type: pt})
			}
		}
		if child.Children {
			reader.SkipChildren()
		}
	}

	return sp, nil
}

// resolveCallSites walks the library's undefined dynamic symbols
// (elf.File.ImportedSymbols: symbols it uses but does not define; no
// relocations are read) and attaches whatever DWARF prototype is
// available, synthesizing parameter names param_i0, param_i1, ... per
// spec §4.5.
func (l *Library) resolveCallSites(subprograms map[string]*subprogram) ([]*CallSite, error) {
	imported, err := l.elf.ImportedSymbols()
	if err != nil {
		// A failure to read the imported symbols yields no call sites;
		// it is not fatal to the rest of the analysis.
		return nil, nil
	}

	seen := map[string]bool{}
	var sites []*CallSite
	for _, sym := range imported {
		if sym.Name == "" || seen[sym.Name] {
			continue
		}
		seen[sym.Name] = true

		site := &CallSite{Name: sym.Name}
		if sp, ok := subprograms[sym.Name]; ok {
			site.ReturnType = sp.returnType
			for i, p := range sp.params {
				site.Params = append(site.Params, Param{
					Name: fmt.Sprintf("param_i%d", i),
					Type: p.Type,
				})
			}
		}
		sites = append(sites, site)
	}
	return sites, nil
}

// demangleName best-effort demangles a mangled C++ symbol for log output;
// mangled names that aren't Itanium C++ symbols (e.g. plain C exports)
// are returned unchanged. The JSON corpus always keys on the mangled
// name (spec §6); this is a logging nicety only.
func demangleName(mangled string) string {
	out, err := demangle.ToString(mangled, demangle.NoParams)
	if err != nil {
		return mangled
	}
	return out
}
