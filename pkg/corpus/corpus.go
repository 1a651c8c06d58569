// Package corpus assembles the JSON document gosmeagle emits for one
// analyzed library: the root {library, locations, inlines} object of
// spec §6, built by driving parsers/file's symbol walk through
// parsers/x86_64's ABI builders.
package corpus

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/vsoch/gosmeagle/parsers/file"
	"github.com/vsoch/gosmeagle/parsers/x86_64"
)

// Corpus is the root JSON document for one analyzed shared library.
type Corpus struct {
	Library   string
	Locations []Location
	Inlines   []InlineEntry
}

// MarshalJSON renders the root object per spec §6: "inlines" is an
// original_source-derived addition (SPEC_FULL §"DISTILLED-SPEC
// SUPPLEMENTS" item 1) and is omitted entirely when empty, so corpora
// from libraries with no inlined subprograms match §6's schema exactly.
func (c *Corpus) MarshalJSON() ([]byte, error) {
	type alias struct {
		Library   string        `json:"library"`
		Locations []Location    `json:"locations"`
		Inlines   []InlineEntry `json:"inlines,omitempty"`
	}
	return json.Marshal(alias{Library: c.Library, Locations: c.Locations, Inlines: c.Inlines})
}

// Location is one entry of the "locations" array: exactly one of
// Variable, Function, or CallSite is set.
type Location struct {
	Variable *VariableEntry
	Function *FunctionEntry
	CallSite *CallSiteEntry
}

func (l Location) MarshalJSON() ([]byte, error) {
	switch {
	case l.Variable != nil:
		return marshalKeyed("variable", l.Variable)
	case l.Function != nil:
		return marshalKeyed("function", l.Function)
	case l.CallSite != nil:
		return marshalKeyed("callsite", l.CallSite)
	default:
		return []byte("{}"), nil
	}
}

func marshalKeyed(key string, value interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	k, err := json.Marshal(key)
	if err != nil {
		return nil, err
	}
	buf.Write(k)
	buf.WriteByte(':')
	v, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	buf.Write(v)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// VariableEntry is a global variable's record: spec §6 gives it no
// "direction" or "class" keys, just name/type/size (SPEC_FULL supplement
// 3: a global's direction is always the exporting side, so the schema
// simply omits the field rather than hard-coding "import").
type VariableEntry struct {
	Name string
	Type string
	Size int64
}

func (v *VariableEntry) MarshalJSON() ([]byte, error) {
	type alias struct {
		Name string `json:"name"`
		Type string `json:"type"`
		Size string `json:"size"`
	}
	return json.Marshal(alias{Name: v.Name, Type: v.Type, Size: strconv.FormatInt(v.Size, 10)})
}

// FunctionEntry is an exported function's record. "return" is not shown
// in spec §6's worked schema example but is required by §4.4 ("For
// return values: same pipeline...") and §8 scenarios 7-8, which assert
// concrete return-value locations; it is carried here as the natural
// extension of the documented shape (see DESIGN.md).
type FunctionEntry struct {
	Name       string
	Parameters []*x86_64.Parameter
	Return     *x86_64.Parameter
}

func (f *FunctionEntry) MarshalJSON() ([]byte, error) {
	type alias struct {
		Name       string              `json:"name"`
		Parameters []*x86_64.Parameter `json:"parameters,omitempty"`
		Return     *x86_64.Parameter   `json:"return,omitempty"`
	}
	return json.Marshal(alias{Name: f.Name, Parameters: f.Parameters, Return: f.Return})
}

// CallSiteEntry is an external call's record; shape-identical to
// FunctionEntry but kept distinct since call sites carry synthetic
// parameter names (spec §4.5).
type CallSiteEntry struct {
	Name       string
	Parameters []*x86_64.Parameter
	Return     *x86_64.Parameter
}

func (c *CallSiteEntry) MarshalJSON() ([]byte, error) {
	type alias struct {
		Name       string              `json:"name"`
		Parameters []*x86_64.Parameter `json:"parameters,omitempty"`
		Return     *x86_64.Parameter   `json:"return,omitempty"`
	}
	return json.Marshal(alias{Name: c.Name, Parameters: c.Parameters, Return: c.Return})
}

// InlineEntry is one DW_AT_inline subprogram: name plus its classified
// type, no parameters (SPEC_FULL supplement 1).
type InlineEntry struct {
	Name string
	Type *x86_64.Parameter
}

func (i InlineEntry) MarshalJSON() ([]byte, error) {
	type alias struct {
		Name string            `json:"name"`
		Type *x86_64.Parameter `json:"type"`
	}
	return json.Marshal(alias{Name: i.Name, Type: i.Type})
}

// Build walks lib's functions, variables, call sites, and inlines and
// assembles a Corpus. Per spec §7 policy, a single symbol that fails to
// build is logged and skipped; it never aborts the rest of the library.
func Build(lib *file.Library, log *logrus.Entry) *Corpus {
	c := &Corpus{Library: lib.Path}

	for _, fn := range lib.Functions {
		built, err := x86_64.BuildFunction(fn)
		if err != nil {
			log.WithError(err).Warnf("skipping function %q (%s)", fn.Name, fn.DemangledName)
			continue
		}
		c.Locations = append(c.Locations, Location{Function: &FunctionEntry{
			Name:       built.Name,
			Parameters: built.Parameters,
			Return:     built.Return,
		}})
	}

	for _, v := range lib.Variables {
		built, err := x86_64.BuildVariable(v)
		if err != nil {
			log.WithError(err).Warnf("skipping variable %q", v.Name)
			continue
		}
		c.Locations = append(c.Locations, Location{Variable: &VariableEntry{
			Name: built.Name,
			Type: built.Value.TypeName,
			Size: built.Value.Size,
		}})
	}

	for _, site := range lib.CallSites {
		built, err := x86_64.BuildCallSite(site)
		if err != nil {
			log.WithError(err).Warnf("skipping call site %q", site.Name)
			continue
		}
		c.Locations = append(c.Locations, Location{CallSite: &CallSiteEntry{
			Name:       built.Name,
			Parameters: built.Parameters,
			Return:     built.Return,
		}})
	}

	for _, fn := range lib.Inlines {
		built, err := x86_64.BuildInline(fn)
		if err != nil {
			log.WithError(err).Warnf("skipping inline %q", fn.Name)
			continue
		}
		c.Inlines = append(c.Inlines, InlineEntry{Name: built.Name, Type: built.Value})
	}

	return c
}
