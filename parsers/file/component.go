// Package file glues the ELF/DWARF collaborators to the ABI parsers: it
// walks a shared library's dynamic symbol table and DWARF type info and
// hands the x86_64 parser ready-to-classify types.
package file

import (
	"strings"

	"github.com/vsoch/gosmeagle/pkg/debug/dwarf"
)

// isAnonymousCompositeName reports whether a struct/union/class name is a
// compiler-synthesized placeholder ("anonymous struct/class/union at
// file.c:12" style), per spec §4.4 -- callers substitute the declaring
// parameter's own type name for these.
func isAnonymousCompositeName(name string) bool {
	return strings.Contains(name, "anonymous struct/class/union")
}

// TypeName returns the display name for t, substituting declaringName
// when t is an anonymous composite.
func TypeName(t dwarf.Type, declaringName string) string {
	name := t.String()
	if isAnonymousCompositeName(name) {
		return declaringName
	}
	return name
}
