package file

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vsoch/gosmeagle/pkg/debug/dwarf"
)

func TestTypeNameSubstitutesAnonymousComposite(t *testing.T) {
	anon := &dwarf.StructType{
		CommonType: dwarf.CommonType{Name: "anonymous struct/class/union at foo.cpp:12"},
		Kind:       "struct",
	}
	assert.Equal(t, "MyHandle", TypeName(anon, "MyHandle"))
}

func TestTypeNameKeepsNamedComposite(t *testing.T) {
	named := &dwarf.StructType{CommonType: dwarf.CommonType{Name: "point"}, Kind: "struct"}
	assert.Equal(t, "struct point", TypeName(named, "unused"))
}
