package pkg

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestValidateModule(t *testing.T) {
	fn := func(args *Args) (any, error) { return nil, nil }

	assert.NoError(t, validateModule("host", nil))
	assert.NoError(t, validateModule("host", []Method{{Name: "a", Func: fn}, {Name: "b", Func: fn}}))

	assert.EqualError(t, validateModule("", nil), "module name must not be empty")
	assert.EqualError(t, validateModule("host", []Method{{Func: fn}}), "module host: method name must not be empty")
	assert.EqualError(t, validateModule("host", []Method{{Name: "a"}}), "module host: method a has no function")
	assert.EqualError(t, validateModule("host", []Method{{Name: "a", Func: fn}, {Name: "a", Func: fn}}),
		"module host: duplicate method a")
}

func TestDefLayouts(t *testing.T) {
	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("layout sizes are checked on 64-bit platforms")
	}
	// sizeof(PyMethodDef) and sizeof(PyModuleDef) of the stable ABI
	assert.Equal(t, uintptr(32), unsafe.Sizeof(pyMethodDef{}))
	assert.Equal(t, uintptr(104), unsafe.Sizeof(pyModuleDef{}))
	assert.Equal(t, uintptr(40), unsafe.Offsetof(pyModuleDef{}.Name))
}
