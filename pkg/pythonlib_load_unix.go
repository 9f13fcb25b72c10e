//go:build linux || darwin

package pkg

import (
	"github.com/ebitengine/purego"
)

// C long is 64 bits on LP64 platforms.
type cLong = int64

func OpenLibrary(libpath string) (uintptr, error) {
	// RTLD_GLOBAL so extension modules loaded later can resolve the C API
	dll, err := purego.Dlopen(libpath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return 0, err
	}
	return dll, nil
}

func OpenSymbol(lib uintptr, name string) (uintptr, error) {
	return purego.Dlsym(lib, name)
}
