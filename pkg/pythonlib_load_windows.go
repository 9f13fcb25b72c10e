//go:build windows

package pkg

import "golang.org/x/sys/windows"

// C long is 32 bits on Windows.
type cLong = int32

func OpenLibrary(name string) (uintptr, error) {
	// search the dll's own directory for its dependencies (vcruntime, python3.dll)
	handle, err := windows.LoadLibraryEx(name, 0, windows.LOAD_WITH_ALTERED_SEARCH_PATH)
	return uintptr(handle), err
}

func OpenSymbol(lib uintptr, name string) (uintptr, error) {
	return windows.GetProcAddress(windows.Handle(lib), name)
}
