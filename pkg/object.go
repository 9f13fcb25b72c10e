package pkg

import "unsafe"

// PyObject is a pointer to a Python object. The runtime owns the object; a
// PyObject is only a handle to it.
type PyObject uintptr

// IsNull reports whether the handle is a C NULL.
func (o PyObject) IsNull() bool {
	return o == 0
}

// Identifiers accepted by Py_GetConstantBorrowed (3.13+).
const (
	Py_CONSTANT_NONE  uint32 = 0
	Py_CONSTANT_FALSE uint32 = 1
	Py_CONSTANT_TRUE  uint32 = 2
)

// goString copies a NUL terminated C string owned by the runtime.
func goString(p uintptr) string {
	if p == 0 {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Pointer(p + uintptr(n))) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
