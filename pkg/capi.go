package pkg

import (
	"errors"
	"fmt"

	"github.com/ebitengine/purego"
	"github.com/hashicorp/go-multierror"
)

// capi holds the CPython entry points used by the bridge. Every field is
// bound with purego.RegisterFunc; optional fields stay nil when the symbol is
// absent from the loaded library.
type capi struct {
	Py_IsInitialized func() int32
	Py_InitializeEx  func(initsigs int32)
	Py_FinalizeEx    func() int32
	Py_GetVersion    func() string
	Py_DecodeLocale  func(arg string, size uintptr) uintptr
	PyMem_RawMalloc  func(size uintptr) uintptr
	PyMem_RawCalloc  func(nelem, elsize uintptr) uintptr
	PyMem_RawFree    func(p uintptr)

	PyRun_SimpleStringFlags func(command string, flags uintptr) int32

	Py_IncRef              func(o PyObject)
	Py_DecRef              func(o PyObject)
	PyObject_GetAttrString func(o PyObject, name string) PyObject
	PyObject_IsInstance    func(o PyObject, cls PyObject) int32
	PyObject_Str           func(o PyObject) PyObject
	PyUnicode_FromString   func(s string) PyObject
	PyUnicode_AsUTF8       func(o PyObject) string
	PyLong_AsLong          func(o PyObject) cLong
	PyList_Insert          func(list PyObject, index int, item PyObject) int32
	PyImport_ImportModule  func(name string) PyObject
	PyImport_AddModule     func(name string) PyObject
	PyModule_GetDict       func(m PyObject) PyObject
	PyDict_SetItemString   func(d PyObject, key string, v PyObject) int32
	PyDict_DelItemString   func(d PyObject, key string) int32
	PyCapsule_Import       func(name string, noBlock int32) uintptr

	PyTuple_Size        func(o PyObject) int
	PyTuple_GetItem     func(o PyObject, pos int) PyObject
	PyList_New          func(size int) PyObject
	PyList_SetItem      func(list PyObject, index int, item PyObject) int32
	PyObject_GetIter    func(o PyObject) PyObject
	PyIter_Next         func(o PyObject) PyObject
	PyLong_AsLongLong   func(o PyObject) int64
	PyLong_FromLongLong func(v int64) PyObject
	PyFloat_AsDouble    func(o PyObject) float64
	PyFloat_FromDouble  func(v float64) PyObject

	PyImport_AppendInittab func(name uintptr, initfunc uintptr) int32
	PyModule_Create2       func(def uintptr, apiver int32) PyObject

	PyErr_Occurred  func() PyObject
	PyErr_Fetch     func(ptype, pvalue, ptraceback *PyObject)
	PyErr_Clear     func()
	PyErr_SetString func(exception PyObject, message string)

	// optional: legacy configuration, deprecated since 3.11
	Py_SetPythonHome  func(home uintptr)
	Py_SetProgramName func(name uintptr)

	// optional: PEP 587 configuration, 3.8+
	PyConfig_InitPythonConfig func(config uintptr)
	PyConfig_Clear            func(config uintptr)
	config                    configFuncs

	// optional: PEP 741 configuration, 3.14+
	PyInitConfig_Create         func() uintptr
	PyInitConfig_Free           func(config uintptr)
	PyInitConfig_SetInt         func(config uintptr, name string, value int64) int32
	PyInitConfig_SetStr         func(config uintptr, name string, value string) int32
	PyInitConfig_GetError       func(config uintptr, errMsg *uintptr) int32
	Py_InitializeFromInitConfig func(config uintptr) int32

	// optional: 3.13+
	Py_GetConstantBorrowed func(id uint32) PyObject
}

type symbol struct {
	name     string
	fptr     interface{}
	optional bool
}

func (a *capi) symbols() []symbol {
	return []symbol{
		{"Py_IsInitialized", &a.Py_IsInitialized, false},
		{"Py_InitializeEx", &a.Py_InitializeEx, false},
		{"Py_FinalizeEx", &a.Py_FinalizeEx, false},
		{"Py_GetVersion", &a.Py_GetVersion, false},
		{"Py_DecodeLocale", &a.Py_DecodeLocale, false},
		{"PyMem_RawMalloc", &a.PyMem_RawMalloc, false},
		{"PyMem_RawCalloc", &a.PyMem_RawCalloc, false},
		{"PyMem_RawFree", &a.PyMem_RawFree, false},
		{"PyRun_SimpleStringFlags", &a.PyRun_SimpleStringFlags, false},
		{"Py_IncRef", &a.Py_IncRef, false},
		{"Py_DecRef", &a.Py_DecRef, false},
		{"PyObject_GetAttrString", &a.PyObject_GetAttrString, false},
		{"PyObject_IsInstance", &a.PyObject_IsInstance, false},
		{"PyObject_Str", &a.PyObject_Str, false},
		{"PyUnicode_FromString", &a.PyUnicode_FromString, false},
		{"PyUnicode_AsUTF8", &a.PyUnicode_AsUTF8, false},
		{"PyLong_AsLong", &a.PyLong_AsLong, false},
		{"PyList_Insert", &a.PyList_Insert, false},
		{"PyImport_ImportModule", &a.PyImport_ImportModule, false},
		{"PyImport_AddModule", &a.PyImport_AddModule, false},
		{"PyModule_GetDict", &a.PyModule_GetDict, false},
		{"PyDict_SetItemString", &a.PyDict_SetItemString, false},
		{"PyDict_DelItemString", &a.PyDict_DelItemString, false},
		{"PyCapsule_Import", &a.PyCapsule_Import, false},
		{"PyTuple_Size", &a.PyTuple_Size, false},
		{"PyTuple_GetItem", &a.PyTuple_GetItem, false},
		{"PyList_New", &a.PyList_New, false},
		{"PyList_SetItem", &a.PyList_SetItem, false},
		{"PyObject_GetIter", &a.PyObject_GetIter, false},
		{"PyIter_Next", &a.PyIter_Next, false},
		{"PyLong_AsLongLong", &a.PyLong_AsLongLong, false},
		{"PyLong_FromLongLong", &a.PyLong_FromLongLong, false},
		{"PyFloat_AsDouble", &a.PyFloat_AsDouble, false},
		{"PyFloat_FromDouble", &a.PyFloat_FromDouble, false},
		{"PyImport_AppendInittab", &a.PyImport_AppendInittab, false},
		{"PyModule_Create2", &a.PyModule_Create2, false},
		{"PyErr_Occurred", &a.PyErr_Occurred, false},
		{"PyErr_Fetch", &a.PyErr_Fetch, false},
		{"PyErr_Clear", &a.PyErr_Clear, false},
		{"PyErr_SetString", &a.PyErr_SetString, false},

		{"Py_SetPythonHome", &a.Py_SetPythonHome, true},
		{"Py_SetProgramName", &a.Py_SetProgramName, true},
		{"PyConfig_InitPythonConfig", &a.PyConfig_InitPythonConfig, true},
		{"PyConfig_Clear", &a.PyConfig_Clear, true},
		{"PyInitConfig_Create", &a.PyInitConfig_Create, true},
		{"PyInitConfig_Free", &a.PyInitConfig_Free, true},
		{"PyInitConfig_SetInt", &a.PyInitConfig_SetInt, true},
		{"PyInitConfig_SetStr", &a.PyInitConfig_SetStr, true},
		{"PyInitConfig_GetError", &a.PyInitConfig_GetError, true},
		{"Py_InitializeFromInitConfig", &a.Py_InitializeFromInitConfig, true},
		{"Py_GetConstantBorrowed", &a.Py_GetConstantBorrowed, true},
	}
}

// bind resolves every symbol in dll. Missing required symbols are collected
// into a single error; the names of missing optional symbols are returned.
func (a *capi) bind(dll uintptr) (missing []string, err error) {
	var result *multierror.Error
	for _, s := range a.symbols() {
		fptr, serr := OpenSymbol(dll, s.name)
		if serr == nil && fptr == 0 {
			serr = errors.New("resolved to NULL")
		}
		if serr != nil {
			if s.optional {
				missing = append(missing, s.name)
				continue
			}
			result = multierror.Append(result, fmt.Errorf("symbol %s: %w", s.name, serr))
			continue
		}
		purego.RegisterFunc(s.fptr, fptr)
	}
	missing = append(missing, a.bindConfig(dll)...)
	return missing, result.ErrorOrNil()
}

func (a *capi) bindConfig(dll uintptr) (missing []string) {
	initialize, err := OpenSymbol(dll, "Py_InitializeFromConfig")
	if err != nil || initialize == 0 {
		return []string{"Py_InitializeFromConfig"}
	}
	setArgv, err := OpenSymbol(dll, "PyConfig_SetBytesArgv")
	if err != nil || setArgv == 0 {
		return []string{"PyConfig_SetBytesArgv"}
	}
	if err := a.config.bind(initialize, setArgv); err != nil {
		return []string{"Py_InitializeFromConfig (" + err.Error() + ")"}
	}
	return nil
}

// hasInitConfig reports whether the PEP 741 configuration API is complete.
func (a *capi) hasInitConfig() bool {
	return a.PyInitConfig_Create != nil &&
		a.PyInitConfig_Free != nil &&
		a.PyInitConfig_SetInt != nil &&
		a.PyInitConfig_SetStr != nil &&
		a.PyInitConfig_GetError != nil &&
		a.Py_InitializeFromInitConfig != nil
}

// hasConfig reports whether the PEP 587 configuration API is usable.
func (a *capi) hasConfig() bool {
	return a.PyConfig_InitPythonConfig != nil &&
		a.PyConfig_Clear != nil &&
		a.config.bound()
}

// dataSymbols are exported variables, not functions.
type dataSymbols struct {
	trueStruct  uintptr
	falseStruct uintptr
	noneStruct  uintptr

	isolatedFlag          uintptr
	noSiteFlag            uintptr
	dontWriteBytecodeFlag uintptr
}

func (d *dataSymbols) bind(dll uintptr) (missing []string) {
	for name, dst := range map[string]*uintptr{
		"_Py_TrueStruct":           &d.trueStruct,
		"_Py_FalseStruct":          &d.falseStruct,
		"_Py_NoneStruct":           &d.noneStruct,
		"Py_IsolatedFlag":          &d.isolatedFlag,
		"Py_NoSiteFlag":            &d.noSiteFlag,
		"Py_DontWriteBytecodeFlag": &d.dontWriteBytecodeFlag,
	} {
		addr, err := OpenSymbol(dll, name)
		if err != nil || addr == 0 {
			missing = append(missing, name)
			continue
		}
		*dst = addr
	}
	return missing
}
