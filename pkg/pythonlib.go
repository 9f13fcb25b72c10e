package pkg

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/kluctl/go-embed-python/python"
	kinda "github.com/richinsley/kinda/pkg"
	"go.uber.org/zap"
)

// PythonLib is a dynamically loaded CPython shared library.
//
// All runtime calls are forwarded to one OS thread, so a PythonLib may be used
// from any goroutine. Calls are serialized and block the caller.
type PythonLib struct {
	LibPath     string
	Home        string
	Environment *kinda.Environment
	DLL         uintptr

	api     capi
	data    dataSymbols
	opts    pythonLibOptions
	log     *zap.Logger
	thread  *interpreterThread
	version *semver.Version

	dateTime *dateTimeAPI
	modules  []*hostModule

	// first failed start; the runtime cannot be started again afterwards
	initErr error
	// wchar_t* strings handed to Py_SetPythonHome and Py_SetProgramName; they
	// must outlive the interpreter
	decoded []uintptr
}

var _ IPythonLib = (*PythonLib)(nil)

// NewPythonLib loads the library of a kinda (micromamba) environment.
func NewPythonLib(env *kinda.Environment, opts ...Opt) (*PythonLib, error) {
	p, err := NewPythonLibFromPaths(env.PythonLibPath, env.EnvPath, opts...)
	if err != nil {
		return nil, err
	}
	p.Environment = env
	return p, nil
}

// NewPythonLibFromEmbedded loads the library shipped inside an extracted
// go-embed-python distribution.
func NewPythonLibFromEmbedded(ep *python.EmbeddedPython, opts ...Opt) (*PythonLib, error) {
	home := ep.GetExtractedPath()
	libpath, err := FindLibrary(home, "")
	if err != nil {
		return nil, err
	}
	return NewPythonLibFromPaths(libpath, home, opts...)
}

// NewPythonLibFromPaths loads the shared library at libpath. pyhome is the
// default home passed to the runtime when Initialize is called without one.
func NewPythonLibFromPaths(libpath string, pyhome string, opts ...Opt) (*PythonLib, error) {
	p := &PythonLib{
		LibPath: libpath,
		Home:    pyhome,
		opts:    defaultOptions(),
	}
	for _, o := range opts {
		o(&p.opts)
	}
	p.log = p.opts.logger
	if p.log == nil {
		p.log = Logger()
	}
	p.log = p.log.With(zap.String("lib", libpath))

	dll, err := OpenLibrary(libpath)
	if err != nil {
		return nil, fmt.Errorf("failed to load python library %s: %w", libpath, err)
	}
	p.DLL = dll

	missing, err := p.api.bind(dll)
	if err != nil {
		return nil, fmt.Errorf("%s is not a usable python library: %w", libpath, err)
	}
	missing = append(missing, p.data.bind(dll)...)
	if len(missing) != 0 {
		p.log.Debug("optional symbols not found", zap.Strings("symbols", missing))
	}

	// Py_GetVersion is valid before initialization
	p.version, err = ParseVersion(p.api.Py_GetVersion())
	if err != nil {
		return nil, err
	}
	if p.opts.minimumVersion != nil && p.version.LessThan(p.opts.minimumVersion) {
		return nil, fmt.Errorf("%w: python version (%s) must be at least %s", ErrUnsupportedVersion, p.version, p.opts.minimumVersion)
	}

	p.thread = newInterpreterThread()
	p.log.Debug("loaded python library", zap.Stringer("version", p.version))
	return p, nil
}

// Close finalizes the interpreter if it is running and stops the interpreter
// thread. The shared library stays mapped since CPython does not support
// being unloaded.
func (p *PythonLib) Close() error {
	err := p.thread.call(func() error {
		p.finalize()
		return nil
	})
	p.thread.stop()
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// Version returns the runtime's version string. It never fails.
func (p *PythonLib) Version() string {
	return p.api.Py_GetVersion()
}

// VersionInfo returns the parsed runtime version.
func (p *PythonLib) VersionInfo() *semver.Version {
	return p.version
}

// True returns the True singleton. The handle is borrowed.
func (p *PythonLib) True() PyObject {
	return p.constant(Py_CONSTANT_TRUE, p.data.trueStruct)
}

// False returns the False singleton. The handle is borrowed.
func (p *PythonLib) False() PyObject {
	return p.constant(Py_CONSTANT_FALSE, p.data.falseStruct)
}

// None returns the None singleton. The handle is borrowed.
func (p *PythonLib) None() PyObject {
	return p.constant(Py_CONSTANT_NONE, p.data.noneStruct)
}

func (p *PythonLib) constant(id uint32, addr uintptr) PyObject {
	if addr != 0 {
		return PyObject(addr)
	}
	var o PyObject
	_ = p.thread.call(func() error {
		o = p.borrowConstant(id)
		return nil
	})
	return o
}

// borrowConstant looks up a singleton through Py_GetConstantBorrowed. Must
// run on the interpreter thread.
func (p *PythonLib) borrowConstant(id uint32) PyObject {
	if p.api.Py_GetConstantBorrowed == nil || p.api.Py_IsInitialized() == 0 {
		return 0
	}
	return p.api.Py_GetConstantBorrowed(id)
}

// none returns the None singleton. Must run on the interpreter thread.
func (p *PythonLib) none() PyObject {
	if p.data.noneStruct != 0 {
		return PyObject(p.data.noneStruct)
	}
	return p.borrowConstant(Py_CONSTANT_NONE)
}

// IncRef takes a new reference to o.
func (p *PythonLib) IncRef(o PyObject) {
	_ = p.thread.call(func() error {
		if p.api.Py_IsInitialized() != 0 {
			p.api.Py_IncRef(o)
		}
		return nil
	})
}

// DecRef releases a reference returned by NewDate or NewDateTime. NULL
// handles are ignored.
func (p *PythonLib) DecRef(o PyObject) {
	_ = p.thread.call(func() error {
		if p.api.Py_IsInitialized() != 0 {
			p.api.Py_DecRef(o)
		}
		return nil
	})
}

// fetchError converts and clears the pending exception. Must run on the
// interpreter thread.
func (p *PythonLib) fetchError(op string) *PythonError {
	var typ, value, tb PyObject
	p.api.PyErr_Fetch(&typ, &value, &tb)
	if typ == 0 {
		return &PythonError{Op: op, Message: "unknown error"}
	}
	defer p.api.Py_DecRef(typ)
	defer p.api.Py_DecRef(value)
	defer p.api.Py_DecRef(tb)

	e := &PythonError{Op: op}
	if name := p.api.PyObject_GetAttrString(typ, "__name__"); name != 0 {
		e.Type = p.str(name)
		p.api.Py_DecRef(name)
	} else {
		p.api.PyErr_Clear()
	}
	if value != 0 {
		e.Message = p.str(value)
	}
	return e
}

// str returns str(o), or "" when the conversion raises.
func (p *PythonLib) str(o PyObject) string {
	s := p.api.PyObject_Str(o)
	if s == 0 {
		p.api.PyErr_Clear()
		return ""
	}
	defer p.api.Py_DecRef(s)
	return p.api.PyUnicode_AsUTF8(s)
}
