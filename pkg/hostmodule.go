package pkg

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"
)

const (
	METH_VARARGS = 0x0001

	// PYTHON_ABI_VERSION, accepted by PyModule_Create2 on every release
	pythonABIVersion = 3
)

// pyMethodDef mirrors PyMethodDef.
type pyMethodDef struct {
	Name  uintptr
	Meth  uintptr
	Flags int32
	Doc   uintptr
}

// pyModuleDef mirrors PyModuleDef including the PyModuleDef_HEAD_INIT header.
// Free-threaded builds use a different object header and are not supported.
type pyModuleDef struct {
	RefCnt int
	Type   uintptr
	Init   uintptr
	Index  int
	Copy   uintptr

	Name     uintptr
	Doc      uintptr
	Size     int
	Methods  uintptr
	Slots    uintptr
	Traverse uintptr
	Clear    uintptr
	Free     uintptr
}

// ModuleFunc implements a function of a host module. It runs on the
// interpreter thread while Python code is executing, so it must not call
// PythonLib methods; everything it needs is reachable through args.
//
// The result is converted to a Python object: nil, bool, int, int64, float64,
// string, []string, DateFields, DateTimeFields and time.Time are supported, and
// a PyObject is returned as is and must be a new reference. A *PythonError
// raises the builtin exception named by its Type, any other error raises
// RuntimeError.
type ModuleFunc func(args *Args) (any, error)

// Method is a function of a host module.
type Method struct {
	Name string
	Doc  string
	Func ModuleFunc
}

type hostModule struct {
	name    string
	cname   uintptr
	init    uintptr
	methods []Method
}

// RegisterModule makes a Go implemented module importable under name. It must
// be called before Initialize; the module is added to the runtime's table of
// builtin modules on every start of the interpreter.
func (p *PythonLib) RegisterModule(name string, doc string, methods ...Method) error {
	if err := validateModule(name, methods); err != nil {
		return err
	}
	return p.thread.call(func() error {
		if p.api.Py_IsInitialized() != 0 {
			return ErrAlreadyInitialized
		}
		for _, m := range p.modules {
			if m.name == name {
				return fmt.Errorf("module %s is already registered", name)
			}
		}
		m := p.newHostModule(name, doc, methods)
		p.modules = append(p.modules, m)
		p.log.Debug("registered host module", zap.String("module", name), zap.Int("methods", len(methods)))
		return nil
	})
}

func validateModule(name string, methods []Method) error {
	if name == "" {
		return fmt.Errorf("module name must not be empty")
	}
	seen := map[string]bool{}
	for _, m := range methods {
		if m.Name == "" {
			return fmt.Errorf("module %s: method name must not be empty", name)
		}
		if m.Func == nil {
			return fmt.Errorf("module %s: method %s has no function", name, m.Name)
		}
		if seen[m.Name] {
			return fmt.Errorf("module %s: duplicate method %s", name, m.Name)
		}
		seen[m.Name] = true
	}
	return nil
}

// newHostModule builds the method table and module definition in runtime
// owned memory. The runtime keeps pointers into both for the life of the
// process, so they are never freed. Must run on the interpreter thread.
func (p *PythonLib) newHostModule(name string, doc string, methods []Method) *hostModule {
	m := &hostModule{
		name:    name,
		cname:   p.cString(name),
		methods: methods,
	}

	// the table ends with a zeroed sentinel entry
	defs := p.api.PyMem_RawCalloc(uintptr(len(methods)+1), unsafe.Sizeof(pyMethodDef{}))
	table := unsafe.Slice((*pyMethodDef)(unsafe.Pointer(defs)), len(methods)+1)
	for i := range methods {
		method := methods[i]
		table[i] = pyMethodDef{
			Name: p.cString(method.Name),
			Meth: purego.NewCallback(func(self, args uintptr) uintptr {
				return uintptr(p.callMethod(name, method, PyObject(args)))
			}),
			Flags: METH_VARARGS,
			Doc:   p.cString(method.Doc),
		}
	}

	def := p.api.PyMem_RawCalloc(1, unsafe.Sizeof(pyModuleDef{}))
	*(*pyModuleDef)(unsafe.Pointer(def)) = pyModuleDef{
		RefCnt:  1,
		Name:    m.cname,
		Doc:     p.cString(doc),
		Size:    -1,
		Methods: defs,
	}

	m.init = purego.NewCallback(func() uintptr {
		return uintptr(p.api.PyModule_Create2(def, pythonABIVersion))
	})
	return m
}

// cString copies s into runtime owned memory. An empty string becomes NULL.
func (p *PythonLib) cString(s string) uintptr {
	if s == "" {
		return 0
	}
	c := p.api.PyMem_RawMalloc(uintptr(len(s) + 1))
	buf := unsafe.Slice((*byte)(unsafe.Pointer(c)), len(s)+1)
	copy(buf, s)
	buf[len(s)] = 0
	return c
}

// appendInittab must run before the interpreter starts.
func (p *PythonLib) appendInittab() error {
	for _, m := range p.modules {
		if p.api.PyImport_AppendInittab(m.cname, m.init) != 0 {
			return &PythonError{Op: "initialize", Message: fmt.Sprintf("failed to register module %s", m.name)}
		}
	}
	return nil
}

func (p *PythonLib) callMethod(module string, m Method, tuple PyObject) (o PyObject) {
	// a panic must not unwind through the runtime's C frames
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("host function panicked",
				zap.String("module", module), zap.String("function", m.Name), zap.Any("panic", r))
			p.raise(fmt.Errorf("%s.%s panicked: %v", module, m.Name, r))
			o = 0
		}
	}()

	result, err := m.Func(&Args{p: p, tuple: tuple})
	if err == nil {
		if o, err = p.toObject(result); err == nil {
			return o
		}
	}
	p.log.Debug("host function failed",
		zap.String("module", module), zap.String("function", m.Name), zap.Error(err))
	p.raise(err)
	return 0
}

// raise sets err as the pending exception.
func (p *PythonLib) raise(err error) {
	typ, msg := "RuntimeError", err.Error()
	if errors.Is(err, ErrNotDateTime) {
		typ = "TypeError"
	}
	var pyErr *PythonError
	if errors.As(err, &pyErr) {
		msg = pyErr.Message
		if pyErr.Type != "" {
			typ = pyErr.Type
		}
	}
	exc := p.builtinException(typ)
	if exc == 0 {
		exc = p.builtinException("RuntimeError")
	}
	p.api.PyErr_SetString(exc, msg)
}

// builtinException reads the PyExc_<name> variable, or returns 0 if the
// runtime exports no such exception.
func (p *PythonLib) builtinException(name string) PyObject {
	addr, err := OpenSymbol(p.DLL, "PyExc_"+name)
	if err != nil || addr == 0 {
		return 0
	}
	return *(*PyObject)(unsafe.Pointer(addr))
}

func (p *PythonLib) toObject(v any) (PyObject, error) {
	var o PyObject
	switch v := v.(type) {
	case nil:
		o = p.none()
		p.api.Py_IncRef(o)
		return o, nil
	case bool:
		if v {
			o = p.singleton(Py_CONSTANT_TRUE, p.data.trueStruct)
		} else {
			o = p.singleton(Py_CONSTANT_FALSE, p.data.falseStruct)
		}
		p.api.Py_IncRef(o)
		return o, nil
	case PyObject:
		return v, nil
	case int:
		o = p.api.PyLong_FromLongLong(int64(v))
	case int64:
		o = p.api.PyLong_FromLongLong(v)
	case float64:
		o = p.api.PyFloat_FromDouble(v)
	case string:
		o = p.api.PyUnicode_FromString(v)
	case []string:
		return p.newStringList(v)
	case DateFields:
		return p.newDate(v.Year, v.Month, v.Day)
	case DateTimeFields:
		return p.newDateTime(v.Year, v.Month, v.Day, v.Hour, v.Minute, v.Second, v.Microsecond)
	case time.Time:
		f := FieldsFromTime(v)
		return p.newDateTime(f.Year, f.Month, f.Day, f.Hour, f.Minute, f.Second, f.Microsecond)
	default:
		return 0, &PythonError{Op: "result", Type: "TypeError", Message: fmt.Sprintf("unsupported result type %T", v)}
	}
	if o == 0 {
		return 0, p.fetchError("result")
	}
	return o, nil
}

// singleton is the thread-internal version of True and False.
func (p *PythonLib) singleton(id uint32, addr uintptr) PyObject {
	if addr != 0 {
		return PyObject(addr)
	}
	return p.borrowConstant(id)
}

func (p *PythonLib) newStringList(items []string) (PyObject, error) {
	list := p.api.PyList_New(len(items))
	if list == 0 {
		return 0, p.fetchError("result")
	}
	for i, s := range items {
		item := p.api.PyUnicode_FromString(s)
		if item == 0 {
			p.api.Py_DecRef(list)
			return 0, p.fetchError("result")
		}
		// steals item
		if p.api.PyList_SetItem(list, i, item) != 0 {
			p.api.Py_DecRef(list)
			return 0, p.fetchError("result")
		}
	}
	return list, nil
}

// Args are the positional arguments of a host function call. They are only
// valid while the function runs.
type Args struct {
	p     *PythonLib
	tuple PyObject
}

// Len returns the number of arguments.
func (a *Args) Len() int {
	if a.tuple == 0 {
		return 0
	}
	return a.p.api.PyTuple_Size(a.tuple)
}

// Object returns the borrowed i-th argument.
func (a *Args) Object(i int) (PyObject, error) {
	if i < 0 || i >= a.Len() {
		return 0, &PythonError{Op: "argument", Type: "TypeError", Message: fmt.Sprintf("missing argument %d", i)}
	}
	return a.p.api.PyTuple_GetItem(a.tuple, i), nil
}

func (a *Args) Int(i int) (int64, error) {
	o, err := a.Object(i)
	if err != nil {
		return 0, err
	}
	v := a.p.api.PyLong_AsLongLong(o)
	if v == -1 && a.p.api.PyErr_Occurred() != 0 {
		return 0, a.p.fetchError(fmt.Sprintf("argument %d", i))
	}
	return v, nil
}

func (a *Args) Float(i int) (float64, error) {
	o, err := a.Object(i)
	if err != nil {
		return 0, err
	}
	v := a.p.api.PyFloat_AsDouble(o)
	if v == -1 && a.p.api.PyErr_Occurred() != 0 {
		return 0, a.p.fetchError(fmt.Sprintf("argument %d", i))
	}
	return v, nil
}

func (a *Args) String(i int) (string, error) {
	o, err := a.Object(i)
	if err != nil {
		return "", err
	}
	return a.p.unicode(o, fmt.Sprintf("argument %d", i))
}

// Strings reads an iterable of str, such as a list or tuple.
func (a *Args) Strings(i int) ([]string, error) {
	o, err := a.Object(i)
	if err != nil {
		return nil, err
	}
	op := fmt.Sprintf("argument %d", i)
	iter := a.p.api.PyObject_GetIter(o)
	if iter == 0 {
		return nil, a.p.fetchError(op)
	}
	defer a.p.api.Py_DecRef(iter)

	var out []string
	for {
		item := a.p.api.PyIter_Next(iter)
		if item == 0 {
			break
		}
		s, err := a.p.unicode(item, op)
		a.p.api.Py_DecRef(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if a.p.api.PyErr_Occurred() != 0 {
		return nil, a.p.fetchError(op)
	}
	return out, nil
}

// DateTime reads a datetime.datetime argument.
func (a *Args) DateTime(i int) (DateTimeFields, error) {
	o, err := a.Object(i)
	if err != nil {
		return DateTimeFields{}, err
	}
	return a.p.dateTimeInfo(o)
}

func (p *PythonLib) unicode(o PyObject, op string) (string, error) {
	s := p.api.PyUnicode_AsUTF8(o)
	if s == "" && p.api.PyErr_Occurred() != 0 {
		return "", p.fetchError(op)
	}
	return s, nil
}
