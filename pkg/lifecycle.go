package pkg

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"go.uber.org/zap"
)

// Initialize starts the interpreter with the given home directory, or with
// the library's default home when home is empty. Calling it on a running
// interpreter is a no-op that reports success.
//
// Startup failures are reported as errors: runtimes from 3.8 are configured
// through PyConfig, and 3.14+ through the PEP 741 API. A runtime that fails
// to start leaves the process unable to retry, so every later call returns the
// first failure.
func (p *PythonLib) Initialize(home string) (bool, error) {
	var ok bool
	err := p.thread.call(func() error {
		var err error
		ok, err = p.initialize(home)
		return err
	})
	return ok, err
}

func (p *PythonLib) initialize(home string) (bool, error) {
	if p.api.Py_IsInitialized() != 0 {
		return true, nil
	}
	if p.initErr != nil {
		return false, p.initErr
	}
	if home == "" {
		home = p.Home
	}
	if home != "" {
		if _, err := os.Stat(home); err != nil {
			return false, fmt.Errorf("python home %s: %w", home, err)
		}
	}
	cfg := p.opts.initConfig(home)

	if err := p.appendInittab(); err != nil {
		return false, err
	}

	var err error
	switch {
	case p.api.hasInitConfig():
		err = p.initFromInitConfig(cfg)
	case p.api.hasConfig():
		err = p.initFromConfig(cfg)
	default:
		p.log.Warn("runtime has no configuration API, startup errors abort the process")
		err = p.initLegacy(cfg)
	}
	if err == nil && p.api.Py_IsInitialized() == 0 {
		err = &PythonError{Op: "initialize", Message: "runtime did not report initialized"}
	}
	if err != nil {
		p.initErr = err
		p.log.Warn("python initialization failed", zap.String("home", home), zap.Error(err))
		return false, err
	}
	p.log.Debug("python initialized", zap.String("home", home))

	if len(p.opts.modulePaths) != 0 {
		// the interpreter is running at this point, so report success together with the error
		if err := p.prependSysPath(p.opts.modulePaths); err != nil {
			return true, err
		}
	}
	return true, nil
}

type initConfigInt struct {
	name  string
	value bool
}

func (p *PythonLib) initFromInitConfig(cfg initConfig) error {
	// PyInitConfig_Create starts from the isolated configuration
	config := p.api.PyInitConfig_Create()
	if config == 0 {
		return &PythonError{Op: "initialize", Message: "PyInitConfig_Create failed"}
	}
	defer p.api.PyInitConfig_Free(config)

	ints := []initConfigInt{
		{"site_import", cfg.SiteImport},
		{"write_bytecode", cfg.WriteBytecode},
	}
	if !cfg.Isolated {
		ints = append(ints,
			initConfigInt{"isolated", false},
			initConfigInt{"use_environment", true},
			initConfigInt{"user_site_directory", true},
		)
	}
	for _, s := range ints {
		if p.api.PyInitConfig_SetInt(config, s.name, boolInt(s.value)) != 0 {
			return p.initConfigError(config)
		}
	}

	if cfg.Home != "" {
		if p.api.PyInitConfig_SetStr(config, "home", cfg.Home) != 0 {
			return p.initConfigError(config)
		}
	}
	if cfg.ProgramName != "" {
		if p.api.PyInitConfig_SetStr(config, "program_name", cfg.ProgramName) != 0 {
			return p.initConfigError(config)
		}
	}

	if p.api.Py_InitializeFromInitConfig(config) != 0 {
		return p.initConfigError(config)
	}
	return nil
}

func (p *PythonLib) initConfigError(config uintptr) error {
	var msg uintptr
	if p.api.PyInitConfig_GetError(config, &msg) == 1 && msg != 0 {
		return &PythonError{Op: "initialize", Message: goString(msg)}
	}
	return &PythonError{Op: "initialize", Message: "unknown configuration error"}
}

const (
	// sizeof(PyConfig) stays well below this on every release up to 3.13
	pyConfigSize = 4096
	// offsetof(PyConfig, install_signal_handlers), unchanged from 3.8 to 3.13
	pyConfigInstallSignalHandlers = 16
)

// initFromConfig starts the runtime through PEP 587. Fields are set by argv,
// which the runtime parses like a command line, so no PyConfig offsets beyond
// the stable head are needed.
func (p *PythonLib) initFromConfig(cfg initConfig) error {
	buf := make([]uint64, pyConfigSize/8)
	config := uintptr(unsafe.Pointer(&buf[0]))
	p.api.PyConfig_InitPythonConfig(config)
	defer func() {
		p.api.PyConfig_Clear(config)
		runtime.KeepAlive(buf)
	}()

	// the host owns signal handling
	*(*int32)(unsafe.Pointer(&buf[pyConfigInstallSignalHandlers/8])) = 0

	if cfg.Home != "" && p.api.Py_SetPythonHome != nil {
		home, err := p.decodeLocale(cfg.Home)
		if err != nil {
			return err
		}
		p.api.Py_SetPythonHome(home)
	}

	// argv[0] becomes the program name; without a home setter the runtime
	// derives the home from it
	args := cfg.argv()
	cargs := make([]*byte, len(args))
	ptrs := make([]uintptr, len(args))
	for i, a := range args {
		b := append([]byte(a), 0)
		cargs[i] = &b[0]
		ptrs[i] = uintptr(unsafe.Pointer(&b[0]))
	}
	status := p.api.config.PyConfig_SetBytesArgv(config, len(ptrs), &ptrs[0])
	runtime.KeepAlive(cargs)
	if err := status.err("initialize"); err != nil {
		return err
	}
	return p.api.config.Py_InitializeFromConfig(config).err("initialize")
}

func (p *PythonLib) initLegacy(cfg initConfig) error {
	p.setFlag(p.data.isolatedFlag, cfg.Isolated)
	p.setFlag(p.data.noSiteFlag, !cfg.SiteImport)
	p.setFlag(p.data.dontWriteBytecodeFlag, !cfg.WriteBytecode)

	if cfg.Home != "" {
		if p.api.Py_SetPythonHome == nil {
			return &PythonError{Op: "initialize", Message: "runtime provides no way to set the python home"}
		}
		home, err := p.decodeLocale(cfg.Home)
		if err != nil {
			return err
		}
		p.api.Py_SetPythonHome(home)
	}
	if cfg.ProgramName != "" && p.api.Py_SetProgramName != nil {
		name, err := p.decodeLocale(cfg.ProgramName)
		if err != nil {
			// the runtime derives a program name on its own
			p.log.Warn("failed to set program name", zap.Error(err))
		} else {
			p.api.Py_SetProgramName(name)
		}
	}

	p.api.Py_InitializeEx(0)
	return nil
}

func (p *PythonLib) setFlag(addr uintptr, value bool) {
	if addr == 0 {
		return
	}
	*(*int32)(unsafe.Pointer(addr)) = int32(boolInt(value))
}

func (p *PythonLib) decodeLocale(s string) (uintptr, error) {
	w := p.api.Py_DecodeLocale(s, 0)
	if w == 0 {
		return 0, &PythonError{Op: "initialize", Message: fmt.Sprintf("failed to call Py_DecodeLocale on '%s'", s)}
	}
	p.decoded = append(p.decoded, w)
	return w, nil
}

// Finalize stops the interpreter. It is a no-op when the interpreter is not
// running.
func (p *PythonLib) Finalize() {
	_ = p.thread.call(func() error {
		p.finalize()
		return nil
	})
}

func (p *PythonLib) finalize() {
	if p.api.Py_IsInitialized() == 0 {
		return
	}
	if rc := p.api.Py_FinalizeEx(); rc != 0 {
		// buffered data could not be flushed; the interpreter is gone regardless
		p.log.Warn("Py_FinalizeEx reported an error", zap.Int32("status", rc))
	}
	p.dateTime = nil
	for _, w := range p.decoded {
		p.api.PyMem_RawFree(w)
	}
	p.decoded = nil
	p.log.Debug("python finalized")
}

// IsInitialized reports whether the interpreter is running.
func (p *PythonLib) IsInitialized() bool {
	var ok bool
	err := p.thread.call(func() error {
		ok = p.api.Py_IsInitialized() != 0
		return nil
	})
	return err == nil && ok
}

// RunString executes code in the __main__ module. A raised exception is
// printed by the runtime and reported as an *ExecError.
func (p *PythonLib) RunString(code string) error {
	return p.thread.call(func() error {
		if p.api.Py_IsInitialized() == 0 {
			return ErrNotInitialized
		}
		return p.runString(code)
	})
}

func (p *PythonLib) runString(code string) error {
	if rc := p.api.PyRun_SimpleStringFlags(code, 0); rc != 0 {
		return &ExecError{Status: int(rc)}
	}
	return nil
}

// RunFile executes the script at path in the __main__ module with __file__
// set to path.
func (p *PythonLib) RunFile(path string) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return p.thread.call(func() error {
		if p.api.Py_IsInitialized() == 0 {
			return ErrNotInitialized
		}

		// borrowed references
		mainModule := p.api.PyImport_AddModule("__main__")
		if mainModule == 0 {
			return p.fetchError("run file")
		}
		globals := p.api.PyModule_GetDict(mainModule)

		file := p.api.PyUnicode_FromString(path)
		if file == 0 {
			return p.fetchError("run file")
		}
		rc := p.api.PyDict_SetItemString(globals, "__file__", file)
		p.api.Py_DecRef(file)
		if rc != 0 {
			return p.fetchError("run file")
		}
		defer func() {
			if p.api.PyDict_DelItemString(globals, "__file__") != 0 {
				p.api.PyErr_Clear()
			}
		}()

		return p.runString(string(code))
	})
}

// PrependSysPath inserts dirs at the front of sys.path, keeping their order.
func (p *PythonLib) PrependSysPath(dirs ...string) error {
	return p.thread.call(func() error {
		if p.api.Py_IsInitialized() == 0 {
			return ErrNotInitialized
		}
		return p.prependSysPath(dirs)
	})
}

func (p *PythonLib) prependSysPath(dirs []string) error {
	sys := p.api.PyImport_ImportModule("sys")
	if sys == 0 {
		return p.fetchError("import sys")
	}
	defer p.api.Py_DecRef(sys)

	path := p.api.PyObject_GetAttrString(sys, "path")
	if path == 0 {
		return p.fetchError("sys.path")
	}
	defer p.api.Py_DecRef(path)

	for i, dir := range dirs {
		item := p.api.PyUnicode_FromString(dir)
		if item == 0 {
			return p.fetchError("sys.path")
		}
		rc := p.api.PyList_Insert(path, i, item)
		p.api.Py_DecRef(item)
		if rc != 0 {
			return p.fetchError("sys.path")
		}
	}
	return nil
}
