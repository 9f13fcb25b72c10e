//go:build amd64

package pkg

import "github.com/ebitengine/purego"

// bind registers the PyStatus functions. PyStatus does not fit in two
// registers, so both the System V and the Windows x64 ABI return it through a
// buffer whose address the caller passes as a hidden first argument.
func (c *configFuncs) bind(initializeFromConfig, setBytesArgv uintptr) error {
	var initialize func(ret *pyStatus, config uintptr) uintptr
	purego.RegisterFunc(&initialize, initializeFromConfig)
	c.Py_InitializeFromConfig = func(config uintptr) (s pyStatus) {
		initialize(&s, config)
		return s
	}

	var setArgv func(ret *pyStatus, config uintptr, argc int, argv *uintptr) uintptr
	purego.RegisterFunc(&setArgv, setBytesArgv)
	c.PyConfig_SetBytesArgv = func(config uintptr, argc int, argv *uintptr) (s pyStatus) {
		setArgv(&s, config, argc, argv)
		return s
	}
	return nil
}
