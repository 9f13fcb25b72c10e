package pkg

import "fmt"

// pyStatus mirrors PyStatus, which the PEP 587 configuration functions
// (3.8+) return by value.
type pyStatus struct {
	Type     int32
	Func     uintptr
	ErrMsg   uintptr
	ExitCode int32
}

const (
	pyStatusOK    = 0
	pyStatusError = 1
	pyStatusExit  = 2
)

func (s pyStatus) err(op string) error {
	switch s.Type {
	case pyStatusOK:
		return nil
	case pyStatusExit:
		return &PythonError{Op: op, Message: fmt.Sprintf("runtime requested exit with code %d", s.ExitCode)}
	default:
		msg := goString(s.ErrMsg)
		if msg == "" {
			msg = "unknown error"
		}
		if fn := goString(s.Func); fn != "" {
			msg = fn + ": " + msg
		}
		return &PythonError{Op: op, Message: msg}
	}
}

// configFuncs are the PyStatus returning entry points. How a struct comes
// back differs per architecture, see bind.
type configFuncs struct {
	Py_InitializeFromConfig func(config uintptr) pyStatus
	PyConfig_SetBytesArgv   func(config uintptr, argc int, argv *uintptr) pyStatus
}

func (c *configFuncs) bound() bool {
	return c.Py_InitializeFromConfig != nil && c.PyConfig_SetBytesArgv != nil
}
