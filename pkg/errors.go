package pkg

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by operations that need a running interpreter.
	ErrNotInitialized = errors.New("python interpreter is not initialized")

	// ErrAlreadyInitialized is returned by RegisterModule once the interpreter runs.
	ErrAlreadyInitialized = errors.New("python interpreter is already initialized")

	// ErrNotDateTime is returned when a handle is not a date or datetime object.
	ErrNotDateTime = errors.New("object is not a datetime.date or datetime.datetime")

	// ErrNoDateTimeAPI is returned when the datetime C API capsule cannot be imported.
	ErrNoDateTimeAPI = errors.New("datetime C API is not available")

	ErrUnsupportedVersion = errors.New("unsupported python version")
	ErrLibraryNotFound    = errors.New("python library not found")
	ErrClosed             = errors.New("python library is closed")
)

// ExecError is returned when PyRun_SimpleString reports a failure. The runtime
// has already printed the traceback to stderr.
type ExecError struct {
	Status int
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("python code raised an exception (status %d)", e.Status)
}

// PythonError carries an exception raised by the runtime.
type PythonError struct {
	Op      string
	Type    string
	Message string
}

func (e *PythonError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Type, e.Message)
}

// Status maps the result of RunString or RunFile to the primitive status code
// used by the C API: 0 on success, the runtime's status for exceptions, and
// -1 for everything else.
func Status(err error) int {
	if err == nil {
		return 0
	}
	var execErr *ExecError
	if errors.As(err, &execErr) {
		return execErr.Status
	}
	return -1
}
