package pkg

// IPythonLib is the bridge between a Go host and an embedded CPython runtime.
type IPythonLib interface {
	// Initialize starts the interpreter. It returns true if the interpreter is
	// running afterwards, including when it was already initialized.
	Initialize(home string) (bool, error)

	// RegisterModule makes a Go implemented module importable. It must be
	// called before Initialize.
	RegisterModule(name string, doc string, methods ...Method) error

	// Finalize stops the interpreter. It is a no-op if it is not initialized.
	Finalize()

	IsInitialized() bool

	// RunString executes code in the __main__ module.
	RunString(code string) error

	// Version returns the runtime's human readable version string.
	Version() string

	NewDate(year, month, day int) (PyObject, error)
	NewDateTime(year, month, day, hour, minute, second, usecond int) (PyObject, error)
	DateInfo(o PyObject) (DateFields, error)
	DateTimeInfo(o PyObject) (DateTimeFields, error)

	True() PyObject
	False() PyObject
	None() PyObject
	DecRef(o PyObject)

	Close() error
}
