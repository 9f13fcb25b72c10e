package pkg

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kluctl/go-embed-python/python"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testLib     *PythonLib
	testLibErr  error
	testLibOnce sync.Once
)

// requirePythonLib loads the library named by KINDABRIDGE_LIBPYTHON, falling
// back to an extracted go-embed-python distribution. Only one interpreter
// can live in a process, so all tests share it.
func requirePythonLib(t *testing.T) *PythonLib {
	t.Helper()
	testLibOnce.Do(func() {
		if libpath := os.Getenv("KINDABRIDGE_LIBPYTHON"); libpath != "" {
			testLib, testLibErr = NewPythonLibFromPaths(libpath, os.Getenv("KINDABRIDGE_PYTHONHOME"))
			return
		}
		ep, err := python.NewEmbeddedPython("kindabridge-test")
		if err != nil {
			testLibErr = err
			return
		}
		testLib, testLibErr = NewPythonLibFromEmbedded(ep)
	})
	if testLibErr != nil {
		t.Skipf("skipping due to missing python library: %v", testLibErr)
	}
	return testLib
}

func TestInterpreter(t *testing.T) {
	p := requirePythonLib(t)

	t.Run("version before initialize", func(t *testing.T) {
		assert.NotEmpty(t, p.Version())
		assert.False(t, p.VersionInfo().LessThan(DefaultMinimumVersion))
	})

	t.Run("finalize before initialize", func(t *testing.T) {
		assert.False(t, p.IsInitialized())
		p.Finalize()
		assert.False(t, p.IsInitialized())
	})

	t.Run("run before initialize", func(t *testing.T) {
		err := p.RunString("x = 1")
		assert.ErrorIs(t, err, ErrNotInitialized)
		assert.Equal(t, -1, Status(err))

		_, err = p.NewDate(2024, 1, 1)
		assert.ErrorIs(t, err, ErrNotInitialized)
	})

	t.Run("missing home", func(t *testing.T) {
		ok, err := p.Initialize(filepath.Join(t.TempDir(), "missing"))
		assert.False(t, ok)
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.False(t, p.IsInitialized())
	})

	hostCalls := 0
	t.Run("register module", func(t *testing.T) {
		err := p.RegisterModule("kindabridge_host", "functions implemented in Go",
			Method{Name: "join_list", Func: func(args *Args) (any, error) {
				hostCalls++
				items, err := args.Strings(0)
				if err != nil {
					return nil, err
				}
				return strings.Join(items, ","), nil
			}},
			Method{Name: "split_csv", Func: func(args *Args) (any, error) {
				hostCalls++
				s, err := args.String(0)
				if err != nil {
					return nil, err
				}
				return strings.Split(s, ","), nil
			}},
			Method{Name: "scale", Func: func(args *Args) (any, error) {
				hostCalls++
				n, err := args.Int(0)
				if err != nil {
					return nil, err
				}
				f, err := args.Float(1)
				if err != nil {
					return nil, err
				}
				return float64(n) * f, nil
			}},
			Method{Name: "next_day", Func: func(args *Args) (any, error) {
				hostCalls++
				f, err := args.DateTime(0)
				if err != nil {
					return nil, err
				}
				return f.Time(time.UTC).AddDate(0, 0, 1), nil
			}},
			Method{Name: "fail", Func: func(args *Args) (any, error) {
				hostCalls++
				msg, err := args.String(0)
				if err != nil {
					return nil, err
				}
				if args.Len() > 1 {
					return nil, fmt.Errorf("%s", msg)
				}
				return nil, &PythonError{Type: "ValueError", Message: msg}
			}},
			Method{Name: "nothing", Func: func(args *Args) (any, error) {
				hostCalls++
				return nil, nil
			}},
			Method{Name: "explode", Func: func(args *Args) (any, error) {
				hostCalls++
				panic("boom")
			}},
		)
		require.NoError(t, err)

		err = p.RegisterModule("kindabridge_host", "")
		assert.ErrorContains(t, err, "already registered")
	})

	t.Run("initialize twice", func(t *testing.T) {
		ok, err := p.Initialize("")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = p.Initialize("")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, p.IsInitialized())
	})

	t.Run("register module after initialize", func(t *testing.T) {
		err := p.RegisterModule("kindabridge_late", "")
		assert.ErrorIs(t, err, ErrAlreadyInitialized)
	})

	t.Run("host module", func(t *testing.T) {
		code := `
import datetime
import kindabridge_host as host

assert host.join_list(["a", "b", "c"]) == "a,b,c"
assert host.join_list(("x",)) == "x"
assert host.split_csv("1,2,3") == ["1", "2", "3"]
assert host.scale(3, 0.5) == 1.5
assert host.next_day(datetime.datetime(2024, 2, 28, 12, 30)) == datetime.datetime(2024, 2, 29, 12, 30)
assert host.nothing() is None

for call, exc, msg in [
    (lambda: host.fail("bad input"), ValueError, "bad input"),
    (lambda: host.fail("plain", True), RuntimeError, "plain"),
    (lambda: host.explode(), RuntimeError, "kindabridge_host.explode panicked: boom"),
    (lambda: host.join_list(), TypeError, "missing argument 0"),
    (lambda: host.join_list([1]), TypeError, None),
    (lambda: host.scale("3", 1.0), TypeError, None),
]:
    try:
        call()
    except exc as e:
        assert msg is None or str(e) == msg, str(e)
    else:
        raise AssertionError("no exception")
`
		require.NoError(t, p.RunString(code))
		assert.Equal(t, 12, hostCalls)
	})

	t.Run("version", func(t *testing.T) {
		v, err := ParseVersion(p.Version())
		require.NoError(t, err)
		assert.True(t, v.Equal(p.VersionInfo()))
	})

	t.Run("singletons", func(t *testing.T) {
		assert.False(t, p.True().IsNull())
		assert.False(t, p.False().IsNull())
		assert.False(t, p.None().IsNull())
		assert.NotEqual(t, p.True(), p.False())
	})

	t.Run("run string", func(t *testing.T) {
		assert.NoError(t, p.RunString("import sys\nx = [i * 2 for i in range(10)]\nassert x[9] == 18"))

		err := p.RunString("raise RuntimeError('expected failure from test')")
		var execErr *ExecError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, -1, Status(err))

		// the interpreter keeps running after an exception
		assert.NoError(t, p.RunString("pass"))
	})

	t.Run("run file", func(t *testing.T) {
		dir := t.TempDir()
		script := filepath.Join(dir, "__main__.py")
		require.NoError(t, os.WriteFile(script, []byte("import os\nassert os.path.basename(__file__) == '__main__.py'\n"), 0o644))

		assert.NoError(t, p.RunFile(script))
		assert.ErrorIs(t, p.RunFile(filepath.Join(dir, "missing.py")), os.ErrNotExist)
	})

	t.Run("sys path", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "kindabridge_syspath.py"), []byte("VALUE = 42\n"), 0o644))

		require.NoError(t, p.PrependSysPath(dir))
		assert.NoError(t, p.RunString("import kindabridge_syspath\nassert kindabridge_syspath.VALUE == 42"))
	})

	t.Run("date", func(t *testing.T) {
		o, err := p.NewDate(2024, 2, 29)
		require.NoError(t, err)
		defer p.DecRef(o)

		f, err := p.DateInfo(o)
		require.NoError(t, err)
		assert.Equal(t, DateFields{Year: 2024, Month: 2, Day: 29}, f)

		_, err = p.DateTimeInfo(o)
		assert.ErrorIs(t, err, ErrNotDateTime)
	})

	t.Run("datetime", func(t *testing.T) {
		o, err := p.NewDateTime(1999, 12, 31, 23, 59, 58, 123456)
		require.NoError(t, err)
		defer p.DecRef(o)

		f, err := p.DateTimeInfo(o)
		require.NoError(t, err)
		assert.Equal(t, DateTimeFields{
			DateFields:  DateFields{Year: 1999, Month: 12, Day: 31},
			Hour:        23,
			Minute:      59,
			Second:      58,
			Microsecond: 123456,
		}, f)

		// a datetime is also a date
		d, err := p.DateInfo(o)
		require.NoError(t, err)
		assert.Equal(t, f.DateFields, d)
	})

	t.Run("datetime from time", func(t *testing.T) {
		now := time.Date(2021, time.March, 14, 15, 9, 26, 535897000, time.UTC)
		o, err := p.NewDateTimeFromTime(now)
		require.NoError(t, err)
		defer p.DecRef(o)

		f, err := p.DateTimeInfo(o)
		require.NoError(t, err)
		assert.True(t, now.Equal(f.Time(time.UTC)))
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := p.NewDate(2023, 2, 30)
		var pyErr *PythonError
		require.ErrorAs(t, err, &pyErr)
		assert.Equal(t, "ValueError", pyErr.Type)

		_, err = p.NewDateTime(2023, 1, 1, 24, 0, 0, 0)
		require.ErrorAs(t, err, &pyErr)
		assert.Equal(t, "ValueError", pyErr.Type)
	})

	t.Run("overflow", func(t *testing.T) {
		if strconv.IntSize < 64 {
			t.Skip("int is 32 bits wide")
		}
		year := int64(1)<<32 + 2024
		_, err := p.NewDate(int(year), 1, 1)
		var pyErr *PythonError
		require.ErrorAs(t, err, &pyErr)
		assert.Equal(t, "OverflowError", pyErr.Type)

		usecond := int64(1) << 40
		_, err = p.NewDateTime(2024, 1, 1, 0, 0, 0, int(usecond))
		require.ErrorAs(t, err, &pyErr)
		assert.Equal(t, "OverflowError", pyErr.Type)
	})

	t.Run("not a datetime", func(t *testing.T) {
		_, err := p.DateInfo(p.None())
		assert.ErrorIs(t, err, ErrNotDateTime)
		_, err = p.DateTimeInfo(0)
		assert.ErrorIs(t, err, ErrNotDateTime)
	})

	t.Run("finalize", func(t *testing.T) {
		p.Finalize()
		assert.False(t, p.IsInitialized())
		assert.ErrorIs(t, p.RunString("pass"), ErrNotInitialized)

		// a second finalize is a no-op
		p.Finalize()
		assert.False(t, p.IsInitialized())
	})
}

// A runtime that failed to start cannot be used again in the same process, so
// the failing start runs in a child test process.
func TestInitializeWithoutStdlib(t *testing.T) {
	if os.Getenv("KINDABRIDGE_TEST_EMPTY_HOME") != "" {
		initializeWithoutStdlib(t, os.Getenv("KINDABRIDGE_TEST_EMPTY_HOME"))
		return
	}
	requirePythonLib(t)

	cmd := exec.Command(os.Args[0], "-test.run=^TestInitializeWithoutStdlib$", "-test.v")
	cmd.Env = append(os.Environ(), "KINDABRIDGE_TEST_EMPTY_HOME="+t.TempDir())
	out, err := cmd.CombinedOutput()
	// a runtime that aborts kills the child before it reports PASS
	require.NoError(t, err, string(out))
	assert.Contains(t, string(out), "--- PASS: TestInitializeWithoutStdlib")
}

func initializeWithoutStdlib(t *testing.T, home string) {
	p := requirePythonLib(t)

	ok, err := p.Initialize(home)
	assert.False(t, ok)
	var pyErr *PythonError
	require.ErrorAs(t, err, &pyErr)
	assert.Equal(t, "initialize", pyErr.Op)
	assert.Equal(t, -1, Status(err))
	assert.False(t, p.IsInitialized())

	// later starts report the first failure instead of touching the runtime
	ok, err2 := p.Initialize("")
	assert.False(t, ok)
	assert.Same(t, err, err2)
}
