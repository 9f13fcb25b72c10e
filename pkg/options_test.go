package pkg

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDefaultInitConfig(t *testing.T) {
	o := defaultOptions()
	c := o.initConfig("")

	assert.True(t, c.Isolated)
	assert.False(t, c.SiteImport)
	assert.False(t, c.WriteBytecode)
	assert.Empty(t, c.Home)
	assert.Empty(t, c.ProgramName)
	assert.Equal(t, DefaultMinimumVersion, o.minimumVersion)
}

func TestInitConfigProgramName(t *testing.T) {
	o := defaultOptions()
	home := filepath.Join("opt", "python")
	c := o.initConfig(home)

	assert.Equal(t, home, c.Home)
	if runtime.GOOS == "windows" {
		assert.Equal(t, filepath.Join(home, "python.exe"), c.ProgramName)
	} else {
		assert.Equal(t, filepath.Join(home, "bin", "python3"), c.ProgramName)
	}

	WithProgramName("myprogram")(&o)
	assert.Equal(t, "myprogram", o.initConfig(home).ProgramName)
}

func TestOptions(t *testing.T) {
	o := defaultOptions()
	l := zap.NewExample()
	v := semver.MustParse("3.10.0")
	for _, opt := range []Opt{
		WithLogger(l),
		WithIsolated(false),
		WithSiteImport(true),
		WithWriteBytecode(true),
		WithModulePath("/app"),
		WithModulePath("/app/packages"),
		WithMinimumVersion(v),
	} {
		opt(&o)
	}

	c := o.initConfig("")
	assert.False(t, c.Isolated)
	assert.True(t, c.SiteImport)
	assert.True(t, c.WriteBytecode)
	assert.Equal(t, []string{"/app", "/app/packages"}, o.modulePaths)
	assert.Same(t, l, o.logger)
	assert.Same(t, v, o.minimumVersion)
}

func TestLibraryNotLoadable(t *testing.T) {
	_, err := NewPythonLibFromPaths(filepath.Join(t.TempDir(), "libpython3.99.so"), "")
	assert.ErrorContains(t, err, "failed to load python library")
}

func TestInitConfigArgv(t *testing.T) {
	o := defaultOptions()
	assert.Equal(t, []string{"python3", "-I", "-S", "-B"}, o.initConfig("").argv())

	WithProgramName("/opt/python/bin/python3")(&o)
	WithIsolated(false)(&o)
	WithSiteImport(true)(&o)
	assert.Equal(t, []string{"/opt/python/bin/python3", "-B"}, o.initConfig("").argv())

	WithWriteBytecode(true)(&o)
	assert.Equal(t, []string{"/opt/python/bin/python3"}, o.initConfig("").argv())
}
