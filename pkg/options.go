package pkg

import (
	"path/filepath"
	"runtime"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"
)

// DefaultMinimumVersion is the oldest runtime the bridge accepts. The "-0"
// pre-release makes 3.8 alphas and release candidates pass the check.
var DefaultMinimumVersion = semver.MustParse("3.8.0-0")

type pythonLibOptions struct {
	logger         *zap.Logger
	programName    string
	isolated       bool
	siteImport     bool
	writeBytecode  bool
	modulePaths    []string
	minimumVersion *semver.Version
}

// Opt configures a PythonLib.
type Opt func(o *pythonLibOptions)

func defaultOptions() pythonLibOptions {
	// site import and bytecode writing are off: app bundles ship a read-only stdlib
	return pythonLibOptions{
		isolated:       true,
		minimumVersion: DefaultMinimumVersion,
	}
}

func WithLogger(l *zap.Logger) Opt {
	return func(o *pythonLibOptions) {
		o.logger = l
	}
}

// WithProgramName overrides the program name, which otherwise defaults to the
// interpreter executable inside the home directory.
func WithProgramName(name string) Opt {
	return func(o *pythonLibOptions) {
		o.programName = name
	}
}

// WithIsolated selects the isolated configuration, which ignores PYTHON*
// environment variables and the user site directory. Enabled by default.
func WithIsolated(isolated bool) Opt {
	return func(o *pythonLibOptions) {
		o.isolated = isolated
	}
}

func WithSiteImport(siteImport bool) Opt {
	return func(o *pythonLibOptions) {
		o.siteImport = siteImport
	}
}

func WithWriteBytecode(writeBytecode bool) Opt {
	return func(o *pythonLibOptions) {
		o.writeBytecode = writeBytecode
	}
}

// WithModulePath prepends dir to sys.path once the interpreter is running.
func WithModulePath(dir string) Opt {
	return func(o *pythonLibOptions) {
		o.modulePaths = append(o.modulePaths, dir)
	}
}

func WithMinimumVersion(v *semver.Version) Opt {
	return func(o *pythonLibOptions) {
		o.minimumVersion = v
	}
}

// initConfig is the resolved configuration for one Initialize call.
type initConfig struct {
	Home          string
	ProgramName   string
	Isolated      bool
	SiteImport    bool
	WriteBytecode bool
}

func (o *pythonLibOptions) initConfig(home string) initConfig {
	c := initConfig{
		Home:          home,
		ProgramName:   o.programName,
		Isolated:      o.isolated,
		SiteImport:    o.siteImport,
		WriteBytecode: o.writeBytecode,
	}
	if c.ProgramName == "" && home != "" {
		c.ProgramName = defaultProgramName(home)
	}
	return c
}

func defaultProgramName(home string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(home, "python.exe")
	}
	return filepath.Join(home, "bin", "python3")
}

// argv is the command line handed to PEP 587 initialization.
func (c initConfig) argv() []string {
	name := c.ProgramName
	if name == "" {
		name = "python3"
	}
	args := []string{name}
	if c.Isolated {
		args = append(args, "-I")
	}
	if !c.SiteImport {
		args = append(args, "-S")
	}
	if !c.WriteBytecode {
		args = append(args, "-B")
	}
	return args
}
