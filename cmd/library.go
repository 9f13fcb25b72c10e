package cmd

import (
	"fmt"

	"github.com/kluctl/go-embed-python/python"
	kinda "github.com/richinsley/kinda/pkg"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	pylib "github.com/richinsley/kindabridge/pkg"
)

func addLibraryFlags(f *pflag.FlagSet) {
	f.String("lib", "", "Path to the CPython shared library")
	f.String("home", "", "Python home directory; defaults to the home of the selected library source")
	f.String("kinda-root", "", "Create or reuse a kinda (micromamba) environment below this directory")
	f.String("python-version", "3.11", "Python version of the kinda environment")
	f.String("channel", "conda-forge", "Conda channel of the kinda environment")
	f.Bool("embedded", false, "Use the python distribution embedded in this binary")
	f.Bool("isolated", true, "Ignore PYTHON* environment variables and the user site directory")
	f.Bool("site-import", false, "Import the site module on startup")
	f.Bool("write-bytecode", false, "Write .pyc files on import")
	f.StringSlice("module-path", nil, "Directory to prepend to sys.path; may be repeated")
}

func libraryOptions() []pylib.Opt {
	opts := []pylib.Opt{
		pylib.WithLogger(logger),
		pylib.WithIsolated(viper.GetBool("isolated")),
		pylib.WithSiteImport(viper.GetBool("site-import")),
		pylib.WithWriteBytecode(viper.GetBool("write-bytecode")),
	}
	for _, p := range viper.GetStringSlice("module-path") {
		opts = append(opts, pylib.WithModulePath(p))
	}
	return opts
}

// librarySource names the configured way of obtaining libpython.
func librarySource() (string, error) {
	var sources []string
	if viper.GetString("lib") != "" {
		sources = append(sources, "lib")
	}
	if viper.GetString("kinda-root") != "" {
		sources = append(sources, "kinda-root")
	}
	if viper.GetBool("embedded") {
		sources = append(sources, "embedded")
	}
	switch len(sources) {
	case 0:
		return "", fmt.Errorf("no python library configured: use --lib, --kinda-root or --embedded")
	case 1:
		return sources[0], nil
	default:
		return "", fmt.Errorf("only one of --lib, --kinda-root and --embedded may be used, got %v", sources)
	}
}

func openPythonLib() (*pylib.PythonLib, error) {
	source, err := librarySource()
	if err != nil {
		return nil, err
	}
	opts := libraryOptions()

	switch source {
	case "kinda-root":
		version := viper.GetString("python-version")
		env, err := kinda.CreateEnvironment("kindabridge"+version, viper.GetString("kinda-root"), version, viper.GetString("channel"), kinda.ShowVerbose)
		if err != nil {
			return nil, fmt.Errorf("failed to create environment: %w", err)
		}
		return pylib.NewPythonLib(env, opts...)
	case "embedded":
		ep, err := python.NewEmbeddedPython("kindabridge")
		if err != nil {
			return nil, fmt.Errorf("failed to extract embedded python: %w", err)
		}
		return pylib.NewPythonLibFromEmbedded(ep, opts...)
	default:
		return pylib.NewPythonLibFromPaths(viper.GetString("lib"), viper.GetString("home"), opts...)
	}
}

// withInterpreter opens the library, initializes it and finalizes it after fn returns.
func withInterpreter(fn func(p *pylib.PythonLib) error) error {
	p, err := openPythonLib()
	if err != nil {
		return err
	}
	defer p.Close()

	ok, err := p.Initialize(viper.GetString("home"))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("python failed to initialize")
	}
	return fn(p)
}
