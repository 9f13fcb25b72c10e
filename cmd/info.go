package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	pylib "github.com/richinsley/kindabridge/pkg"
)

var infoOutput string

type runtimeInfo struct {
	LibPath     string            `json:"libPath" yaml:"libPath"`
	Home        string            `json:"home,omitempty" yaml:"home,omitempty"`
	Version     string            `json:"version" yaml:"version"`
	VersionInfo string            `json:"versionInfo" yaml:"versionInfo"`
	Initialized bool              `json:"initialized" yaml:"initialized"`
	Singletons  map[string]string `json:"singletons" yaml:"singletons"`
}

func collectInfo(p *pylib.PythonLib) runtimeInfo {
	return runtimeInfo{
		LibPath:     p.LibPath,
		Home:        p.Home,
		Version:     p.Version(),
		VersionInfo: p.VersionInfo().String(),
		Initialized: p.IsInitialized(),
		Singletons: map[string]string{
			"True":  fmt.Sprintf("%#x", uintptr(p.True())),
			"False": fmt.Sprintf("%#x", uintptr(p.False())),
			"None":  fmt.Sprintf("%#x", uintptr(p.None())),
		},
	}
}

func writeInfo(w io.Writer, info runtimeInfo, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(info); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	default:
		return fmt.Errorf("invalid output format %q, must be yaml or json", format)
	}
}

func runCmdInfo(cmd *cobra.Command, args []string) error {
	return withInterpreter(func(p *pylib.PythonLib) error {
		return writeInfo(cmd.OutOrStdout(), collectInfo(p), infoOutput)
	})
}

func init() {
	var cmd = &cobra.Command{
		Use:   "info",
		Short: "Prints information about the python runtime",
		Long:  "Initializes the interpreter and prints the library path, home, version and singleton handles.",
		Args:  cobra.NoArgs,
		RunE:  runCmdInfo,
	}
	cmd.Flags().StringVarP(&infoOutput, "output", "o", "yaml", "Output format (yaml or json)")

	rootCmd.AddCommand(cmd)
}
