package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionShort bool

func runCmdVersion(cmd *cobra.Command, args []string) error {
	p, err := openPythonLib()
	if err != nil {
		return err
	}
	defer p.Close()

	if versionShort {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), p.VersionInfo().String())
	} else {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), p.Version())
	}
	return err
}

func init() {
	var cmd = &cobra.Command{
		Use:   "version",
		Short: "Prints the version of the python runtime",
		Long:  "Prints the version string of the loaded python runtime. The interpreter is not initialized.",
		Args:  cobra.NoArgs,
		RunE:  runCmdVersion,
	}
	cmd.Flags().BoolVar(&versionShort, "short", false, "Print only the semantic version")

	rootCmd.AddCommand(cmd)
}
