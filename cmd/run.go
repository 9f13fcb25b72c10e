package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	pylib "github.com/richinsley/kindabridge/pkg"
)

var runCode string

func runCmdRun(cmd *cobra.Command, args []string) error {
	if (runCode == "") == (len(args) == 0) {
		return fmt.Errorf("either a script or -c must be given")
	}

	return withInterpreter(func(p *pylib.PythonLib) error {
		var err error
		if runCode != "" {
			err = p.RunString(runCode)
		} else {
			err = p.RunFile(args[0])
		}
		return runResult(cmd, err)
	})
}

// runResult maps an exception raised by the script to exit status 1.
func runResult(cmd *cobra.Command, err error) error {
	var execErr *pylib.ExecError
	if errors.As(err, &execErr) {
		// the runtime already printed the traceback
		cmd.SilenceErrors = true
		return &exitCodeError{code: 1}
	}
	return err
}

func init() {
	var cmd = &cobra.Command{
		Use:   "run [script]",
		Short: "Runs a python script or code string",
		Long: "Initializes the interpreter, runs the script or the code passed with -c " +
			"in the __main__ module and finalizes the interpreter again.",
		Args: cobra.MaximumNArgs(1),
		RunE: runCmdRun,
	}
	cmd.Flags().StringVarP(&runCode, "code", "c", "", "Code to run instead of a script")

	rootCmd.AddCommand(cmd)
}
