package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	pylib "github.com/richinsley/kindabridge/pkg"
)

var datetimeFieldNames = []string{"year", "month", "day", "hour", "minute", "second", "microsecond"}

// parseDateTimeArgs parses "Y M D [h m s us]". Missing clock fields are zero;
// dateOnly is true when only the date was given.
func parseDateTimeArgs(args []string) (fields [7]int, dateOnly bool, err error) {
	if len(args) < 3 || len(args) > 7 {
		return fields, false, fmt.Errorf("expected 3 to 7 fields, got %d", len(args))
	}
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return fields, false, fmt.Errorf("invalid %s %q: %w", datetimeFieldNames[i], a, err)
		}
		fields[i] = v
	}
	return fields, len(args) == 3, nil
}

func runCmdDatetime(cmd *cobra.Command, args []string) error {
	f, dateOnly, err := parseDateTimeArgs(args)
	if err != nil {
		return err
	}

	return withInterpreter(func(p *pylib.PythonLib) error {
		if dateOnly {
			o, err := p.NewDate(f[0], f[1], f[2])
			if err != nil {
				return err
			}
			defer p.DecRef(o)

			d, err := p.DateInfo(o)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), d)
			return err
		}

		o, err := p.NewDateTime(f[0], f[1], f[2], f[3], f[4], f[5], f[6])
		if err != nil {
			return err
		}
		defer p.DecRef(o)

		dt, err := p.DateTimeInfo(o)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), dt)
		return err
	})
}

func init() {
	var cmd = &cobra.Command{
		Use:   "datetime YEAR MONTH DAY [HOUR MINUTE SECOND MICROSECOND]",
		Short: "Builds a date or datetime in python and reads it back",
		Long: "Builds a datetime.date (three fields) or datetime.datetime (more fields) " +
			"through the datetime C API, reads its fields back and prints them. " +
			"Out-of-range fields are rejected by the runtime.",
		Args: cobra.RangeArgs(3, 7),
		RunE: runCmdDatetime,
	}

	rootCmd.AddCommand(cmd)
}
