package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	pylib "github.com/richinsley/kindabridge/pkg"
)

var logger = zap.NewNop()

const defaultConfigFile = "kindabridge.yaml"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kindabridge",
	Short: "Run code in an embedded CPython runtime",
	Long: `kindabridge loads a CPython shared library at runtime and drives the
interpreter through its C API: initialize, run code, query the version and
build date/time values.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := readConfig(); err != nil {
			return err
		}
		l, err := newLogger(viper.GetString("log-level"))
		if err != nil {
			return err
		}
		logger = l
		pylib.SetLogger(l)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		os.Exit(1)
	}
}

// exitCodeError carries the interpreter's status to the process exit code.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// readConfig replaces the config layer on every call, so a missing file
// leaves no values from an earlier read behind.
func readConfig() error {
	viper.SetConfigType("yaml")
	cfgFile := viper.GetString("config")
	if cfgFile == "" {
		cfgFile = defaultConfigFile
		if _, err := os.Stat(cfgFile); errors.Is(err, os.ErrNotExist) {
			return viper.ReadConfig(strings.NewReader(""))
		}
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	if lvl.Level() <= zap.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	return cfg.Build()
}

func init() {
	viper.SetEnvPrefix("KINDABRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	f := rootCmd.PersistentFlags()
	f.String("config", "", "Config file (default is ./kindabridge.yaml)")
	f.String("log-level", "warn", "Log level (debug, info, warn, error)")
	addLibraryFlags(f)

	err := viper.BindPFlags(f)
	if err != nil {
		panic(err)
	}
}
