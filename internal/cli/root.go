// Package cli implements the replay command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wesleyorama2/replay/internal/config"
	"github.com/wesleyorama2/replay/internal/failure"
	"github.com/wesleyorama2/replay/internal/logging"
)

var version = "0.1.0"

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configFile string
	logLevel   string
	logFormat  string
	appLog     string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:     "replay",
		Short:   "Replay recorded test case invocations against a service under load",
		Version: version,
		Long: `replay runs directives (a test case id plus its parameters) against a
service with a pool of workers, at a controlled pacing, count or duration,
and writes one execution record per request attempt. The stats command
turns an execution log into a CSV latency and throughput report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "Settings file (default ./"+config.DefaultFile+" when present)")
	pf.StringVar(&g.logLevel, "log-level", "info", "Application log level (debug, info, warn, error)")
	pf.StringVar(&g.logFormat, "log-format", "text", "Application log format (text or json)")
	pf.StringVar(&g.appLog, "app-log", "", "Write the application log to this file instead of stderr")

	root.AddCommand(newRunCmd(g))
	root.AddCommand(newStatsCmd(g))
	root.AddCommand(newListCmd(g))
	return root
}

// RootCmd is the command tree used by Execute.
var RootCmd = NewRootCmd()

// Execute runs the root command and prints the error, if any.
func Execute() error {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// logger builds the application logger from the persistent flags.
func (g *globalOptions) logger(stderr io.Writer) (*logrus.Logger, io.Closer, error) {
	return logging.New(logging.Options{
		Level:  g.logLevel,
		Format: g.logFormat,
		File:   g.appLog,
		Output: stderr,
	})
}

// settings loads the settings file and environment, with the given flags
// bound to their keys. Flags take precedence when set.
func (g *globalOptions) settings(cmd *cobra.Command, bindings map[string]string) (*config.Settings, error) {
	v, err := config.New(g.configFile)
	if err != nil {
		return nil, err
	}
	if err := bindFlags(v, cmd, bindings); err != nil {
		return nil, err
	}
	return config.Load(v)
}

func bindFlags(v *viper.Viper, cmd *cobra.Command, bindings map[string]string) error {
	for flag, key := range bindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q", flag)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// ExitCode maps the error returned by Execute to a process exit code: 0 on
// success, 1 for a configuration error and 2 for anything else, including
// command line usage errors.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cerr *failure.ConfigurationError
	if errors.As(err, &cerr) {
		return 1
	}
	return 2
}
