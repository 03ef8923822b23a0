// Package cli implements the gemini-planner command line: the MCP server
// itself plus a few local commands for inspecting stored contexts and
// checking the generator setup.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/HendryAvila/gemini-planner/internal/config"
	"github.com/HendryAvila/gemini-planner/internal/generator"
	"github.com/HendryAvila/gemini-planner/internal/logging"
	"github.com/HendryAvila/gemini-planner/internal/server"
	"github.com/HendryAvila/gemini-planner/internal/updater"
)

// connectionTester is the slice of the generator the check command uses.
type connectionTester interface {
	TestConnection(ctx context.Context) bool
	Model() string
	CLIPath() string
	HasAPIKey() bool
}

// app carries flag values and the constructors commands use, so tests can
// swap the external collaborators.
type app struct {
	cfgFile  string
	logLevel string

	newTester  func(cfg config.GeminiConfig, logger *slog.Logger) connectionTester
	newChecker func(repo string, logger *slog.Logger) *updater.Checker
}

func defaultApp() *app {
	return &app{
		newTester: func(cfg config.GeminiConfig, logger *slog.Logger) connectionTester {
			return generator.New(generator.ConfigFrom(cfg), logger, nil)
		},
		newChecker: updater.New,
	}
}

// errSilent marks a failure whose explanation was already printed.
var errSilent = errors.New("command failed")

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return run(NewRootCmd())
}

func run(root *cobra.Command) int {
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errSilent) {
			_, _ = fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultApp())
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "gemini-planner",
		Short: "MCP planning server backed by the Gemini CLI",
		Long: `gemini-planner turns project requirements into structured implementation
plans by delegating to the Gemini CLI, and keeps a persistent planning
context per project (plans, execution results, feedback).

Add it to your assistant's MCP config:

  {
    "mcpServers": {
      "gemini-planner": {
        "command": "gemini-planner",
        "args": ["serve"],
        "env": { "GEMINI_MODEL": "gemini-2.5-pro" }
      }
    }
  }`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "",
		"config file (default is $XDG_CONFIG_HOME/gemini-planner/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		a.serveCmd(),
		a.checkCmd(),
		a.viewCmd(),
		a.listCmd(),
		a.updateCmd(),
		a.versionCmd(),
	)
	return root
}

// loadConfig reads configuration for cmd, applying command-line overrides.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v, err := config.NewViper(a.cfgFile)
	if err != nil {
		return nil, err
	}
	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}
	if a.logLevel != "" {
		v.Set("logging.level", a.logLevel)
	}
	return config.Load(v)
}

// flagKeys maps local flag names onto config keys.
var flagKeys = map[string]string{
	"model":   "gemini.model",
	"storage": "storage.dir",
	"driver":  "storage.driver",
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding --%s: %w", flag, err)
		}
	}
	return nil
}

func (a *app) logger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.New(cfg.Logging, cmd.ErrOrStderr())
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "gemini-planner v%s\n", server.Version)
		},
	}
}

// printf writes to w and ignores the error; used for human-facing output.
func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
