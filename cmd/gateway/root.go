package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/gateway/pkg/cli"
	"mercator-hq/gateway/pkg/config"
	"mercator-hq/gateway/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Mercator gateway - policy expressions for LLM traffic",
	Long: `The Mercator gateway evaluates policy expressions against LLM traffic.

Expressions are written in a CEL-style language and read the request,
the response and the LLM exchange:

  request.headers["x-team"] in ["search", "ads"] && llm.inputTokens < 4000

Rule files group expressions into authorization, transform and route
rules; "gateway serve" answers forward-auth requests from a reverse proxy
with the decision of the active rule file.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with its status.
func Execute() {
	err := rootCmd.Execute()
	var exit *cli.ExitError
	if err != nil && !errors.As(err, &exit) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.ExitCode(err))
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}

// loadConfig loads the --config file with environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the command's logger. Commands log to w, normally
// stderr, so their results on stdout stay machine-readable.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	logger, err := logging.New(cfg.Telemetry.Logging, w)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	return logger, nil
}
