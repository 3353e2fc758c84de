package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"hoopscraper/pkg/config"
	errs "hoopscraper/pkg/errors"
	"hoopscraper/pkg/logger"
	"hoopscraper/pkg/ui"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFile    string
	jsonLogs   bool
	noColor    bool
	quiet      bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hoopscraper",
	Short: "Bulk fetch NBA stats into a single CSV file",
	Long: `hoopscraper fetches one record-set per player from the NBA stats API and
writes them as a single CSV table.

Features:
  - Fixed pacing between API calls (600ms by default)
  - Failed players are retried, reported and skipped
  - Checkpoints so an interrupted run can be resumed
  - Output to a local file or an S3 object
  - Optional Prometheus metrics while a run is in progress`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !noColor && ui.IsTerminal(os.Stdout) {
			ui.EnableColor()
		}

		// only the fetch commands show the logo
		if cmd == shotsCmd || cmd == playersCmd {
			printer().Logo()
		}
	},
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		(&ui.Printer{Out: os.Stderr}).Error("hoopscraper failed", err)
	}
	return errs.ExitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .hoopscraper.yaml or ~/.config/hoopscraper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "write console logs as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show log lines alongside the progress line")

	rootCmd.SetVersionTemplate(`hoopscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func printer() *ui.Printer {
	return &ui.Printer{Out: os.Stdout, Quiet: quiet}
}

// loadConfig loads the configuration with flags applied on top and
// initializes the global logger from it
func loadConfig(flags map[string]interface{}, interactive bool) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	switch {
	case logLevel != "":
		flags["log-level"] = logLevel
	case interactive && !verbose:
		// keep the progress line readable
		flags["log-level"] = "error"
	}
	if logFile != "" {
		flags["log-file"] = logFile
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, err, "failed to load configuration")
	}
	if jsonLogs {
		cfg.Logging.JSON = true
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, errs.Wrap(errs.KindConfig, err, "failed to initialize logger")
	}
	logger.WithField("version", version).Debug("hoopscraper starting")

	return cfg, nil
}
