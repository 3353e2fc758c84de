package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"hoopscraper/pkg/config"
	errs "hoopscraper/pkg/errors"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage hoopscraper configuration files.

Configuration is loaded from, highest priority first:
  - Command line flags
  - Environment variables (HOOPSCRAPER_*)
  - .env file
  - Configuration file
  - Default values`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created as '.hoopscraper.yaml' in the current directory unless
a different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# hoopscraper configuration file
#
# Every option can also be set with an environment variable prefixed with
# HOOPSCRAPER_, for example HOOPSCRAPER_SEASON or HOOPSCRAPER_RATE_LIMIT_MS.

# Season sent to every request
season: "2022-23"
season_type: "Regular Season"

# Output CSV file or s3://bucket/key. Empty selects the dataset default.
output_path: ""

# Pause between API calls in milliseconds
rate_limit_ms: 600

subjects_filter:
  # Only players on a current roster
  active_only: true
  # Only these player IDs
  ids: []
  name_contains: ""
  # Fetch at most this many players, 0 for all
  limit: 0
  # Read the player list from a JSON file instead of the API
  players_file: ""

stats:
  base_url: "https://stats.nba.com"
  timeout: 30s
  league_id: "00"
  # Cache reference data (player list, player index) in memory
  cache_ttl: 0s

rate_limit:
  # fixed, token_bucket, sliding_window or none
  strategy: "fixed"
  requests_per_minute: 100

retry:
  enabled: true
  max_attempts: 3
  base_delay: 2s
  max_delay: 30s
  multiplier: 2.0

checkpoint:
  enabled: true
  # Empty selects the platform data directory
  directory: ""
  # Save every N players
  interval: 25

output:
  # Abort without output when any player fails
  fail_on_failure: false
  # Write failed players to <output>.failures.csv
  failures_report: true

shots:
  context_measure: "FGA"
  date_from: ""
  date_to: ""

metrics:
  # Serve Prometheus metrics while running, e.g. ":9090"
  addr: ""

logging:
  level: "info"
  file: ""
  json: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".hoopscraper.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return errs.New(errs.KindConfig, "configuration file already exists: %s", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return errs.Wrap(errs.KindConfig, err, "failed to create configuration file")
	}

	out := printer()
	out.Success("Configuration file created: " + configPath)
	fmt.Fprintln(out.Out, "\nNext steps:")
	fmt.Fprintln(out.Out, "1. Edit the configuration file")
	fmt.Fprintln(out.Out, "2. Run 'hoopscraper config validate' to check it")
	fmt.Fprintln(out.Out, "3. Start fetching with 'hoopscraper shots'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return errs.Wrap(errs.KindConfig, err, "failed to load configuration")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errs.Wrap(errs.KindConfig, err, "failed to format configuration")
	}

	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if _, err := config.Load(configFile, nil); err != nil {
		return errs.Wrap(errs.KindConfig, err, "invalid configuration")
	}
	printer().Success("Configuration is valid")
	return nil
}
