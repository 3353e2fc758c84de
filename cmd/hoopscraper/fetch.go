package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"hoopscraper/pkg/logger"
	"hoopscraper/pkg/metrics"
	"hoopscraper/pkg/pipeline"
	"hoopscraper/pkg/ui"
)

// fetchFlags are shared by the dataset commands
type fetchFlags struct {
	season            string
	seasonType        string
	output            string
	playersFile       string
	playerIDs         []string
	nameContains      string
	includeInactive   bool
	limit             int
	rateLimitMS       int
	rateLimitStrategy string
	maxRetries        int
	noCheckpoint      bool
	failOnFailure     bool
	metricsAddr       string
	resume            bool
	forceRestart      bool

	// shots only
	contextMeasure string
	dateFrom       string
	dateTo         string
}

var (
	shotsFlags   fetchFlags
	playersFlags fetchFlags
)

// shotsCmd represents the shots command
var shotsCmd = &cobra.Command{
	Use:   "shots",
	Short: "Fetch the shot chart of every player",
	Long: `Fetch the shot chart detail of every selected player for one season and
write all shots to a single CSV file.

One request is sent per player with a fixed pause between requests. Players
whose request fails are retried, then skipped and listed in a failure report
next to the output file.`,
	Example: `  # All shot attempts of active players in 2022-23
  hoopscraper shots

  # Made shots of two players in the playoffs
  hoopscraper shots --player-ids 2544,201939 --season-type Playoffs --context-measure PTS

  # Shots in January, written to S3
  hoopscraper shots --date-from 2023-01-01 --date-to "Jan 31, 2023" -o s3://bucket/shots.csv

  # Resume an interrupted run
  hoopscraper shots --resume`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDataset(cmd, pipeline.DatasetShots, &shotsFlags)
	},
}

// playersCmd represents the players command
var playersCmd = &cobra.Command{
	Use:   "players",
	Short: "Fetch player information from the player index",
	Long: `Download the player index of a season once and write the rows of every
selected player to a single CSV file.`,
	Example: `  # Player information of all active players
  hoopscraper players

  # Players whose name contains "curry"
  hoopscraper players --name-contains curry -o curry.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDataset(cmd, pipeline.DatasetPlayers, &playersFlags)
	},
}

func init() {
	rootCmd.AddCommand(shotsCmd)
	rootCmd.AddCommand(playersCmd)

	shotsFlags.register(shotsCmd)
	shotsCmd.Flags().StringVar(&shotsFlags.contextMeasure, "context-measure", "", "shot chart context measure (default FGA)")
	shotsCmd.Flags().StringVar(&shotsFlags.dateFrom, "date-from", "", "only shots on or after this date")
	shotsCmd.Flags().StringVar(&shotsFlags.dateTo, "date-to", "", "only shots on or before this date")

	playersFlags.register(playersCmd)
}

func (f *fetchFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.season, "season", "", "season, e.g. 2022-23")
	fl.StringVar(&f.seasonType, "season-type", "", "season type (Regular Season, Playoffs, ...)")
	fl.StringVarP(&f.output, "output", "o", "", "output CSV file or s3://bucket/key")
	fl.StringVar(&f.playersFile, "players-file", "", "read the player list from a JSON file")
	fl.StringSliceVar(&f.playerIDs, "player-ids", nil, "only fetch these player IDs")
	fl.StringVar(&f.nameContains, "name-contains", "", "only fetch players whose name contains this text")
	fl.BoolVar(&f.includeInactive, "include-inactive", false, "include players not on a current roster")
	fl.IntVar(&f.limit, "limit", 0, "fetch at most this many players")
	fl.IntVar(&f.rateLimitMS, "rate-limit-ms", 600, "pause between API calls in milliseconds")
	fl.StringVar(&f.rateLimitStrategy, "rate-limit-strategy", "", "fixed, token_bucket, sliding_window or none")
	fl.IntVar(&f.maxRetries, "max-retries", 3, "attempts per player, first one included")
	fl.BoolVar(&f.noCheckpoint, "no-checkpoint", false, "disable checkpoints")
	fl.BoolVar(&f.failOnFailure, "fail-on-failure", false, "abort without output when any player fails")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	fl.BoolVar(&f.resume, "resume", false, "resume from last checkpoint")
	fl.BoolVar(&f.forceRestart, "force-restart", false, "force restart, ignoring existing checkpoint")
}

// toMap returns the flags the user set, keyed for config.MergeCommandLineFlags
func (f *fetchFlags) toMap(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	changed := cmd.Flags().Changed

	if changed("season") {
		flags["season"] = f.season
	}
	if changed("season-type") {
		flags["season-type"] = f.seasonType
	}
	if changed("output") {
		flags["output"] = f.output
	}
	if changed("players-file") {
		flags["players-file"] = f.playersFile
	}
	if changed("player-ids") {
		flags["player-ids"] = f.playerIDs
	}
	if changed("name-contains") {
		flags["name-contains"] = f.nameContains
	}
	if changed("include-inactive") {
		flags["include-inactive"] = f.includeInactive
	}
	if changed("limit") {
		flags["limit"] = f.limit
	}
	if changed("rate-limit-ms") {
		flags["rate-limit-ms"] = f.rateLimitMS
	}
	if changed("rate-limit-strategy") {
		flags["rate-limit-strategy"] = f.rateLimitStrategy
	}
	if changed("max-retries") {
		flags["max-retries"] = f.maxRetries
	}
	if changed("no-checkpoint") {
		flags["no-checkpoint"] = f.noCheckpoint
	}
	if changed("fail-on-failure") {
		flags["fail-on-failure"] = f.failOnFailure
	}
	if changed("metrics-addr") {
		flags["metrics-addr"] = f.metricsAddr
	}
	if changed("context-measure") {
		flags["context-measure"] = f.contextMeasure
	}
	if changed("date-from") {
		flags["date-from"] = f.dateFrom
	}
	if changed("date-to") {
		flags["date-to"] = f.dateTo
	}

	return flags
}

func runDataset(cmd *cobra.Command, dataset pipeline.Dataset, f *fetchFlags) error {
	interactive := !quiet && ui.IsTerminal(os.Stdout)

	cfg, err := loadConfig(f.toMap(cmd), interactive)
	if err != nil {
		return err
	}
	log := logger.GetLogger()
	out := printer()

	display := ui.NewProgressDisplay(os.Stdout, string(dataset), 0, interactive)
	opts := []pipeline.Option{
		pipeline.WithLogger(log),
		pipeline.WithResume(f.resume),
		pipeline.WithForceRestart(f.forceRestart),
		pipeline.WithStartHook(display.SetTotal),
	}
	if !quiet {
		opts = append(opts, pipeline.WithObserver(display.Observe))
	}

	var m *metrics.Metrics
	if cfg.Metrics.Addr != "" {
		m = metrics.New()
		opts = append(opts,
			pipeline.WithObserver(m.Observer(string(dataset))),
			pipeline.WithStartHook(func(n int) { m.SetSubjects(string(dataset), n) }),
		)
	}

	p, err := pipeline.New(cfg, dataset, opts...)
	if err != nil {
		return err
	}

	out.Info("Dataset", string(dataset))
	out.Info("Season", cfg.Season)
	out.Info("Output", p.OutputPath())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	var summary *pipeline.Summary
	g.Go(func() error {
		defer cancel()
		s, err := p.Run(gctx)
		summary = s
		return err
	})
	if m != nil {
		g.Go(func() error {
			// a metrics server that cannot listen does not stop the run
			if err := m.Serve(gctx, cfg.Metrics.Addr, log); err != nil {
				log.WithError(err).Warn("Metrics server stopped")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) && cfg.Checkpoint.Enabled {
			out.Warning("\nInterrupted. Progress was saved, run again with --resume to continue.")
		}
		return err
	}

	if !quiet {
		display.Complete(summary.Output)
	}
	if summary.Failures != "" {
		out.Warning(fmt.Sprintf("%d players failed, see %s", summary.Failed, summary.Failures))
	}
	out.Success(fmt.Sprintf("Done in %s (run %s)", summary.Duration.Round(time.Millisecond), summary.RunID))
	return nil
}
