package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	errs "hoopscraper/pkg/errors"
	"hoopscraper/pkg/pipeline"
)

var (
	checkpointDataset string
	checkpointFlags   fetchFlags
)

// checkpointCmd represents the checkpoint command
var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or remove the checkpoint of an interrupted run",
	Long: `Checkpoints are kept per dataset and request scope (season, season type and
shot filters). Pass the same filters as the interrupted run to find its
checkpoint.`,
}

var checkpointInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the saved checkpoint",
	Args:  cobra.NoArgs,
	RunE:  runCheckpointInfo,
}

var checkpointDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the saved checkpoint",
	Args:  cobra.NoArgs,
	RunE:  runCheckpointDelete,
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointInfoCmd)
	checkpointCmd.AddCommand(checkpointDeleteCmd)

	pf := checkpointCmd.PersistentFlags()
	pf.StringVar(&checkpointDataset, "dataset", string(pipeline.DatasetShots), "dataset of the run (shots or players)")
	pf.StringVar(&checkpointFlags.season, "season", "", "season of the run")
	pf.StringVar(&checkpointFlags.seasonType, "season-type", "", "season type of the run")
	pf.StringVar(&checkpointFlags.contextMeasure, "context-measure", "", "context measure of the run")
	pf.StringVar(&checkpointFlags.dateFrom, "date-from", "", "date_from filter of the run")
	pf.StringVar(&checkpointFlags.dateTo, "date-to", "", "date_to filter of the run")
}

func openPipeline(cmd *cobra.Command) (*pipeline.Pipeline, error) {
	cfg, err := loadConfig(checkpointFlags.toMap(cmd), false)
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg, pipeline.Dataset(checkpointDataset))
}

func runCheckpointInfo(cmd *cobra.Command, args []string) error {
	p, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	mgr, err := p.CheckpointManager()
	if err != nil {
		return errs.Wrap(errs.KindConfig, err, "failed to open checkpoint")
	}

	info, err := mgr.Info()
	if err != nil {
		return errs.Wrap(errs.KindConfig, err, "failed to read checkpoint")
	}

	out := printer()
	if info == nil {
		out.Info("No checkpoint", mgr.Path())
		return nil
	}

	out.Info("Checkpoint", mgr.Path())
	out.Info("Run", fmt.Sprint(info["run_id"]))
	out.Info("Scope", fmt.Sprintf("%v %v", info["dataset"], info["scope"]))
	out.Info("Completed", fmt.Sprintf("%v of %v players (%v rows)", info["completed"], info["total"], info["rows"]))
	out.Info("Failed", fmt.Sprint(info["failed"]))
	if age, ok := info["age"].(time.Duration); ok {
		out.Info("Last saved", age.Round(time.Second).String()+" ago")
	}
	return nil
}

func runCheckpointDelete(cmd *cobra.Command, args []string) error {
	p, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	mgr, err := p.CheckpointManager()
	if err != nil {
		return errs.Wrap(errs.KindConfig, err, "failed to open checkpoint")
	}

	if !mgr.Exists() {
		printer().Info("No checkpoint", mgr.Path())
		return nil
	}
	if err := mgr.Delete(); err != nil {
		return errs.Wrap(errs.KindConfig, err, "failed to delete checkpoint")
	}
	printer().Success("Checkpoint deleted: " + mgr.Path())
	return nil
}
