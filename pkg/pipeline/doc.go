// Package pipeline runs a bulk fetch from the player list to the CSV file.
//
// A run moves through these states:
//
//	not_started -> enumerating -> fetching -> flattening -> writing -> done
//
// Any fatal error moves it to failed. Fatal errors are a missing player
// list or player index, a schema mismatch between two players' record-sets,
// an empty aggregate, a sink write failure, and under fail_on_failure any
// failed player. A failed run writes no output file.
//
// Datasets:
//
//   - shots: one shotchartdetail call per player, paced by the configured
//     limiter (600ms between calls by default).
//   - players: one playerindex download, then a local lookup per player.
//
// Checkpoints:
//
// Completed record-sets are saved every checkpoint.interval players and when
// the run is interrupted. A later run with --resume takes them from the
// checkpoint instead of calling the API again. The checkpoint is removed
// once the output is written.
//
// Usage:
//
//	p, err := pipeline.New(cfg, pipeline.DatasetShots,
//	    pipeline.WithObserver(display.Observe),
//	    pipeline.WithResume(true),
//	)
//	if err != nil {
//	    return err
//	}
//	summary, err := p.Run(ctx)
package pipeline
