// Package checkpoint saves fetch progress so an interrupted run can resume
// without calling the stats API again for players already fetched.
//
// A checkpoint holds every successful record-set of the run keyed by player
// ID, plus the IDs that failed. Failed players are retried on resume. The
// file is named after the dataset and request scope, so a shots run for
// 2022-23 never resumes from a 2021-22 checkpoint.
//
// Checkpoints are stored in platform-specific data directories unless
// checkpoint.directory is set:
//   - Linux: ~/.local/share/hoopscraper/checkpoints/
//   - macOS: ~/Library/Application Support/hoopscraper/checkpoints/
//   - Windows: %APPDATA%/hoopscraper/checkpoints/
//
// Files are written to a temporary path and renamed into place. They are
// deleted once the output file has been written.
package checkpoint
