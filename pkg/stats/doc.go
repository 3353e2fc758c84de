// Package stats is a small client for the stats.nba.com JSON API.
//
// The API answers every endpoint with named result sets of headers and
// rows. Values are decoded with json.Number so that IDs and percentages are
// written out exactly as received. The client sends the browser headers the
// API insists on (Referer, Origin, x-nba-stats-origin, x-nba-stats-token)
// and classifies failures into errors.ErrorType values used by the retry
// policy.
package stats
