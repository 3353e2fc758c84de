package stats

import (
	"context"

	errs "hoopscraper/pkg/errors"
	"hoopscraper/pkg/subject"
	"hoopscraper/pkg/table"
)

// ShotChart fetches the shot chart detail for one player
func (c *Client) ShotChart(ctx context.Context, q ShotChartQuery) (*table.Table, error) {
	if q.LeagueID == "" {
		q.LeagueID = c.leagueID
	}
	params, err := q.Values()
	if err != nil {
		return nil, errs.Transport(errs.ErrorTypeParsing, 0, "%v", err)
	}

	resp, err := c.Get(ctx, EndpointShotChartDetail, params)
	if err != nil {
		return nil, err
	}
	return resp.Table(SetShotChartDetail)
}

// ShotFetcher fetches the shots of each player with the filters of base.
// TeamID defaults to 0 so that shots for every team the player appeared
// for are returned.
type ShotFetcher struct {
	Client *Client
	Base   ShotChartQuery
}

// Fetch has the signature of a fetcher.FetchFunc
func (f *ShotFetcher) Fetch(ctx context.Context, s subject.Subject) (*table.Table, error) {
	q := f.Base
	q.PlayerID = s.ID
	return f.Client.ShotChart(ctx, q)
}
