package stats

import (
	"context"
	"sync"

	errs "hoopscraper/pkg/errors"
	"hoopscraper/pkg/subject"
	"hoopscraper/pkg/table"
)

// PlayerSource lists players from the commonallplayers endpoint. A player
// is active when ROSTERSTATUS is 1.
type PlayerSource struct {
	Client *Client
	Season string
}

// Subjects implements subject.Source
func (p *PlayerSource) Subjects(ctx context.Context) ([]subject.Subject, error) {
	resp, err := p.Client.Get(ctx, EndpointCommonAllPlayers, CommonAllPlayersParams(p.Client.leagueID, p.Season))
	if err != nil {
		return nil, err
	}
	t, err := resp.Table(SetCommonAllPlayers)
	if err != nil {
		return nil, err
	}
	return SubjectsFromTable(t)
}

// SubjectsFromTable reads subjects out of a commonallplayers table
func SubjectsFromTable(t *table.Table) ([]subject.Subject, error) {
	id := t.ColumnIndex("PERSON_ID")
	name := t.ColumnIndex("DISPLAY_FIRST_LAST")
	status := t.ColumnIndex("ROSTERSTATUS")
	if id < 0 || name < 0 || status < 0 {
		return nil, errs.Transport(errs.ErrorTypeParsing, 0, "player list is missing PERSON_ID, DISPLAY_FIRST_LAST or ROSTERSTATUS")
	}
	teamID := t.ColumnIndex("TEAM_ID")
	teamAbbr := t.ColumnIndex("TEAM_ABBREVIATION")

	out := make([]subject.Subject, 0, t.Len())
	for _, row := range t.Rows {
		s := subject.Subject{
			ID:     table.Text(row[id]),
			Name:   table.Text(row[name]),
			Active: table.Text(row[status]) == "1",
		}
		if teamID >= 0 {
			s.TeamID = table.Text(row[teamID])
		}
		if teamAbbr >= 0 {
			s.TeamAbbreviation = table.Text(row[teamAbbr])
		}
		out = append(out, s)
	}
	return out, nil
}

// PlayerIndex fetches the player index of a season
func (c *Client) PlayerIndex(ctx context.Context, season string) (*table.Table, error) {
	resp, err := c.Get(ctx, EndpointPlayerIndex, PlayerIndexParams(c.leagueID, season))
	if err != nil {
		return nil, err
	}
	return resp.Table(SetPlayerIndex)
}

// PlayerIndexLookup answers per-player fetches from a single player index
// download. The index is loaded on first use.
type PlayerIndexLookup struct {
	Client *Client
	Season string

	once  sync.Once
	index *table.Table
	err   error
}

// Fetch returns the player index rows of s. It has the signature of a
// fetcher.FetchFunc.
func (l *PlayerIndexLookup) Fetch(ctx context.Context, s subject.Subject) (*table.Table, error) {
	l.once.Do(func() {
		l.index, l.err = l.Client.PlayerIndex(ctx, l.Season)
	})
	if l.err != nil {
		return nil, l.err
	}
	return l.index.Where("PERSON_ID", s.ID)
}

// Load downloads the index up front so that a failure surfaces as missing
// reference data rather than as a failure of every player.
func (l *PlayerIndexLookup) Load(ctx context.Context) error {
	l.once.Do(func() {
		l.index, l.err = l.Client.PlayerIndex(ctx, l.Season)
	})
	if l.err != nil {
		return errs.Wrap(errs.KindReferenceDataUnavailable, l.err, "failed to load player index")
	}
	return nil
}
