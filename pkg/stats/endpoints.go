package stats

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/araddon/dateparse"
)

const (
	// DefaultBaseURL is the public stats API host
	DefaultBaseURL = "https://stats.nba.com"

	// DefaultLeagueID selects the NBA
	DefaultLeagueID = "00"

	EndpointCommonAllPlayers = "commonallplayers"
	EndpointPlayerIndex      = "playerindex"
	EndpointShotChartDetail  = "shotchartdetail"

	// Result set names
	SetCommonAllPlayers = "CommonAllPlayers"
	SetPlayerIndex      = "PlayerIndex"
	SetShotChartDetail  = "Shot_Chart_Detail"

	// SeasonTypeRegular is the default season type
	SeasonTypeRegular = "Regular Season"

	statsDateLayout = "01/02/2006"
)

// CommonAllPlayersParams builds the query for the full player list.
// IsOnlyCurrentSeason=0 returns every player who ever played, with
// ROSTERSTATUS 1 for those on a current roster.
func CommonAllPlayersParams(leagueID, season string) url.Values {
	v := url.Values{}
	v.Set("IsOnlyCurrentSeason", "0")
	v.Set("LeagueID", leagueID)
	v.Set("Season", season)
	return v
}

// PlayerIndexParams builds the query for the player index of a season
func PlayerIndexParams(leagueID, season string) url.Values {
	v := url.Values{}
	v.Set("LeagueID", leagueID)
	v.Set("Season", season)
	for _, empty := range []string{
		"Active", "AllStar", "College", "Country", "DraftPick", "DraftRound",
		"DraftYear", "Height", "Historical", "PlayerPosition", "SeasonType",
		"TeamID", "Weight",
	} {
		v.Set(empty, "")
	}
	return v
}

// ShotChartQuery holds the filters of a shot chart request
type ShotChartQuery struct {
	PlayerID       string
	TeamID         string
	Season         string
	SeasonType     string
	ContextMeasure string
	LeagueID       string
	DateFrom       string
	DateTo         string
}

// Values builds the shotchartdetail query. The endpoint rejects requests
// that omit any of its parameters, so unused filters are sent empty.
func (q ShotChartQuery) Values() (url.Values, error) {
	if q.PlayerID == "" {
		return nil, fmt.Errorf("shot chart query needs a player id")
	}

	from, err := NormalizeDate(q.DateFrom)
	if err != nil {
		return nil, fmt.Errorf("invalid date_from: %w", err)
	}
	to, err := NormalizeDate(q.DateTo)
	if err != nil {
		return nil, fmt.Errorf("invalid date_to: %w", err)
	}

	v := url.Values{}
	v.Set("PlayerID", q.PlayerID)
	v.Set("TeamID", orDefault(q.TeamID, "0"))
	v.Set("Season", q.Season)
	v.Set("SeasonType", orDefault(q.SeasonType, SeasonTypeRegular))
	v.Set("ContextMeasure", orDefault(q.ContextMeasure, "FGA"))
	v.Set("LeagueID", orDefault(q.LeagueID, DefaultLeagueID))
	v.Set("DateFrom", from)
	v.Set("DateTo", to)
	v.Set("LastNGames", "0")
	v.Set("Month", "0")
	v.Set("OpponentTeamID", "0")
	v.Set("Period", "0")
	for _, empty := range []string{
		"GameID", "GameSegment", "Location", "Outcome", "PlayerPosition",
		"RookieYear", "SeasonSegment", "VsConference", "VsDivision",
	} {
		v.Set(empty, "")
	}
	return v, nil
}

// NormalizeDate converts a human date ("2023-01-15", "Jan 15, 2023",
// "1/15/2023") into the MM/DD/YYYY form the API expects. Empty stays empty.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return "", err
	}
	return t.Format(statsDateLayout), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
