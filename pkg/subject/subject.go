// Package subject enumerates the players a run fetches data for.
package subject

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	errs "hoopscraper/pkg/errors"
)

// Subject is one player to fetch. ID is opaque to the pipeline.
type Subject struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Active           bool   `json:"active"`
	TeamID           string `json:"team_id,omitempty"`
	TeamAbbreviation string `json:"team_abbreviation,omitempty"`
}

// Source provides the full reference list of known subjects
type Source interface {
	Subjects(ctx context.Context) ([]Subject, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context) ([]Subject, error)

// Subjects implements Source
func (f SourceFunc) Subjects(ctx context.Context) ([]Subject, error) {
	return f(ctx)
}

// Static is a fixed, in-memory Source
type Static []Subject

// Subjects implements Source
func (s Static) Subjects(ctx context.Context) ([]Subject, error) {
	out := make([]Subject, len(s))
	copy(out, s)
	return out, nil
}

// FileSource reads the static player list format:
//
//	[{"id": 2544, "full_name": "LeBron James", "first_name": "LeBron", "last_name": "James", "is_active": true}]
type FileSource struct {
	Path string
}

type filePlayer struct {
	ID        json.Number `json:"id"`
	FullName  string      `json:"full_name"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	IsActive  bool        `json:"is_active"`
}

// Subjects implements Source
func (f FileSource) Subjects(ctx context.Context) ([]Subject, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open players file: %w", err)
	}
	defer file.Close()

	dec := json.NewDecoder(file)
	dec.UseNumber()

	var players []filePlayer
	if err := dec.Decode(&players); err != nil {
		return nil, fmt.Errorf("failed to decode players file %s: %w", f.Path, err)
	}

	out := make([]Subject, 0, len(players))
	for i, p := range players {
		if p.ID == "" {
			return nil, fmt.Errorf("players file %s: entry %d has no id", f.Path, i)
		}
		name := p.FullName
		if name == "" {
			name = strings.TrimSpace(p.FirstName + " " + p.LastName)
		}
		out = append(out, Subject{ID: p.ID.String(), Name: name, Active: p.IsActive})
	}
	return out, nil
}

// Filter selects subjects from the reference list
type Filter struct {
	ActiveOnly bool
	// IDs restricts the run to these subjects when non-empty
	IDs []string
	// NameContains is matched case-insensitively
	NameContains string
	// Limit keeps the first N matches, 0 keeps all
	Limit int
}

// Match reports whether s passes every predicate except Limit
func (f Filter) Match(s Subject) bool {
	if f.ActiveOnly && !s.Active {
		return false
	}
	if len(f.IDs) > 0 {
		found := false
		for _, id := range f.IDs {
			if id == s.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.NameContains != "" && !strings.Contains(strings.ToLower(s.Name), strings.ToLower(f.NameContains)) {
		return false
	}
	return true
}

// Enumerate returns the subjects from src that pass filter, in source order.
// A subject ID listed twice is kept once, at its first position. Any failure
// of src is reported as ReferenceDataUnavailable.
func Enumerate(ctx context.Context, src Source, filter Filter) ([]Subject, error) {
	all, err := src.Subjects(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindReferenceDataUnavailable, err, "failed to load subjects")
	}

	seen := make(map[string]bool, len(all))
	out := make([]Subject, 0, len(all))
	for _, s := range all {
		if seen[s.ID] || !filter.Match(s) {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}
