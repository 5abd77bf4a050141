// Package resolver turns free-text game queries into ranked candidate
// lists, either from the BoardGameGeek search (remote, server-ranked)
// or from the locally stored catalog (fuzzy-scored).
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/RaneWallin/GameNightBot/internal/bgg"
	"github.com/RaneWallin/GameNightBot/internal/model"
)

const (
	// ButtonLimit is the candidate cap for button-based prompts.
	ButtonLimit = 20
	// SelectLimit is the candidate cap for list/select prompts.
	SelectLimit = 25
	// LocalLimit is the default result count for local fuzzy search.
	LocalLimit = 10
	// LabelMaxLen is the per-item display label ceiling imposed by the
	// presentation channel.
	LabelMaxLen = 80
)

// Candidate is one possible game match, not yet confirmed by the user.
// BGGID is zero for candidates sourced from the local catalog without a
// known external id; GameID is zero for remote candidates. Score is
// meaningful only when Scored is true (local search).
type Candidate struct {
	BGGID  int64
	GameID int64
	Name   string
	Year   string
	Score  int
	Scored bool
}

// Label returns the display label for a candidate, ellipsis-truncated
// to LabelMaxLen with the "(year)" suffix preserved.
func (c Candidate) Label() string {
	suffix := ""
	if c.Year != "" {
		suffix = fmt.Sprintf(" (%s)", c.Year)
	}

	name := []rune(c.Name)
	budget := LabelMaxLen - len([]rune(suffix))
	if len(name) > budget {
		name = append(name[:budget-1], '…')
	}
	return string(name) + suffix
}

// Searcher is the remote metadata search dependency.
type Searcher interface {
	Search(ctx context.Context, query string) ([]bgg.SearchItem, error)
}

// Catalog lists the locally stored games fuzzy search runs over.
type Catalog interface {
	ListAll(ctx context.Context) ([]*model.Game, error)
}

// Resolver produces candidate sets from either source.
type Resolver struct {
	remote Searcher
	local  Catalog
}

// New creates a Resolver over the given remote search and local catalog.
func New(remote Searcher, local Catalog) *Resolver {
	return &Resolver{remote: remote, local: local}
}

// Remote resolves a sanitized query against the external catalog,
// preserving the service's own relevance order and truncating to limit.
// Errors keep the bgg failure taxonomy; zero matches is an empty set.
func (r *Resolver) Remote(ctx context.Context, query string, limit int) ([]Candidate, error) {
	items, err := r.remote.Search(ctx, query)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("Remote game search failed")
		return nil, err
	}

	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}

	candidates := make([]Candidate, 0, limit)
	for _, it := range items[:limit] {
		candidates = append(candidates, Candidate{
			BGGID: it.BGGID,
			Name:  it.Name,
			Year:  it.Year,
		})
	}
	return candidates, nil
}

// Local resolves a sanitized query against the stored catalog by
// partial-ratio similarity, descending, ties kept in storage order.
// Malformed input never fails; the worst case is an empty set.
func (r *Resolver) Local(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = LocalLimit
	}

	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	games, err := r.local.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list local catalog: %w", err)
	}

	candidates := make([]Candidate, 0, len(games))
	for _, g := range games {
		candidates = append(candidates, Candidate{
			BGGID:  g.BGGID,
			GameID: g.ID,
			Name:   g.Name,
			Score:  PartialRatio(query, g.Name),
			Scored: true,
		})
	}

	// Stable keeps storage order for equal scores.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// LocalSubstring filters a user's own games by case-insensitive
// substring match, in storage order. Used where the original flows
// match against a collection rather than the whole catalog.
func LocalSubstring(games []*model.Game, query string) []Candidate {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var candidates []Candidate
	for _, g := range games {
		if strings.Contains(strings.ToLower(g.Name), q) {
			candidates = append(candidates, Candidate{
				BGGID:  g.BGGID,
				GameID: g.ID,
				Name:   g.Name,
			})
		}
	}
	return candidates
}
