package resolver

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaneWallin/GameNightBot/internal/bgg"
	"github.com/RaneWallin/GameNightBot/internal/model"
)

type fakeSearcher struct {
	items []bgg.SearchItem
	err   error
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]bgg.SearchItem, error) {
	return f.items, f.err
}

type fakeCatalog struct {
	games []*model.Game
	err   error
}

func (f *fakeCatalog) ListAll(ctx context.Context) ([]*model.Game, error) {
	return f.games, f.err
}

func TestRemotePreservesServiceOrder(t *testing.T) {
	remote := &fakeSearcher{items: []bgg.SearchItem{
		{BGGID: 9209, Name: "Ticket to Ride", Year: "2004"},
		{BGGID: 14996, Name: "Ticket to Ride: Europe", Year: "2005"},
		{BGGID: 31627, Name: "Ticket to Ride: Nordic Countries", Year: "2007"},
	}}
	r := New(remote, &fakeCatalog{})

	candidates, err := r.Remote(context.Background(), "Ticket to Ride", ButtonLimit)
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	assert.Equal(t, int64(9209), candidates[0].BGGID)
	assert.Equal(t, int64(14996), candidates[1].BGGID)
	assert.Equal(t, int64(31627), candidates[2].BGGID)
	assert.False(t, candidates[0].Scored, "remote candidates carry no local score")
}

func TestRemoteTruncatesToLimit(t *testing.T) {
	var items []bgg.SearchItem
	for i := 0; i < 40; i++ {
		items = append(items, bgg.SearchItem{BGGID: int64(i + 1), Name: "Game"})
	}
	r := New(&fakeSearcher{items: items}, &fakeCatalog{})

	candidates, err := r.Remote(context.Background(), "game", ButtonLimit)
	require.NoError(t, err)
	assert.Len(t, candidates, ButtonLimit)
	assert.Equal(t, int64(1), candidates[0].BGGID)
}

func TestRemotePropagatesFailureTaxonomy(t *testing.T) {
	for _, sentinel := range []error{bgg.ErrTransport, bgg.ErrBadStatus, bgg.ErrDecode} {
		r := New(&fakeSearcher{err: sentinel}, &fakeCatalog{})
		_, err := r.Remote(context.Background(), "catan", ButtonLimit)
		assert.ErrorIs(t, err, sentinel)
	}
}

func TestRemoteZeroMatchesIsEmptyNotError(t *testing.T) {
	r := New(&fakeSearcher{}, &fakeCatalog{})
	candidates, err := r.Remote(context.Background(), "nothing", ButtonLimit)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestLocalRanksCatanVariantsAheadOfMonopoly(t *testing.T) {
	local := &fakeCatalog{games: []*model.Game{
		{ID: 1, BGGID: 13, Name: "Catan"},
		{ID: 2, BGGID: 325, Name: "Catan: Seafarers"},
		{ID: 3, BGGID: 1406, Name: "Monopoly"},
	}}
	r := New(&fakeSearcher{}, local)

	candidates, err := r.Local(context.Background(), "catan", LocalLimit)
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	assert.Equal(t, "Catan", candidates[0].Name)
	assert.Equal(t, "Catan: Seafarers", candidates[1].Name)
	assert.Equal(t, "Monopoly", candidates[2].Name)
	assert.True(t, candidates[0].Scored)
	assert.Greater(t, candidates[1].Score, candidates[2].Score)
}

func TestLocalTiesKeepStorageOrder(t *testing.T) {
	local := &fakeCatalog{games: []*model.Game{
		{ID: 1, Name: "Azul"},
		{ID: 2, Name: "Azul: Summer Pavilion"},
	}}
	r := New(&fakeSearcher{}, local)

	candidates, err := r.Local(context.Background(), "azul", LocalLimit)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	// Both score 100; the stable sort keeps storage order.
	assert.Equal(t, int64(1), candidates[0].GameID)
	assert.Equal(t, int64(2), candidates[1].GameID)
}

func TestLocalEmptyQueryReturnsEmptySet(t *testing.T) {
	r := New(&fakeSearcher{}, &fakeCatalog{games: []*model.Game{{ID: 1, Name: "Catan"}}})
	candidates, err := r.Local(context.Background(), "   ", LocalLimit)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestLocalTruncatesToLimit(t *testing.T) {
	var games []*model.Game
	for i := 0; i < 30; i++ {
		games = append(games, &model.Game{ID: int64(i + 1), Name: "Carcassonne"})
	}
	r := New(&fakeSearcher{}, &fakeCatalog{games: games})

	candidates, err := r.Local(context.Background(), "carcassonne", 0)
	require.NoError(t, err)
	assert.Len(t, candidates, LocalLimit)
}

func TestLocalSubstring(t *testing.T) {
	games := []*model.Game{
		{ID: 1, Name: "Catan"},
		{ID: 2, Name: "Catan: Seafarers"},
		{ID: 3, Name: "Monopoly"},
	}

	matches := LocalSubstring(games, "CATAN")
	require.Len(t, matches, 2)
	assert.Equal(t, int64(1), matches[0].GameID)

	assert.Empty(t, LocalSubstring(games, "gloomhaven"))
	assert.Empty(t, LocalSubstring(games, "  "))
}

func TestCandidateLabel(t *testing.T) {
	short := Candidate{Name: "Catan", Year: "1995"}
	assert.Equal(t, "Catan (1995)", short.Label())

	noYear := Candidate{Name: "Catan"}
	assert.Equal(t, "Catan", noYear.Label())

	long := Candidate{Name: strings.Repeat("x", 120), Year: "2020"}
	label := long.Label()
	assert.LessOrEqual(t, len([]rune(label)), LabelMaxLen)
	assert.True(t, strings.HasSuffix(label, "… (2020)"), "year suffix survives truncation, got %q", label)
}
