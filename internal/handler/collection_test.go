package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/RaneWallin/GameNightBot/internal/bgg"
	"github.com/RaneWallin/GameNightBot/internal/model"
)

func TestFormatGameCard(t *testing.T) {
	tests := []struct {
		name    string
		details *bgg.GameDetails
		want    string
	}{
		{
			name: "full card",
			details: &bgg.GameDetails{
				BGGID:       13,
				Name:        "CATAN",
				Year:        "1995",
				Publisher:   "KOSMOS",
				Designer:    "Klaus Teuber",
				MinPlayers:  3,
				MaxPlayers:  4,
				PlayingTime: 120,
			},
			want: "🎲 CATAN (1995)\n" +
				"Publisher: KOSMOS\n" +
				"Designer: Klaus Teuber\n" +
				"Players: 3-4\n" +
				"Playing time: 120 min\n" +
				"https://boardgamegeek.com/boardgame/13",
		},
		{
			name: "sparse card skips empty fields",
			details: &bgg.GameDetails{
				BGGID: 999,
				Name:  "Obscure Prototype",
			},
			want: "🎲 Obscure Prototype\n" +
				"https://boardgamegeek.com/boardgame/999",
		},
		{
			name: "fixed player count collapses the range",
			details: &bgg.GameDetails{
				BGGID:      822,
				Name:       "Carcassonne",
				MinPlayers: 2,
				MaxPlayers: 2,
			},
			want: "🎲 Carcassonne\n" +
				"Players: 2\n" +
				"https://boardgamegeek.com/boardgame/822",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatGameCard(tt.details))
		})
	}
}

func TestPlayerRange(t *testing.T) {
	assert.Equal(t, "", playerRange(&model.Game{}))
	assert.Equal(t, " (2 players)", playerRange(&model.Game{MinPlayers: 2, MaxPlayers: 2}))
	assert.Equal(t, " (2-5 players)", playerRange(&model.Game{MinPlayers: 2, MaxPlayers: 5}))
}
