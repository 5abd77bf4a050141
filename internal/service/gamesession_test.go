package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/RaneWallin/GameNightBot/internal/model"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid date", input: "2024-06-01"},
		{name: "empty means no date", input: ""},
		{name: "impossible month and day", input: "2025-13-40", wantErr: true},
		{name: "unpadded parts", input: "2025-1-2", wantErr: true},
		{name: "wrong separator", input: "2024/06/01", wantErr: true},
		{name: "trailing text", input: "2024-06-01 evening", wantErr: true},
		{name: "not a date", input: "friday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDate)
				return
			}
			require.NoError(t, err)
			if tt.input == "" {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, tt.input, got.Format("2006-01-02"))
			}
		})
	}
}

func users(ids ...int64) []*model.User {
	out := make([]*model.User, len(ids))
	for i, id := range ids {
		out[i] = &model.User{ID: id}
	}
	return out
}

func TestFilterUsers(t *testing.T) {
	all := users(1, 2, 3, 4)

	eligible := filterUsers(all, []int64{2, 4})
	require.Len(t, eligible, 2)
	assert.Equal(t, int64(1), eligible[0].ID)
	assert.Equal(t, int64(3), eligible[1].ID)
}

func TestFilterUsersNothingExcluded(t *testing.T) {
	all := users(1, 2)
	assert.Equal(t, all, filterUsers(all, nil))
}

func TestFilterUsersEveryoneExcluded(t *testing.T) {
	all := users(1, 2)
	assert.Empty(t, filterUsers(all, []int64{1, 2}))
}

func TestFilterUsersProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ids := rapid.SliceOfNDistinct(rapid.Int64Range(1, 100), 0, 20, rapid.ID[int64]).Draw(t, "ids")
		exclude := rapid.SliceOfN(rapid.Int64Range(1, 100), 0, 20).Draw(t, "exclude")

		all := users(ids...)
		got := filterUsers(all, exclude)

		excluded := make(map[int64]bool)
		for _, id := range exclude {
			excluded[id] = true
		}

		// No excluded user survives, and order is preserved.
		lastIdx := -1
		for _, u := range got {
			if excluded[u.ID] {
				t.Fatalf("excluded user %d in result", u.ID)
			}
			idx := -1
			for i, id := range ids {
				if id == u.ID {
					idx = i
					break
				}
			}
			if idx <= lastIdx {
				t.Fatalf("order not preserved")
			}
			lastIdx = idx
		}

		// Every non-excluded user survives.
		want := 0
		for _, id := range ids {
			if !excluded[id] {
				want++
			}
		}
		if len(got) != want {
			t.Fatalf("got %d users, want %d", len(got), want)
		}
	})
}
