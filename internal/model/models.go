// Package model defines the data models for the game night bot.
package model

import "time"

// User represents a registered member of a chat's game night group.
type User struct {
	ID         int64     `db:"id"`
	TelegramID int64     `db:"telegram_id"`
	ChatID     int64     `db:"chat_id"`
	Username   string    `db:"username"`
	Nickname   string    `db:"nickname"`
	CreatedAt  time.Time `db:"created_at"`
}

// DisplayName returns the nickname if set, otherwise the username.
func (u *User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Username
}

// Game is a canonical locally-stored game record, keyed by its
// BoardGameGeek identifier.
type Game struct {
	ID         int64     `db:"id"`
	BGGID      int64     `db:"bgg_id"`
	Name       string    `db:"name"`
	Publisher  string    `db:"publisher"`
	Designer   string    `db:"designer"`
	MinPlayers int       `db:"min_players"`
	MaxPlayers int       `db:"max_players"`
	CreatedAt  time.Time `db:"created_at"`
}

// Session is a logged play event for one game, scoped to the chat in
// which it was logged.
type Session struct {
	ID        int64      `db:"id"`
	GameID    int64      `db:"game_id"`
	ChatID    int64      `db:"chat_id"`
	Name      string     `db:"name"`
	PlayedOn  *time.Time `db:"played_on"`
	CreatedAt time.Time  `db:"created_at"`
}

// SessionSummary is a session joined with its game name and the linked
// participant and winner user IDs. Used by the stats reductions.
type SessionSummary struct {
	SessionID    int64
	GameID       int64
	GameName     string
	Name         string
	PlayedOn     *time.Time
	Participants []int64
	Winners      []int64
}

// Rating is one user's 1-5 star rating of a game. Re-rating replaces
// the previous value.
type Rating struct {
	UserID    int64     `db:"user_id"`
	GameID    int64     `db:"game_id"`
	Rating    int       `db:"rating"`
	UpdatedAt time.Time `db:"updated_at"`
}
