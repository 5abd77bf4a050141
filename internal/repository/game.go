package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RaneWallin/GameNightBot/internal/model"
)

// GameRepository handles the canonical game catalog and the per-user
// collection links.
type GameRepository struct {
	pool *pgxpool.Pool
}

// NewGameRepository creates a new GameRepository instance.
func NewGameRepository(pool *pgxpool.Pool) *GameRepository {
	return &GameRepository{pool: pool}
}

const gameColumns = "id, bgg_id, name, publisher, designer, min_players, max_players, created_at"

func scanGame(row pgx.Row) (*model.Game, error) {
	var g model.Game
	err := row.Scan(&g.ID, &g.BGGID, &g.Name, &g.Publisher, &g.Designer, &g.MinPlayers, &g.MaxPlayers, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Upsert creates a game record keyed by BGG id, or returns the existing
// one. Idempotent: a second upsert for the same BGG id reuses the first
// record and never creates a duplicate.
func (r *GameRepository) Upsert(ctx context.Context, g *model.Game) (*model.Game, error) {
	const insert = `
		INSERT INTO games (bgg_id, name, publisher, designer, min_players, max_players, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (bgg_id) DO NOTHING
		RETURNING ` + gameColumns

	game, err := scanGame(r.pool.QueryRow(ctx, insert, g.BGGID, g.Name, g.Publisher, g.Designer, g.MinPlayers, g.MaxPlayers))
	if err == nil {
		return game, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to upsert game: %w", err)
	}

	// Conflict: the record already exists, reuse it.
	return r.GetByBGGID(ctx, g.BGGID)
}

// GetByID retrieves a game by internal ID.
func (r *GameRepository) GetByID(ctx context.Context, id int64) (*model.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`

	game, err := scanGame(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return game, nil
}

// GetByBGGID retrieves a game by its BoardGameGeek identifier.
func (r *GameRepository) GetByBGGID(ctx context.Context, bggID int64) (*model.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE bgg_id = $1`

	game, err := scanGame(r.pool.QueryRow(ctx, query, bggID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game by bgg id: %w", err)
	}
	return game, nil
}

// ListAll retrieves the whole catalog in storage order. The local fuzzy
// search scores over this list.
func (r *GameRepository) ListAll(ctx context.Context) ([]*model.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []*model.Game
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating games: %w", err)
	}
	return games, nil
}

// LinkOwner adds a game to a user's collection. Idempotent on the
// (user, game) pair; reports whether the link already existed.
func (r *GameRepository) LinkOwner(ctx context.Context, userID, gameID int64) (alreadyExisted bool, err error) {
	const query = `
		INSERT INTO users_games (user_id, game_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, game_id) DO NOTHING
	`

	result, err := r.pool.Exec(ctx, query, userID, gameID)
	if err != nil {
		return false, fmt.Errorf("failed to link game owner: %w", err)
	}
	return result.RowsAffected() == 0, nil
}

// UnlinkOwner removes a game from a user's collection.
func (r *GameRepository) UnlinkOwner(ctx context.Context, userID, gameID int64) error {
	const query = `DELETE FROM users_games WHERE user_id = $1 AND game_id = $2`

	if _, err := r.pool.Exec(ctx, query, userID, gameID); err != nil {
		return fmt.Errorf("failed to unlink game owner: %w", err)
	}
	return nil
}

// ListOwned retrieves a user's collection sorted by game name.
func (r *GameRepository) ListOwned(ctx context.Context, userID int64) ([]*model.Game, error) {
	query := `
		SELECT ` + prefixedGameColumns("g") + `
		FROM games g
		JOIN users_games ug ON ug.game_id = g.id
		WHERE ug.user_id = $1
		ORDER BY g.name`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned games: %w", err)
	}
	defer rows.Close()

	var games []*model.Game
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating games: %w", err)
	}
	return games, nil
}

// ListOwners retrieves the users in a chat who have the game in their
// collection.
func (r *GameRepository) ListOwners(ctx context.Context, gameID, chatID int64) ([]*model.User, error) {
	query := `
		SELECT u.id, u.telegram_id, u.chat_id, u.username, u.nickname, u.created_at
		FROM users u
		JOIN users_games ug ON ug.user_id = u.id
		WHERE ug.game_id = $1 AND u.chat_id = $2
		ORDER BY u.id`

	rows, err := r.pool.Query(ctx, query, gameID, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list game owners: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// prefixedGameColumns qualifies the game column list with a table alias.
func prefixedGameColumns(alias string) string {
	return alias + ".id, " + alias + ".bgg_id, " + alias + ".name, " + alias + ".publisher, " +
		alias + ".designer, " + alias + ".min_players, " + alias + ".max_players, " + alias + ".created_at"
}
