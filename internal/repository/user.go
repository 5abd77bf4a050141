// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RaneWallin/GameNightBot/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrGameNotFound    = errors.New("game not found")
	ErrSessionNotFound = errors.New("session not found")
)

// UserRepository handles registered-user persistence. Users are scoped
// to the chat they registered in.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = "id, telegram_id, chat_id, username, nickname, created_at"

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.TelegramID, &u.ChatID, &u.Username, &u.Nickname, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByTelegramID retrieves a registered user by Telegram ID within a chat.
// Returns ErrUserNotFound if the user has not registered there.
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID, chatID int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1 AND chat_id = $2`

	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID, chatID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by internal ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Create registers a user in a chat. Returns the created record.
func (r *UserRepository) Create(ctx context.Context, telegramID, chatID int64, username, nickname string) (*model.User, error) {
	query := `
		INSERT INTO users (telegram_id, chat_id, username, nickname, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID, chatID, username, nickname))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetOrCreate retrieves a user by Telegram ID within a chat, creating
// the registration if it doesn't exist. The bool reports creation.
func (r *UserRepository) GetOrCreate(ctx context.Context, telegramID, chatID int64, username string) (*model.User, bool, error) {
	user, err := r.GetByTelegramID(ctx, telegramID, chatID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err = r.Create(ctx, telegramID, chatID, username, "")
	if err != nil {
		// Race: a concurrent request may have registered the user first.
		user, err = r.GetByTelegramID(ctx, telegramID, chatID)
		if err != nil {
			return nil, false, err
		}
		return user, false, nil
	}

	return user, true, nil
}

// UpdateNickname sets a user's display nickname.
func (r *UserRepository) UpdateNickname(ctx context.Context, id int64, nickname string) error {
	const query = `UPDATE users SET nickname = $2 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, nickname)
	if err != nil {
		return fmt.Errorf("failed to update nickname: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListByChat retrieves all users registered in a chat, in registration
// order.
func (r *UserRepository) ListByChat(ctx context.Context, chatID int64) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE chat_id = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
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

// GetByIDs retrieves users by internal IDs. Missing IDs are skipped.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1) ORDER BY id`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by ids: %w", err)
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
