package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RaneWallin/GameNightBot/internal/model"
)

// SessionRepository handles play-session persistence: the sessions
// themselves plus participant and winner links.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository instance.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = "id, game_id, chat_id, name, played_on, created_at"

func scanSession(row pgx.Row) (*model.Session, error) {
	var s model.Session
	err := row.Scan(&s.ID, &s.GameID, &s.ChatID, &s.Name, &s.PlayedOn, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create logs a play session for a game in a chat. Name and date are
// optional; date validation happens before this call.
func (r *SessionRepository) Create(ctx context.Context, gameID, chatID int64, name string, playedOn *time.Time) (*model.Session, error) {
	query := `
		INSERT INTO sessions (game_id, chat_id, name, played_on, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING ` + sessionColumns

	session, err := scanSession(r.pool.QueryRow(ctx, query, gameID, chatID, name, playedOn))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// GetByID retrieves a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	session, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// Delete removes a session; participant and winner links cascade.
func (r *SessionRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM sessions WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListForGame retrieves a game's sessions in a chat, newest date first.
func (r *SessionRepository) ListForGame(ctx context.Context, gameID, chatID int64) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE game_id = $1 AND chat_id = $2
		ORDER BY played_on DESC NULLS LAST, id DESC`

	rows, err := r.pool.Query(ctx, query, gameID, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

// LinkParticipant links a user to a session. Idempotent; reports
// whether the link already existed.
func (r *SessionRepository) LinkParticipant(ctx context.Context, sessionID, userID int64) (alreadyExisted bool, err error) {
	const query = `
		INSERT INTO sessions_users (session_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (session_id, user_id) DO NOTHING
	`

	result, err := r.pool.Exec(ctx, query, sessionID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to link participant: %w", err)
	}
	return result.RowsAffected() == 0, nil
}

// LinkWinner marks a user as a winner of a session. Idempotent.
func (r *SessionRepository) LinkWinner(ctx context.Context, sessionID, userID int64) (alreadyExisted bool, err error) {
	const query = `
		INSERT INTO sessions_winners (session_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (session_id, user_id) DO NOTHING
	`

	result, err := r.pool.Exec(ctx, query, sessionID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to link winner: %w", err)
	}
	return result.RowsAffected() == 0, nil
}

// ListParticipants retrieves the user IDs linked to a session.
func (r *SessionRepository) ListParticipants(ctx context.Context, sessionID int64) ([]int64, error) {
	return r.listLinks(ctx, "sessions_users", sessionID)
}

// ListWinners retrieves the winner user IDs of a session.
func (r *SessionRepository) ListWinners(ctx context.Context, sessionID int64) ([]int64, error) {
	return r.listLinks(ctx, "sessions_winners", sessionID)
}

func (r *SessionRepository) listLinks(ctx context.Context, table string, sessionID int64) ([]int64, error) {
	query := fmt.Sprintf(`SELECT user_id FROM %s WHERE session_id = $1 ORDER BY user_id`, table)

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list session links: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session links: %w", err)
	}
	return ids, nil
}

// Summaries retrieves every session in a chat joined with its game name
// and link lists, oldest session first. The stats reductions fold over
// this.
func (r *SessionRepository) Summaries(ctx context.Context, chatID int64) ([]*model.SessionSummary, error) {
	const query = `
		SELECT s.id, s.game_id, g.name, s.name, s.played_on
		FROM sessions s
		JOIN games g ON g.id = s.game_id
		WHERE s.chat_id = $1
		ORDER BY s.id`

	rows, err := r.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list session summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*model.SessionSummary
	byID := make(map[int64]*model.SessionSummary)
	for rows.Next() {
		var s model.SessionSummary
		if err := rows.Scan(&s.SessionID, &s.GameID, &s.GameName, &s.Name, &s.PlayedOn); err != nil {
			return nil, fmt.Errorf("failed to scan session summary: %w", err)
		}
		summaries = append(summaries, &s)
		byID[s.SessionID] = &s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session summaries: %w", err)
	}
	if len(summaries) == 0 {
		return nil, nil
	}

	if err := r.fillLinks(ctx, chatID, "sessions_users", byID, func(s *model.SessionSummary, id int64) {
		s.Participants = append(s.Participants, id)
	}); err != nil {
		return nil, err
	}
	if err := r.fillLinks(ctx, chatID, "sessions_winners", byID, func(s *model.SessionSummary, id int64) {
		s.Winners = append(s.Winners, id)
	}); err != nil {
		return nil, err
	}

	return summaries, nil
}

func (r *SessionRepository) fillLinks(ctx context.Context, chatID int64, table string, byID map[int64]*model.SessionSummary, add func(*model.SessionSummary, int64)) error {
	query := fmt.Sprintf(`
		SELECT l.session_id, l.user_id
		FROM %s l
		JOIN sessions s ON s.id = l.session_id
		WHERE s.chat_id = $1
		ORDER BY l.session_id, l.user_id`, table)

	rows, err := r.pool.Query(ctx, query, chatID)
	if err != nil {
		return fmt.Errorf("failed to list session links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sessionID, userID int64
		if err := rows.Scan(&sessionID, &userID); err != nil {
			return fmt.Errorf("failed to scan session link: %w", err)
		}
		if s, ok := byID[sessionID]; ok {
			add(s, userID)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating session links: %w", err)
	}
	return nil
}
