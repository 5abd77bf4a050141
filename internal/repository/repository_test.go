// Package repository tests use testcontainers-go to spin up a
// PostgreSQL container and are skipped when Docker is unavailable.
package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/RaneWallin/GameNightBot/internal/model"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection pool
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	err = runMigrations(ctx, pool)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// runMigrations applies the database schema
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			telegram_id BIGINT NOT NULL,
			chat_id BIGINT NOT NULL,
			username VARCHAR(255) NOT NULL DEFAULT '',
			nickname VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (telegram_id, chat_id)
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			id BIGSERIAL PRIMARY KEY,
			bgg_id BIGINT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			publisher TEXT NOT NULL DEFAULT '',
			designer TEXT NOT NULL DEFAULT '',
			min_players INT NOT NULL DEFAULT 0,
			max_players INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS users_games (
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, game_id)
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id BIGSERIAL PRIMARY KEY,
			game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			chat_id BIGINT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			played_on DATE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS sessions_users (
			session_id BIGINT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			PRIMARY KEY (session_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS sessions_winners (
			session_id BIGINT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			PRIMARY KEY (session_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS ratings (
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			rating INT NOT NULL CHECK (rating BETWEEN 1 AND 5),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, game_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func testGame(bggID int64, name string) *model.Game {
	return &model.Game{
		BGGID:      bggID,
		Name:       name,
		Publisher:  "Test Publisher",
		Designer:   "Test Designer",
		MinPlayers: 2,
		MaxPlayers: 4,
	}
}

// ============================================================================
// UserRepository Tests
// ============================================================================

func TestUserRepository_Create(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	user, err := repo.Create(ctx, 12345, -100, "testuser", "Sir Test")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), user.TelegramID)
	assert.Equal(t, int64(-100), user.ChatID)
	assert.Equal(t, "testuser", user.Username)
	assert.Equal(t, "Sir Test", user.Nickname)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestUserRepository_GetByTelegramID_ScopedToChat(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, 12345, -100, "testuser", "")
	require.NoError(t, err)

	user, err := repo.GetByTelegramID(ctx, 12345, -100)
	require.NoError(t, err)
	assert.Equal(t, "testuser", user.Username)

	// Same Telegram account in another chat is a separate registration.
	_, err = repo.GetByTelegramID(ctx, 12345, -200)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_GetOrCreate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	user, created, err := repo.GetOrCreate(ctx, 12345, -100, "testuser")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := repo.GetOrCreate(ctx, 12345, -100, "testuser")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, user.ID, again.ID)
}

func TestUserRepository_UpdateNickname(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	user, err := repo.Create(ctx, 12345, -100, "testuser", "")
	require.NoError(t, err)

	err = repo.UpdateNickname(ctx, user.ID, "Duke")
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Duke", got.Nickname)
	assert.Equal(t, "Duke", got.DisplayName())

	err = repo.UpdateNickname(ctx, 99999, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_ListByChat(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	_, _ = repo.Create(ctx, 1, -100, "alice", "")
	_, _ = repo.Create(ctx, 2, -100, "bob", "")
	_, _ = repo.Create(ctx, 3, -200, "carol", "")

	users, err := repo.ListByChat(ctx, -100)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
}

// ============================================================================
// GameRepository Tests
// ============================================================================

func TestGameRepository_UpsertIdempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewGameRepository(pool)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, testGame(13, "Catan"))
	require.NoError(t, err)
	assert.Equal(t, int64(13), first.BGGID)

	// Second upsert for the same BGG id reuses the record.
	second, err := repo.Upsert(ctx, testGame(13, "Catan"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGameRepository_LinkOwner(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	userRepo := NewUserRepository(pool)
	gameRepo := NewGameRepository(pool)
	ctx := context.Background()

	user, err := userRepo.Create(ctx, 12345, -100, "testuser", "")
	require.NoError(t, err)
	game, err := gameRepo.Upsert(ctx, testGame(13, "Catan"))
	require.NoError(t, err)

	existed, err := gameRepo.LinkOwner(ctx, user.ID, game.ID)
	require.NoError(t, err)
	assert.False(t, existed)

	existed, err = gameRepo.LinkOwner(ctx, user.ID, game.ID)
	require.NoError(t, err)
	assert.True(t, existed, "re-adding an owned game is reported, not errored")

	owned, err := gameRepo.ListOwned(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "Catan", owned[0].Name)
}

func TestGameRepository_UnlinkOwner(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	userRepo := NewUserRepository(pool)
	gameRepo := NewGameRepository(pool)
	ctx := context.Background()

	user, _ := userRepo.Create(ctx, 12345, -100, "testuser", "")
	game, _ := gameRepo.Upsert(ctx, testGame(13, "Catan"))
	_, err := gameRepo.LinkOwner(ctx, user.ID, game.ID)
	require.NoError(t, err)

	err = gameRepo.UnlinkOwner(ctx, user.ID, game.ID)
	require.NoError(t, err)

	owned, err := gameRepo.ListOwned(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, owned)

	// Catalog record survives unlink.
	_, err = gameRepo.GetByBGGID(ctx, 13)
	assert.NoError(t, err)
}

func TestGameRepository_ListOwnersFilteredByChat(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	userRepo := NewUserRepository(pool)
	gameRepo := NewGameRepository(pool)
	ctx := context.Background()

	here, _ := userRepo.Create(ctx, 1, -100, "here", "")
	elsewhere, _ := userRepo.Create(ctx, 2, -200, "elsewhere", "")
	game, _ := gameRepo.Upsert(ctx, testGame(13, "Catan"))

	_, _ = gameRepo.LinkOwner(ctx, here.ID, game.ID)
	_, _ = gameRepo.LinkOwner(ctx, elsewhere.ID, game.ID)

	owners, err := gameRepo.ListOwners(ctx, game.ID, -100)
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, "here", owners[0].Username)
}

// ============================================================================
// SessionRepository Tests
// ============================================================================

func TestSessionRepository_CreateAndLinks(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	userRepo := NewUserRepository(pool)
	gameRepo := NewGameRepository(pool)
	sessionRepo := NewSessionRepository(pool)
	ctx := context.Background()

	alice, _ := userRepo.Create(ctx, 1, -100, "alice", "")
	bob, _ := userRepo.Create(ctx, 2, -100, "bob", "")
	game, _ := gameRepo.Upsert(ctx, testGame(13, "Catan"))

	playedOn := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	session, err := sessionRepo.Create(ctx, game.ID, -100, "friday night", &playedOn)
	require.NoError(t, err)
	assert.Equal(t, "friday night", session.Name)
	require.NotNil(t, session.PlayedOn)

	existed, err := sessionRepo.LinkParticipant(ctx, session.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, existed)
	existed, err = sessionRepo.LinkParticipant(ctx, session.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, existed, "duplicate participant link is skipped")

	_, err = sessionRepo.LinkParticipant(ctx, session.ID, bob.ID)
	require.NoError(t, err)
	_, err = sessionRepo.LinkWinner(ctx, session.ID, bob.ID)
	require.NoError(t, err)

	participants, err := sessionRepo.ListParticipants(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{alice.ID, bob.ID}, participants)

	winners, err := sessionRepo.ListWinners(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{bob.ID}, winners)
}

func TestSessionRepository_DeleteCascadesLinks(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	userRepo := NewUserRepository(pool)
	gameRepo := NewGameRepository(pool)
	sessionRepo := NewSessionRepository(pool)
	ctx := context.Background()

	alice, _ := userRepo.Create(ctx, 1, -100, "alice", "")
	game, _ := gameRepo.Upsert(ctx, testGame(13, "Catan"))
	session, err := sessionRepo.Create(ctx, game.ID, -100, "", nil)
	require.NoError(t, err)
	_, _ = sessionRepo.LinkParticipant(ctx, session.ID, alice.ID)

	err = sessionRepo.Delete(ctx, session.ID)
	require.NoError(t, err)

	_, err = sessionRepo.GetByID(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	err = sessionRepo.Delete(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionRepository_ListForGameOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	gameRepo := NewGameRepository(pool)
	sessionRepo := NewSessionRepository(pool)
	ctx := context.Background()

	game, _ := gameRepo.Upsert(ctx, testGame(13, "Catan"))

	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := sessionRepo.Create(ctx, game.ID, -100, "old", &older)
	require.NoError(t, err)
	_, err = sessionRepo.Create(ctx, game.ID, -100, "new", &newer)
	require.NoError(t, err)
	_, err = sessionRepo.Create(ctx, game.ID, -100, "undated", nil)
	require.NoError(t, err)

	sessions, err := sessionRepo.ListForGame(ctx, game.ID, -100)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "new", sessions[0].Name)
	assert.Equal(t, "old", sessions[1].Name)
	assert.Equal(t, "undated", sessions[2].Name, "undated sessions sort last")
}

func TestSessionRepository_Summaries(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	userRepo := NewUserRepository(pool)
	gameRepo := NewGameRepository(pool)
	sessionRepo := NewSessionRepository(pool)
	ctx := context.Background()

	alice, _ := userRepo.Create(ctx, 1, -100, "alice", "")
	bob, _ := userRepo.Create(ctx, 2, -100, "bob", "")
	catan, _ := gameRepo.Upsert(ctx, testGame(13, "Catan"))
	azul, _ := gameRepo.Upsert(ctx, testGame(230802, "Azul"))

	s1, _ := sessionRepo.Create(ctx, catan.ID, -100, "", nil)
	_, _ = sessionRepo.LinkParticipant(ctx, s1.ID, alice.ID)
	_, _ = sessionRepo.LinkParticipant(ctx, s1.ID, bob.ID)
	_, _ = sessionRepo.LinkWinner(ctx, s1.ID, alice.ID)

	s2, _ := sessionRepo.Create(ctx, azul.ID, -100, "", nil)
	_, _ = sessionRepo.LinkParticipant(ctx, s2.ID, bob.ID)

	// Session in another chat must not leak in.
	s3, _ := sessionRepo.Create(ctx, catan.ID, -200, "", nil)
	_, _ = sessionRepo.LinkParticipant(ctx, s3.ID, alice.ID)

	summaries, err := sessionRepo.Summaries(ctx, -100)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "Catan", summaries[0].GameName)
	assert.Equal(t, []int64{alice.ID, bob.ID}, summaries[0].Participants)
	assert.Equal(t, []int64{alice.ID}, summaries[0].Winners)

	assert.Equal(t, "Azul", summaries[1].GameName)
	assert.Equal(t, []int64{bob.ID}, summaries[1].Participants)
	assert.Empty(t, summaries[1].Winners)
}

// ============================================================================
// RatingRepository Tests
// ============================================================================

func TestRatingRepository_UpsertReplacesVote(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	userRepo := NewUserRepository(pool)
	gameRepo := NewGameRepository(pool)
	ratingRepo := NewRatingRepository(pool)
	ctx := context.Background()

	alice, _ := userRepo.Create(ctx, 1, -100, "alice", "")
	bob, _ := userRepo.Create(ctx, 2, -100, "bob", "")
	game, _ := gameRepo.Upsert(ctx, testGame(13, "Catan"))

	require.NoError(t, ratingRepo.Upsert(ctx, alice.ID, game.ID, 5))
	require.NoError(t, ratingRepo.Upsert(ctx, bob.ID, game.ID, 3))

	avg, votes, err := ratingRepo.Average(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, votes)
	assert.InDelta(t, 4.0, avg, 0.001)

	// Re-rating replaces, never adds a second vote.
	require.NoError(t, ratingRepo.Upsert(ctx, alice.ID, game.ID, 1))
	avg, votes, err = ratingRepo.Average(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, votes)
	assert.InDelta(t, 2.0, avg, 0.001)
}
