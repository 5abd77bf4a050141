// Package main is the entry point for GameNightBot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RaneWallin/GameNightBot/internal/ai"
	"github.com/RaneWallin/GameNightBot/internal/bgg"
	"github.com/RaneWallin/GameNightBot/internal/bot"
	"github.com/RaneWallin/GameNightBot/internal/config"
	"github.com/RaneWallin/GameNightBot/internal/dialog"
	"github.com/RaneWallin/GameNightBot/internal/pkg/db"
	"github.com/RaneWallin/GameNightBot/internal/repository"
	"github.com/RaneWallin/GameNightBot/internal/resolver"
	"github.com/RaneWallin/GameNightBot/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(dbPool.Pool)
	gameRepo := repository.NewGameRepository(dbPool.Pool)
	sessionRepo := repository.NewSessionRepository(dbPool.Pool)
	ratingRepo := repository.NewRatingRepository(dbPool.Pool)

	// Initialize the BGG client and the name resolver
	bggClient := bgg.New(cfg.BGG.BaseURL, cfg.BGG.RequestTimeout)
	res := resolver.New(bggClient, gameRepo)

	// Initialize the dialog registry
	dialogs := dialog.NewRegistry()

	// Initialize services
	userService := service.NewUserService(userRepo)
	collectionService := service.NewCollectionService(userRepo, gameRepo, bggClient)
	sessionService := service.NewSessionService(sessionRepo, userRepo, gameRepo)
	statsService := service.NewStatsService(sessionRepo, userRepo)
	ratingService := service.NewRatingService(ratingRepo, userRepo, gameRepo)

	// Initialize the AI assistant
	aiClient := ai.New(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.MaxTokens, cfg.AI.Temperature)

	// Create bot dependencies
	deps := &bot.Dependencies{
		Config:     cfg,
		Users:      userService,
		Collection: collectionService,
		Sessions:   sessionService,
		Stats:      statsService,
		Ratings:    ratingService,
		AI:         aiClient,
		Resolver:   res,
		Dialogs:    dialogs,
	}

	// Initialize bot
	telegramBot, err := bot.New(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in a goroutine
	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	telegramBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create users table. Registrations are per chat, so
	// the same Telegram account may appear once per group.
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			telegram_id BIGINT NOT NULL,
			chat_id BIGINT NOT NULL,
			username VARCHAR(255) NOT NULL,
			nickname VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (telegram_id, chat_id)
		);
		CREATE INDEX IF NOT EXISTS idx_users_chat ON users(chat_id);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: users table created")

	// Migration 2: Create the shared game catalog and the ownership
	// link table.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS games (
			id BIGSERIAL PRIMARY KEY,
			bgg_id BIGINT NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL,
			publisher VARCHAR(255) NOT NULL DEFAULT '',
			designer VARCHAR(255) NOT NULL DEFAULT '',
			min_players INT NOT NULL DEFAULT 0,
			max_players INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS users_games (
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, game_id)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: games and ownership tables created")

	// Migration 3: Create session tables. Participant and winner links
	// cascade away with their session.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			id BIGSERIAL PRIMARY KEY,
			game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			chat_id BIGINT NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			played_on DATE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_chat ON sessions(chat_id);
		CREATE INDEX IF NOT EXISTS idx_sessions_game ON sessions(game_id);
		CREATE TABLE IF NOT EXISTS sessions_users (
			session_id BIGINT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			PRIMARY KEY (session_id, user_id)
		);
		CREATE TABLE IF NOT EXISTS sessions_winners (
			session_id BIGINT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			PRIMARY KEY (session_id, user_id)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: session tables created")

	// Migration 4: Create the ratings table. One vote per user per
	// game; re-rating replaces the row.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ratings (
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			rating INT NOT NULL CHECK (rating BETWEEN 1 AND 5),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, game_id)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: ratings table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
