package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/RaneWallin/GameNightBot/internal/bgg"
	"github.com/RaneWallin/GameNightBot/internal/model"
	"github.com/RaneWallin/GameNightBot/internal/repository"
)

// GameDetailer fetches full game details for a BGG id.
type GameDetailer interface {
	Details(ctx context.Context, bggID int64) (*bgg.GameDetails, error)
}

// CollectionService handles ownership: adding games to and removing
// them from per-user collections.
type CollectionService struct {
	userRepo *repository.UserRepository
	gameRepo *repository.GameRepository
	details  GameDetailer
}

// NewCollectionService creates a new CollectionService instance.
func NewCollectionService(
	userRepo *repository.UserRepository,
	gameRepo *repository.GameRepository,
	details GameDetailer,
) *CollectionService {
	return &CollectionService{
		userRepo: userRepo,
		gameRepo: gameRepo,
		details:  details,
	}
}

// AddResult reports what AddGame did.
type AddResult struct {
	Game         *model.Game
	AlreadyOwned bool
	NewUser      bool
}

// AddGame fetches the game's details, upserts the catalog record, and
// links it to the sender's collection. Registers the sender on the fly
// if needed. Re-adding an owned game reports AlreadyOwned and changes
// nothing.
func (s *CollectionService) AddGame(ctx context.Context, telegramID, chatID int64, username string, bggID int64) (*AddResult, error) {
	details, err := s.details.Details(ctx, bggID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch game details: %w", err)
	}

	game, err := s.gameRepo.Upsert(ctx, gameFromDetails(details))
	if err != nil {
		return nil, err
	}

	user, created, err := s.userRepo.GetOrCreate(ctx, telegramID, chatID, username)
	if err != nil {
		return nil, err
	}

	alreadyOwned, err := s.gameRepo.LinkOwner(ctx, user.ID, game.ID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("user_id", user.ID).
		Int64("bgg_id", game.BGGID).
		Bool("already_owned", alreadyOwned).
		Msg("game added to collection")

	return &AddResult{Game: game, AlreadyOwned: alreadyOwned, NewUser: created}, nil
}

// RemoveGame unlinks a game from the sender's collection. The catalog
// record stays so sessions and other collections keep their history.
func (s *CollectionService) RemoveGame(ctx context.Context, telegramID, chatID, gameID int64) (*model.Game, error) {
	user, err := s.userRepo.GetByTelegramID(ctx, telegramID, chatID)
	if err != nil {
		return nil, err
	}
	game, err := s.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if err := s.gameRepo.UnlinkOwner(ctx, user.ID, game.ID); err != nil {
		return nil, err
	}
	return game, nil
}

// OwnedGames retrieves the sender's collection, sorted by name.
func (s *CollectionService) OwnedGames(ctx context.Context, telegramID, chatID int64) ([]*model.Game, error) {
	user, err := s.userRepo.GetByTelegramID(ctx, telegramID, chatID)
	if err != nil {
		return nil, err
	}
	return s.gameRepo.ListOwned(ctx, user.ID)
}

// Owners retrieves the chat members who own a game.
func (s *CollectionService) Owners(ctx context.Context, gameID, chatID int64) ([]*model.User, error) {
	return s.gameRepo.ListOwners(ctx, gameID, chatID)
}

// OwnersByBGG retrieves the chat members who own the game with the
// given BGG id. A game nobody has stored yet has no owners.
func (s *CollectionService) OwnersByBGG(ctx context.Context, bggID, chatID int64) (*model.Game, []*model.User, error) {
	game, err := s.gameRepo.GetByBGGID(ctx, bggID)
	if err != nil {
		if errors.Is(err, repository.ErrGameNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	owners, err := s.gameRepo.ListOwners(ctx, game.ID, chatID)
	if err != nil {
		return nil, nil, err
	}
	return game, owners, nil
}

// GameInfo fetches the full detail card for a BGG id.
func (s *CollectionService) GameInfo(ctx context.Context, bggID int64) (*bgg.GameDetails, error) {
	return s.details.Details(ctx, bggID)
}

// Catalog retrieves every locally stored game, for the local fuzzy
// resolver.
func (s *CollectionService) Catalog(ctx context.Context) ([]*model.Game, error) {
	return s.gameRepo.ListAll(ctx)
}

func gameFromDetails(d *bgg.GameDetails) *model.Game {
	return &model.Game{
		BGGID:      d.BGGID,
		Name:       d.Name,
		Publisher:  d.Publisher,
		Designer:   d.Designer,
		MinPlayers: d.MinPlayers,
		MaxPlayers: d.MaxPlayers,
	}
}
