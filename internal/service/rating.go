package service

import (
	"context"
	"errors"

	"github.com/RaneWallin/GameNightBot/internal/model"
	"github.com/RaneWallin/GameNightBot/internal/repository"
)

// ErrInvalidRating is returned for star values outside 1..5.
var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// RatingService handles star ratings. One vote per user per game;
// re-rating replaces the previous value.
type RatingService struct {
	ratingRepo *repository.RatingRepository
	userRepo   *repository.UserRepository
	gameRepo   *repository.GameRepository
}

// NewRatingService creates a new RatingService instance.
func NewRatingService(
	ratingRepo *repository.RatingRepository,
	userRepo *repository.UserRepository,
	gameRepo *repository.GameRepository,
) *RatingService {
	return &RatingService{
		ratingRepo: ratingRepo,
		userRepo:   userRepo,
		gameRepo:   gameRepo,
	}
}

// Rate records the sender's star rating for a game. The sender must be
// registered in the chat.
func (s *RatingService) Rate(ctx context.Context, telegramID, chatID, gameID int64, stars int) (*model.Game, error) {
	if stars < 1 || stars > 5 {
		return nil, ErrInvalidRating
	}
	game, err := s.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByTelegramID(ctx, telegramID, chatID)
	if err != nil {
		return nil, err
	}
	if err := s.ratingRepo.Upsert(ctx, user.ID, game.ID, stars); err != nil {
		return nil, err
	}
	return game, nil
}

// Average retrieves a game's mean rating and vote count.
func (s *RatingService) Average(ctx context.Context, gameID int64) (float64, int, error) {
	return s.ratingRepo.Average(ctx, gameID)
}
