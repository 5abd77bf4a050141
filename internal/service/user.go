// Package service provides the bot's business logic workflows.
package service

import (
	"context"
	"fmt"

	"github.com/RaneWallin/GameNightBot/internal/model"
	"github.com/RaneWallin/GameNightBot/internal/repository"
)

// UserService handles registration and nicknames. Registrations are
// scoped per chat: the same Telegram account registers separately in
// each group it plays in.
type UserService struct {
	userRepo *repository.UserRepository
}

// NewUserService creates a new UserService instance.
func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// Register registers the sender in the chat, creating the record if
// needed. A non-empty nickname is applied either way, so re-running
// /register with a new nickname just updates it.
func (s *UserService) Register(ctx context.Context, telegramID, chatID int64, username, nickname string) (*model.User, bool, error) {
	user, created, err := s.userRepo.GetOrCreate(ctx, telegramID, chatID, username)
	if err != nil {
		return nil, false, fmt.Errorf("failed to register user: %w", err)
	}

	if nickname != "" && user.Nickname != nickname {
		if err := s.userRepo.UpdateNickname(ctx, user.ID, nickname); err != nil {
			return nil, false, fmt.Errorf("failed to set nickname: %w", err)
		}
		user.Nickname = nickname
	}

	return user, created, nil
}

// SetNickname updates the sender's display nickname. The sender must
// already be registered in the chat.
func (s *UserService) SetNickname(ctx context.Context, telegramID, chatID int64, nickname string) (*model.User, error) {
	user, err := s.userRepo.GetByTelegramID(ctx, telegramID, chatID)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateNickname(ctx, user.ID, nickname); err != nil {
		return nil, fmt.Errorf("failed to update nickname: %w", err)
	}
	user.Nickname = nickname
	return user, nil
}

// Lookup retrieves the sender's registration in a chat.
func (s *UserService) Lookup(ctx context.Context, telegramID, chatID int64) (*model.User, error) {
	return s.userRepo.GetByTelegramID(ctx, telegramID, chatID)
}

// Roster retrieves everyone registered in a chat.
func (s *UserService) Roster(ctx context.Context, chatID int64) ([]*model.User, error) {
	return s.userRepo.ListByChat(ctx, chatID)
}
