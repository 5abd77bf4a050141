package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"github.com/RaneWallin/GameNightBot/internal/repository"
	"github.com/RaneWallin/GameNightBot/internal/sanitize"
	"github.com/RaneWallin/GameNightBot/internal/service"
)

// UserHandler handles /register and /nickname.
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// HandleRegister handles /register [nickname]. Registration is scoped
// to the chat the command runs in.
func (h *UserHandler) HandleRegister(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	nickname := sanitize.Query(c.Message().Payload)

	user, created, err := h.users.Register(context.Background(), sender.ID, chat.ID, senderName(sender), nickname)
	if err != nil {
		log.Error().Err(err).Int64("telegram_id", sender.ID).Msg("Failed to register user")
		return c.Reply("❌ Registration failed. Please try again.")
	}

	if !created {
		if nickname != "" {
			return c.Reply(fmt.Sprintf("ℹ️ You're already registered. Nickname updated to %s!", user.DisplayName()))
		}
		return c.Reply("ℹ️ You're already registered in this chat.")
	}
	return c.Reply(fmt.Sprintf("✅ Registered as %s. Have fun!", user.DisplayName()))
}

// HandleNickname handles /nickname <name>.
func (h *UserHandler) HandleNickname(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	nickname := sanitize.Query(c.Message().Payload)
	if nickname == "" {
		return c.Reply("Usage: /nickname <name>")
	}

	user, err := h.users.SetNickname(context.Background(), sender.ID, chat.ID, nickname)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.Reply("❌ You're not registered yet. Use /register first.")
		}
		log.Error().Err(err).Int64("telegram_id", sender.ID).Msg("Failed to update nickname")
		return c.Reply("❌ Failed to update your nickname.")
	}
	return c.Reply(fmt.Sprintf("✅ Nickname updated to %s!", user.Nickname))
}
