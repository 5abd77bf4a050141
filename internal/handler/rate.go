package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"github.com/RaneWallin/GameNightBot/internal/config"
	"github.com/RaneWallin/GameNightBot/internal/repository"
	"github.com/RaneWallin/GameNightBot/internal/resolver"
	"github.com/RaneWallin/GameNightBot/internal/sanitize"
	"github.com/RaneWallin/GameNightBot/internal/service"
)

// RateHandler handles /rate and the star-row votes. Rating polls are
// stateless: the game id and expiry ride in the callback data, so any
// registered member can vote until the poll expires.
type RateHandler struct {
	cfg     *config.Config
	ratings *service.RatingService
	res     *resolver.Resolver
}

// NewRateHandler creates a new RateHandler.
func NewRateHandler(cfg *config.Config, ratings *service.RatingService, res *resolver.Resolver) *RateHandler {
	return &RateHandler{cfg: cfg, ratings: ratings, res: res}
}

// HandleRate handles /rate <game>. The best local match opens the
// poll; there is no disambiguation step.
func (h *RateHandler) HandleRate(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	query := sanitize.Query(c.Message().Payload)
	if query == "" {
		return c.Reply("Usage: /rate <game name>")
	}

	candidates, err := h.res.Local(context.Background(), query, 1)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("Local game search failed")
		return c.Reply("❌ Could not search your games.")
	}
	if len(candidates) == 0 {
		return c.Reply("No stored games matched. Add the game with /addgame first.")
	}

	game := candidates[0]
	expires := time.Now().Add(h.cfg.Dialog.RatingPollTTL).Unix()
	text := fmt.Sprintf("📊 Rate %s\nSelect a rating from 1 to 5:", game.Name)
	return c.Reply(text, BuildStars(game.GameID, expires))
}

// HandleRateCallback handles a star press. Params are
// [gameID, stars, expiresUnix].
func (h *RateHandler) HandleRateCallback(c tele.Context, params []string) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil || len(params) != 3 {
		return nil
	}

	gameID, err1 := strconv.ParseInt(params[0], 10, 64)
	stars, err2 := strconv.Atoi(params[1])
	expires, err3 := strconv.ParseInt(params[2], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return respond(c, "That option is not available.")
	}

	if time.Now().Unix() > expires {
		return respond(c, "This poll has closed. Start a new one with /rate.")
	}

	ctx := context.Background()
	game, err := h.ratings.Rate(ctx, sender.ID, chat.ID, gameID, stars)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return respondAlert(c, "You must register first. Use /register in this chat.")
		case errors.Is(err, repository.ErrGameNotFound):
			return respond(c, "That game is no longer stored.")
		case errors.Is(err, service.ErrInvalidRating):
			return respond(c, "That option is not available.")
		default:
			log.Error().Err(err).Int64("game_id", gameID).Msg("Failed to record rating")
			return respondAlert(c, "Failed to record your rating.")
		}
	}

	var avg float64
	var votes int
	if a, n, err := h.ratings.Average(ctx, game.ID); err == nil {
		avg, votes = a, n
	} else {
		log.Debug().Err(err).Int64("game_id", game.ID).Msg("Failed to compute rating average")
	}
	return respond(c, formatRatingAck(game.Name, stars, avg, votes))
}

// formatRatingAck confirms a vote, with the game's running average
// when it is known.
func formatRatingAck(name string, stars int, avg float64, votes int) string {
	ack := fmt.Sprintf("⭐ You rated %s %d/5. Thanks!", name, stars)
	if votes <= 0 {
		return ack
	}
	return fmt.Sprintf("%s Average: %.1f (%d votes)", ack, avg, votes)
}
