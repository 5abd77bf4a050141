package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"github.com/RaneWallin/GameNightBot/internal/config"
	"github.com/RaneWallin/GameNightBot/internal/dialog"
	"github.com/RaneWallin/GameNightBot/internal/repository"
	"github.com/RaneWallin/GameNightBot/internal/resolver"
	"github.com/RaneWallin/GameNightBot/internal/sanitize"
	"github.com/RaneWallin/GameNightBot/internal/service"
)

// StatsHandler handles /gamestats and /mystats.
type StatsHandler struct {
	cfg     *config.Config
	stats   *service.StatsService
	users   *service.UserService
	res     *resolver.Resolver
	dialogs *dialog.Registry
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(
	cfg *config.Config,
	stats *service.StatsService,
	users *service.UserService,
	res *resolver.Resolver,
	dialogs *dialog.Registry,
) *StatsHandler {
	return &StatsHandler{
		cfg:     cfg,
		stats:   stats,
		users:   users,
		res:     res,
		dialogs: dialogs,
	}
}

// HandleGameStats handles /gamestats <game>.
func (h *StatsHandler) HandleGameStats(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	query := sanitize.Query(c.Message().Payload)
	if query == "" {
		return c.Reply("Usage: /gamestats <game name>")
	}

	ctx := context.Background()
	candidates, err := h.res.Local(ctx, query, resolver.ButtonLimit)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("Local game search failed")
		return c.Reply("❌ Could not search your games.")
	}

	offer := h.dialogs.Present(sender.ID, chat.ID, dialog.KindGameStats, candidates, h.cfg.Dialog.PickerTTL)
	switch offer.Outcome {
	case dialog.OutcomeNoMatch:
		return c.Reply("No stored games matched. Add the game with /addgame first.")
	case dialog.OutcomeAuto:
		return h.sendGameStats(c, offer.Candidate.GameID, offer.Candidate.Name, false)
	default:
		return c.Reply("🎯 Which game did you mean?", BuildPicker(offer.DialogID, offer.Candidates))
	}
}

// CompletePick finishes /gamestats after a disambiguation pick.
func (h *StatsHandler) CompletePick(c tele.Context, dialogID string, index int) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	cand, err := h.dialogs.Pick(dialogID, sender.ID, index)
	if err != nil {
		return dialogPickError(c, err)
	}
	if err := respond(c, ""); err != nil {
		log.Debug().Err(err).Msg("Failed to ack callback")
	}
	return h.sendGameStats(c, cand.GameID, cand.Name, true)
}

func (h *StatsHandler) sendGameStats(c tele.Context, gameID int64, gameName string, edit bool) error {
	chat := c.Chat()
	ctx := context.Background()

	stats, err := h.stats.ForGame(ctx, gameID, chat.ID)
	if err != nil {
		log.Error().Err(err).Int64("game_id", gameID).Msg("Failed to compute game stats")
		return c.Send("❌ Failed to compute stats.")
	}
	if stats.TotalPlays == 0 {
		return h.deliver(c, edit, fmt.Sprintf("No sessions recorded for %s yet. Log one with /newsession!", gameName))
	}

	names, err := h.stats.WinnerNames(ctx, stats.TopWinners)
	if err != nil {
		log.Error().Err(err).Int64("game_id", gameID).Msg("Failed to resolve winner names")
		return c.Send("❌ Failed to compute stats.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Stats for %s\n", gameName)
	fmt.Fprintf(&b, "• 🎮 Total plays: %d\n", stats.TotalPlays)
	for i, w := range stats.TopWinners {
		if i >= len(names) {
			break
		}
		fmt.Fprintf(&b, "• 🏆 %s — %d win(s)\n", names[i], w.Wins)
	}
	return h.deliver(c, edit, b.String())
}

func (h *StatsHandler) deliver(c tele.Context, edit bool, text string) error {
	if edit {
		return c.Edit(text)
	}
	return c.Reply(text)
}

// HandleMyStats handles /mystats.
func (h *StatsHandler) HandleMyStats(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	ctx := context.Background()
	user, err := h.users.Lookup(ctx, sender.ID, chat.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.Reply("❌ You're not registered yet. Use /register first.")
		}
		log.Error().Err(err).Int64("telegram_id", sender.ID).Msg("Failed to look up user")
		return c.Reply("❌ Failed to compute stats.")
	}

	stats, err := h.stats.ForUser(ctx, user.ID, chat.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to compute user stats")
		return c.Reply("❌ Failed to compute stats.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Stats for %s\n", user.DisplayName())
	fmt.Fprintf(&b, "• 🎮 Sessions played: %d\n", stats.SessionsPlayed)
	fmt.Fprintf(&b, "• 🏆 Wins: %d\n", stats.Wins)
	if stats.MostPlayedN > 0 {
		fmt.Fprintf(&b, "• ❤️ Most played: %s (%dx)\n", stats.MostPlayed, stats.MostPlayedN)
	}
	return c.Reply(b.String())
}
