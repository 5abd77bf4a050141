package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"github.com/RaneWallin/GameNightBot/internal/bgg"
	"github.com/RaneWallin/GameNightBot/internal/config"
	"github.com/RaneWallin/GameNightBot/internal/dialog"
	"github.com/RaneWallin/GameNightBot/internal/model"
	"github.com/RaneWallin/GameNightBot/internal/repository"
	"github.com/RaneWallin/GameNightBot/internal/resolver"
	"github.com/RaneWallin/GameNightBot/internal/sanitize"
	"github.com/RaneWallin/GameNightBot/internal/service"
)

// CollectionHandler handles the collection commands: /addgame,
// /removegame, /mygames, /findgame and /gameinfo.
type CollectionHandler struct {
	cfg        *config.Config
	collection *service.CollectionService
	res        *resolver.Resolver
	dialogs    *dialog.Registry
}

// NewCollectionHandler creates a new CollectionHandler.
func NewCollectionHandler(
	cfg *config.Config,
	collection *service.CollectionService,
	res *resolver.Resolver,
	dialogs *dialog.Registry,
) *CollectionHandler {
	return &CollectionHandler{
		cfg:        cfg,
		collection: collection,
		res:        res,
		dialogs:    dialogs,
	}
}

// senderName picks the best display handle Telegram gives us.
func senderName(sender *tele.User) string {
	if sender.Username != "" {
		return sender.Username
	}
	return sender.FirstName
}

// HandleAddGame handles /addgame <query>.
func (h *CollectionHandler) HandleAddGame(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	query := sanitize.Query(c.Message().Payload)
	if query == "" {
		return c.Reply("Usage: /addgame <game name>")
	}

	ctx := context.Background()
	candidates, err := h.res.Remote(ctx, query, resolver.ButtonLimit)
	if err != nil {
		return c.Reply(remoteFailureMessage(err))
	}

	offer := h.dialogs.Present(sender.ID, chat.ID, dialog.KindAddGame, candidates, h.cfg.Dialog.PickerTTL)
	switch offer.Outcome {
	case dialog.OutcomeNoMatch:
		return c.Reply(fmt.Sprintf("No games found for \"%s\".", query))
	case dialog.OutcomeAuto:
		return h.completeAddGame(c, offer.Candidate.BGGID)
	default:
		return c.Reply(
			fmt.Sprintf("Found %d games for \"%s\". Which one did you mean?", len(offer.Candidates), query),
			BuildPicker(offer.DialogID, offer.Candidates),
		)
	}
}

func (h *CollectionHandler) completeAddGame(c tele.Context, bggID int64) error {
	sender, chat := c.Sender(), c.Chat()

	result, err := h.collection.AddGame(context.Background(), sender.ID, chat.ID, senderName(sender), bggID)
	if err != nil {
		log.Error().Err(err).Int64("bgg_id", bggID).Msg("Failed to add game")
		return c.Send("❌ Could not add the game. Try again later.")
	}

	if result.AlreadyOwned {
		return c.Send(fmt.Sprintf("ℹ️ %s is already in your collection.", result.Game.Name))
	}
	return c.Send(fmt.Sprintf("✅ Added %s to your collection!", result.Game.Name))
}

// HandleRemoveGame handles /removegame <query>. Matching runs over the
// sender's own collection only.
func (h *CollectionHandler) HandleRemoveGame(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	query := sanitize.Query(c.Message().Payload)
	if query == "" {
		return c.Reply("Usage: /removegame <game name>")
	}

	ctx := context.Background()
	owned, err := h.collection.OwnedGames(ctx, sender.ID, chat.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.Reply("You are not registered yet. Use /register first.")
		}
		return c.Reply("❌ Could not load your collection.")
	}

	candidates := resolver.LocalSubstring(owned, query)
	if len(candidates) > resolver.ButtonLimit {
		candidates = candidates[:resolver.ButtonLimit]
	}

	offer := h.dialogs.Present(sender.ID, chat.ID, dialog.KindRemoveGame, candidates, h.cfg.Dialog.PickerTTL)
	switch offer.Outcome {
	case dialog.OutcomeNoMatch:
		return c.Reply(fmt.Sprintf("None of your games match \"%s\".", query))
	case dialog.OutcomeAuto:
		return h.completeRemoveGame(c, offer.Candidate.GameID)
	default:
		return c.Reply("Which game do you want to remove?", BuildPicker(offer.DialogID, offer.Candidates))
	}
}

func (h *CollectionHandler) completeRemoveGame(c tele.Context, gameID int64) error {
	sender, chat := c.Sender(), c.Chat()

	game, err := h.collection.RemoveGame(context.Background(), sender.ID, chat.ID, gameID)
	if err != nil {
		log.Error().Err(err).Int64("game_id", gameID).Msg("Failed to remove game")
		return c.Send("❌ Could not remove the game.")
	}
	return c.Send(fmt.Sprintf("🗑 Removed %s from your collection.", game.Name))
}

// HandleMyGames handles /mygames.
func (h *CollectionHandler) HandleMyGames(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}
	return h.sendMyGamesPage(c, sender.ID, chat.ID, 0, false)
}

// HandleMyGamesPage handles the pgmy_<telegramID>_<page> callback.
func (h *CollectionHandler) HandleMyGamesPage(c tele.Context, params []string) error {
	if len(params) != 2 {
		return respond(c, "Bad page reference.")
	}
	ownerID, err1 := strconv.ParseInt(params[0], 10, 64)
	page, err2 := strconv.Atoi(params[1])
	if err1 != nil || err2 != nil {
		return respond(c, "Bad page reference.")
	}

	sender := c.Sender()
	if sender == nil || sender.ID != ownerID {
		return respond(c, "This list belongs to someone else.")
	}

	if err := h.sendMyGamesPage(c, ownerID, c.Chat().ID, page, true); err != nil {
		return err
	}
	return respond(c, "")
}

func (h *CollectionHandler) sendMyGamesPage(c tele.Context, telegramID, chatID int64, page int, edit bool) error {
	games, err := h.collection.OwnedGames(context.Background(), telegramID, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.Reply("You are not registered yet. Use /register first.")
		}
		return c.Reply("❌ Could not load your collection.")
	}
	if len(games) == 0 {
		return c.Reply("Your collection is empty. Add games with /addgame.")
	}

	lo, hi, page, pageCount := pageBounds(len(games), page)

	var b strings.Builder
	fmt.Fprintf(&b, "🎲 Your games (%d), page %d/%d:\n", len(games), page+1, pageCount)
	for _, g := range games[lo:hi] {
		fmt.Fprintf(&b, "• %s%s\n", g.Name, playerRange(g))
	}

	pager := buildPager(ActionPageMy, page, pageCount, strconv.FormatInt(telegramID, 10))
	if edit {
		if pager != nil {
			return c.Edit(b.String(), pager)
		}
		return c.Edit(b.String())
	}
	if pager != nil {
		return c.Reply(b.String(), pager)
	}
	return c.Reply(b.String())
}

func playerRange(g *model.Game) string {
	if g.MinPlayers == 0 && g.MaxPlayers == 0 {
		return ""
	}
	if g.MinPlayers == g.MaxPlayers {
		return fmt.Sprintf(" (%d players)", g.MinPlayers)
	}
	return fmt.Sprintf(" (%d-%d players)", g.MinPlayers, g.MaxPlayers)
}

// HandleFindGame handles /findgame <query>: who in this chat owns the
// game.
func (h *CollectionHandler) HandleFindGame(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	query := sanitize.Query(c.Message().Payload)
	if query == "" {
		return c.Reply("Usage: /findgame <game name>")
	}

	ctx := context.Background()
	candidates, err := h.res.Remote(ctx, query, resolver.ButtonLimit)
	if err != nil {
		return c.Reply(remoteFailureMessage(err))
	}

	offer := h.dialogs.Present(sender.ID, chat.ID, dialog.KindFindGame, candidates, h.cfg.Dialog.PickerTTL)
	switch offer.Outcome {
	case dialog.OutcomeNoMatch:
		return c.Reply(fmt.Sprintf("No games found for \"%s\".", query))
	case dialog.OutcomeAuto:
		return h.completeFindGame(c, offer.Candidate)
	default:
		return c.Reply("Which game are you looking for?", BuildPicker(offer.DialogID, offer.Candidates))
	}
}

func (h *CollectionHandler) completeFindGame(c tele.Context, cand resolver.Candidate) error {
	chat := c.Chat()

	game, owners, err := h.collection.OwnersByBGG(context.Background(), cand.BGGID, chat.ID)
	if err != nil {
		log.Error().Err(err).Int64("bgg_id", cand.BGGID).Msg("Failed to look up owners")
		return c.Send("❌ Could not look up owners.")
	}
	if game == nil || len(owners) == 0 {
		return c.Send(fmt.Sprintf("Nobody here owns %s yet.", cand.Name))
	}

	names := make([]string, len(owners))
	for i, u := range owners {
		names[i] = u.DisplayName()
	}
	return c.Send(fmt.Sprintf("🎲 %s is owned by: %s", game.Name, strings.Join(names, ", ")))
}

// HandleGameInfo handles /gameinfo <query>.
func (h *CollectionHandler) HandleGameInfo(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	query := sanitize.Query(c.Message().Payload)
	if query == "" {
		return c.Reply("Usage: /gameinfo <game name>")
	}

	ctx := context.Background()
	candidates, err := h.res.Remote(ctx, query, resolver.ButtonLimit)
	if err != nil {
		return c.Reply(remoteFailureMessage(err))
	}

	offer := h.dialogs.Present(sender.ID, chat.ID, dialog.KindGameInfo, candidates, h.cfg.Dialog.PickerTTL)
	switch offer.Outcome {
	case dialog.OutcomeNoMatch:
		return c.Reply(fmt.Sprintf("No games found for \"%s\".", query))
	case dialog.OutcomeAuto:
		return h.completeGameInfo(c, offer.Candidate.BGGID)
	default:
		return c.Reply("Which game do you want to see?", BuildPicker(offer.DialogID, offer.Candidates))
	}
}

func (h *CollectionHandler) completeGameInfo(c tele.Context, bggID int64) error {
	details, err := h.collection.GameInfo(context.Background(), bggID)
	if err != nil {
		log.Error().Err(err).Int64("bgg_id", bggID).Msg("Failed to fetch game details")
		return c.Send(remoteFailureMessage(err))
	}
	return c.Send(formatGameCard(details), BuildAddToCollection(bggID))
}

// HandleAddOwnCallback handles the add_<bggID> button under a game
// card. Anyone in the chat may press it to add the game to their own
// collection.
func (h *CollectionHandler) HandleAddOwnCallback(c tele.Context, params []string) error {
	if len(params) != 1 {
		return respond(c, "Bad button.")
	}
	bggID, err := strconv.ParseInt(params[0], 10, 64)
	if err != nil {
		return respond(c, "Bad button.")
	}

	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	result, err := h.collection.AddGame(context.Background(), sender.ID, chat.ID, senderName(sender), bggID)
	if err != nil {
		log.Error().Err(err).Int64("bgg_id", bggID).Msg("Failed to add game via button")
		return respondAlert(c, "Could not add the game. Try again later.")
	}
	if result.AlreadyOwned {
		return respond(c, fmt.Sprintf("%s is already in your collection.", result.Game.Name))
	}
	return respond(c, fmt.Sprintf("Added %s to your collection!", result.Game.Name))
}

// CompletePick finishes a collection dialog after the initiator picked
// a candidate.
func (h *CollectionHandler) CompletePick(c tele.Context, kind dialog.Kind, dialogID string, index int) error {
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
	if err := c.Edit(fmt.Sprintf("Selected: %s", cand.Label())); err != nil {
		log.Debug().Err(err).Msg("Failed to edit picker message")
	}

	switch kind {
	case dialog.KindAddGame:
		return h.completeAddGame(c, cand.BGGID)
	case dialog.KindRemoveGame:
		return h.completeRemoveGame(c, cand.GameID)
	case dialog.KindFindGame:
		return h.completeFindGame(c, cand)
	case dialog.KindGameInfo:
		return h.completeGameInfo(c, cand.BGGID)
	}
	return nil
}

func formatGameCard(d *bgg.GameDetails) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎲 %s", d.Name)
	if d.Year != "" {
		fmt.Fprintf(&b, " (%s)", d.Year)
	}
	b.WriteString("\n")
	if d.Publisher != "" {
		fmt.Fprintf(&b, "Publisher: %s\n", d.Publisher)
	}
	if d.Designer != "" {
		fmt.Fprintf(&b, "Designer: %s\n", d.Designer)
	}
	if d.MinPlayers > 0 || d.MaxPlayers > 0 {
		if d.MinPlayers == d.MaxPlayers {
			fmt.Fprintf(&b, "Players: %d\n", d.MinPlayers)
		} else {
			fmt.Fprintf(&b, "Players: %d-%d\n", d.MinPlayers, d.MaxPlayers)
		}
	}
	if d.PlayingTime > 0 {
		fmt.Fprintf(&b, "Playing time: %d min\n", d.PlayingTime)
	}
	fmt.Fprintf(&b, "https://boardgamegeek.com/boardgame/%d", d.BGGID)
	return b.String()
}

// remoteFailureMessage maps the BGG failure taxonomy to a user-facing
// message. Failures surface once; there are no retries.
func remoteFailureMessage(err error) string {
	switch {
	case errors.Is(err, bgg.ErrTransport):
		return "⚠️ Could not reach BoardGameGeek. Try again in a moment."
	case errors.Is(err, bgg.ErrBadStatus):
		return "⚠️ BoardGameGeek is having trouble right now. Try again later."
	case errors.Is(err, bgg.ErrDecode):
		return "⚠️ BoardGameGeek returned something unreadable. Try again later."
	default:
		return "⚠️ Game search failed. Try again later."
	}
}
