package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"github.com/RaneWallin/GameNightBot/internal/config"
	"github.com/RaneWallin/GameNightBot/internal/dialog"
	"github.com/RaneWallin/GameNightBot/internal/model"
	"github.com/RaneWallin/GameNightBot/internal/repository"
	"github.com/RaneWallin/GameNightBot/internal/resolver"
	"github.com/RaneWallin/GameNightBot/internal/sanitize"
	"github.com/RaneWallin/GameNightBot/internal/service"
)

// SessionHandler handles /newsession, /addplayers, /addwinners,
// /sessions and /deletesession.
type SessionHandler struct {
	cfg      *config.Config
	sessions *service.SessionService
	users    *service.UserService
	res      *resolver.Resolver
	dialogs  *dialog.Registry

	// Arguments stashed between the prompt and its callback, keyed by
	// dialog id. Guarded by mu; handlers may run concurrently.
	mu            sync.Mutex
	pendingArgs   map[string]sessionArgs
	pendingTarget map[string]int64
}

type sessionArgs struct {
	name string
	date string
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(
	cfg *config.Config,
	sessions *service.SessionService,
	users *service.UserService,
	res *resolver.Resolver,
	dialogs *dialog.Registry,
) *SessionHandler {
	return &SessionHandler{
		cfg:      cfg,
		sessions: sessions,
		users:    users,
		res:      res,
		dialogs:  dialogs,

		pendingArgs:   make(map[string]sessionArgs),
		pendingTarget: make(map[string]int64),
	}
}

// HandleNewSession handles /newsession <game> | [name] | [date].
// Parts after the game query are optional; the date must be
// YYYY-MM-DD.
func (h *SessionHandler) HandleNewSession(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	parts := strings.SplitN(c.Message().Payload, "|", 3)
	query := sanitize.Query(parts[0])
	if query == "" {
		return c.Reply("Usage: /newsession <game> | [session name] | [date YYYY-MM-DD]")
	}
	args := sessionArgs{}
	if len(parts) > 1 {
		args.name = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		args.date = strings.TrimSpace(parts[2])
	}

	// Validate the date up front so a bad date never creates anything.
	if _, err := service.ParseDate(args.date); err != nil {
		return c.Reply("❌ Invalid date format. Please use YYYY-MM-DD (e.g. 2025-07-06).")
	}

	ctx := context.Background()
	candidates, err := h.res.Local(ctx, query, resolver.ButtonLimit)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("Local game search failed")
		return c.Reply("❌ Could not search your games.")
	}

	offer := h.dialogs.Present(sender.ID, chat.ID, dialog.KindNewSession, candidates, h.cfg.Dialog.PickerTTL)
	switch offer.Outcome {
	case dialog.OutcomeNoMatch:
		return c.Reply("No stored games matched. Add the game with /addgame first.")
	case dialog.OutcomeAuto:
		return h.completeNewSession(c, offer.Candidate.GameID, args)
	default:
		h.stashArgs(offer.DialogID, args)
		return c.Reply("🎯 Which game did you play?", BuildPicker(offer.DialogID, offer.Candidates))
	}
}

func (h *SessionHandler) completeNewSession(c tele.Context, gameID int64, args sessionArgs) error {
	sender, chat := c.Sender(), c.Chat()
	ctx := context.Background()

	session, err := h.sessions.Create(ctx, gameID, chat.ID, args.name, args.date)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDate) {
			return c.Send("❌ Invalid date format. Please use YYYY-MM-DD.")
		}
		log.Error().Err(err).Int64("game_id", gameID).Msg("Failed to create session")
		return c.Send("❌ Failed to create the session.")
	}

	name := session.Name
	if name == "" {
		name = "Unnamed"
	}
	created := fmt.Sprintf("✅ Session %q created (ID %d).", name, session.ID)

	// Second stage: pick the players right away.
	return h.promptParticipants(c, sender.ID, chat.ID, session.ID, created)
}

// HandleAddPlayers handles /addplayers <session_id>.
func (h *SessionHandler) HandleAddPlayers(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	sessionID, err := parseSessionID(c.Message().Payload)
	if err != nil {
		return c.Reply("Usage: /addplayers <session id>")
	}
	return h.promptParticipants(c, sender.ID, chat.ID, sessionID, "")
}

func (h *SessionHandler) promptParticipants(c tele.Context, senderID, chatID, sessionID int64, prefix string) error {
	ctx := context.Background()
	eligible, err := h.sessions.EligibleParticipants(ctx, sessionID, chatID)
	if err != nil {
		return h.sessionLookupError(c, err)
	}

	options := userOptions(eligible)
	offer := h.dialogs.PresentMulti(senderID, chatID, dialog.KindParticipants, options, h.cfg.Dialog.PickerTTL)
	if offer.Outcome == dialog.OutcomeNoMatch {
		roster, rerr := h.users.Roster(ctx, chatID)
		if rerr != nil {
			log.Debug().Err(rerr).Int64("chat_id", chatID).Msg("Failed to load chat roster")
		}
		msg := participantsExhaustedMessage(len(roster))
		if prefix != "" {
			msg = prefix + "\n" + msg
		}
		return c.Send(msg)
	}

	h.stashTarget(offer.DialogID, sessionID)
	msg := "👥 Select the players for this session:"
	if prefix != "" {
		msg = prefix + "\n\n" + msg
	}
	return c.Send(msg, BuildMultiSelect(offer.DialogID, options, nil))
}

// HandleAddWinners handles /addwinners <session_id>.
func (h *SessionHandler) HandleAddWinners(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	sessionID, err := parseSessionID(c.Message().Payload)
	if err != nil {
		return c.Reply("Usage: /addwinners <session id>")
	}

	eligible, err := h.sessions.EligibleWinners(context.Background(), sessionID, chat.ID)
	if err != nil {
		return h.sessionLookupError(c, err)
	}

	options := userOptions(eligible)
	offer := h.dialogs.PresentMulti(sender.ID, chat.ID, dialog.KindWinners, options, h.cfg.Dialog.PickerTTL)
	if offer.Outcome == dialog.OutcomeNoMatch {
		return c.Send("✅ Every participant is already a winner.")
	}

	h.stashTarget(offer.DialogID, sessionID)
	return c.Send("🏆 Select the winners:", BuildMultiSelect(offer.DialogID, options, nil))
}

// CompleteToggle re-renders the multi-select after a toggle.
func (h *SessionHandler) CompleteToggle(c tele.Context, dialogID string, optionID int64) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	_, count, err := h.dialogs.Toggle(dialogID, sender.ID, optionID)
	if err != nil {
		return dialogPickError(c, err)
	}

	options, selected, ok := h.dialogs.Options(dialogID)
	if ok {
		if err := c.Edit(c.Message().Text, BuildMultiSelect(dialogID, options, selected)); err != nil {
			log.Debug().Err(err).Msg("Failed to re-render multi-select")
		}
	}
	return respond(c, fmt.Sprintf("%d selected", count))
}

// CompleteConfirm commits a multi-select and links the chosen users.
func (h *SessionHandler) CompleteConfirm(c tele.Context, kind dialog.Kind, dialogID string) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	chosen, err := h.dialogs.Confirm(dialogID, sender.ID)
	if err != nil {
		return dialogPickError(c, err)
	}
	sessionID, ok := h.takeTarget(dialogID)
	if !ok {
		return respond(c, "This prompt has expired. Run the command again.")
	}

	ctx := context.Background()
	var added, skipped int
	var what string
	switch kind {
	case dialog.KindParticipants:
		added, skipped, err = h.sessions.AddParticipants(ctx, sessionID, chosen)
		what = "player(s)"
	case dialog.KindWinners:
		added, skipped, err = h.sessions.AddWinners(ctx, sessionID, chosen)
		what = "winner(s)"
	default:
		return respond(c, "That option is not available.")
	}
	if err != nil {
		if errors.Is(err, service.ErrNotParticipant) {
			return respondAlert(c, "Winners must be participants of the session.")
		}
		log.Error().Err(err).Int64("session_id", sessionID).Msg("Failed to link session users")
		return respondAlert(c, "Could not save the selection.")
	}

	msg := fmt.Sprintf("✅ Added %d %s to the session.", added, what)
	if skipped > 0 {
		msg += fmt.Sprintf(" (%d already linked)", skipped)
	}
	if err := c.Edit(msg); err != nil {
		log.Debug().Err(err).Msg("Failed to edit multi-select message")
	}
	return respond(c, "")
}

// HandleSessions handles /sessions <query>: paginated session history
// for a game.
func (h *SessionHandler) HandleSessions(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	query := sanitize.Query(c.Message().Payload)
	if query == "" {
		return c.Reply("Usage: /sessions <game name>")
	}

	ctx := context.Background()
	candidates, err := h.res.Local(ctx, query, resolver.ButtonLimit)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("Local game search failed")
		return c.Reply("❌ Could not search your games.")
	}

	offer := h.dialogs.Present(sender.ID, chat.ID, dialog.KindListSessions, candidates, h.cfg.Dialog.PickerTTL)
	switch offer.Outcome {
	case dialog.OutcomeNoMatch:
		return c.Reply("No stored games matched. Try /addgame first.")
	case dialog.OutcomeAuto:
		return h.sendSessionsPage(c, offer.Candidate.GameID, 0, false)
	default:
		return c.Reply("🎲 Select the game to view sessions:", BuildPicker(offer.DialogID, offer.Candidates))
	}
}

// HandleSessionsPage handles the pgse_<gameID>_<page> callback.
func (h *SessionHandler) HandleSessionsPage(c tele.Context, params []string) error {
	if len(params) != 2 {
		return respond(c, "Bad page reference.")
	}
	gameID, err1 := strconv.ParseInt(params[0], 10, 64)
	page, err2 := strconv.Atoi(params[1])
	if err1 != nil || err2 != nil {
		return respond(c, "Bad page reference.")
	}

	if err := h.sendSessionsPage(c, gameID, page, true); err != nil {
		return err
	}
	return respond(c, "")
}

func (h *SessionHandler) sendSessionsPage(c tele.Context, gameID int64, page int, edit bool) error {
	details, err := h.sessions.History(context.Background(), gameID, c.Chat().ID)
	if err != nil {
		log.Error().Err(err).Int64("game_id", gameID).Msg("Failed to list sessions")
		return c.Send("❌ Failed to fetch sessions.")
	}
	if len(details) == 0 {
		return c.Send("📭 No sessions found for that game.")
	}

	lo, hi, page, pageCount := pageBounds(len(details), page)

	var b strings.Builder
	fmt.Fprintf(&b, "📋 Sessions (page %d/%d):\n\n", page+1, pageCount)
	for _, d := range details[lo:hi] {
		b.WriteString(formatSessionLine(d))
		b.WriteString("\n\n")
	}

	pager := buildPager(ActionPageSes, page, pageCount, strconv.FormatInt(gameID, 10))
	text := strings.TrimRight(b.String(), "\n")
	if edit {
		if pager != nil {
			return c.Edit(text, pager)
		}
		return c.Edit(text)
	}
	if pager != nil {
		return c.Send(text, pager)
	}
	return c.Send(text)
}

func formatSessionLine(d *service.SessionDetail) string {
	date := "No date"
	if d.Session.PlayedOn != nil {
		date = d.Session.PlayedOn.Format("2006-01-02")
	}
	name := d.Session.Name
	if name == "" {
		name = "(no name)"
	}
	winners := "not selected"
	if len(d.Winners) > 0 {
		names := make([]string, len(d.Winners))
		for i, u := range d.Winners {
			names[i] = u.DisplayName()
		}
		winners = strings.Join(names, ", ")
	}
	return fmt.Sprintf("Session %d - %s — %s\n   🏆 Winners: %s", d.Session.ID, date, name, winners)
}

// HandleDeleteSession handles /deletesession <session_id>.
func (h *SessionHandler) HandleDeleteSession(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	sessionID, err := parseSessionID(c.Message().Payload)
	if err != nil {
		return c.Reply("Usage: /deletesession <session id>")
	}

	session, err := h.sessions.Get(context.Background(), sessionID, chat.ID)
	if err != nil {
		return h.sessionLookupError(c, err)
	}

	date := "Not specified"
	if session.PlayedOn != nil {
		date = session.PlayedOn.Format("2006-01-02")
	}
	name := session.Name
	if name == "" {
		name = "(no name)"
	}
	msg := fmt.Sprintf(
		"🗓 Session %d\n• Date: %s\n• Name: %s\n\nAre you sure you want to delete this session?",
		session.ID, date, name,
	)
	return c.Reply(msg, BuildDeleteConfirm(session.ID, sender.ID))
}

// HandleDeleteCallback handles del_<sessionID>_<initiatorID>_<yes|no>.
func (h *SessionHandler) HandleDeleteCallback(c tele.Context, params []string) error {
	if len(params) != 3 {
		return respond(c, "Bad button.")
	}
	sessionID, err1 := strconv.ParseInt(params[0], 10, 64)
	initiatorID, err2 := strconv.ParseInt(params[1], 10, 64)
	if err1 != nil || err2 != nil {
		return respond(c, "Bad button.")
	}

	sender := c.Sender()
	if sender == nil {
		return nil
	}
	// Admins may confirm or cancel anyone's deletion.
	if sender.ID != initiatorID && !h.cfg.IsAdmin(sender.ID) {
		return respond(c, "This prompt belongs to someone else.")
	}

	if params[2] != "yes" {
		if err := c.Edit("Deletion cancelled."); err != nil {
			log.Debug().Err(err).Msg("Failed to edit confirm message")
		}
		return respond(c, "")
	}

	if err := h.sessions.Delete(context.Background(), sessionID, c.Chat().ID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return respond(c, "That session is already gone.")
		}
		log.Error().Err(err).Int64("session_id", sessionID).Msg("Failed to delete session")
		return respondAlert(c, "Failed to delete the session.")
	}
	if err := c.Edit("✅ Session deleted."); err != nil {
		log.Debug().Err(err).Msg("Failed to edit confirm message")
	}
	return respond(c, "")
}

// CompletePick finishes a session dialog after the initiator picked a
// game.
func (h *SessionHandler) CompletePick(c tele.Context, kind dialog.Kind, dialogID string, index int) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	cand, err := h.dialogs.Pick(dialogID, sender.ID, index)
	if err != nil {
		return dialogPickError(c, err)
	}
	args, _ := h.takeArgs(dialogID)

	if err := respond(c, ""); err != nil {
		log.Debug().Err(err).Msg("Failed to ack callback")
	}
	if err := c.Edit(fmt.Sprintf("Selected: %s", cand.Label())); err != nil {
		log.Debug().Err(err).Msg("Failed to edit picker message")
	}

	switch kind {
	case dialog.KindNewSession:
		return h.completeNewSession(c, cand.GameID, args)
	case dialog.KindListSessions:
		return h.sendSessionsPage(c, cand.GameID, 0, false)
	}
	return nil
}

func (h *SessionHandler) sessionLookupError(c tele.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrSessionNotFound):
		return c.Send("❌ Session not found.")
	case errors.Is(err, service.ErrWrongChat):
		return c.Send("❌ That session belongs to another chat.")
	default:
		log.Error().Err(err).Msg("Session lookup failed")
		return c.Send("❌ Something went wrong. Try again later.")
	}
}

func (h *SessionHandler) stashArgs(dialogID string, args sessionArgs) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pendingArgs[dialogID] = args
}

func (h *SessionHandler) takeArgs(dialogID string) (sessionArgs, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	args, ok := h.pendingArgs[dialogID]
	delete(h.pendingArgs, dialogID)
	return args, ok
}

func (h *SessionHandler) stashTarget(dialogID string, sessionID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pendingTarget[dialogID] = sessionID
}

func (h *SessionHandler) takeTarget(dialogID string) (int64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.pendingTarget[dialogID]
	delete(h.pendingTarget, dialogID)
	return id, ok
}

// participantsExhaustedMessage explains an empty eligible set: nobody
// has registered in this chat yet, or everyone is already linked.
func participantsExhaustedMessage(rosterSize int) string {
	if rosterSize == 0 {
		return "Nobody is registered in this chat yet. Use /register first."
	}
	return "✅ Everyone is already in this session."
}

func parseSessionID(payload string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
}

func userOptions(users []*model.User) []dialog.Option {
	options := make([]dialog.Option, 0, len(users))
	for _, u := range users {
		options = append(options, dialog.Option{ID: u.ID, Label: u.DisplayName()})
	}
	if len(options) > resolver.SelectLimit {
		options = options[:resolver.SelectLimit]
	}
	return options
}
