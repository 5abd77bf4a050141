// Package bot provides the Telegram bot initialization and handler
// registration.
package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"github.com/RaneWallin/GameNightBot/internal/ai"
	"github.com/RaneWallin/GameNightBot/internal/config"
	"github.com/RaneWallin/GameNightBot/internal/dialog"
	"github.com/RaneWallin/GameNightBot/internal/handler"
	"github.com/RaneWallin/GameNightBot/internal/resolver"
	"github.com/RaneWallin/GameNightBot/internal/service"
)

const helpText = `🎲 GameNightBot commands

Collections:
/addgame <name> - add a game to your collection
/removegame <name> - remove a game from your collection
/mygames - list your collection
/findgame <name> - see who here owns a game
/gameinfo <name> - show a game's detail card

Sessions:
/newsession <game> | [name] | [date] - log a play session
/addplayers <session id> - add players to a session
/addwinners <session id> - mark the winners
/sessions <game> - list a game's sessions
/deletesession <session id> - delete a session

Stats and ratings:
/gamestats <game> - play count and top winners
/mystats - your own play stats
/rate <game> - open a rating poll

Players:
/register [nickname] - register in this chat
/nickname <name> - change your nickname

/ask <question> - ask the rules squire`

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot     *tele.Bot
	cfg     *config.Config
	dialogs *dialog.Registry
	done    chan struct{}

	// Handlers
	userHandler       *handler.UserHandler
	collectionHandler *handler.CollectionHandler
	sessionHandler    *handler.SessionHandler
	statsHandler      *handler.StatsHandler
	rateHandler       *handler.RateHandler
	askHandler        *handler.AskHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config     *config.Config
	Users      *service.UserService
	Collection *service.CollectionService
	Sessions   *service.SessionService
	Stats      *service.StatsService
	Ratings    *service.RatingService
	AI         *ai.Client
	Resolver   *resolver.Resolver
	Dialogs    *dialog.Registry
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:     teleBot,
		cfg:     deps.Config,
		dialogs: deps.Dialogs,
		done:    make(chan struct{}),
	}

	// Initialize handlers
	b.userHandler = handler.NewUserHandler(deps.Users)
	b.collectionHandler = handler.NewCollectionHandler(deps.Config, deps.Collection, deps.Resolver, deps.Dialogs)
	b.sessionHandler = handler.NewSessionHandler(deps.Config, deps.Sessions, deps.Users, deps.Resolver, deps.Dialogs)
	b.statsHandler = handler.NewStatsHandler(deps.Config, deps.Stats, deps.Users, deps.Resolver, deps.Dialogs)
	b.rateHandler = handler.NewRateHandler(deps.Config, deps.Ratings, deps.Resolver)
	b.askHandler = handler.NewAskHandler(deps.AI)

	// Register middleware
	b.registerMiddleware()

	// Register handlers
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())

	// Whitelist middleware - check if chat is allowed
	b.bot.Use(WhitelistMiddleware(b.cfg))

	// Logging middleware
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.handleHelp)
	b.bot.Handle("/help", b.handleHelp)

	// Player handlers
	b.bot.Handle("/register", b.userHandler.HandleRegister)
	b.bot.Handle("/nickname", b.userHandler.HandleNickname)

	// Collection handlers
	b.bot.Handle("/addgame", b.collectionHandler.HandleAddGame)
	b.bot.Handle("/removegame", b.collectionHandler.HandleRemoveGame)
	b.bot.Handle("/mygames", b.collectionHandler.HandleMyGames)
	b.bot.Handle("/findgame", b.collectionHandler.HandleFindGame)
	b.bot.Handle("/gameinfo", b.collectionHandler.HandleGameInfo)

	// Session handlers
	b.bot.Handle("/newsession", b.sessionHandler.HandleNewSession)
	b.bot.Handle("/addplayers", b.sessionHandler.HandleAddPlayers)
	b.bot.Handle("/addwinners", b.sessionHandler.HandleAddWinners)
	b.bot.Handle("/sessions", b.sessionHandler.HandleSessions)
	b.bot.Handle("/deletesession", b.sessionHandler.HandleDeleteSession)

	// Stats handlers
	b.bot.Handle("/gamestats", b.statsHandler.HandleGameStats)
	b.bot.Handle("/mystats", b.statsHandler.HandleMyStats)

	// Rating handler
	b.bot.Handle("/rate", b.rateHandler.HandleRate)

	// AI handler
	b.bot.Handle("/ask", b.askHandler.HandleAsk)

	// Generic callback handler for dialogs, pagers and polls
	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

func (b *Bot) handleHelp(c tele.Context) error {
	return c.Reply(helpText)
}

// handleCallback routes callbacks to appropriate handlers.
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	// Telebot v3 may add a \f prefix to callback data
	data := strings.TrimPrefix(callback.Data, "\f")

	action, params := handler.DecodeCallback(data)
	if action == "" {
		log.Debug().Str("data", data).Msg("Ignoring foreign callback")
		return nil
	}

	switch action {
	case handler.ActionPick:
		return b.routePick(c, params)
	case handler.ActionToggle:
		if len(params) != 2 {
			return nil
		}
		optionID, err := strconv.ParseInt(params[1], 10, 64)
		if err != nil {
			return nil
		}
		return b.sessionHandler.CompleteToggle(c, params[0], optionID)
	case handler.ActionConfirm:
		if len(params) != 1 {
			return nil
		}
		// Confirm retires the dialog, so look its kind up first.
		kind, ok := b.dialogs.Kind(params[0])
		if !ok {
			return b.expired(c)
		}
		return b.sessionHandler.CompleteConfirm(c, kind, params[0])
	case handler.ActionAddOwn:
		return b.collectionHandler.HandleAddOwnCallback(c, params)
	case handler.ActionDelete:
		return b.sessionHandler.HandleDeleteCallback(c, params)
	case handler.ActionRate:
		return b.rateHandler.HandleRateCallback(c, params)
	case handler.ActionPageMy:
		return b.collectionHandler.HandleMyGamesPage(c, params)
	case handler.ActionPageSes:
		return b.sessionHandler.HandleSessionsPage(c, params)
	default:
		log.Debug().Str("action", action).Msg("Unknown callback action")
		return nil
	}
}

// routePick dispatches a picker press by the pending dialog's kind.
func (b *Bot) routePick(c tele.Context, params []string) error {
	if len(params) != 2 {
		return nil
	}
	dialogID := params[0]
	index, err := strconv.Atoi(params[1])
	if err != nil {
		return nil
	}

	kind, ok := b.dialogs.Kind(dialogID)
	if !ok {
		return b.expired(c)
	}

	switch kind {
	case dialog.KindAddGame, dialog.KindRemoveGame, dialog.KindFindGame, dialog.KindGameInfo:
		return b.collectionHandler.CompletePick(c, kind, dialogID, index)
	case dialog.KindNewSession, dialog.KindListSessions:
		return b.sessionHandler.CompletePick(c, kind, dialogID, index)
	case dialog.KindGameStats:
		return b.statsHandler.CompletePick(c, dialogID, index)
	default:
		log.Debug().Str("dialog_id", dialogID).Msg("Pick on unexpected dialog kind")
		return nil
	}
}

func (b *Bot) expired(c tele.Context) error {
	return c.Respond(&tele.CallbackResponse{Text: "This prompt has expired. Run the command again."})
}

// Start starts the bot and the dialog janitor. Blocks until Stop.
func (b *Bot) Start() {
	b.dialogs.StartJanitor(b.done, b.cfg.Dialog.SweepInterval)

	log.Info().Msg("Bot started")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	close(b.done)
	b.bot.Stop()
	log.Info().Msg("Bot stopped")
}
