package handler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"github.com/RaneWallin/GameNightBot/internal/ai"
	"github.com/RaneWallin/GameNightBot/internal/sanitize"
)

const aiDisclaimer = "⚠️ This response is AI generated and may be inaccurate or completely wrong. Use your judgment and refer to the official rules when in doubt."

// AskHandler handles /ask, the rules-question assistant.
type AskHandler struct {
	ai *ai.Client
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(client *ai.Client) *AskHandler {
	return &AskHandler{ai: client}
}

// HandleAsk handles /ask <question>.
func (h *AskHandler) HandleAsk(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	question := sanitize.Query(c.Message().Payload)
	if question == "" {
		return c.Reply("Usage: /ask <rules question>")
	}

	if err := c.Notify(tele.Typing); err != nil {
		log.Debug().Err(err).Msg("Failed to send typing action")
	}

	answer, err := h.ai.Ask(context.Background(), question)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get an AI answer")
		return c.Reply("❌ Failed to get an answer. Please try again later.")
	}

	return c.Reply(fmt.Sprintf("%s\n\nQuestion: %s\n\nAnswer: %s", aiDisclaimer, question, answer))
}
