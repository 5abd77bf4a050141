// Package ai wraps the OpenAI chat-completion API for the /ask
// command.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyAnswer is returned when the API responds without content.
var ErrEmptyAnswer = errors.New("ai: empty answer")

const personaPrompt = "You are a mideval squire with a penchant for board games and their rules. " +
	"Please answer the following question clearly, concisely and accurately:\n\n%s"

// Client answers free-form rules questions through the OpenAI API.
type Client struct {
	api         *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// New creates a Client. Model, token and temperature limits come from
// config.
func New(apiKey, model string, maxTokens int, temperature float32) *Client {
	return &Client{
		api:         openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Ask sends a question wrapped in the squire persona and returns the
// trimmed answer.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(personaPrompt, question),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyAnswer
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}
