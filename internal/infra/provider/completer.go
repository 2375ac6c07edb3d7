package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
	"github.com/yanqian/stream-guard-bot/internal/infra/llm/chatgpt"
)

// ChatGPTCompleter adapts the ChatGPT client to guard.Completer.
type ChatGPTCompleter struct {
	client *chatgpt.Client
	model  string
	logger *slog.Logger
}

// NewChatGPTCompleter constructs the completer.
func NewChatGPTCompleter(client *chatgpt.Client, model string, logger *slog.Logger) *ChatGPTCompleter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatGPTCompleter{
		client: client,
		model:  strings.TrimSpace(model),
		logger: logger.With("component", "provider.completer.chatgpt"),
	}
}

// Complete sends one system + user exchange and returns the first choice.
func (c *ChatGPTCompleter) Complete(ctx context.Context, req guard.CompletionRequest) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, chatgpt.ChatCompletionRequest{
		Model: c.model,
		Messages: []chatgpt.Message{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserMessage},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	c.logger.Debug("chat completion finished",
		"finish_reason", resp.Choices[0].FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

// LocalCompleter answers without a provider: it repeats the FAQ answer
// embedded in a retrieval prompt, or the sentinel when there is none.
type LocalCompleter struct {
	sentinel string
}

// NewLocalCompleter constructs the completer.
func NewLocalCompleter(sentinel string) *LocalCompleter {
	if sentinel == "" {
		sentinel = guard.DefaultSentinel
	}
	return &LocalCompleter{sentinel: sentinel}
}

// Complete implements guard.Completer.
func (c *LocalCompleter) Complete(_ context.Context, req guard.CompletionRequest) (string, error) {
	lines := strings.Split(req.SystemPrompt, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if answer, ok := strings.CutPrefix(lines[i], "A: "); ok {
			return strings.TrimSpace(answer), nil
		}
	}
	return c.sentinel, nil
}

var (
	_ guard.Completer = (*ChatGPTCompleter)(nil)
	_ guard.Completer = (*LocalCompleter)(nil)
)
