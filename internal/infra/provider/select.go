package provider

import (
	"fmt"
	"log/slog"

	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
	"github.com/yanqian/stream-guard-bot/internal/infra/config"
	"github.com/yanqian/stream-guard-bot/internal/infra/llm/chatgpt"
)

// Provider names accepted in configuration.
const (
	OpenAI = "openai"
	Local  = "local"
)

// NewEmbedder builds the embedder named by cfg.Provider.
func NewEmbedder(cfg config.ProviderConfig, logger *slog.Logger) (guard.Embedder, error) {
	switch cfg.Provider {
	case OpenAI:
		client, err := chatgpt.NewClient(cfg.APIKey, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return NewChatGPTEmbedder(client, cfg.Model, cfg.Dimensions, logger), nil
	case Local:
		return NewDeterministicEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// NewCompleter builds the completer named by cfg.Provider. The local
// completer answers with the sentinel when the prompt carries no FAQ.
func NewCompleter(cfg config.ProviderConfig, sentinel string, logger *slog.Logger) (guard.Completer, error) {
	switch cfg.Provider {
	case OpenAI:
		client, err := chatgpt.NewClient(cfg.APIKey, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return NewChatGPTCompleter(client, cfg.Model, logger), nil
	case Local:
		return NewLocalCompleter(sentinel), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Provider)
	}
}
