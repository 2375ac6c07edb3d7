package guard

import "context"

// Embedder turns text into a vector. All vectors in one store come from the same Model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// CompletionRequest is a single system+user chat completion.
type CompletionRequest struct {
	SystemPrompt string
	UserMessage  string
	MaxTokens    int
	Temperature  float32
}

// Completer calls a hosted chat completion API.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Repository persists channel snapshots and settings.
type Repository interface {
	Load(ctx context.Context, channel string) (Snapshot, bool, error)
	Save(ctx context.Context, channel string, snapshot Snapshot) error
	LoadSettings(ctx context.Context, channel string) (Settings, bool, error)
	SaveSettings(ctx context.Context, channel string, settings Settings) error
}

// TokenCounter estimates prompt size for usage reporting.
type TokenCounter interface {
	Count(text string) int
}
