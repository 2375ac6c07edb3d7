package provider

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"strings"
	"unicode"

	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
	"github.com/yanqian/stream-guard-bot/internal/infra/llm/chatgpt"
)

// ChatGPTEmbedder calls an OpenAI-compatible embeddings API.
type ChatGPTEmbedder struct {
	client     *chatgpt.Client
	model      string
	dimensions int
	logger     *slog.Logger
}

// NewChatGPTEmbedder constructs an embedder backed by the ChatGPT client.
// dimensions is forwarded only when positive.
func NewChatGPTEmbedder(client *chatgpt.Client, model string, dimensions int, logger *slog.Logger) *ChatGPTEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatGPTEmbedder{
		client:     client,
		model:      strings.TrimSpace(model),
		dimensions: dimensions,
		logger:     logger.With("component", "provider.embedder.chatgpt"),
	}
}

// Embed requests the embedding of a single text.
func (e *ChatGPTEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbedding(ctx, chatgpt.EmbeddingRequest{
		Model:      e.model,
		Input:      []string{text},
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding response contained no vectors")
	}
	if len(resp.Data) > 1 {
		e.logger.Warn("embedding result count mismatch", "expected", 1, "got", len(resp.Data))
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	copy(vec, resp.Data[0].Embedding)
	return vec, nil
}

// Model identifies the embedding space of returned vectors.
func (e *ChatGPTEmbedder) Model() string {
	if e.dimensions > 0 {
		return fmt.Sprintf("%s@%d", e.model, e.dimensions)
	}
	return e.model
}

// DeterministicEmbedder avoids network calls by hashing words into a
// bag-of-words vector. Questions sharing words land close together, which is
// enough for local runs and demos.
type DeterministicEmbedder struct {
	dim int
}

// NewDeterministicEmbedder constructs the embedder.
func NewDeterministicEmbedder(dim int) *DeterministicEmbedder {
	if dim <= 0 {
		dim = 64
	}
	return &DeterministicEmbedder{dim: dim}
}

// Embed converts text into a unit-length hashed word vector.
func (e *DeterministicEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vector := make([]float32, e.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, word := range words {
		hash := fnv.New64a()
		_, _ = hash.Write([]byte(word))
		vector[hash.Sum64()%uint64(e.dim)]++
	}
	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vector[0] = 1
		return vector, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vector {
		vector[i] *= scale
	}
	return vector, nil
}

// Model names the hashing scheme so stored vectors are re-embedded if dim changes.
func (e *DeterministicEmbedder) Model() string {
	return fmt.Sprintf("local-hash-%d", e.dim)
}

var (
	_ guard.Embedder = (*ChatGPTEmbedder)(nil)
	_ guard.Embedder = (*DeterministicEmbedder)(nil)
)
