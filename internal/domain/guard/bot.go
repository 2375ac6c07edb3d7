package guard

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	apperrors "github.com/yanqian/stream-guard-bot/pkg/errors"
	"github.com/yanqian/stream-guard-bot/pkg/metrics"
)

// Bot is the per-channel question answering instance.
type Bot struct {
	channel   string
	cfg       Config
	store     *Store
	repo      Repository
	completer Completer
	counter   TokenCounter
	recorder  *metrics.Recorder
	logger    *slog.Logger

	mu       sync.RWMutex
	settings Settings
}

// Channel returns the normalized channel name the bot serves.
func (b *Bot) Channel() string {
	return b.channel
}

// Settings returns the current mode and threshold.
func (b *Bot) Settings() Settings {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.settings
}

// SetThreshold changes the minimum cosine similarity for retrieval matches.
func (b *Bot) SetThreshold(ctx context.Context, threshold float64) (Settings, error) {
	return b.UpdateSettings(ctx, SettingsUpdate{Threshold: &threshold})
}

// SetMode switches between disabled, freeform and retrieval answering.
func (b *Bot) SetMode(ctx context.Context, mode Mode) (Settings, error) {
	return b.UpdateSettings(ctx, SettingsUpdate{Mode: &mode})
}

// SettingsUpdate names the settings to change; nil fields are kept.
type SettingsUpdate struct {
	Mode      *Mode
	Threshold *float64
}

// UpdateSettings validates every field of update and saves them together,
// so a failed save changes nothing.
func (b *Bot) UpdateSettings(ctx context.Context, update SettingsUpdate) (Settings, error) {
	var mode Mode
	if update.Mode != nil {
		parsed, ok := ParseMode(string(*update.Mode))
		if !ok {
			return Settings{}, apperrors.Wrap(CodeInvalidInput, fmt.Sprintf("unknown mode %q", *update.Mode), nil)
		}
		mode = parsed
	}
	if update.Threshold != nil && !ValidThreshold(*update.Threshold) {
		return Settings{}, apperrors.Wrap(CodeInvalidInput, "threshold must be a cosine similarity between -1 and 1", nil)
	}
	return b.updateSettings(ctx, func(s *Settings) {
		if update.Mode != nil {
			s.Mode = mode
		}
		if update.Threshold != nil {
			s.Threshold = *update.Threshold
		}
	})
}

// ValidThreshold reports whether t is a usable cosine similarity bound.
func ValidThreshold(t float64) bool {
	return !math.IsNaN(t) && t >= -1 && t <= 1
}

func (b *Bot) updateSettings(ctx context.Context, mutate func(*Settings)) (Settings, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := b.settings
	mutate(&next)
	if b.repo != nil {
		if err := b.repo.SaveSettings(ctx, b.channel, next); err != nil {
			return Settings{}, apperrors.Wrap(CodePersistence, "failed to save settings", err)
		}
	}
	b.settings = next
	b.logger.Info("channel settings updated", "mode", next.Mode, "threshold", next.Threshold)
	return next, nil
}

// AddQA stores a new question/answer pair.
func (b *Bot) AddQA(ctx context.Context, question, answer string) (Entry, error) {
	rec, err := b.store.Add(ctx, question, answer)
	if err != nil {
		b.countProviderError(err)
		return Entry{}, err
	}
	size := b.store.Len()
	b.recorder.SetFAQRecords(b.channel, size)
	b.logger.Info("faq record added", "position", size, "id", rec.ID)
	return Entry{Position: size, Question: rec.Question, Answer: rec.Answer}, nil
}

// RemoveQA deletes the record at the 1-based position.
func (b *Bot) RemoveQA(ctx context.Context, position int) (Entry, error) {
	rec, err := b.store.Remove(ctx, position)
	if err != nil {
		return Entry{}, err
	}
	b.recorder.SetFAQRecords(b.channel, b.store.Len())
	b.logger.Info("faq record removed", "position", position, "id", rec.ID)
	return Entry{Position: position, Question: rec.Question, Answer: rec.Answer}, nil
}

// UpdateQA replaces the answer at the 1-based position.
func (b *Bot) UpdateQA(ctx context.Context, position int, answer string) (Entry, error) {
	rec, err := b.store.Update(ctx, position, answer)
	if err != nil {
		return Entry{}, err
	}
	b.logger.Info("faq record updated", "position", position, "id", rec.ID)
	return Entry{Position: position, Question: rec.Question, Answer: rec.Answer}, nil
}

// ListFAQ returns the FAQ in display order.
func (b *Bot) ListFAQ() []Entry {
	return b.store.List()
}

// Snapshot returns the channel FAQ in its persisted form.
func (b *Bot) Snapshot() Snapshot {
	return b.store.Snapshot()
}

// Import replaces the channel FAQ, embedding records where needed.
func (b *Bot) Import(ctx context.Context, snapshot Snapshot) error {
	if err := b.store.Replace(ctx, snapshot); err != nil {
		b.countProviderError(err)
		return err
	}
	b.recorder.SetFAQRecords(b.channel, b.store.Len())
	return nil
}

// Ask runs the response procedure for the current mode. Callers decide how
// to render empty replies; Outcome tells them why the text is empty.
func (b *Bot) Ask(ctx context.Context, question string) (Reply, error) {
	settings := b.Settings()
	start := time.Now()
	reply, err := b.respond(ctx, settings, strings.TrimSpace(question))
	outcome := string(reply.Outcome)
	if err != nil {
		outcome = "error"
		b.countProviderError(err)
	}
	b.recorder.ObserveReply(string(settings.Mode), outcome, time.Since(start))
	return reply, err
}

func (b *Bot) respond(ctx context.Context, settings Settings, question string) (Reply, error) {
	reply := Reply{Mode: settings.Mode}
	if settings.Mode == ModeDisabled {
		reply.Outcome = OutcomeDisabled
		reply.Text = b.cfg.DisabledMessage
		return reply, nil
	}
	if question == "" {
		return Reply{}, apperrors.Wrap(CodeInvalidInput, "question cannot be empty", nil)
	}

	if settings.Mode == ModeFreeform {
		prompt := buildFreeformPrompt(b.cfg.FreeformPrompt, b.channel)
		text, usage, err := b.complete(ctx, prompt, question)
		if err != nil {
			return Reply{}, err
		}
		reply.Outcome = OutcomeAnswered
		reply.Text = text
		reply.TokenUsage = usage
		return reply, nil
	}

	match, found, err := b.store.Nearest(ctx, question, settings.Threshold)
	if err != nil {
		return Reply{}, err
	}
	if !found {
		reply.Outcome = OutcomeNoMatch
		return reply, nil
	}
	reply.MatchedPosition = match.Position
	reply.MatchedQuestion = match.Record.Question
	reply.Similarity = match.Similarity

	prompt := buildRetrievalPrompt(b.cfg.RetrievalPrompt, b.channel, b.cfg.Sentinel, match.Record)
	text, usage, err := b.complete(ctx, prompt, question)
	if err != nil {
		return Reply{}, err
	}
	reply.TokenUsage = usage
	if text == b.cfg.Sentinel {
		reply.Outcome = OutcomeRefused
		return reply, nil
	}
	reply.Outcome = OutcomeAnswered
	reply.Text = text
	return reply, nil
}

func (b *Bot) complete(ctx context.Context, prompt, question string) (string, *metrics.TokenUsage, error) {
	var usage *metrics.TokenUsage
	if b.counter != nil {
		tokens := b.counter.Count(prompt) + b.counter.Count(question)
		usage = &metrics.TokenUsage{PromptTokens: tokens, TotalTokens: tokens}
		b.recorder.PromptTokens(*usage)
	}
	text, err := b.completer.Complete(ctx, CompletionRequest{
		SystemPrompt: prompt,
		UserMessage:  question,
		MaxTokens:    b.cfg.MaxTokens,
		Temperature:  b.cfg.Temperature,
	})
	if err != nil {
		return "", usage, apperrors.Wrap(CodeCompletion, "completion request failed", err)
	}
	return text, usage, nil
}

func (b *Bot) countProviderError(err error) {
	switch {
	case apperrors.IsCode(err, CodeEmbedding):
		b.recorder.ProviderError("embedding")
	case apperrors.IsCode(err, CodeCompletion):
		b.recorder.ProviderError("completion")
	}
}
