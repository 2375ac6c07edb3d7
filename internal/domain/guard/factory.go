package guard

import (
	"context"
	"log/slog"

	apperrors "github.com/yanqian/stream-guard-bot/pkg/errors"
	"github.com/yanqian/stream-guard-bot/pkg/metrics"
)

// Factory opens channel bots with shared providers and persistence.
type Factory struct {
	cfg       Config
	repo      Repository
	embedder  Embedder
	completer Completer
	counter   TokenCounter
	recorder  *metrics.Recorder
	logger    *slog.Logger
}

// NewFactory wires up the guard domain. counter and recorder may be nil.
func NewFactory(cfg Config, repo Repository, embedder Embedder, completer Completer, counter TokenCounter, recorder *metrics.Recorder, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		cfg:       cfg.withDefaults(),
		repo:      repo,
		embedder:  embedder,
		completer: completer,
		counter:   counter,
		recorder:  recorder,
		logger:    logger.With("component", "guard.factory"),
	}
}

// Open restores a channel's FAQ and settings and returns its bot.
func (f *Factory) Open(ctx context.Context, channel string) (*Bot, error) {
	channel = NormalizeChannel(channel)
	if channel == "" {
		return nil, apperrors.Wrap(CodeInvalidInput, "channel cannot be empty", nil)
	}
	logger := f.logger.With("channel", channel)
	store := NewStore(channel, f.embedder, f.repo, f.cfg.Clock, logger)
	if err := store.Load(ctx); err != nil {
		return nil, err
	}

	settings := f.cfg.defaultSettings()
	if f.repo != nil {
		stored, found, err := f.repo.LoadSettings(ctx, channel)
		if err != nil {
			return nil, apperrors.Wrap(CodePersistence, "failed to load settings", err)
		}
		if found {
			settings = f.sanitizeSettings(logger, stored)
		}
	}

	f.recorder.SetFAQRecords(channel, store.Len())
	logger.Info("channel bot opened", "records", store.Len(), "mode", settings.Mode, "threshold", settings.Threshold)
	return &Bot{
		channel:   channel,
		cfg:       f.cfg,
		store:     store,
		repo:      f.repo,
		completer: f.completer,
		counter:   f.counter,
		recorder:  f.recorder,
		logger:    f.logger.With("component", "guard.bot", "channel", channel),
		settings:  settings,
	}, nil
}

// sanitizeSettings canonicalizes a stored mode and replaces values that are
// unknown or out of range with the configured defaults.
func (f *Factory) sanitizeSettings(logger *slog.Logger, stored Settings) Settings {
	defaults := f.cfg.defaultSettings()
	out := stored
	if mode, ok := ParseMode(string(stored.Mode)); ok {
		out.Mode = mode
	} else {
		logger.Warn("stored mode unknown, using default", "mode", stored.Mode, "default", defaults.Mode)
		out.Mode = defaults.Mode
	}
	if !ValidThreshold(stored.Threshold) {
		logger.Warn("stored threshold out of range, using default", "threshold", stored.Threshold, "default", defaults.Threshold)
		out.Threshold = defaults.Threshold
	}
	return out
}

// Close releases per-channel metrics after the bot leaves a channel.
func (f *Factory) Close(channel string) {
	f.recorder.ForgetChannel(NormalizeChannel(channel))
}
