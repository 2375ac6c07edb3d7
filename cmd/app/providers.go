package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yanqian/stream-guard-bot/internal/bootstrap"
	"github.com/yanqian/stream-guard-bot/internal/domain/auth"
	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
	"github.com/yanqian/stream-guard-bot/internal/infra/backup"
	"github.com/yanqian/stream-guard-bot/internal/infra/config"
	"github.com/yanqian/stream-guard-bot/internal/infra/faqrepo"
	"github.com/yanqian/stream-guard-bot/internal/infra/provider"
	"github.com/yanqian/stream-guard-bot/internal/infra/tokens"
	"github.com/yanqian/stream-guard-bot/internal/infra/twitchauth"
	"github.com/yanqian/stream-guard-bot/internal/interface/chat"
	httpiface "github.com/yanqian/stream-guard-bot/internal/interface/http"
	"github.com/yanqian/stream-guard-bot/pkg/metrics"
	"github.com/yanqian/stream-guard-bot/pkg/util"
)

func provideAuthConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		Secret:   cfg.Auth.Secret,
		Issuer:   cfg.Auth.Issuer,
		TokenTTL: cfg.Auth.TokenTTL,
	}
}

func provideGuardConfig(cfg *config.Config) guard.Config {
	mode, _ := guard.ParseMode(cfg.Guard.DefaultMode)
	return guard.Config{
		DefaultMode:      mode,
		DefaultThreshold: cfg.Guard.Threshold,
		MaxTokens:        cfg.LLM.Completion.MaxTokens,
		Temperature:      cfg.LLM.Completion.Temperature,
		RetrievalPrompt:  cfg.Guard.RetrievalPrompt,
		FreeformPrompt:   cfg.Guard.FreeformPrompt,
		Sentinel:         cfg.Guard.Sentinel,
		DisabledMessage:  cfg.Guard.DisabledMessage,
		Clock:            util.NowUTC,
	}
}

func provideRepository(cfg *config.Config, logger *slog.Logger) (faqrepo.ChannelRepository, func(), error) {
	return faqrepo.Open(context.Background(), cfg.Storage, logger)
}

func provideGuardRepository(repo faqrepo.ChannelRepository) guard.Repository {
	return repo
}

func provideChannelLister(repo faqrepo.ChannelRepository) bootstrap.ChannelLister {
	return repo
}

func provideEmbedder(cfg *config.Config, logger *slog.Logger) (guard.Embedder, error) {
	return provider.NewEmbedder(cfg.LLM.Embedding, logger)
}

func provideCompleter(cfg *config.Config, logger *slog.Logger) (guard.Completer, error) {
	return provider.NewCompleter(cfg.LLM.Completion, cfg.Guard.Sentinel, logger)
}

func provideTokenCounter(cfg *config.Config, logger *slog.Logger) guard.TokenCounter {
	counter := tokens.NewCounter(cfg.LLM.Completion.Model, logger)
	counter.Warm()
	return counter
}

func provideRecorder(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.NewRecorder(reg)
}

func provideTwitchTransport(cfg *config.Config, logger *slog.Logger) *chat.TwitchTransport {
	if !cfg.Twitch.Enabled {
		return nil
	}
	refresher := twitchauth.NewRefresher(
		cfg.Twitch.ClientID,
		cfg.Twitch.ClientSecret,
		cfg.Twitch.AccessToken,
		cfg.Twitch.RefreshToken,
		twitchauth.Endpoint,
		logger,
	)
	return chat.NewTwitchTransport(cfg.Twitch.Username, refresher, logger)
}

func provideMembership(transport *chat.TwitchTransport) chat.Membership {
	if transport == nil {
		return nil
	}
	return transport
}

func provideChatRouter(cfg *config.Config, registry *chat.Registry, transport *chat.TwitchTransport, recorder *metrics.Recorder, logger *slog.Logger) *chat.Router {
	if transport == nil {
		return nil
	}
	return chat.NewRouter(registry, transport, cfg.Twitch.Username, cfg.Twitch.MessageLimit, recorder, logger)
}

func provideSnapshotExporter(cfg *config.Config, logger *slog.Logger) (httpiface.SnapshotExporter, error) {
	if !cfg.Backup.Enabled {
		return nil, nil
	}
	storage, err := backup.NewS3Storage(
		cfg.Backup.Endpoint,
		cfg.Backup.AccessKey,
		cfg.Backup.SecretKey,
		cfg.Backup.Bucket,
		cfg.Backup.Region,
		logger,
	)
	if err != nil {
		return nil, err
	}
	logger.Info("faq backups enabled", "bucket", cfg.Backup.Bucket, "prefix", cfg.Backup.Prefix)
	return backup.NewExporter(storage, cfg.Backup.Prefix, util.NowUTC, logger), nil
}

func provideHTTPServer(cfg *config.Config, handler *httpiface.Handler, authSvc auth.Service, reg *prometheus.Registry) *http.Server {
	if !cfg.HTTP.Enabled {
		return nil
	}
	return httpiface.NewRouter(cfg, handler, authSvc, reg)
}
