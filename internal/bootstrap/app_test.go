package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
	"github.com/yanqian/stream-guard-bot/internal/infra/config"
	"github.com/yanqian/stream-guard-bot/internal/infra/faqrepo"
	"github.com/yanqian/stream-guard-bot/internal/infra/provider"
	"github.com/yanqian/stream-guard-bot/internal/interface/chat"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failingLister struct{}

func (failingLister) Channels(context.Context) ([]string, error) {
	return nil, errors.New("storage offline")
}

func TestRejoinMergesConfiguredAndStoredChannels(t *testing.T) {
	ctx := context.Background()
	repo := faqrepo.NewMemoryRepository()
	require.NoError(t, repo.Save(ctx, "storedstreamer", guard.Snapshot{Version: guard.SnapshotVersion, EmbeddingModel: "local-hash-8"}))
	require.NoError(t, repo.SaveSettings(ctx, "storedstreamer", guard.Settings{Mode: guard.ModeFreeform, Threshold: 0.7}))

	factory := guard.NewFactory(guard.Config{DefaultThreshold: guard.DefaultThreshold}, repo, provider.NewDeterministicEmbedder(8), provider.NewLocalCompleter(guard.DefaultSentinel), nil, nil, newTestLogger())
	registry := chat.NewRegistry(factory, nil, newTestLogger())
	cfg := &config.Config{Twitch: config.TwitchConfig{Channels: []string{"#SomeStreamer", "storedstreamer", " "}}}

	app := NewApp(cfg, newTestLogger(), nil, registry, nil, nil, repo)
	app.rejoin(ctx)

	require.Equal(t, []string{"somestreamer", "storedstreamer"}, registry.Channels())
	bot, ok := registry.Get("storedstreamer")
	require.True(t, ok)
	require.Equal(t, guard.ModeFreeform, bot.Settings().Mode)
}

func TestStartupChannelsToleratesListerFailure(t *testing.T) {
	cfg := &config.Config{Twitch: config.TwitchConfig{Channels: []string{"b", "a"}}}
	app := NewApp(cfg, newTestLogger(), nil, nil, nil, nil, failingLister{})
	require.Equal(t, []string{"a", "b"}, app.startupChannels(context.Background()))
}

func TestRunRequiresASurface(t *testing.T) {
	app := NewApp(&config.Config{}, newTestLogger(), nil, nil, nil, nil, nil)
	require.Error(t, app.Run(context.Background()))
}
