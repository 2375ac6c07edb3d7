//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/stream-guard-bot/internal/bootstrap"
	"github.com/yanqian/stream-guard-bot/internal/domain/auth"
	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
	"github.com/yanqian/stream-guard-bot/internal/infra/config"
	"github.com/yanqian/stream-guard-bot/internal/interface/chat"
	httpiface "github.com/yanqian/stream-guard-bot/internal/interface/http"
	"github.com/yanqian/stream-guard-bot/pkg/logger"
	"github.com/yanqian/stream-guard-bot/pkg/metrics"
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		metrics.NewRegistry,
		provideRecorder,
		provideAuthConfig,
		provideGuardConfig,
		provideRepository,
		provideGuardRepository,
		provideChannelLister,
		provideEmbedder,
		provideCompleter,
		provideTokenCounter,
		guard.NewFactory,
		wire.Bind(new(chat.BotOpener), new(*guard.Factory)),
		provideTwitchTransport,
		provideMembership,
		chat.NewRegistry,
		provideChatRouter,
		provideSnapshotExporter,
		auth.NewService,
		httpiface.NewHandler,
		provideHTTPServer,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
