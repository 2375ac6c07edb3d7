package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
	"github.com/yanqian/stream-guard-bot/internal/infra/config"
	"github.com/yanqian/stream-guard-bot/internal/interface/chat"
)

// ChannelLister reports channels that have persisted state.
type ChannelLister interface {
	Channels(ctx context.Context) ([]string, error)
}

// App encapsulates the chat transport and admin HTTP server lifecycles.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	server    *http.Server
	registry  *chat.Registry
	router    *chat.Router
	transport *chat.TwitchTransport
	lister    ChannelLister
}

// NewApp is used by Wire to build the runnable app. server, router and
// transport are nil when their surface is disabled.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, registry *chat.Registry, router *chat.Router, transport *chat.TwitchTransport, lister ChannelLister) *App {
	return &App{
		cfg:       cfg,
		logger:    logger.With("component", "bootstrap"),
		server:    server,
		registry:  registry,
		router:    router,
		transport: transport,
		lister:    lister,
	}
}

// Run rejoins known channels, starts the enabled surfaces and blocks until
// shutdown.
func (a *App) Run(ctx context.Context) error {
	if a.server == nil && a.transport == nil {
		return errors.New("neither the http api nor twitch chat is enabled")
	}
	a.rejoin(ctx)

	errCh := make(chan error, 2)
	if a.server != nil {
		go func() {
			a.logger.Info("http server starting", "address", a.cfg.HTTP.Address)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	chatCtx, stopChat := context.WithCancel(ctx)
	defer stopChat()
	if a.transport != nil {
		go func() {
			a.logger.Info("twitch chat connecting", "username", a.cfg.Twitch.Username)
			if err := a.transport.Run(chatCtx, a.router.Handle); err != nil {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		a.logger.Error("component stopped", "error", runErr)
	}
	stopChat()

	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// rejoin guards the configured channels plus every channel with stored FAQ
// state. Failures are logged so one bad channel does not block startup.
func (a *App) rejoin(ctx context.Context) {
	for _, channel := range a.startupChannels(ctx) {
		if _, _, err := a.registry.Join(ctx, channel); err != nil {
			a.logger.Error("failed to rejoin channel", "channel", channel, "error", err)
		}
	}
}

func (a *App) startupChannels(ctx context.Context) []string {
	seen := make(map[string]struct{})
	add := func(channels []string) {
		for _, channel := range channels {
			if channel = guard.NormalizeChannel(channel); channel != "" {
				seen[channel] = struct{}{}
			}
		}
	}
	add(a.cfg.Twitch.Channels)
	if a.lister != nil {
		stored, err := a.lister.Channels(ctx)
		if err != nil {
			a.logger.Error("failed to list stored channels", "error", err)
		}
		add(stored)
	}
	out := make([]string, 0, len(seen))
	for channel := range seen {
		out = append(out, channel)
	}
	sort.Strings(out)
	return out
}
