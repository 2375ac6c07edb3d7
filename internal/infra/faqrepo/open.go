package faqrepo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
	"github.com/yanqian/stream-guard-bot/internal/infra/config"
)

// ChannelRepository is a guard.Repository that can also list the channels it
// holds, so the bot can rejoin them on startup.
type ChannelRepository interface {
	guard.Repository
	Channels(ctx context.Context) ([]string, error)
}

// Open builds the repository selected by cfg.Driver. The returned cleanup
// releases pools and clients and is never nil.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (ChannelRepository, func(), error) {
	noop := func() {}
	switch cfg.Driver {
	case config.StorageMemory:
		logger.Info("faq memory repository enabled")
		return NewMemoryRepository(), noop, nil
	case config.StorageFile:
		repo, err := NewFileRepository(cfg.File.Dir)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("faq file repository enabled", "dir", cfg.File.Dir)
		return repo, noop, nil
	case config.StoragePostgres:
		pool, err := openPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, noop, err
		}
		repo := NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, noop, err
		}
		logger.Info("faq postgres repository enabled")
		return repo, pool.Close, nil
	case config.StorageValkey:
		client, err := openValkey(ctx, cfg.Valkey.Addr)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("faq valkey repository enabled", "addr", cfg.Valkey.Addr)
		return NewValkeyRepository(client, cfg.Valkey.Prefix), client.Close, nil
	default:
		return nil, noop, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(strings.TrimSpace(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("init postgres pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

func openValkey(ctx context.Context, addr string) (valkey.Client, error) {
	opt, err := valkeyOptions(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid valkey address: %w", err)
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping: %w", err)
	}
	return client, nil
}

func valkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}
