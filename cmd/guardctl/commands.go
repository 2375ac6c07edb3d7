package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/yanqian/stream-guard-bot/internal/domain/auth"
	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
	"github.com/yanqian/stream-guard-bot/internal/infra/backup"
	"github.com/yanqian/stream-guard-bot/internal/infra/config"
	"github.com/yanqian/stream-guard-bot/internal/infra/faqrepo"
	"github.com/yanqian/stream-guard-bot/internal/infra/provider"
	"github.com/yanqian/stream-guard-bot/pkg/logger"
	"github.com/yanqian/stream-guard-bot/pkg/util"
)

// A running bot keeps the FAQ in memory and overwrites the repository on its
// next change, so direct writes need the bot stopped.
const liveBotNote = `Without --server the repository is written directly; stop the bot for the
channel first or its next FAQ change overwrites the import. With --server the
change goes through the running bot's admin API.`

func serverFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "server",
		Usage:   "Admin API base URL of a running bot, e.g. http://localhost:8080",
		Sources: cli.EnvVars("GUARD_SERVER"),
	}
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "guardctl",
		Usage:  "Operate Stream Guard Bot storage and admin access",
		Writer: out,
		Commands: []*cli.Command{
			{
				Name:  "token",
				Usage: "Issue an admin API token",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "subject",
						Usage: "Who the token is issued to",
						Value: "operator",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runToken(ctx, out, cmd.String("subject"))
				},
			},
			{
				Name:      "export",
				Usage:     "Print a channel's stored FAQ as JSON lines",
				ArgsUsage: "<channel>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 1 {
						return errors.New("usage: guardctl export <channel>")
					}
					return runExport(ctx, out, cmd.Args().Get(0), cmd.String("output"))
				},
			},
			{
				Name:        "import",
				Usage:       "Replace a channel's FAQ with a JSON-lines file, re-embedding as needed",
				Description: liveBotNote,
				ArgsUsage:   "<channel> <file>",
				Flags:       []cli.Flag{serverFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 2 {
						return errors.New("usage: guardctl import <channel> <file>")
					}
					if server := cmd.String("server"); server != "" {
						return runRemoteImport(ctx, out, server, cmd.Args().Get(0), cmd.Args().Get(1))
					}
					return runImport(ctx, out, cmd.Args().Get(0), cmd.Args().Get(1))
				},
			},
			{
				Name:      "backup",
				Usage:     "Upload a channel's stored FAQ to backup storage",
				ArgsUsage: "<channel>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 1 {
						return errors.New("usage: guardctl backup <channel>")
					}
					return runBackup(ctx, out, cmd.Args().Get(0))
				},
			},
			{
				Name:        "restore",
				Usage:       "Replace a channel's FAQ with an uploaded backup",
				Description: liveBotNote,
				ArgsUsage:   "<channel> <key>",
				Flags:       []cli.Flag{serverFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 2 {
						return errors.New("usage: guardctl restore <channel> <key>")
					}
					if server := cmd.String("server"); server != "" {
						return runRemoteRestore(ctx, out, server, cmd.Args().Get(0), cmd.Args().Get(1))
					}
					return runRestore(ctx, out, cmd.Args().Get(0), cmd.Args().Get(1))
				},
			},
		},
	}
}

// environment holds what every storage command needs.
type environment struct {
	cfg     *config.Config
	logger  *slog.Logger
	repo    faqrepo.ChannelRepository
	cleanup func()
}

func openEnvironment(ctx context.Context) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.NewWithWriter(os.Stderr, os.Getenv("LOG_LEVEL")).With("component", "guardctl")
	repo, cleanup, err := faqrepo.Open(ctx, cfg.Storage, log)
	if err != nil {
		return nil, err
	}
	return &environment{cfg: cfg, logger: log, repo: repo, cleanup: cleanup}, nil
}

// openBot restores a channel bot over the configured repository. Only the
// embedder is live; the completer never runs for storage commands.
func (e *environment) openBot(ctx context.Context, channel string) (*guard.Bot, error) {
	embedder, err := provider.NewEmbedder(e.cfg.LLM.Embedding, e.logger)
	if err != nil {
		return nil, err
	}
	mode, _ := guard.ParseMode(e.cfg.Guard.DefaultMode)
	factory := guard.NewFactory(guard.Config{
		DefaultMode:      mode,
		DefaultThreshold: e.cfg.Guard.Threshold,
		Sentinel:         e.cfg.Guard.Sentinel,
		Clock:            util.NowUTC,
	}, e.repo, embedder, provider.NewLocalCompleter(e.cfg.Guard.Sentinel), nil, nil, e.logger)
	return factory.Open(ctx, channel)
}

func (e *environment) exporter() (*backup.Exporter, error) {
	if !e.cfg.Backup.Enabled {
		return nil, errors.New("backups are not enabled; set backup.enabled and the backup endpoint")
	}
	storage, err := backup.NewS3Storage(e.cfg.Backup.Endpoint, e.cfg.Backup.AccessKey, e.cfg.Backup.SecretKey, e.cfg.Backup.Bucket, e.cfg.Backup.Region, e.logger)
	if err != nil {
		return nil, err
	}
	return backup.NewExporter(storage, e.cfg.Backup.Prefix, util.NowUTC, e.logger), nil
}

func runToken(ctx context.Context, out io.Writer, subject string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(os.Stderr, os.Getenv("LOG_LEVEL"))
	svc := auth.NewService(auth.Config{Secret: cfg.Auth.Secret, Issuer: cfg.Auth.Issuer, TokenTTL: cfg.Auth.TokenTTL}, log)
	token, err := svc.IssueToken(ctx, subject)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n# expires %s\n", token.Token, token.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"))
	return err
}

func runExport(ctx context.Context, out io.Writer, channel, output string) error {
	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.cleanup()

	channel = guard.NormalizeChannel(channel)
	snapshot, found, err := env.repo.Load(ctx, channel)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no stored FAQ for channel %q", channel)
	}
	if output == "" {
		return faqrepo.EncodeSnapshot(out, snapshot)
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := faqrepo.EncodeSnapshot(f, snapshot); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "exported %d records from %s to %s\n", len(snapshot.Records), channel, output)
	return err
}

func runImport(ctx context.Context, out io.Writer, channel, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	snapshot, err := faqrepo.DecodeSnapshot(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return importSnapshot(ctx, out, channel, snapshot)
}

func runBackup(ctx context.Context, out io.Writer, channel string) error {
	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.cleanup()

	exporter, err := env.exporter()
	if err != nil {
		return err
	}
	channel = guard.NormalizeChannel(channel)
	snapshot, found, err := env.repo.Load(ctx, channel)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no stored FAQ for channel %q", channel)
	}
	obj, err := exporter.Export(ctx, channel, snapshot)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "uploaded %s (%d bytes)\n", obj.Key, obj.Size)
	return err
}

func runRestore(ctx context.Context, out io.Writer, channel, key string) error {
	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	exporter, err := env.exporter()
	env.cleanup()
	if err != nil {
		return err
	}
	snapshot, err := exporter.Restore(ctx, key)
	if err != nil {
		return err
	}
	return importSnapshot(ctx, out, channel, snapshot)
}

func importSnapshot(ctx context.Context, out io.Writer, channel string, snapshot guard.Snapshot) error {
	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.cleanup()

	bot, err := env.openBot(ctx, channel)
	if err != nil {
		return err
	}
	if err := bot.Import(ctx, snapshot); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "imported %d records into %s\n", len(bot.ListFAQ()), bot.Channel())
	return err
}
