package faqrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
)

const postgresSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS guard_channels (
	channel         TEXT PRIMARY KEY,
	version         INTEGER NOT NULL,
	embedding_model TEXT NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS guard_faq_records (
	channel    TEXT NOT NULL REFERENCES guard_channels(channel) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	id         UUID NOT NULL,
	question   TEXT NOT NULL,
	answer     TEXT NOT NULL,
	embedding  vector NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (channel, position)
);

CREATE TABLE IF NOT EXISTS guard_channel_settings (
	channel    TEXT PRIMARY KEY,
	mode       TEXT NOT NULL,
	threshold  DOUBLE PRECISION NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PostgresRepository stores channel FAQs in Postgres with pgvector columns.
// Every Save rewrites the channel's rows in one transaction so positions
// stay dense and ordered.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the extension and tables when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("ensure guard schema: %w", err)
	}
	return nil
}

// Load implements guard.Repository.
func (r *PostgresRepository) Load(ctx context.Context, channel string) (guard.Snapshot, bool, error) {
	var snapshot guard.Snapshot
	err := r.pool.QueryRow(ctx, `
		SELECT version, embedding_model
		FROM guard_channels
		WHERE channel = $1
	`, channel).Scan(&snapshot.Version, &snapshot.EmbeddingModel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return guard.Snapshot{}, false, nil
		}
		return guard.Snapshot{}, false, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, question, answer, embedding, created_at, updated_at
		FROM guard_faq_records
		WHERE channel = $1
		ORDER BY position
	`, channel)
	if err != nil {
		return guard.Snapshot{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rec       guard.Record
			embedding pgvector.Vector
		)
		if err := rows.Scan(&rec.ID, &rec.Question, &rec.Answer, &embedding, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return guard.Snapshot{}, false, err
		}
		rec.Embedding = embedding.Slice()
		snapshot.Records = append(snapshot.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return guard.Snapshot{}, false, err
	}
	return snapshot, true, nil
}

// Save implements guard.Repository.
func (r *PostgresRepository) Save(ctx context.Context, channel string, snapshot guard.Snapshot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO guard_channels (channel, version, embedding_model, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (channel) DO UPDATE
		SET version = EXCLUDED.version, embedding_model = EXCLUDED.embedding_model, updated_at = NOW()
	`, channel, guard.SnapshotVersion, snapshot.EmbeddingModel)
	batch.Queue(`DELETE FROM guard_faq_records WHERE channel = $1`, channel)
	for i, rec := range snapshot.Records {
		batch.Queue(`
			INSERT INTO guard_faq_records (channel, position, id, question, answer, embedding, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, channel, i+1, rec.ID, rec.Question, rec.Answer, pgvector.NewVector(rec.Embedding), rec.CreatedAt, rec.UpdatedAt)
	}

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("save faq statement %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// LoadSettings implements guard.Repository.
func (r *PostgresRepository) LoadSettings(ctx context.Context, channel string) (guard.Settings, bool, error) {
	var (
		settings guard.Settings
		mode     string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT mode, threshold
		FROM guard_channel_settings
		WHERE channel = $1
	`, channel).Scan(&mode, &settings.Threshold)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return guard.Settings{}, false, nil
		}
		return guard.Settings{}, false, err
	}
	settings.Mode = guard.Mode(mode)
	return settings, true, nil
}

// SaveSettings implements guard.Repository.
func (r *PostgresRepository) SaveSettings(ctx context.Context, channel string, settings guard.Settings) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO guard_channel_settings (channel, mode, threshold, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (channel) DO UPDATE
		SET mode = EXCLUDED.mode, threshold = EXCLUDED.threshold, updated_at = EXCLUDED.updated_at
	`, channel, string(settings.Mode), settings.Threshold, time.Now().UTC())
	return err
}

// Channels lists channels with a stored FAQ.
func (r *PostgresRepository) Channels(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT channel FROM guard_channels ORDER BY channel`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var channel string
		if err := rows.Scan(&channel); err != nil {
			return nil, err
		}
		out = append(out, channel)
	}
	return out, rows.Err()
}

var _ guard.Repository = (*PostgresRepository)(nil)
