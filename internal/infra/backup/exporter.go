package backup

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
	"github.com/yanqian/stream-guard-bot/internal/infra/faqrepo"
	apperrors "github.com/yanqian/stream-guard-bot/pkg/errors"
	"github.com/yanqian/stream-guard-bot/pkg/util"
)

// CodeBackup marks failed backup uploads.
const CodeBackup = "backup_error"

const snapshotMimeType = "application/x-ndjson"

// Exporter uploads channel snapshots in the JSON-lines file format.
type Exporter struct {
	storage ObjectStorage
	prefix  string
	clock   util.Clock
	logger  *slog.Logger
}

// NewExporter constructs an exporter writing under prefix.
func NewExporter(storage ObjectStorage, prefix string, clock util.Clock, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		storage: storage,
		prefix:  prefix,
		clock:   clock,
		logger:  logger.With("component", "backup.exporter"),
	}
}

// Export uploads snapshot as <prefix>/<channel>/<timestamp>.jsonl.
func (e *Exporter) Export(ctx context.Context, channel string, snapshot guard.Snapshot) (StoredObject, error) {
	var buf bytes.Buffer
	if err := faqrepo.EncodeSnapshot(&buf, snapshot); err != nil {
		return StoredObject{}, apperrors.Wrap(CodeBackup, "failed to encode snapshot", err)
	}
	stamp := e.clock.OrNow().UTC().Format("20060102T150405Z")
	key := path.Join(e.prefix, channel, fmt.Sprintf("%s.jsonl", stamp))
	obj, err := e.storage.Put(ctx, key, buf.Bytes(), snapshotMimeType)
	if err != nil {
		return StoredObject{}, apperrors.Wrap(CodeBackup, "failed to upload snapshot", err)
	}
	e.logger.Info("faq backup uploaded", "channel", channel, "key", obj.Key, "records", len(snapshot.Records), "bytes", obj.Size)
	return obj, nil
}

// Restore downloads a previously exported snapshot.
func (e *Exporter) Restore(ctx context.Context, key string) (guard.Snapshot, error) {
	rc, err := e.storage.Get(ctx, key)
	if err != nil {
		return guard.Snapshot{}, apperrors.Wrap(CodeBackup, "failed to download snapshot", err)
	}
	defer rc.Close()
	snapshot, err := faqrepo.DecodeSnapshot(rc)
	if err != nil {
		return guard.Snapshot{}, apperrors.Wrap(CodeBackup, "failed to decode snapshot", err)
	}
	return snapshot, nil
}
