package faqrepo

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
)

const maxLineBytes = 4 << 20

// header is the first line of a versioned channel file.
type header struct {
	Version        int    `json:"version"`
	EmbeddingModel string `json:"embeddingModel"`
}

// recordLine is one FAQ record. Legacy files carry only question and answer.
type recordLine struct {
	ID        uuid.UUID  `json:"id,omitempty"`
	Question  string     `json:"question"`
	Answer    string     `json:"answer"`
	Embedding []float32  `json:"embedding,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// EncodeSnapshot writes snapshot as JSON lines: a header followed by one record per line.
func EncodeSnapshot(w io.Writer, snapshot guard.Snapshot) error {
	enc := json.NewEncoder(w)
	version := snapshot.Version
	if version == 0 {
		version = guard.SnapshotVersion
	}
	if err := enc.Encode(header{Version: version, EmbeddingModel: snapshot.EmbeddingModel}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for _, rec := range snapshot.Records {
		created, updated := rec.CreatedAt, rec.UpdatedAt
		line := recordLine{
			ID:        rec.ID,
			Question:  rec.Question,
			Answer:    rec.Answer,
			Embedding: rec.Embedding,
			CreatedAt: &created,
			UpdatedAt: &updated,
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("encode record %s: %w", rec.ID, err)
		}
	}
	return nil
}

// DecodeSnapshot reads a versioned or legacy channel file. Legacy files have
// no header and decode with Version 0 and no embedding model, which makes the
// store re-embed them.
func DecodeSnapshot(r io.Reader) (guard.Snapshot, error) {
	var snapshot guard.Snapshot
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if lineNo == 1 && isHeader(line) {
			var h header
			if err := json.Unmarshal(line, &h); err != nil {
				return guard.Snapshot{}, fmt.Errorf("decode header: %w", err)
			}
			if h.Version > guard.SnapshotVersion {
				return guard.Snapshot{}, fmt.Errorf("unsupported faq file version %d", h.Version)
			}
			snapshot.Version = h.Version
			snapshot.EmbeddingModel = h.EmbeddingModel
			continue
		}
		var rl recordLine
		if err := json.Unmarshal(line, &rl); err != nil {
			return guard.Snapshot{}, fmt.Errorf("decode line %d: %w", lineNo, err)
		}
		rec := guard.Record{
			ID:        rl.ID,
			Question:  rl.Question,
			Answer:    rl.Answer,
			Embedding: rl.Embedding,
		}
		if rl.CreatedAt != nil {
			rec.CreatedAt = *rl.CreatedAt
		}
		if rl.UpdatedAt != nil {
			rec.UpdatedAt = *rl.UpdatedAt
		}
		snapshot.Records = append(snapshot.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return guard.Snapshot{}, fmt.Errorf("read faq file: %w", err)
	}
	return snapshot, nil
}

func isHeader(line []byte) bool {
	var probe struct {
		Version  *int    `json:"version"`
		Question *string `json:"question"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return false
	}
	return probe.Version != nil && probe.Question == nil
}
