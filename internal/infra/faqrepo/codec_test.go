package faqrepo

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
)

func sampleSnapshot() guard.Snapshot {
	created := time.Date(2024, 5, 1, 19, 0, 0, 0, time.UTC)
	return guard.Snapshot{
		Version:        guard.SnapshotVersion,
		EmbeddingModel: "text-embedding-3-small",
		Records: []guard.Record{
			{ID: uuid.New(), Question: "When do you stream?", Answer: "7pm EST", Embedding: []float32{0.5, -0.25}, CreatedAt: created, UpdatedAt: created},
			{ID: uuid.New(), Question: "What game is this?", Answer: "Celeste", Embedding: []float32{1, 0}, CreatedAt: created, UpdatedAt: created.Add(time.Hour)},
		},
	}
}

func TestEncodeWritesHeaderThenOneRecordPerLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeSnapshot(&buf, sampleSnapshot()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.JSONEq(t, `{"version":1,"embeddingModel":"text-embedding-3-small"}`, lines[0])
	require.Contains(t, lines[1], `"question":"When do you stream?"`)

	decoded, err := DecodeSnapshot(&buf)
	require.NoError(t, err)
	require.Equal(t, sampleSnapshot().EmbeddingModel, decoded.EmbeddingModel)
	require.Len(t, decoded.Records, 2)
	require.Equal(t, "Celeste", decoded.Records[1].Answer)
	require.Equal(t, []float32{0.5, -0.25}, decoded.Records[0].Embedding)
}

func TestDecodeLegacyLines(t *testing.T) {
	legacy := `{"question": "When do you stream?", "answer": "7pm EST"}

{"question": "What game is this?", "answer": "Celeste"}
`
	snapshot, err := DecodeSnapshot(strings.NewReader(legacy))
	require.NoError(t, err)
	require.Zero(t, snapshot.Version)
	require.Empty(t, snapshot.EmbeddingModel)
	require.Len(t, snapshot.Records, 2)
	require.Equal(t, uuid.Nil, snapshot.Records[0].ID)
	require.Empty(t, snapshot.Records[0].Embedding)
	require.True(t, snapshot.Records[0].CreatedAt.IsZero())
}

func TestDecodeRejectsNewerVersionAndGarbage(t *testing.T) {
	_, err := DecodeSnapshot(strings.NewReader(`{"version":99,"embeddingModel":"x"}`))
	require.Error(t, err)

	_, err = DecodeSnapshot(strings.NewReader("{\"version\":1}\nnot json\n"))
	require.Error(t, err)
}
