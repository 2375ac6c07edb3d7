package faqrepo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
)

func TestFileRepositorySaveLoad(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFileRepository(dir)
	require.NoError(t, err)
	ctx := context.Background()

	_, found, err := repo.Load(ctx, "somestreamer")
	require.NoError(t, err)
	require.False(t, found)

	want := sampleSnapshot()
	require.NoError(t, repo.Save(ctx, "somestreamer", want))
	snapshot, found, err := repo.Load(ctx, "somestreamer")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, snapshot.Records, 2)
	require.Equal(t, want.Records[0].ID, snapshot.Records[0].ID)
	require.Equal(t, want.Records[1].ID, snapshot.Records[1].ID)

	_, err = os.Stat(filepath.Join(dir, "somestreamer.jsonl"))
	require.NoError(t, err)

	channels, err := repo.Channels(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"somestreamer"}, channels)
}

func TestFileRepositoryReadsLegacyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "oldchannel.jsonl"), []byte(`{"question": "q", "answer": "a"}`+"\n"), 0o600))
	repo, err := NewFileRepository(dir)
	require.NoError(t, err)

	snapshot, found, err := repo.Load(context.Background(), "oldchannel")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []guard.Record{{Question: "q", Answer: "a"}}, snapshot.Records)
}

func TestFileRepositorySettings(t *testing.T) {
	repo, err := NewFileRepository(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, found, err := repo.LoadSettings(ctx, "somestreamer")
	require.NoError(t, err)
	require.False(t, found)

	want := guard.Settings{Mode: guard.ModeFreeform, Threshold: 0.7}
	require.NoError(t, repo.SaveSettings(ctx, "somestreamer", want))
	got, found, err := repo.LoadSettings(ctx, "somestreamer")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, want, got)

	channels, err := repo.Channels(ctx)
	require.NoError(t, err)
	require.Empty(t, channels)
}

func TestFileRepositoryBacksStore(t *testing.T) {
	repo, err := NewFileRepository(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	embedder := fixedEmbedder{}

	store := guard.NewStore("somestreamer", embedder, repo, nil, nil)
	_, err = store.Add(ctx, "When do you stream?", "7pm EST")
	require.NoError(t, err)

	restored := guard.NewStore("somestreamer", embedder, repo, nil, nil)
	require.NoError(t, restored.Load(ctx))
	require.Equal(t, store.List(), restored.List())
}

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(context.Context, string) ([]float32, error) { return []float32{1, 0}, nil }
func (fixedEmbedder) Model() string                                     { return "fixed" }
