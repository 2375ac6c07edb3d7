package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/stream-guard-bot/internal/domain/auth"
	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
	"github.com/yanqian/stream-guard-bot/internal/infra/faqrepo"
)

func useConfig(t *testing.T) string {
	t.Helper()
	dataDir := t.TempDir()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
http:
  enabled: false
auth:
  secret: cli-secret
twitch:
  enabled: false
llm:
  embedding:
    provider: local
  completion:
    provider: local
storage:
  driver: file
  file:
    dir: ` + dataDir + `
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("ENV_FILE", "")
	return dataDir
}

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newCommand(&out).Run(context.Background(), append([]string{"guardctl"}, args...))
	return out.String(), err
}

func TestImportLegacyFileThenExport(t *testing.T) {
	dataDir := useConfig(t)
	legacy := filepath.Join(t.TempDir(), "somestreamer.jsonl")
	require.NoError(t, os.WriteFile(legacy, []byte(
		`{"question":"When do you stream?","answer":"7pm EST"}`+"\n"+
			`{"question":"What game is this?","answer":"Celeste"}`+"\n"), 0o600))

	out, err := run(t, "import", "#SomeStreamer", legacy)
	require.NoError(t, err)
	require.Contains(t, out, "imported 2 records into somestreamer")
	require.FileExists(t, filepath.Join(dataDir, "somestreamer.jsonl"))

	out, err = run(t, "export", "somestreamer")
	require.NoError(t, err)
	snapshot, err := faqrepo.DecodeSnapshot(strings.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, guard.SnapshotVersion, snapshot.Version)
	require.Equal(t, "local-hash-64", snapshot.EmbeddingModel)
	require.Len(t, snapshot.Records, 2)
	require.Equal(t, "What game is this?", snapshot.Records[1].Question)
	require.NotEmpty(t, snapshot.Records[0].Embedding)

	target := filepath.Join(t.TempDir(), "export.jsonl")
	out, err = run(t, "export", "--output", target, "somestreamer")
	require.NoError(t, err)
	require.Contains(t, out, "exported 2 records")
	require.FileExists(t, target)
}

func TestExportUnknownChannel(t *testing.T) {
	useConfig(t)
	_, err := run(t, "export", "nobody")
	require.ErrorContains(t, err, "no stored FAQ")
}

func TestUsageErrors(t *testing.T) {
	useConfig(t)
	_, err := run(t, "import", "somestreamer")
	require.ErrorContains(t, err, "usage: guardctl import")

	_, err = run(t, "backup", "somestreamer")
	require.ErrorContains(t, err, "backups are not enabled")
}

func TestTokenIsAcceptedByAuthService(t *testing.T) {
	useConfig(t)
	out, err := run(t, "token", "--subject", "ops")
	require.NoError(t, err)
	token := strings.SplitN(out, "\n", 2)[0]

	svc := auth.NewService(auth.Config{Secret: "cli-secret", Issuer: "stream-guard-bot"}, newDiscardLogger())
	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "ops", claims.Subject)
}

func TestImportAndRestoreThroughRunningBot(t *testing.T) {
	dataDir := useConfig(t)
	svc := auth.NewService(auth.Config{Secret: "cli-secret", Issuer: "stream-guard-bot"}, newDiscardLogger())

	type call struct {
		method, path, contentType, body string
	}
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := svc.ValidateToken(r.Context(), strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if err != nil || claims.Subject != "guardctl" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		data, _ := io.ReadAll(r.Body)
		calls = append(calls, call{r.Method, r.URL.Path, r.Header.Get("Content-Type"), string(data)})
		if strings.HasSuffix(r.URL.Path, "/restore") && strings.Contains(string(data), "missing") {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":{"code":"backup_error","message":"failed to download snapshot","retryable":false}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"channel": "somestreamer",
			"entries": []guard.Entry{{Position: 1, Question: "When do you stream?", Answer: "7pm EST"}},
		})
	}))
	defer srv.Close()

	file := filepath.Join(t.TempDir(), "faq.jsonl")
	line := `{"question":"When do you stream?","answer":"7pm EST"}` + "\n"
	require.NoError(t, os.WriteFile(file, []byte(line), 0o600))

	out, err := run(t, "import", "--server", srv.URL+"/", "#SomeStreamer", file)
	require.NoError(t, err)
	require.Contains(t, out, "imported 1 records into somestreamer via "+srv.URL)

	out, err = run(t, "restore", "--server", srv.URL, "somestreamer", "faq-backups/somestreamer/a.jsonl")
	require.NoError(t, err)
	require.Contains(t, out, "restored 1 records into somestreamer")

	_, err = run(t, "restore", "--server", srv.URL, "somestreamer", "missing")
	require.ErrorContains(t, err, "backup_error")

	require.Len(t, calls, 3)
	require.Equal(t, call{http.MethodPut, "/api/v1/channels/somestreamer/faq", "application/x-ndjson", line}, calls[0])
	require.Equal(t, http.MethodPost, calls[1].method)
	require.Equal(t, "/api/v1/channels/somestreamer/restore", calls[1].path)
	require.JSONEq(t, `{"key":"faq-backups/somestreamer/a.jsonl"}`, calls[1].body)

	_, err = os.Stat(filepath.Join(dataDir, "somestreamer.jsonl"))
	require.True(t, os.IsNotExist(err))
}
