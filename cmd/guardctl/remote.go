package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/yanqian/stream-guard-bot/internal/domain/auth"
	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
	"github.com/yanqian/stream-guard-bot/internal/infra/config"
	"github.com/yanqian/stream-guard-bot/pkg/logger"
)

const remoteSubject = "guardctl"

// adminClient sends storage changes through a running bot's admin API so the
// live in-memory FAQ and the repository stay in step.
type adminClient struct {
	base  string
	token string
	http  *http.Client
}

type importResponse struct {
	Channel string        `json:"channel"`
	Entries []guard.Entry `json:"entries"`
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// newAdminClient issues a short-lived token with the configured auth secret.
func newAdminClient(ctx context.Context, server string) (*adminClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	svc := auth.NewService(auth.Config{Secret: cfg.Auth.Secret, Issuer: cfg.Auth.Issuer, TokenTTL: 5 * time.Minute},
		logger.NewWithWriter(os.Stderr, os.Getenv("LOG_LEVEL")))
	token, err := svc.IssueToken(ctx, remoteSubject)
	if err != nil {
		return nil, err
	}
	return &adminClient{
		base:  strings.TrimRight(server, "/"),
		token: token.Token,
		http:  &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

func (c *adminClient) channelPath(channel, suffix string) string {
	return c.base + "/api/v1/channels/" + url.PathEscape(guard.NormalizeChannel(channel)) + suffix
}

func (c *adminClient) send(ctx context.Context, method, target, contentType string, body []byte) (importResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return importResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", contentType)
	resp, err := c.http.Do(req)
	if err != nil {
		return importResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Code != "" {
			return importResponse{}, fmt.Errorf("%s %s: %s: %s", method, target, apiErr.Error.Code, apiErr.Error.Message)
		}
		return importResponse{}, fmt.Errorf("%s %s: status %d", method, target, resp.StatusCode)
	}
	var out importResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return importResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func runRemoteImport(ctx context.Context, out io.Writer, server, channel, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	client, err := newAdminClient(ctx, server)
	if err != nil {
		return err
	}
	resp, err := client.send(ctx, http.MethodPut, client.channelPath(channel, "/faq"), "application/x-ndjson", data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "imported %d records into %s via %s\n", len(resp.Entries), resp.Channel, client.base)
	return err
}

func runRemoteRestore(ctx context.Context, out io.Writer, server, channel, key string) error {
	body, err := json.Marshal(map[string]string{"key": key})
	if err != nil {
		return err
	}
	client, err := newAdminClient(ctx, server)
	if err != nil {
		return err
	}
	resp, err := client.send(ctx, http.MethodPost, client.channelPath(channel, "/restore"), "application/json", body)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "restored %d records into %s via %s\n", len(resp.Entries), resp.Channel, client.base)
	return err
}
