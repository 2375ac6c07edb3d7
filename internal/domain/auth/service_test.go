package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/stream-guard-bot/pkg/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_IssueAndValidate(t *testing.T) {
	svc := NewService(Config{Secret: "test-secret", Issuer: "stream-guard-bot", TokenTTL: time.Hour}, newTestLogger())

	resp, err := svc.IssueToken(context.Background(), "ops")
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	require.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, time.Minute)

	claims, err := svc.ValidateToken(context.Background(), resp.Token)
	require.NoError(t, err)
	require.Equal(t, "ops", claims.Subject)
	require.WithinDuration(t, resp.ExpiresAt, claims.ExpiresAt, time.Second)
}

func TestService_RejectsForeignSecret(t *testing.T) {
	issuer := NewService(Config{Secret: "one", TokenTTL: time.Hour}, newTestLogger())
	validator := NewService(Config{Secret: "two", TokenTTL: time.Hour}, newTestLogger())

	resp, err := issuer.IssueToken(context.Background(), "ops")
	require.NoError(t, err)

	_, err = validator.ValidateToken(context.Background(), resp.Token)
	require.True(t, apperrors.IsCode(err, "invalid_token"))
}

func TestService_RejectsExpiredToken(t *testing.T) {
	svc := NewService(Config{Secret: "test-secret", TokenTTL: time.Minute}, newTestLogger()).(*service)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	resp, err := svc.IssueToken(context.Background(), "ops")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(context.Background(), resp.Token)
	require.True(t, apperrors.IsCode(err, "invalid_token"))
}

func TestService_IssueValidatesInput(t *testing.T) {
	svc := NewService(Config{Secret: "test-secret"}, newTestLogger())
	_, err := svc.IssueToken(context.Background(), " ")
	require.True(t, apperrors.IsCode(err, "invalid_input"))

	unconfigured := NewService(Config{}, newTestLogger())
	_, err = unconfigured.IssueToken(context.Background(), "ops")
	require.True(t, apperrors.IsCode(err, "auth_not_configured"))

	_, err = svc.ValidateToken(context.Background(), "")
	require.True(t, apperrors.IsCode(err, "invalid_token"))
}
