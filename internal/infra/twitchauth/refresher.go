package twitchauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/oauth2"
)

// Endpoint is Twitch's OAuth endpoint. Twitch expects client credentials in the form body.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://id.twitch.tv/oauth2/authorize",
	TokenURL:  "https://id.twitch.tv/oauth2/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// Refresher holds the chat login token and renews it with the refresh-token grant.
type Refresher struct {
	cfg    oauth2.Config
	logger *slog.Logger

	mu    sync.Mutex
	token *oauth2.Token
}

// NewRefresher constructs a refresher. A zero endpoint defaults to Twitch.
func NewRefresher(clientID, clientSecret, accessToken, refreshToken string, endpoint oauth2.Endpoint, logger *slog.Logger) *Refresher {
	if endpoint.TokenURL == "" {
		endpoint = Endpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		cfg: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoint,
		},
		logger: logger.With("component", "twitchauth.refresher"),
		token: &oauth2.Token{
			AccessToken:  strings.TrimPrefix(accessToken, "oauth:"),
			RefreshToken: refreshToken,
		},
	}
}

// IRCPassword returns the current access token in the "oauth:" form IRC login expects.
func (r *Refresher) IRCPassword() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return "oauth:" + r.token.AccessToken
}

// CanRefresh reports whether a refresh grant is possible.
func (r *Refresher) CanRefresh() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.token.RefreshToken != "" && r.cfg.ClientID != ""
}

// Refresh exchanges the refresh token for a new access token and returns the
// new IRC password. Twitch may rotate the refresh token; the latest is kept.
func (r *Refresher) Refresh(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.token.RefreshToken == "" {
		return "", errors.New("no refresh token configured")
	}
	// An expired copy forces the token source to run the refresh grant.
	stale := &oauth2.Token{RefreshToken: r.token.RefreshToken}
	fresh, err := r.cfg.TokenSource(ctx, stale).Token()
	if err != nil {
		return "", fmt.Errorf("refresh twitch token: %w", err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = r.token.RefreshToken
	}
	r.token = fresh
	r.logger.Info("twitch access token refreshed", "expiry", fresh.Expiry)
	return "oauth:" + fresh.AccessToken, nil
}
