package chat

import (
	"context"
	"errors"
	"log/slog"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

const maxConcurrentMessages = 16

// TokenRefresher renews the IRC password after a failed login.
type TokenRefresher interface {
	IRCPassword() string
	CanRefresh() bool
	Refresh(ctx context.Context) (string, error)
}

// TwitchTransport connects the router to Twitch chat over IRC.
type TwitchTransport struct {
	client    *twitch.Client
	refresher TokenRefresher
	logger    *slog.Logger
}

// NewTwitchTransport constructs the transport; Run connects it.
func NewTwitchTransport(username string, refresher TokenRefresher, logger *slog.Logger) *TwitchTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &TwitchTransport{
		client:    twitch.NewClient(username, refresher.IRCPassword()),
		refresher: refresher,
		logger:    logger.With("component", "chat.twitch"),
	}
}

// Say implements Sender.
func (t *TwitchTransport) Say(channel, text string) {
	t.client.Say(channel, text)
}

// Reply implements Sender.
func (t *TwitchTransport) Reply(channel, parentID, text string) {
	if parentID == "" {
		t.client.Say(channel, text)
		return
	}
	t.client.Reply(channel, parentID, text)
}

// Join implements Membership.
func (t *TwitchTransport) Join(channel string) {
	t.client.Join(channel)
}

// Depart implements Membership.
func (t *TwitchTransport) Depart(channel string) {
	t.client.Depart(channel)
}

// Run connects and feeds chat messages to handle until ctx is cancelled.
// A rejected login triggers one token refresh and reconnect.
func (t *TwitchTransport) Run(ctx context.Context, handle func(context.Context, Message)) error {
	slots := make(chan struct{}, maxConcurrentMessages)
	t.client.OnPrivateMessage(func(pm twitch.PrivateMessage) {
		msg := fromPrivateMessage(pm)
		select {
		case slots <- struct{}{}:
		default:
			t.logger.Warn("dropping chat message, handlers busy", "channel", msg.Channel)
			return
		}
		go func() {
			defer func() { <-slots }()
			handle(ctx, msg)
		}()
	})
	t.client.OnConnect(func() {
		t.logger.Info("connected to twitch chat")
	})

	go func() {
		<-ctx.Done()
		_ = t.client.Disconnect()
	}()

	refreshed := false
	for {
		err := t.client.Connect()
		switch {
		case err == nil, errors.Is(err, twitch.ErrClientDisconnected):
			return nil
		case errors.Is(err, twitch.ErrLoginAuthenticationFailed) && !refreshed && t.refresher.CanRefresh():
			t.logger.Warn("twitch login rejected, refreshing token")
			password, refreshErr := t.refresher.Refresh(ctx)
			if refreshErr != nil {
				return refreshErr
			}
			t.client.SetIRCToken(password)
			refreshed = true
		default:
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func fromPrivateMessage(pm twitch.PrivateMessage) Message {
	return Message{
		ID:            pm.ID,
		Channel:       pm.Channel,
		User:          pm.User.Name,
		IsBroadcaster: pm.User.Badges["broadcaster"] > 0,
		IsModerator:   pm.User.Badges["moderator"] > 0,
		Text:          pm.Message,
	}
}
