package chat

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
	apperrors "github.com/yanqian/stream-guard-bot/pkg/errors"
)

// CodeChannelNotFound is returned for channels the bot has not joined.
const CodeChannelNotFound = "channel_not_found"

// BotOpener creates channel bots; *guard.Factory satisfies it.
type BotOpener interface {
	Open(ctx context.Context, channel string) (*guard.Bot, error)
	Close(channel string)
}

// Membership joins and leaves chat rooms on the transport. May be nil.
type Membership interface {
	Join(channel string)
	Depart(channel string)
}

// Registry owns the bots of every joined channel, keyed by normalized name.
type Registry struct {
	opener     BotOpener
	membership Membership
	logger     *slog.Logger

	joinMu sync.Mutex

	mu   sync.RWMutex
	bots map[string]*guard.Bot
}

// NewRegistry constructs an empty registry.
func NewRegistry(opener BotOpener, membership Membership, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		opener:     opener,
		membership: membership,
		logger:     logger.With("component", "chat.registry"),
		bots:       make(map[string]*guard.Bot),
	}
}

// Join returns the channel's bot, opening it and joining the room on first
// use. created reports whether this call opened it.
func (r *Registry) Join(ctx context.Context, channel string) (bot *guard.Bot, created bool, err error) {
	channel = guard.NormalizeChannel(channel)
	if channel == "" {
		return nil, false, apperrors.Wrap(guard.CodeInvalidInput, "channel cannot be empty", nil)
	}
	r.joinMu.Lock()
	defer r.joinMu.Unlock()

	if bot, ok := r.Get(channel); ok {
		return bot, false, nil
	}
	bot, err = r.opener.Open(ctx, channel)
	if err != nil {
		return nil, false, err
	}
	r.mu.Lock()
	r.bots[channel] = bot
	r.mu.Unlock()
	if r.membership != nil {
		r.membership.Join(channel)
	}
	r.logger.Info("channel joined", "channel", channel)
	return bot, true, nil
}

// Part destroys the channel's bot and leaves the room. It reports whether the
// channel was joined.
func (r *Registry) Part(channel string) bool {
	channel = guard.NormalizeChannel(channel)
	r.joinMu.Lock()
	defer r.joinMu.Unlock()

	r.mu.Lock()
	_, ok := r.bots[channel]
	delete(r.bots, channel)
	r.mu.Unlock()
	if !ok {
		return false
	}
	if r.membership != nil {
		r.membership.Depart(channel)
	}
	r.opener.Close(channel)
	r.logger.Info("channel parted", "channel", channel)
	return true
}

// Get returns the bot of a joined channel.
func (r *Registry) Get(channel string) (*guard.Bot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bot, ok := r.bots[guard.NormalizeChannel(channel)]
	return bot, ok
}

// Lookup is Get with a typed error for unknown channels.
func (r *Registry) Lookup(channel string) (*guard.Bot, error) {
	bot, ok := r.Get(channel)
	if !ok {
		return nil, apperrors.Wrap(CodeChannelNotFound, "channel "+guard.NormalizeChannel(channel)+" is not guarded", nil)
	}
	return bot, nil
}

// Channels lists joined channels in order.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.bots))
	for channel := range r.bots {
		out = append(out, channel)
	}
	sort.Strings(out)
	return out
}
