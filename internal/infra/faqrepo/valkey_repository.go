package faqrepo

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
)

// ValkeyRepository persists channel FAQs in a Valkey-compatible database.
// Each FAQ is stored as one string value in the JSON-lines file format;
// settings live in a hash.
type ValkeyRepository struct {
	client valkey.Client
	prefix string
}

// NewValkeyRepository constructs a new repository backed by Valkey.
func NewValkeyRepository(client valkey.Client, prefix string) *ValkeyRepository {
	if prefix == "" {
		prefix = "guard"
	}
	return &ValkeyRepository{client: client, prefix: prefix}
}

// Load implements guard.Repository.
func (r *ValkeyRepository) Load(ctx context.Context, channel string) (guard.Snapshot, bool, error) {
	payload, err := r.client.Do(ctx, r.client.B().Get().Key(r.faqKey(channel)).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return guard.Snapshot{}, false, nil
		}
		return guard.Snapshot{}, false, err
	}
	snapshot, err := DecodeSnapshot(bytes.NewBufferString(payload))
	if err != nil {
		return guard.Snapshot{}, false, fmt.Errorf("channel %s: %w", channel, err)
	}
	return snapshot, true, nil
}

// Save implements guard.Repository.
func (r *ValkeyRepository) Save(ctx context.Context, channel string, snapshot guard.Snapshot) error {
	var buf bytes.Buffer
	if err := EncodeSnapshot(&buf, snapshot); err != nil {
		return err
	}
	cmds := valkey.Commands{
		r.client.B().Set().Key(r.faqKey(channel)).Value(buf.String()).Build(),
		r.client.B().Sadd().Key(r.channelsKey()).Member(channel).Build(),
	}
	for _, resp := range r.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return err
		}
	}
	return nil
}

// LoadSettings implements guard.Repository.
func (r *ValkeyRepository) LoadSettings(ctx context.Context, channel string) (guard.Settings, bool, error) {
	fields, err := r.client.Do(ctx, r.client.B().Hgetall().Key(r.settingsKey(channel)).Build()).AsStrMap()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return guard.Settings{}, false, nil
		}
		return guard.Settings{}, false, err
	}
	if len(fields) == 0 {
		return guard.Settings{}, false, nil
	}
	threshold, err := strconv.ParseFloat(fields["threshold"], 64)
	if err != nil {
		return guard.Settings{}, false, fmt.Errorf("decode threshold for %s: %w", channel, err)
	}
	return guard.Settings{Mode: guard.Mode(fields["mode"]), Threshold: threshold}, true, nil
}

// SaveSettings implements guard.Repository.
func (r *ValkeyRepository) SaveSettings(ctx context.Context, channel string, settings guard.Settings) error {
	cmd := r.client.B().Hset().Key(r.settingsKey(channel)).FieldValue().
		FieldValue("mode", string(settings.Mode)).
		FieldValue("threshold", strconv.FormatFloat(settings.Threshold, 'g', -1, 64)).
		Build()
	return r.client.Do(ctx, cmd).Error()
}

// Channels lists channels with a stored FAQ.
func (r *ValkeyRepository) Channels(ctx context.Context) ([]string, error) {
	members, err := r.client.Do(ctx, r.client.B().Smembers().Key(r.channelsKey()).Build()).AsStrSlice()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, err
	}
	sort.Strings(members)
	return members, nil
}

func (r *ValkeyRepository) faqKey(channel string) string {
	return fmt.Sprintf("%s:channel:%s:faq", r.prefix, channel)
}

func (r *ValkeyRepository) settingsKey(channel string) string {
	return fmt.Sprintf("%s:channel:%s:settings", r.prefix, channel)
}

func (r *ValkeyRepository) channelsKey() string {
	return fmt.Sprintf("%s:channels", r.prefix)
}

var _ guard.Repository = (*ValkeyRepository)(nil)
