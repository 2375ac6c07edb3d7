package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/stream-guard-bot/pkg/errors"
)

func TestRegistryJoinIsIdempotent(t *testing.T) {
	f := newRouterFixture(0)
	ctx := context.Background()

	first, created, err := f.registry.Join(ctx, "#SomeStreamer")
	require.NoError(t, err)
	require.True(t, created)
	second, created, err := f.registry.Join(ctx, "somestreamer")
	require.NoError(t, err)
	require.False(t, created)
	require.Same(t, first, second)
	require.Equal(t, []string{"somestreamer"}, f.membership.joined)
	require.Equal(t, []string{"somestreamer"}, f.registry.Channels())
}

func TestRegistryPart(t *testing.T) {
	f := newRouterFixture(0)
	ctx := context.Background()
	_, _, err := f.registry.Join(ctx, "somestreamer")
	require.NoError(t, err)

	require.True(t, f.registry.Part("SomeStreamer"))
	require.False(t, f.registry.Part("somestreamer"))
	require.Equal(t, []string{"somestreamer"}, f.membership.departed)
	require.Empty(t, f.registry.Channels())

	_, err = f.registry.Lookup("somestreamer")
	require.True(t, apperrors.IsCode(err, CodeChannelNotFound))
}

func TestRegistryRejectsEmptyChannel(t *testing.T) {
	f := newRouterFixture(0)
	_, _, err := f.registry.Join(context.Background(), " # ")
	require.Error(t, err)
	require.Empty(t, f.membership.joined)
}
