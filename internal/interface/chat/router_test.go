package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
)

func TestRouterGuardAndPart(t *testing.T) {
	f := newRouterFixture(0)
	ctx := context.Background()

	f.router.Handle(ctx, Message{ID: "1", Channel: "guardbot", User: "SomeStreamer", Text: "!guard"})
	require.Equal(t, []string{"somestreamer is now guarded!"}, f.sender.texts())
	require.Equal(t, []string{"somestreamer"}, f.registry.Channels())

	f.sender.reset()
	f.router.Handle(ctx, Message{ID: "2", Channel: "guardbot", User: "SomeStreamer", Text: "!guard"})
	require.Equal(t, []string{"somestreamer is already guarded!"}, f.sender.texts())

	f.sender.reset()
	f.router.Handle(ctx, broadcaster("!part"))
	require.Equal(t, []string{"Stream Guard Bot has left somestreamer's chat"}, f.sender.texts())
	require.Empty(t, f.registry.Channels())
	require.Equal(t, []string{"somestreamer"}, f.membership.departed)
}

func TestRouterIgnoresUnprivilegedAdminCommands(t *testing.T) {
	f := newRouterFixture(0)
	ctx := context.Background()
	_, _, err := f.registry.Join(ctx, "somestreamer")
	require.NoError(t, err)

	f.router.Handle(ctx, viewer(`!addQA "When do you stream?" "Tuesdays at 8pm"`))
	f.router.Handle(ctx, viewer("!setMode freeform"))
	require.Empty(t, f.sender.texts())

	bot, _ := f.registry.Get("somestreamer")
	require.Empty(t, bot.ListFAQ())
	require.Equal(t, guard.ModeRetrieval, bot.Settings().Mode)
}

func TestRouterManagesFAQ(t *testing.T) {
	f := newRouterFixture(0)
	ctx := context.Background()
	_, _, err := f.registry.Join(ctx, "somestreamer")
	require.NoError(t, err)

	f.router.Handle(ctx, broadcaster(`!addQA "When do you stream?" "Tuesdays at 8pm"`))
	f.router.Handle(ctx, Message{ID: "3", Channel: "somestreamer", User: "mod", IsModerator: true, Text: `!addQA "What game is this?" "Celeste"`})
	require.Equal(t, []string{"Added FAQ #1.", "Added FAQ #2."}, f.sender.texts())

	f.sender.reset()
	f.router.Handle(ctx, broadcaster(`!updateQA 2 "Hollow Knight"`))
	f.router.Handle(ctx, viewer("!listFAQ"))
	require.Equal(t, []string{
		"Updated FAQ #2.",
		"1. When do you stream? -> Tuesdays at 8pm | 2. What game is this? -> Hollow Knight",
	}, f.sender.texts())

	f.sender.reset()
	f.router.Handle(ctx, broadcaster("!removeQA 1"))
	f.router.Handle(ctx, broadcaster("!removeQA 9"))
	f.router.Handle(ctx, broadcaster("!removeQA one"))
	texts := f.sender.texts()
	require.Len(t, texts, 3)
	require.Equal(t, "Removed FAQ #1: When do you stream?", texts[0])
	require.True(t, strings.HasPrefix(texts[1], "Could not remove the FAQ entry: "), texts[1])
	require.Equal(t, "Usage: !removeQA <number>", texts[2])
}

func TestRouterListFAQChunksLongLists(t *testing.T) {
	f := newRouterFixture(60)
	ctx := context.Background()
	bot, _, err := f.registry.Join(ctx, "somestreamer")
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := bot.AddQA(ctx, "What game is this?", "A rather long answer text")
		require.NoError(t, err)
	}

	f.router.Handle(ctx, viewer("!listFAQ"))
	texts := f.sender.texts()
	require.Greater(t, len(texts), 1)
	for _, text := range texts {
		require.LessOrEqual(t, len([]rune(text)), 60)
	}
}

func TestRouterSettingsCommands(t *testing.T) {
	f := newRouterFixture(0)
	ctx := context.Background()
	bot, _, err := f.registry.Join(ctx, "somestreamer")
	require.NoError(t, err)

	f.router.Handle(ctx, broadcaster("!setResponseThreshold 0.8"))
	f.router.Handle(ctx, broadcaster("!SETMODE freeform"))
	f.router.Handle(ctx, broadcaster("!setMode loud"))
	f.router.Handle(ctx, broadcaster("!setResponseThreshold 2"))
	texts := f.sender.texts()
	require.Len(t, texts, 4)
	require.Equal(t, "Response threshold set to 0.8.", texts[0])
	require.Equal(t, "Mode set to freeform.", texts[1])
	require.Equal(t, "Usage: !setMode <disabled|freeform|retrieval>", texts[2])
	require.True(t, strings.HasPrefix(texts[3], "Could not change the threshold: "), texts[3])

	require.Equal(t, guard.Settings{Mode: guard.ModeFreeform, Threshold: 0.8}, bot.Settings())
}

func TestRouterImplicitQuestions(t *testing.T) {
	f := newRouterFixture(0)
	ctx := context.Background()
	bot, _, err := f.registry.Join(ctx, "somestreamer")
	require.NoError(t, err)
	_, err = bot.AddQA(ctx, "When do you stream?", "Tuesdays at 8pm")
	require.NoError(t, err)

	f.completer.response = "SomeStreamer streams Tuesdays at 8pm."
	f.router.Handle(ctx, viewer("when is the stream tonight"))
	require.Equal(t, []sentMessage{{Channel: "somestreamer", ParentID: "m2", Text: "SomeStreamer streams Tuesdays at 8pm."}}, f.sender.sent)

	f.sender.reset()
	f.router.Handle(ctx, viewer("hello everyone"))
	require.Empty(t, f.sender.texts())
	require.Equal(t, 1, f.completer.calls)

	f.completer.response = guard.DefaultSentinel
	f.router.Handle(ctx, viewer("is the stream fun"))
	require.Empty(t, f.sender.texts())
	require.Equal(t, 2, f.completer.calls)

	_, err = bot.SetMode(ctx, guard.ModeDisabled)
	require.NoError(t, err)
	f.router.Handle(ctx, viewer("when is the stream"))
	require.Empty(t, f.sender.texts())
}

func TestRouterExplicitAskInDisabledMode(t *testing.T) {
	f := newRouterFixture(0)
	ctx := context.Background()
	bot, _, err := f.registry.Join(ctx, "somestreamer")
	require.NoError(t, err)
	_, err = bot.SetMode(ctx, guard.ModeDisabled)
	require.NoError(t, err)

	f.router.Handle(ctx, viewer("!ask when do you stream"))
	require.Equal(t, []string{guard.DefaultDisabledMessage}, f.sender.texts())
	require.Zero(t, f.completer.calls)
}

func TestRouterIgnoresOwnMessagesAndUnjoinedChannels(t *testing.T) {
	f := newRouterFixture(0)
	ctx := context.Background()

	f.router.Handle(ctx, viewer("!listFAQ"))
	f.router.Handle(ctx, viewer("when do you stream"))
	require.Empty(t, f.sender.texts())

	_, _, err := f.registry.Join(ctx, "somestreamer")
	require.NoError(t, err)
	f.router.Handle(ctx, Message{ID: "x", Channel: "somestreamer", User: "GuardBot", IsModerator: true, Text: "!listFAQ"})
	f.router.Handle(ctx, viewer("!unknown command"))
	require.Empty(t, f.sender.texts())
}
