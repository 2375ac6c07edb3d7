package chat

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
	"github.com/yanqian/stream-guard-bot/internal/infra/faqrepo"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// keywordEmbedder puts questions about streaming times and games on separate axes.
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "stream"):
		return []float32{1, 0, 0}, nil
	case strings.Contains(lower, "game"):
		return []float32{0, 1, 0}, nil
	default:
		return []float32{0, 0, 1}, nil
	}
}

func (keywordEmbedder) Model() string { return "keyword" }

type scriptedCompleter struct {
	mu       sync.Mutex
	response string
	calls    int
}

func (c *scriptedCompleter) Complete(context.Context, guard.CompletionRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.response, nil
}

type sentMessage struct {
	Channel  string
	ParentID string
	Text     string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (s *recordingSender) Say(channel, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{Channel: channel, Text: text})
}

func (s *recordingSender) Reply(channel, parentID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{Channel: channel, ParentID: parentID, Text: text})
}

func (s *recordingSender) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, m := range s.sent {
		out[i] = m.Text
	}
	return out
}

func (s *recordingSender) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}

type recordingMembership struct {
	mu       sync.Mutex
	joined   []string
	departed []string
}

func (m *recordingMembership) Join(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joined = append(m.joined, channel)
}

func (m *recordingMembership) Depart(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.departed = append(m.departed, channel)
}

type routerFixture struct {
	router     *Router
	registry   *Registry
	sender     *recordingSender
	membership *recordingMembership
	completer  *scriptedCompleter
}

func newRouterFixture(limit int) routerFixture {
	completer := &scriptedCompleter{}
	factory := guard.NewFactory(guard.Config{DefaultThreshold: guard.DefaultThreshold}, faqrepo.NewMemoryRepository(), keywordEmbedder{}, completer, nil, nil, newTestLogger())
	membership := &recordingMembership{}
	registry := NewRegistry(factory, membership, newTestLogger())
	sender := &recordingSender{}
	router := NewRouter(registry, sender, "guardbot", limit, nil, newTestLogger())
	return routerFixture{router: router, registry: registry, sender: sender, membership: membership, completer: completer}
}

func broadcaster(text string) Message {
	return Message{ID: "m1", Channel: "somestreamer", User: "SomeStreamer", IsBroadcaster: true, Text: text}
}

func viewer(text string) Message {
	return Message{ID: "m2", Channel: "somestreamer", User: "viewer42", Text: text}
}
