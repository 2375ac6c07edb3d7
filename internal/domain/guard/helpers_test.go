package guard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 19, 0, 0, 0, time.UTC)
}

// stubEmbedder maps known texts to vectors; unknown texts get fallback.
type stubEmbedder struct {
	mu       sync.Mutex
	model    string
	vectors  map[string][]float32
	fallback []float32
	err      error
	calls    int
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{
		model: "stub-embedding",
		vectors: map[string][]float32{
			"When do you stream?":       {1, 0, 0},
			"When does the stream go?":  {0.9, 0.1, 0},
			"what is the weather":       {0, 0, 1},
			"What game is this?":        {0, 1, 0},
			"What keyboard do you use?": {0, 0.6, 0.8},
		},
		fallback: []float32{0, 0, 1},
	}
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return s.fallback, nil
}

func (s *stubEmbedder) Model() string { return s.model }

func (s *stubEmbedder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubCompleter struct {
	mu       sync.Mutex
	response string
	err      error
	requests []CompletionRequest
}

func (s *stubCompleter) Complete(_ context.Context, req CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubCompleter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type memoryRepo struct {
	mu            sync.Mutex
	snapshots     map[string]Snapshot
	settings      map[string]Settings
	saveErr       error
	saves         int
	settingsSaves int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{snapshots: map[string]Snapshot{}, settings: map[string]Settings{}}
}

func (r *memoryRepo) Load(_ context.Context, channel string) (Snapshot, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.snapshots[channel]
	return snap, ok, nil
}

func (r *memoryRepo) Save(_ context.Context, channel string, snapshot Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	r.snapshots[channel] = snapshot
	return nil
}

func (r *memoryRepo) LoadSettings(_ context.Context, channel string) (Settings, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[channel]
	return s, ok, nil
}

func (r *memoryRepo) SaveSettings(_ context.Context, channel string, settings Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.settingsSaves++
	r.settings[channel] = settings
	return nil
}

var errProviderDown = errors.New("provider unavailable")

type wordCounter struct{}

func (wordCounter) Count(text string) int {
	n := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\n' {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}
