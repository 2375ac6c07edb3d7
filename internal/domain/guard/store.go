package guard

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/yanqian/stream-guard-bot/pkg/errors"
	"github.com/yanqian/stream-guard-bot/pkg/util"
)

// Store is the ordered FAQ of one channel.
//
// Records are kept in a single slice so question, answer and embedding stay
// co-indexed. The slice is replaced on every mutation and never modified in
// place, which lets readers keep using a slice header taken under the read lock.
type Store struct {
	channel  string
	embedder Embedder
	repo     Repository
	clock    util.Clock
	logger   *slog.Logger

	writeMu sync.Mutex

	mu      sync.RWMutex
	records []Record
}

// NewStore constructs an empty store. A nil repo disables persistence.
func NewStore(channel string, embedder Embedder, repo Repository, clock util.Clock, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		channel:  channel,
		embedder: embedder,
		repo:     repo,
		clock:    clock,
		logger:   logger.With("component", "guard.store", "channel", channel),
	}
}

// Load restores the persisted snapshot of the channel, if any.
func (s *Store) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	snapshot, found, err := s.repo.Load(ctx, s.channel)
	if err != nil {
		return apperrors.Wrap(CodePersistence, "failed to load faq", err)
	}
	if !found {
		return nil
	}
	return s.replace(ctx, snapshot, false)
}

// Replace swaps the whole FAQ for the records in snapshot and persists it.
// Records embedded with a different model, or not embedded at all, are
// embedded again so the store never mixes embedding spaces.
func (s *Store) Replace(ctx context.Context, snapshot Snapshot) error {
	return s.replace(ctx, snapshot, true)
}

// replace writes back only when forced or when the snapshot needed repair.
func (s *Store) replace(ctx context.Context, snapshot Snapshot, force bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	model := s.embedder.Model()
	sameModel := snapshot.EmbeddingModel == model
	dirty := !sameModel || snapshot.Version != SnapshotVersion
	next := make([]Record, 0, len(snapshot.Records))
	now := s.clock.OrNow()
	for _, rec := range snapshot.Records {
		rec.Question = strings.TrimSpace(rec.Question)
		rec.Answer = strings.TrimSpace(rec.Answer)
		if rec.Question == "" || rec.Answer == "" {
			s.logger.Warn("skipping incomplete faq record", "id", rec.ID)
			dirty = true
			continue
		}
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
			dirty = true
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
			rec.UpdatedAt = now
		}
		if !sameModel || len(rec.Embedding) == 0 {
			vector, err := s.embed(ctx, rec.Question)
			if err != nil {
				return err
			}
			rec.Embedding = vector
			dirty = true
		}
		next = append(next, rec)
	}
	if dirty {
		s.logger.Info("faq re-embedded", "records", len(next), "from_model", snapshot.EmbeddingModel, "to_model", model)
	}
	if dirty || force {
		return s.commit(ctx, next)
	}
	s.mu.Lock()
	s.records = next
	s.mu.Unlock()
	return nil
}

// Add embeds question and appends a new record.
func (s *Store) Add(ctx context.Context, question, answer string) (Record, error) {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return Record{}, apperrors.Wrap(CodeInvalidInput, "question and answer cannot be empty", nil)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	vector, err := s.embed(ctx, question)
	if err != nil {
		return Record{}, err
	}
	now := s.clock.OrNow()
	rec := Record{
		ID:        uuid.New(),
		Question:  question,
		Answer:    answer,
		Embedding: vector,
		CreatedAt: now,
		UpdatedAt: now,
	}
	next := append(s.current(), rec)
	if err := s.commit(ctx, next); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Remove deletes the record at the 1-based position and returns it.
func (s *Store) Remove(ctx context.Context, position int) (Record, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current := s.current()
	idx, err := checkPosition(position, len(current))
	if err != nil {
		return Record{}, err
	}
	removed := current[idx]
	next := append(current[:idx], current[idx+1:]...)
	if err := s.commit(ctx, next); err != nil {
		return Record{}, err
	}
	return removed, nil
}

// Update replaces the answer at the 1-based position. The embedding is kept
// because it anchors the question, which does not change.
func (s *Store) Update(ctx context.Context, position int, answer string) (Record, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return Record{}, apperrors.Wrap(CodeInvalidInput, "answer cannot be empty", nil)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current := s.current()
	idx, err := checkPosition(position, len(current))
	if err != nil {
		return Record{}, err
	}
	rec := current[idx]
	rec.Answer = answer
	rec.UpdatedAt = s.clock.OrNow()
	current[idx] = rec
	if err := s.commit(ctx, current); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// List returns the FAQ in order, 1-indexed.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]Entry, len(s.records))
	for i, rec := range s.records {
		entries[i] = Entry{Position: i + 1, Question: rec.Question, Answer: rec.Answer}
	}
	return entries
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Snapshot returns a copy of the store in its persisted form.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Version:        SnapshotVersion,
		EmbeddingModel: s.embedder.Model(),
		Records:        s.current(),
	}
}

// Nearest runs retrieval: it embeds question and returns the most similar
// record when its cosine similarity is at least threshold. An empty store
// never calls the embedding provider.
func (s *Store) Nearest(ctx context.Context, question string, threshold float64) (Match, bool, error) {
	s.mu.RLock()
	records := s.records
	s.mu.RUnlock()
	if len(records) == 0 {
		return Match{}, false, nil
	}

	vector, err := s.embed(ctx, question)
	if err != nil {
		return Match{}, false, err
	}

	best := Match{Similarity: -2}
	for i, rec := range records {
		sim, err := cosineSimilarity(vector, rec.Embedding)
		if err != nil {
			return Match{}, false, apperrors.Wrap(CodeEmbedding, "cannot compare embeddings", err)
		}
		if sim > best.Similarity {
			best = Match{Record: rec, Position: i + 1, Similarity: sim}
		}
	}
	s.logger.Debug("nearest faq record", "position", best.Position, "similarity", best.Similarity, "threshold", threshold)
	if best.Similarity < threshold {
		return best, false, nil
	}
	return best, true, nil
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, apperrors.Wrap(CodeEmbedding, "embedding request failed", err)
	}
	if len(vector) == 0 {
		return nil, apperrors.Wrap(CodeEmbedding, "embedding response empty", nil)
	}
	return vector, nil
}

// current returns a copy of the record slice; callers may modify the copy.
func (s *Store) current() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records), len(s.records)+1)
	copy(out, s.records)
	return out
}

// commit persists next and only then makes it visible. Callers hold writeMu.
func (s *Store) commit(ctx context.Context, next []Record) error {
	if s.repo != nil {
		snapshot := Snapshot{
			Version:        SnapshotVersion,
			EmbeddingModel: s.embedder.Model(),
			Records:        next,
		}
		if err := s.repo.Save(ctx, s.channel, snapshot); err != nil {
			return apperrors.Wrap(CodePersistence, "failed to save faq", err)
		}
	}
	s.mu.Lock()
	s.records = next
	s.mu.Unlock()
	return nil
}

func checkPosition(position, size int) (int, error) {
	if position < 1 || position > size {
		return 0, errIndexOutOfRange(position, size)
	}
	return position - 1, nil
}
