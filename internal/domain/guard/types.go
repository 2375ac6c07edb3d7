package guard

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/stream-guard-bot/pkg/metrics"
)

// Mode selects how a channel answers questions.
type Mode string

const (
	// ModeDisabled answers every question with a fixed message.
	ModeDisabled Mode = "disabled"
	// ModeFreeform forwards questions to the completion provider without FAQ context.
	ModeFreeform Mode = "freeform"
	// ModeRetrieval answers only when a stored FAQ record is close enough.
	ModeRetrieval Mode = "retrieval"
)

// ParseMode accepts the canonical mode names plus a few chat-friendly aliases.
func ParseMode(raw string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "disabled", "off":
		return ModeDisabled, true
	case "freeform", "chat":
		return ModeFreeform, true
	case "retrieval", "faq":
		return ModeRetrieval, true
	default:
		return "", false
	}
}

// Outcome tells callers why a reply has (or lacks) text.
type Outcome string

const (
	OutcomeAnswered Outcome = "answered"
	OutcomeNoMatch  Outcome = "no_match"
	OutcomeDisabled Outcome = "disabled"
	OutcomeRefused  Outcome = "refused"
)

// Record is one stored FAQ entry together with the embedding of its question.
type Record struct {
	ID        uuid.UUID `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Entry is the external, 1-indexed view of a record.
type Entry struct {
	Position int    `json:"position"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (e Entry) String() string {
	return fmt.Sprintf("%d. %s -> %s", e.Position, e.Question, e.Answer)
}

// SnapshotVersion is the record format version written by this build.
const SnapshotVersion = 1

// Snapshot is the unit of persistence for a channel's FAQ.
type Snapshot struct {
	Version        int      `json:"version"`
	EmbeddingModel string   `json:"embeddingModel"`
	Records        []Record `json:"records"`
}

// Settings are the per-channel knobs changed by privileged commands.
type Settings struct {
	Mode      Mode    `json:"mode"`
	Threshold float64 `json:"threshold"`
}

// Match is the nearest stored record for a question.
type Match struct {
	Record     Record
	Position   int
	Similarity float64
}

// Reply is the result of asking a channel's bot a question.
type Reply struct {
	Text            string              `json:"text"`
	Outcome         Outcome             `json:"outcome"`
	Mode            Mode                `json:"mode"`
	MatchedPosition int                 `json:"matchedPosition,omitempty"`
	MatchedQuestion string              `json:"matchedQuestion,omitempty"`
	Similarity      float64             `json:"similarity,omitempty"`
	TokenUsage      *metrics.TokenUsage `json:"tokenUsage,omitempty"`
}

// NormalizeChannel lower-cases a channel name and strips the IRC '#' prefix.
func NormalizeChannel(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "#"))
}
