package guard

import "github.com/yanqian/stream-guard-bot/pkg/util"

const (
	// DefaultSentinel is the phrase the model is told to answer when the FAQ does not cover a question.
	DefaultSentinel = "I do not know."
	// DefaultThreshold is the minimum cosine similarity for a FAQ match.
	DefaultThreshold = 0.5
	// DefaultMaxTokens caps completion length so replies fit in a chat message.
	DefaultMaxTokens = 75

	DefaultRetrievalPrompt = "Users are communicating with {channel}, not the AI. " +
		"To answer, refer to the << FAQ >>. " +
		"Keep your responses concise and respond in the 3rd person. " +
		"If the answer is not provided in the << FAQ >>, respond with '{sentinel}' and nothing else. " +
		"Do not make up your response or use external information.\n" +
		"<< FAQ >>\n{faq}\n"
	DefaultFreeformPrompt = "You are the chat assistant for {channel}'s Twitch stream. " +
		"Users are talking to the bot, not to {channel}. " +
		"Keep your responses short enough for a single chat message."
	DefaultDisabledMessage = "Question answering is disabled in this channel."
)

// Config holds runtime knobs for the channel bots.
type Config struct {
	DefaultMode      Mode
	DefaultThreshold float64
	MaxTokens        int
	Temperature      float32
	RetrievalPrompt  string
	FreeformPrompt   string
	Sentinel         string
	DisabledMessage  string
	Clock            util.Clock
}

func (c Config) withDefaults() Config {
	if _, ok := ParseMode(string(c.DefaultMode)); !ok {
		c.DefaultMode = ModeRetrieval
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.RetrievalPrompt == "" {
		c.RetrievalPrompt = DefaultRetrievalPrompt
	}
	if c.FreeformPrompt == "" {
		c.FreeformPrompt = DefaultFreeformPrompt
	}
	if c.Sentinel == "" {
		c.Sentinel = DefaultSentinel
	}
	if c.DisabledMessage == "" {
		c.DisabledMessage = DefaultDisabledMessage
	}
	return c
}

func (c Config) defaultSettings() Settings {
	return Settings{Mode: c.DefaultMode, Threshold: c.DefaultThreshold}
}
