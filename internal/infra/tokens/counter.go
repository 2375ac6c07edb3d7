package tokens

import (
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
)

const fallbackEncoding = "cl100k_base"

var installLoader sync.Once

// useOfflineLoader makes tiktoken read BPE ranks from the embedded copies
// instead of downloading them on first use.
func useOfflineLoader() {
	installLoader.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
}

// Counter counts prompt tokens with the tiktoken encoding of a model. The
// encoding is loaded by Warm or on first use, without network access; if it
// cannot be loaded, counts fall back to an estimate.
type Counter struct {
	load   func() (*tiktoken.Tiktoken, error)
	logger *slog.Logger

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewCounter constructs a counter for model.
func NewCounter(model string, logger *slog.Logger) *Counter {
	if logger == nil {
		logger = slog.Default()
	}
	useOfflineLoader()
	return &Counter{
		load: func() (*tiktoken.Tiktoken, error) {
			enc, err := tiktoken.EncodingForModel(model)
			if err == nil {
				return enc, nil
			}
			return tiktoken.GetEncoding(fallbackEncoding)
		},
		logger: logger.With("component", "tokens.counter"),
	}
}

// Warm loads the encoding so the first question does not pay for it.
func (c *Counter) Warm() {
	c.once.Do(func() {
		enc, err := c.load()
		if err != nil {
			c.logger.Warn("tiktoken encoding unavailable, estimating token counts", "error", err)
			return
		}
		c.enc = enc
	})
}

// Count implements guard.TokenCounter.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.Warm()
	if c.enc == nil {
		return estimate(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// estimate is an upper-biased guess: about one token per two runes and
// never fewer than the word count.
func estimate(text string) int {
	runes := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))
	byRunes := (runes + 1) / 2
	if byRunes < words {
		return words
	}
	return byRunes
}

var _ guard.TokenCounter = (*Counter)(nil)
