// Package tokens estimates the size of text in model-vocabulary units.
package tokens

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used when a model name has no known encoding.
const DefaultEncoding = "cl100k_base"

// Estimator counts model-vocabulary units in a text.
// Implementations must be deterministic and never return a negative count.
type Estimator interface {
	Estimate(text string) int
}

// EstimatorFunc adapts a plain function to the Estimator interface.
type EstimatorFunc func(text string) int

// Estimate calls the function.
func (f EstimatorFunc) Estimate(text string) int { return f(text) }

// Heuristic approximates BPE tokenization: ASCII text averages about four
// bytes per token, while non-ASCII runes (CJK and similar) count one each.
type Heuristic struct{}

// Estimate returns the approximate token count of text.
func (Heuristic) Estimate(text string) int {
	if text == "" {
		return 0
	}
	ascii, other := 0, 0
	for i := 0; i < len(text); {
		if text[i] < utf8.RuneSelf {
			ascii++
			i++
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		other++
		i += size
	}
	return (ascii+3)/4 + other
}

// Tiktoken counts tokens with a BPE encoding.
type Tiktoken struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the encoding for model, falling back to DefaultEncoding.
func NewTiktoken(model string) (*Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(DefaultEncoding)
		if err != nil {
			return nil, err
		}
	}
	return &Tiktoken{enc: enc}, nil
}

// Estimate returns the exact number of BPE tokens in text.
func (t *Tiktoken) Estimate(text string) int {
	if text == "" {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}

// New returns a tiktoken estimator for model, or the heuristic when no
// encoding can be loaded (for example when the BPE ranks cannot be fetched).
func New(model string, logger *slog.Logger) Estimator {
	tk, err := NewTiktoken(model)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("token estimation falls back to heuristic", "model", model, "error", err)
		return Heuristic{}
	}
	return tk
}
