package counter

import (
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const encodingName = "cl100k_base"

// TokenCounter measures text in tiktoken cl100k_base tokens. Encoding and
// decoding do not mutate the encoder, so a TokenCounter may be shared
// between goroutines.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter loads the cl100k_base encoding. tiktoken may download the
// ranks file on first use.
func NewTokenCounter() (*TokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", encodingName, err)
	}
	slog.Debug("Loaded token encoding", "encoding", encodingName)
	return &TokenCounter{enc: enc}, nil
}

func (tc *TokenCounter) tokens(text string) []int {
	// no special tokens allowed or disallowed
	return tc.enc.Encode(text, nil, nil)
}

// Count returns the number of tokens in text.
func (tc *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(tc.tokens(text))
}

// Truncate keeps the first limit tokens of text. A rune split across the
// cut is dropped so the result stays a valid UTF-8 prefix of text.
func (tc *TokenCounter) Truncate(text string, limit int) string {
	if text == "" || limit <= 0 {
		return ""
	}
	ids := tc.tokens(text)
	if len(ids) <= limit {
		return text
	}
	slog.Debug("Truncating embedding input", "tokens", len(ids), "limit", limit)
	out := tc.enc.Decode(ids[:limit])
	for len(out) > 0 && !utf8.ValidString(out) {
		out = out[:len(out)-1]
	}
	return out
}

func (tc *TokenCounter) Name() string {
	return "tokens (" + encodingName + ")"
}
