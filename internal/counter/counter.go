// Package counter measures and truncates text in model input units.
//
// Embedding backends accept a bounded input length, so long questions are
// cut to a limit before they are embedded. The default method counts
// tiktoken cl100k_base tokens; runes are the fallback when the encoding
// cannot be loaded.
//
// Usage Example:
//
//	c, err := counter.NewCounter(counter.Tokens)
//	short := c.Truncate(question, 512)
package counter

import (
	"fmt"
	"log/slog"
	"strings"
)

// Counter measures text and cuts it to a limit in the same unit.
type Counter interface {
	// Count returns the number of units (tokens or runes) in the given text.
	Count(text string) int

	// Truncate returns the longest prefix of text that fits in limit units.
	Truncate(text string, limit int) string

	// Name returns a human-readable name for this counting method (for logging)
	Name() string
}

// CountingMethod represents the different available counting strategies.
type CountingMethod int

const (
	// Tokens uses tiktoken with cl100k_base encoding (default)
	Tokens CountingMethod = iota
	// Runes counts unicode code points
	Runes
)

// String returns the string representation of the counting method.
func (cm CountingMethod) String() string {
	switch cm {
	case Tokens:
		return "tokens"
	case Runes:
		return "runes"
	default:
		return "unknown"
	}
}

// ParseMethod maps a config value to a CountingMethod.
func ParseMethod(name string) (CountingMethod, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "tokens":
		return Tokens, nil
	case "runes":
		return Runes, nil
	default:
		return Tokens, fmt.Errorf("unknown counting method %q (want tokens or runes)", name)
	}
}

// NewCounter creates a Counter for method. If the token encoding cannot be
// initialized the rune counter is returned together with the error, so
// callers may warn and continue.
func NewCounter(method CountingMethod) (Counter, error) {
	switch method {
	case Runes:
		return NewRuneCounter(), nil
	default:
		tc, err := NewTokenCounter()
		if err != nil {
			slog.Debug("Falling back to rune counting", "error", err)
			return NewRuneCounter(), err
		}
		return tc, nil
	}
}
