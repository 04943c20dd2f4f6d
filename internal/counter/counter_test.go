package counter

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestRuneCounter(t *testing.T) {
	counter := NewRuneCounter()

	tests := []struct {
		name     string
		text     string
		expected int
	}{
		{"empty string", "", 0},
		{"single char", "a", 1},
		{"multiple chars", "hello", 5},
		{"unicode chars", "café", 4}, // é is one rune
		{"whitespace included", "a b", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := counter.Count(tt.text)
			if result != tt.expected {
				t.Errorf("RuneCounter.Count(%q) = %d, want %d", tt.text, result, tt.expected)
			}
		})
	}

	if counter.Name() != "runes" {
		t.Errorf("RuneCounter.Name() = %q, want %q", counter.Name(), "runes")
	}
}

func TestRuneCounterTruncate(t *testing.T) {
	counter := NewRuneCounter()

	tests := []struct {
		name     string
		text     string
		max      int
		expected string
	}{
		{"zero limit", "hello", 0, ""},
		{"within limit", "hello", 10, "hello"},
		{"exact limit", "hello", 5, "hello"},
		{"cut ascii", "hello world", 5, "hello"},
		{"cut multibyte", "café au lait", 4, "café"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := counter.Truncate(tt.text, tt.max); got != tt.expected {
				t.Errorf("RuneCounter.Truncate(%q, %d) = %q, want %q", tt.text, tt.max, got, tt.expected)
			}
		})
	}
}

// token tests need the cl100k_base encoding, which tiktoken may have to download
func newTokenCounterOrSkip(t *testing.T) *TokenCounter {
	t.Helper()
	counter, err := NewTokenCounter()
	if err != nil {
		t.Skipf("cl100k_base encoding unavailable: %v", err)
	}
	return counter
}

func TestTokenCounter(t *testing.T) {
	counter := newTokenCounterOrSkip(t)

	tests := []struct {
		name string
		text string
	}{
		{"empty string", ""},
		{"simple text", "hello world"},
		{"punctuation", "Hello, world!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := counter.Count(tt.text)
			// exact token counts can vary with encoding versions
			if tt.text == "" {
				if result != 0 {
					t.Errorf("TokenCounter.Count(%q) = %d, want 0 for empty string", tt.text, result)
				}
			} else if result <= 0 {
				t.Errorf("TokenCounter.Count(%q) = %d, want positive number for non-empty text", tt.text, result)
			}
		})
	}

	if counter.Name() != "tokens (cl100k_base)" {
		t.Errorf("TokenCounter.Name() = %q, want %q", counter.Name(), "tokens (cl100k_base)")
	}
}

func TestTokenCounterTruncate(t *testing.T) {
	counter := newTokenCounterOrSkip(t)

	text := strings.Repeat("Explain the phases of a compiler. ", 50)
	got := counter.Truncate(text, 20)
	if n := counter.Count(got); n > 20 {
		t.Errorf("Truncate() produced %d tokens, want at most 20", n)
	}
	if !strings.HasPrefix(text, got) {
		t.Errorf("Truncate() result is not a prefix of the input")
	}
	if got := counter.Truncate("short", 20); got != "short" {
		t.Errorf("Truncate() within limit = %q, want unchanged", got)
	}
	if got := counter.Truncate(text, 0); got != "" {
		t.Errorf("Truncate() with zero limit = %q, want empty", got)
	}
}

func TestTokenCounterTruncateMultibyte(t *testing.T) {
	counter := newTokenCounterOrSkip(t)

	// CJK and emoji runes are often split over several tokens
	text := "コンパイラの字句解析と構文解析を説明せよ。🧪📚 Definiere den Übersetzer."
	for limit := 1; limit <= counter.Count(text); limit++ {
		got := counter.Truncate(text, limit)
		if !utf8.ValidString(got) {
			t.Fatalf("Truncate(%d) = %q, not valid UTF-8", limit, got)
		}
		if !strings.HasPrefix(text, got) {
			t.Fatalf("Truncate(%d) = %q, not a prefix of the input", limit, got)
		}
	}
}

func TestNewCounter(t *testing.T) {
	c, err := NewCounter(Runes)
	if err != nil {
		t.Fatalf("NewCounter(Runes) unexpected error: %v", err)
	}
	if c.Name() != "runes" {
		t.Errorf("NewCounter(Runes).Name() = %q, want runes", c.Name())
	}

	// tokens always yields a usable counter, falling back to runes on error
	c, err = NewCounter(Tokens)
	if c == nil {
		t.Fatalf("NewCounter(Tokens) returned nil counter")
	}
	if err != nil && c.Name() != "runes" {
		t.Errorf("NewCounter(Tokens) fallback = %q, want runes", c.Name())
	}
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    CountingMethod
		wantErr bool
	}{
		{"", Tokens, false},
		{"tokens", Tokens, false},
		{"RUNES", Runes, false},
		{"words", Tokens, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMethod(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMethod(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMethod(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCountingMethodString(t *testing.T) {
	tests := []struct {
		method   CountingMethod
		expected string
	}{
		{Tokens, "tokens"},
		{Runes, "runes"},
		{CountingMethod(999), "unknown"}, // invalid method
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := tt.method.String()
			if result != tt.expected {
				t.Errorf("CountingMethod(%d).String() = %q, want %q", int(tt.method), result, tt.expected)
			}
		})
	}
}
