package counter

import "unicode/utf8"

// RuneCounter counts unicode code points.
type RuneCounter struct{}

// NewRuneCounter creates a new RuneCounter.
func NewRuneCounter() *RuneCounter {
	return &RuneCounter{}
}

// Count returns the number of runes in text.
func (rc *RuneCounter) Count(text string) int {
	return utf8.RuneCountInString(text)
}

// Truncate keeps the first limit runes of text.
func (rc *RuneCounter) Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i]
		}
		n++
	}
	return text
}

// Name returns the name of this counting method.
func (rc *RuneCounter) Name() string {
	return "runes"
}
