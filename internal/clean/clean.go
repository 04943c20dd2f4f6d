// Package clean strips layout noise from text extracted out of exam papers.
//
// Scanned and typed papers carry a lot of text that is not part of any
// question: URLs in footers, page markers, paper codes, and header blocks
// with roll numbers or marks. Clean removes those with an ordered table of
// rules so that the question segmenter sees mostly question text.
//
// Usage Example:
//
//	text := clean.Clean(raw)
package clean

import (
	"regexp"
	"sync"
)

// Action says what a rule does with the text its pattern matches.
type Action int

const (
	// StripMatch removes only the matched substring
	StripMatch Action = iota
	// DropLine removes every line containing a match (the newline is kept)
	DropLine
	// DropBareLine removes lines whose only content is a match
	DropBareLine
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case StripMatch:
		return "strip-match"
	case DropLine:
		return "drop-line"
	case DropBareLine:
		return "drop-bare-line"
	default:
		return "unknown"
	}
}

// Rule is one entry of the cleaning table.
type Rule struct {
	Name    string
	Pattern string // RE2 syntax, without anchors
	Action  Action
	Fold    bool // case-insensitive
}

// Rules are applied top to bottom. Order matters: header keyword lines are
// only recognisable as pure codes once URLs and page markers are gone.
var Rules = []Rule{
	{
		Name:    "url",
		Pattern: `https?://(?:[a-zA-Z0-9]|[$-_@.&+]|[!*(),]|%[0-9a-fA-F]{2})+`,
		Action:  StripMatch,
	},
	{
		Name:    "pagination",
		Pattern: `Page\s+\d+\s+of\s+\d+|\d+\s*\|\s*Page`,
		Action:  StripMatch,
		Fold:    true,
	},
	{
		Name:    "bracket-code",
		Pattern: `\[\w{4,}\]`,
		Action:  StripMatch,
	},
	{
		Name: "header-footer",
		Pattern: `Roll\s*No|Total\s*No\.?\s*of\s*Pages|Maximum\s*Marks|Time\s*Allowed|Paper\s*ID|` +
			`Candidate\s*Name|Semester|B\.\s?Tech|M\.\s?Tech|\bB\.E\.|\bB\.\s?Sc\b|\bM\.\s?Sc\b|\bBCA\b|\bMCA\b|` +
			`Part\s*-[A-Z]|Section\s*-[A-Z]`,
		Action: DropLine,
		Fold:   true,
	},
	{
		Name:    "bare-code",
		Pattern: `\w{4,6}`,
		Action:  DropBareLine,
	},
}

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

var (
	compiled     []compiledRule
	compiledOnce sync.Once
)

// compileRules builds the regexes for Rules once
func compileRules() []compiledRule {
	compiledOnce.Do(func() {
		compiled = make([]compiledRule, 0, len(Rules))
		for _, r := range Rules {
			compiled = append(compiled, compiledRule{Rule: r, re: regexp.MustCompile(expression(r))})
		}
	})
	return compiled
}

// expression turns a rule into the full regex its action needs
func expression(r Rule) string {
	flags := ""
	if r.Fold {
		flags = "i"
	}

	var expr string
	switch r.Action {
	case DropLine:
		flags += "m"
		expr = `^.*(?:` + r.Pattern + `).*$`
	case DropBareLine:
		flags += "m"
		expr = `^[ \t\r]*(?:` + r.Pattern + `)[ \t\r]*$`
	default:
		expr = r.Pattern
	}

	if flags == "" {
		return expr
	}
	return "(?" + flags + ")" + expr
}

// Clean removes noise from text by applying Rules in order.
// It never fails; text with nothing to remove comes back unchanged.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	for _, r := range compileRules() {
		text = r.re.ReplaceAllString(text, "")
	}
	return text
}
