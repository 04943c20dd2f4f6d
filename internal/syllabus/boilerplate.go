package syllabus

import (
	"regexp"
	"strings"

	"github.com/kljensen/snowball"
)

// boilerplateStems contains stemmed words that dominate the administrative
// lines of a syllabus: credit tables, assessment schemes, reading lists.
// Stems that also name course content ("object", "code", "session",
// "page") are left out.
var boilerplateStems = map[string]struct{}{
	// --- Course administration ---
	"cours":       {},
	"credit":      {},
	"hour":        {},
	"lectur":      {},
	"practic":     {},
	"tutori":      {},
	"week":        {},
	"semest":      {},
	"syllabus":    {},
	"prerequisit": {},

	// --- Assessment ---
	"assess": {},
	"exam":   {},
	"examin": {},
	"mark":   {},
	"evalu":  {},

	// --- Outcomes & objectives ---
	"objectiv": {},
	"outcom":   {},
	"student":  {},
	"abl":      {}, // from "will be able to"

	// --- Reading lists ---
	"author":   {},
	"book":     {},
	"edit":     {}, // from "edition"
	"isbn":     {},
	"publish":  {},
	"refer":    {},
	"textbook": {},
	"press":    {},
}

// boilerplateRatio is the share of boilerplate tokens above which a line is
// treated as administrative rather than a topic.
const boilerplateRatio = 0.5

var wordRegex = regexp.MustCompile(`\b[a-zA-Z]+\b`)

// IsBoilerplate reports whether line reads as syllabus administration
// (credits, marks, reading list) rather than course content.
func IsBoilerplate(line string) bool {
	tokens := wordRegex.FindAllString(strings.ToLower(line), -1)
	if len(tokens) == 0 {
		return true
	}

	count := 0
	for _, token := range tokens {
		stemmed, err := snowball.Stem(token, "english", true)
		if err != nil {
			stemmed = token
		}
		if _, ok := boilerplateStems[stemmed]; ok {
			count++
		}
	}

	return float64(count)/float64(len(tokens)) > boilerplateRatio
}
