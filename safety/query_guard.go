// Package safety screens user questions before they reach the router.
package safety

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	apperrors "github.com/scttfrdmn/decisionkit/decisionkit-go/adapter/errors"
)

const (
	// DefaultMaxQueryLength is the longest accepted question, in characters.
	DefaultMaxQueryLength = 5000

	// DefaultInjectionThreshold is the score at which a question is rejected.
	DefaultInjectionThreshold = 10
)

// Each matching pattern adds patternScore to a question's risk score.
const patternScore = 10

var injectionPatterns = []string{
	`ignore\s+((all|any|the|your)\s+)?(previous|all|above|prior|earlier)\s+instructions?`,
	`disregard\s+((all|any|the|your)\s+)?(previous|all|above|prior|earlier)`,
	`forget\s+(everything|all|previous)`,
	`new\s+instructions?:`,
	`system\s*(prompt|message)\s*:`,
	`(your|the)\s+system\s+prompt`,
	`you\s+are\s+now`,
	`pretend\s+(you|to)\s+(are|be)`,
	`developer\s+mode`,
	`jailbreak`,
	`</?\s*system\s*>`,
	`<\|.*?\|>`,
	`\[INST\]`,
	// Later lines that would be read as steps of the tool loop transcript.
	`\n\s*(thought|action|action input|observation|final answer)\s*:`,
}

var suspiciousKeywords = map[string]int{
	"ignore":       3,
	"disregard":    3,
	"override":     2,
	"bypass":       3,
	"jailbreak":    5,
	"system":       2,
	"injection":    4,
	"sudo":         3,
	"instructions": 2,
}

var (
	compiledPatterns = compilePatterns(injectionPatterns)
	wordPattern      = regexp.MustCompile(`\w+`)
)

func compilePatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile("(?i)" + p)
	}
	return out
}

// Assessment is the risk score of one question.
type Assessment struct {
	Score           int      `json:"score"`
	MatchedPatterns []string `json:"matched_patterns,omitempty"`
}

// QueryGuard rejects oversized questions and likely prompt injections.
//
//	guard := NewQueryGuard(DefaultMaxQueryLength, DefaultInjectionThreshold)
//	if err := guard.Validate(query); err != nil {
//	    // err is an *errors.InvalidQueryError
//	}
type QueryGuard struct {
	maxLength int
	threshold int
}

// NewQueryGuard creates a guard. maxLength <= 0 uses DefaultMaxQueryLength;
// threshold <= 0 disables injection screening.
func NewQueryGuard(maxLength, threshold int) *QueryGuard {
	if maxLength <= 0 {
		maxLength = DefaultMaxQueryLength
	}
	return &QueryGuard{maxLength: maxLength, threshold: threshold}
}

// Assess scores a question without rejecting it.
func (g *QueryGuard) Assess(query string) Assessment {
	var a Assessment
	for i, re := range compiledPatterns {
		if re.MatchString(query) {
			a.Score += patternScore
			a.MatchedPatterns = append(a.MatchedPatterns, injectionPatterns[i])
		}
	}
	for _, word := range wordPattern.FindAllString(strings.ToLower(query), -1) {
		a.Score += suspiciousKeywords[word]
	}
	return a
}

// Validate returns an InvalidQueryError when the question is too long or
// scores at or above the injection threshold.
func (g *QueryGuard) Validate(query string) error {
	if n := utf8.RuneCountInString(query); n > g.maxLength {
		return apperrors.NewInvalidQueryError(fmt.Sprintf("Query exceeds maximum length (%d characters)", g.maxLength))
	}
	if g.threshold <= 0 {
		return nil
	}
	if a := g.Assess(query); a.Score >= g.threshold {
		return apperrors.NewInvalidQueryError("Query was rejected by the input safety check")
	}
	return nil
}
