// Package rules implements the keyword/pattern scorer used when no
// embedding is available for an item or a taxonomy.
package rules

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Scoring constants.
const (
	KeywordPoints = 1
	PatternPoints = 2

	// MinConfidence is reported for a zero-score (default) match.
	MinConfidence = 0.5
	// MaxConfidence caps rule confidence below strong embedding matches.
	MaxConfidence = 0.9
	// ConfidenceStep is added per scored point.
	ConfidenceStep = 0.1
)

// Rule is one category's fallback matching rules.
type Rule struct {
	ID       string
	Name     string
	keywords []string
	patterns []*regexp.Regexp
}

// NewRule lower-cases keywords and compiles patterns case-insensitively.
// Blank keywords are dropped. Patterns that fail to compile are skipped and
// reported in the returned error slice; the rule stays usable without them.
func NewRule(id, name string, keywords, patterns []string) (Rule, []error) {
	r := Rule{ID: id, Name: name}
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if strings.TrimSpace(kw) == "" {
			continue
		}
		r.keywords = append(r.keywords, kw)
	}

	var errs []error
	for _, p := range patterns {
		if p == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			errs = append(errs, fmt.Errorf("category %s: pattern %q: %w", name, p, err))
			continue
		}
		r.patterns = append(r.patterns, re)
	}
	return r, errs
}

// KeywordCount returns the number of usable keywords.
func (r Rule) KeywordCount() int { return len(r.keywords) }

// PatternCount returns the number of compiled patterns.
func (r Rule) PatternCount() int { return len(r.patterns) }

// Score returns the rule's points for text. lowered must already be lower-cased.
func (r Rule) Score(lowered string) int {
	score := 0
	for _, kw := range r.keywords {
		if strings.Contains(lowered, kw) {
			score += KeywordPoints
		}
	}
	for _, re := range r.patterns {
		if re.MatchString(lowered) {
			score += PatternPoints
		}
	}
	return score
}

// Match is the scorer's verdict for one text.
type Match struct {
	ID         string
	Name       string
	Score      int
	Confidence float64
	// Defaulted is true when nothing scored and the default category was used.
	Defaulted bool
}

// Scorer picks the best rule for a text. It is immutable and safe to share.
type Scorer struct {
	rules      []Rule
	defaultIdx int
}

// NewScorer builds a scorer over rules in their given order. defaultName
// selects the fallback category; if no rule carries that name the first
// rule is the fallback. rules must not be empty.
func NewScorer(rules []Rule, defaultName string) (*Scorer, error) {
	if len(rules) == 0 {
		return nil, ErrNoRules
	}
	s := &Scorer{rules: rules}
	for i, r := range rules {
		if r.Name == defaultName {
			s.defaultIdx = i
			break
		}
	}
	return s, nil
}

// Default returns the fallback rule.
func (s *Scorer) Default() Rule { return s.rules[s.defaultIdx] }

// Score evaluates every rule against text and returns the highest scorer.
// Ties go to the rule seen first.
func (s *Scorer) Score(text string) Match {
	lowered := strings.ToLower(text)

	best, bestScore := -1, 0
	for i, r := range s.rules {
		if sc := r.Score(lowered); sc > bestScore {
			best, bestScore = i, sc
		}
	}

	if best < 0 {
		d := s.Default()
		return Match{ID: d.ID, Name: d.Name, Confidence: Confidence(0), Defaulted: true}
	}
	r := s.rules[best]
	return Match{ID: r.ID, Name: r.Name, Score: bestScore, Confidence: Confidence(bestScore)}
}

// Confidence maps a rule score to [MinConfidence, MaxConfidence].
func Confidence(score int) float64 {
	if score < 0 {
		score = 0
	}
	c := MinConfidence + float64(score)*ConfidenceStep
	// keep 0.5+0.1*n free of float noise
	c = math.Round(c*1000) / 1000
	return math.Min(MaxConfidence, c)
}
