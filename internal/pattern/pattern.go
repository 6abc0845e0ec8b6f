// Package pattern classifies and matches exact, wildcard, and regex
// name patterns, and converts them into entity-query predicates.
package pattern

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Kind identifies how a pattern string is interpreted.
type Kind string

const (
	KindExact    Kind = "exact"
	KindWildcard Kind = "wildcard"
	KindRegex    Kind = "regex"
)

// Match is one matched candidate with its relevance score.
type Match struct {
	Value string
	Score float64
	Kind  Kind
}

// ResolveOptions configures Resolve.
type ResolveOptions struct {
	// MaxResults caps the returned matches. Zero means the default of 100.
	MaxResults int
}

// DefaultMaxResults is the cap applied when ResolveOptions.MaxResults is zero.
const DefaultMaxResults = 100

// Classify determines the kind of a pattern from its shape: /…/ delimited
// strings are regex, strings containing *, ? or [ are wildcards, anything
// else matches exactly.
func Classify(p string) Kind {
	if len(p) >= 2 && strings.HasPrefix(p, "/") && strings.HasSuffix(p, "/") {
		return KindRegex
	}
	if strings.ContainsAny(p, "*?[") {
		return KindWildcard
	}
	return KindExact
}

// Resolve matches every pattern against every candidate and merges the
// results: duplicates collapse to their highest score, output is sorted
// descending by score and truncated to MaxResults.
func Resolve(patterns, candidates []string, opts ResolveOptions) []Match {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	best := make(map[string]Match)
	for _, p := range patterns {
		for _, c := range candidates {
			m, ok := matchOne(p, c)
			if !ok {
				continue
			}
			if prev, exists := best[c]; !exists || m.Score > prev.Score {
				best[c] = m
			}
		}
	}

	matches := make([]Match, 0, len(best))
	for _, m := range best {
		matches = append(matches, m)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Value < matches[j].Value
	})

	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches
}

func matchOne(p, candidate string) (Match, bool) {
	switch Classify(p) {
	case KindExact:
		if p == candidate {
			return Match{Value: candidate, Score: 1.0, Kind: KindExact}, true
		}
	case KindWildcard:
		re, err := regexp.Compile("(?i)^" + wildcardToRegex(p) + "$")
		if err != nil {
			return Match{}, false
		}
		if re.MatchString(candidate) {
			score := 1.0 - 0.1*float64(wildcardTokens(p))
			if score < 0.1 {
				score = 0.1
			}
			return Match{Value: candidate, Score: score, Kind: KindWildcard}, true
		}
	case KindRegex:
		re, err := regexp.Compile("(?i)" + strings.Trim(p, "/"))
		if err != nil {
			// Invalid regex syntax is swallowed: no match, no error.
			return Match{}, false
		}
		if re.MatchString(candidate) {
			return Match{Value: candidate, Score: 0.9, Kind: KindRegex}, true
		}
	}
	return Match{}, false
}

// wildcardToRegex escapes regex metacharacters and translates the glob
// tokens: * becomes .*, ? becomes ., character classes pass through.
func wildcardToRegex(p string) string {
	var b strings.Builder
	inClass := false
	for _, r := range p {
		switch {
		case inClass:
			b.WriteRune(r)
			if r == ']' {
				inClass = false
			}
		case r == '*':
			b.WriteString(".*")
		case r == '?':
			b.WriteString(".")
		case r == '[':
			b.WriteRune(r)
			inClass = true
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}

// wildcardTokens counts the glob tokens in a pattern. Fewer tokens means
// a more specific pattern and a higher score.
func wildcardTokens(p string) int {
	count := 0
	inClass := false
	for _, r := range p {
		switch {
		case inClass:
			if r == ']' {
				inClass = false
				count++
			}
		case r == '*' || r == '?':
			count++
		case r == '[':
			inClass = true
		}
	}
	return count
}

// ToSQLLike projects a wildcard pattern into SQL LIKE syntax: * becomes %,
// ? becomes _. Character classes have no LIKE equivalent and widen to %,
// a documented precision loss.
func ToSQLLike(p string) string {
	var b strings.Builder
	inClass := false
	for _, r := range p {
		switch {
		case inClass:
			if r == ']' {
				inClass = false
			}
		case r == '*':
			b.WriteByte('%')
		case r == '?':
			b.WriteByte('_')
		case r == '[':
			b.WriteByte('%')
			inClass = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Conditions builds an entity-query predicate matching any of the patterns
// against field. Regex patterns cannot be pushed into the query grammar and
// degrade to an unfiltered like "%"; callers are expected to apply
// FilterByRegex on the result set afterward.
func Conditions(patterns []string, field string) string {
	clauses := make([]string, 0, len(patterns))
	for _, p := range patterns {
		switch Classify(p) {
		case KindExact:
			clauses = append(clauses, fmt.Sprintf("%s is %q", field, p))
		case KindWildcard:
			clauses = append(clauses, fmt.Sprintf("%s like %q", field, ToSQLLike(p)))
		case KindRegex:
			clauses = append(clauses, fmt.Sprintf("%s like %q", field, "%"))
		}
	}
	return strings.Join(clauses, " or ")
}

// HasRegex reports whether any pattern in the list is regex-shaped.
func HasRegex(patterns []string) bool {
	for _, p := range patterns {
		if Classify(p) == KindRegex {
			return true
		}
	}
	return false
}

// FilterByRegex keeps items whose extracted value matches at least one of
// the regex-shaped patterns, case-insensitively. Non-regex patterns are
// ignored here; they were already filtered server-side.
func FilterByRegex[T any](items []T, patterns []string, extract func(T) string) []T {
	var regexes []*regexp.Regexp
	for _, p := range patterns {
		if Classify(p) != KindRegex {
			continue
		}
		re, err := regexp.Compile("(?i)" + strings.Trim(p, "/"))
		if err != nil {
			continue
		}
		regexes = append(regexes, re)
	}
	if len(regexes) == 0 {
		return items
	}

	kept := make([]T, 0, len(items))
	for _, item := range items {
		value := extract(item)
		for _, re := range regexes {
			if re.MatchString(value) {
				kept = append(kept, item)
				break
			}
		}
	}
	return kept
}

// FuzzyMatch scores the similarity of two strings in [0,1]: 1.0 for equal
// strings, at least 0.8 when one contains the other, otherwise normalized
// edit distance.
func FuzzyMatch(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	distance := float64(levenshtein.ComputeDistance(a, b))
	longest := float64(len(a))
	if len(b) > len(a) {
		longest = float64(len(b))
	}
	score := 1.0 - distance/longest

	if strings.Contains(a, b) || strings.Contains(b, a) {
		if score < 0.8 {
			return 0.8
		}
	}
	return score
}

// SuggestLimit caps the number of pattern suggestions returned.
const SuggestLimit = 10

// Suggest proposes wildcard patterns derived from the input tokens plus
// near-miss candidates, for use when a search came back empty.
func Suggest(input string, candidates []string) []string {
	var suggestions []string
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			suggestions = append(suggestions, s)
		}
	}

	tokens := strings.Fields(strings.ToLower(input))
	for _, tok := range tokens {
		for _, c := range candidates {
			if strings.Contains(strings.ToLower(c), tok) {
				add("*" + tok + "*")
				add(tok + "*")
				add("*" + tok)
			}
		}
	}

	for _, c := range candidates {
		if FuzzyMatch(input, c) > 0.7 {
			add(c)
		}
	}

	if len(suggestions) > SuggestLimit {
		suggestions = suggestions[:SuggestLimit]
	}
	return suggestions
}
