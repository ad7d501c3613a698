package freshness

import (
	"regexp"
	"sort"
	"strings"
)

var wordRe = regexp.MustCompile(`[A-Za-z0-9']+`)

// defaultStopwords mirrors config.Stopwords when none are supplied;
// callers normally pass the configured list through.
var defaultStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"from": {}, "what": {}, "where": {}, "when": {}, "which": {}, "are": {},
	"is": {}, "of": {}, "to": {}, "in": {}, "on": {}, "a": {},
}

// Highlight wraps whole-word, case-insensitive matches of the query's
// significant terms (stopwords removed) in snippet with **bold**
// markers. Idempotent: re-running Highlight on its own output does not
// add further markers, since already-bolded spans are skipped.
func Highlight(snippet, query string, stopwords []string) string {
	terms := significantTerms(query, stopwords)
	if len(terms) == 0 {
		return snippet
	}

	pattern := buildTermPattern(terms)
	if pattern == nil {
		return snippet
	}

	matches := pattern.FindAllStringIndex(snippet, -1)
	if matches == nil {
		return snippet
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if alreadyBolded(snippet, start, end) {
			continue
		}
		b.WriteString(snippet[last:start])
		b.WriteString("**")
		b.WriteString(snippet[start:end])
		b.WriteString("**")
		last = end
	}
	b.WriteString(snippet[last:])
	return b.String()
}

// alreadyBolded reports whether snippet[start:end] is already wrapped
// in ** markers, so re-running Highlight on its own output is a no-op.
func alreadyBolded(snippet string, start, end int) bool {
	if start < 2 || end+2 > len(snippet) {
		return false
	}
	return snippet[start-2:start] == "**" && snippet[end:end+2] == "**"
}

func significantTerms(query string, stopwords []string) []string {
	stop := defaultStopwords
	if len(stopwords) > 0 {
		stop = make(map[string]struct{}, len(stopwords))
		for _, w := range stopwords {
			stop[strings.ToLower(w)] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	var terms []string
	for _, w := range wordRe.FindAllString(query, -1) {
		lw := strings.ToLower(w)
		if len(lw) < 3 {
			continue
		}
		if _, isStop := stop[lw]; isStop {
			continue
		}
		if _, dup := seen[lw]; dup {
			continue
		}
		seen[lw] = struct{}{}
		terms = append(terms, regexp.QuoteMeta(w))
	}
	// Longest first so overlapping terms don't leave a shorter partial match.
	sort.Slice(terms, func(i, j int) bool { return len(terms[i]) > len(terms[j]) })
	return terms
}

func buildTermPattern(terms []string) *regexp.Regexp {
	if len(terms) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(terms, "|") + `)\b`)
}
