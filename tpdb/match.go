package tpdb

import (
	"regexp"
	"strings"

	"github.com/use-agent/posterbridge/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MatchThreshold is the lowest score at which the best result is trusted.
// Below it the first result on the page is used instead.
const MatchThreshold = 0.8

var (
	symbolWords = strings.NewReplacer(
		"&", " and ",
		"+", " plus ",
		"@", " at ",
		"#", " number ",
		"%", " percent ",
	)
	nonWordRe    = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize lowercases s, spells out &, +, @, # and %, strips all other
// punctuation and collapses whitespace.
func Normalize(s string) string {
	s = strings.TrimSpace(cases.Lower(language.Und).String(s))
	s = symbolWords.Replace(s)
	s = nonWordRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Score rates how well result matches expected, from 0 to 1.
//
// Equal normalised titles score 1.0 and containment scores 0.9. A title
// that normalises to "" is contained in every other title.
// Otherwise the score is the number of shared words divided by the size
// of the larger word set.
func Score(expected, result string) float64 {
	if expected == "" || result == "" {
		return 0
	}
	a, b := Normalize(expected), Normalize(result)
	if a == b {
		return 1.0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.9
	}

	wa, wb := wordSet(a), wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	shared := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(max(len(wa), len(wb)))
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Selection is the result chosen for a query.
type Selection struct {
	Result models.SearchResult
	Index  int
	Score  float64
	// Matched is false when no result reached MatchThreshold and the
	// first result was taken instead.
	Matched bool
}

// SelectResult picks the result to open for query. The highest score wins,
// with ties going to the earlier result. If that score is below
// MatchThreshold the first result is chosen. ok is false only when there
// are no results.
func SelectResult(query string, results []models.SearchResult) (Selection, bool) {
	if len(results) == 0 {
		return Selection{}, false
	}

	bestIdx, bestScore := -1, -1.0
	for i, r := range results {
		if s := Score(query, r.Title); s > bestScore {
			bestIdx, bestScore = i, s
		}
	}

	if bestScore >= MatchThreshold {
		return Selection{Result: results[bestIdx], Index: bestIdx, Score: bestScore, Matched: true}, true
	}
	return Selection{Result: results[0], Index: 0, Score: Score(query, results[0].Title)}, true
}
