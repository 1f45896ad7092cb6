package match

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/desertthunder/portable/internal/shared"
	"github.com/xrash/smetrics"
)

// Scorer rates the similarity of two strings in [0, 1].
type Scorer interface {
	Score(a, b string) float64
}

// ScorerFunc adapts a function to [Scorer].
type ScorerFunc func(a, b string) float64

func (f ScorerFunc) Score(a, b string) float64 { return f(a, b) }

const (
	ScorerTokenSort   = "token_sort"
	ScorerRatio       = "ratio"
	ScorerJaroWinkler = "jaro_winkler"
)

var scorers = map[string]Scorer{
	ScorerTokenSort:   ScorerFunc(TokenSortRatio),
	ScorerRatio:       ScorerFunc(Ratio),
	ScorerJaroWinkler: ScorerFunc(JaroWinkler),
}

// ParseScorer returns the scorer registered under name. The empty name selects token_sort.
func ParseScorer(name string) (Scorer, error) {
	if name == "" {
		name = ScorerTokenSort
	}
	s, ok := scorers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: unknown scorer %q (want token_sort, ratio or jaro_winkler)", shared.ErrInvalidArgument, name)
	}
	return s, nil
}

// Ratio is the normalized indel similarity of the lowercased inputs.
func Ratio(a, b string) float64 {
	return indelRatio(strings.ToLower(a), strings.ToLower(b))
}

// TokenSortRatio compares the inputs after lowercasing, splitting on punctuation and sorting tokens,
// so word order does not matter.
func TokenSortRatio(a, b string) float64 {
	return indelRatio(sortedTokens(a), sortedTokens(b))
}

// JaroWinkler is the Jaro-Winkler similarity of the lowercased inputs.
func JaroWinkler(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 1
	}
	return smetrics.JaroWinkler(a, b, 0.7, 4)
}

func indelRatio(a, b string) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	// substitution cost 2 makes this the insert/delete distance
	dist := smetrics.WagnerFischer(a, b, 1, 1, 2)
	return float64(total-dist) / float64(total)
}

func sortedTokens(s string) string {
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
