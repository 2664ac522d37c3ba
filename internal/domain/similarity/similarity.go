// Package similarity provides the pure scoring primitives used by expense
// matching: tolerant numeric equality, date proximity, and fuzzy vendor
// comparison.
//
// Every function is total and side-effect free. Malformed input (zero dates,
// empty strings) scores 0 rather than returning an error, because these
// functions run once per (event, expense, transaction) combination and the
// hot path must never branch on failures.
package similarity

import (
	"math"
	"strings"
	"time"
)

// epsilon guards the relative-difference denominator so AmountClose stays
// defined when both amounts are zero.
const epsilon = 1e-9

// decayMultiple is how many tolerance widths the linear decay spans before
// an amount difference scores 0.
const decayMultiple = 5.0

// AmountClose scores how close two amounts are, relative to the larger
// magnitude. Differences within toleranceFraction score 1.0, then decay
// linearly to 0 at five times the tolerance.
func AmountClose(a, b, toleranceFraction float64) float64 {
	if toleranceFraction <= 0 {
		if a == b {
			return 1.0
		}
		return 0.0
	}

	base := math.Max(math.Max(math.Abs(a), math.Abs(b)), epsilon)
	relDiff := math.Abs(a-b) / base

	if relDiff <= toleranceFraction {
		return 1.0
	}
	limit := decayMultiple * toleranceFraction
	if relDiff >= limit {
		return 0.0
	}
	return 1.0 - (relDiff-toleranceFraction)/(limit-toleranceFraction)
}

// DateClose scores date proximity: 1.0 on the same day, decaying linearly
// to 0 at toleranceDays. Zero-value dates score 0.
func DateClose(d1, d2 time.Time, toleranceDays int) float64 {
	if d1.IsZero() || d2.IsZero() {
		return 0.0
	}

	diffDays := math.Abs(d1.Sub(d2).Hours() / 24)
	if toleranceDays <= 0 {
		if diffDays == 0 {
			return 1.0
		}
		return 0.0
	}
	if diffDays >= float64(toleranceDays) {
		return 0.0
	}
	return 1.0 - diffDays/float64(toleranceDays)
}

// TextSimilar scores fuzzy similarity between two strings, normalized for
// case and whitespace. The score is the better of two views:
//
//   - token containment: how much of the shorter token set appears in the
//     longer one, which rewards truncated or reordered vendor names
//     ("Marriott Hotels" vs "Marriott International")
//   - edit-distance ratio over the normalized strings
func TextSimilar(s1, s2 string) float64 {
	t1 := tokenize(s1)
	t2 := tokenize(s2)
	if len(t1) == 0 || len(t2) == 0 {
		return 0.0
	}

	n1 := strings.Join(t1, " ")
	n2 := strings.Join(t2, " ")
	if n1 == n2 {
		return 1.0
	}

	return math.Max(tokenContainment(t1, t2), editRatio(n1, n2))
}

// CurrencyMatch scores 1.0 on exact currency code equality (case folded),
// otherwise 0. No conversion is ever attempted.
func CurrencyMatch(c1, c2 string) float64 {
	c1 = strings.ToUpper(strings.TrimSpace(c1))
	c2 = strings.ToUpper(strings.TrimSpace(c2))
	if c1 == "" || c2 == "" {
		return 0.0
	}
	if c1 == c2 {
		return 1.0
	}
	return 0.0
}

// tokenize lower-cases, strips punctuation, and splits on whitespace.
func tokenize(s string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// tokenContainment returns the fraction of the smaller token set covered by
// the other. A token counts as covered on exact equality or on a prefix
// relationship of at least four characters, which absorbs common vendor
// truncations ("Marriott" vs "Marriot").
func tokenContainment(t1, t2 []string) float64 {
	small, large := t1, t2
	if len(t2) < len(t1) {
		small, large = t2, t1
	}

	covered := 0
	for _, s := range small {
		for _, l := range large {
			if tokenMatches(s, l) {
				covered++
				break
			}
		}
	}
	return float64(covered) / float64(len(small))
}

func tokenMatches(a, b string) bool {
	if a == b {
		return true
	}
	shorter, longer := a, b
	if len(b) < len(a) {
		shorter, longer = b, a
	}
	if len(shorter) < 4 {
		return false
	}
	return strings.HasPrefix(longer, shorter)
}

// editRatio converts Levenshtein distance to a similarity in [0,1].
func editRatio(a, b string) float64 {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein computes edit distance with a two-row buffer.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
