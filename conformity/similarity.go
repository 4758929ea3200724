package conformity

import (
	"math"
	"regexp"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
var spaceRe = regexp.MustCompile(`\s+`)

// Normalize prepares free text for comparison: lowercase, punctuation
// stripped, whitespace collapsed to single spaces.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = nonWordRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Similarity computes a normalized similarity ratio in [0,1] between two free
// texts. Both empty compares as a full match; one empty as no match.
//
// The ratio is the lower of two views of the normalized strings: character
// Jaro-Winkler, which tolerates abbreviation-style divergence ("ACME Corp" vs
// "ACME CORPORATION"), and word overlap, which keeps Portuguese free text
// that merely shares connectives and inflection suffixes from scoring as
// related. A match must hold up under both.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" && nb == "" {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0.0
	}
	if na == nb {
		return 1.0
	}
	char := strutil.Similarity(na, nb, metrics.NewJaroWinkler())
	return math.Min(char, tokenOverlap(na, nb))
}

// tokenMatchThreshold is the per-token Jaro-Winkler score at which two tokens
// count as the same word: "corp" vs "corporation" passes, "educação" vs
// "saúde" does not.
const tokenMatchThreshold = 0.85

// tokenOverlap is the fraction of the longer token sequence that has a
// counterpart in the shorter one, pairing tokens greedily by best
// Jaro-Winkler score.
func tokenOverlap(na, nb string) float64 {
	ta, tb := strings.Fields(na), strings.Fields(nb)
	if len(ta) > len(tb) {
		ta, tb = tb, ta
	}
	jw := metrics.NewJaroWinkler()
	used := make([]bool, len(tb))
	matched := 0
	for _, tok := range ta {
		best, bestIdx := 0.0, -1
		for i, other := range tb {
			if used[i] {
				continue
			}
			if s := strutil.Similarity(tok, other, jw); s > best {
				best, bestIdx = s, i
			}
		}
		if bestIdx >= 0 && best >= tokenMatchThreshold {
			used[bestIdx] = true
			matched++
		}
	}
	return float64(matched) / float64(len(tb))
}
