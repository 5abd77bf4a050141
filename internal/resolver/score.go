package resolver

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// PartialRatio scores how well query matches somewhere inside name,
// case-insensitively, on a 0-100 scale. It is the best edit-distance
// similarity between the shorter string and any equal-length window of
// the longer one, so a query that is a clean substring of a longer
// name scores 100.
func PartialRatio(query, name string) int {
	a := []rune(strings.ToLower(query))
	b := []rune(strings.ToLower(name))

	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	best := 0
	for i := 0; i+len(shorter) <= len(longer); i++ {
		window := longer[i : i+len(shorter)]
		d := levenshtein.ComputeDistance(string(shorter), string(window))
		score := 100 * (len(shorter) - d) / len(shorter)
		if score > best {
			best = score
		}
		if best == 100 {
			break
		}
	}
	return best
}
