package helpers

import (
	"fmt"
	"strings"

	"github.com/spaolacci/murmur3"
	"golang.org/x/text/cases"
)

func DedupeStrings(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range in {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}

// returns a fast, compact hash of a string
//
// current implementation uses murmur3, default seed, and hex encoding
func HashOfString(s string) string {
	val := murmur3.Sum64([]byte(s))
	return fmt.Sprintf("%016x", val)
}

// Unicode case folding, for case-insensitive comparison.
func FoldCase(s string) string {
	// cases.Caser is stateful, so a new one per call
	return cases.Fold().String(s)
}

// Counts non-overlapping case-insensitive occurrences of needle in haystack. An empty needle never matches.
func CountFolded(haystack, needle string) int {
	if needle == "" {
		return 0
	}
	return strings.Count(FoldCase(haystack), FoldCase(needle))
}

// Case-insensitive prefix check.
func HasPrefixFolded(s, prefix string) bool {
	return strings.HasPrefix(FoldCase(s), FoldCase(prefix))
}
