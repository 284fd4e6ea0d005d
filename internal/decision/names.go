package decision

import (
	"strings"
	"unicode"
)

// titleSimilarity is the share of a catalog title's words that must appear
// in a release title for the two to be considered the same work.
const titleSimilarity = 0.6

// CleanName folds a name or title to lower-case words separated by single
// spaces, dropping punctuation.
func CleanName(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

// SameName reports whether two names clean to the same non-empty value.
func SameName(a, b string) bool {
	ca := CleanName(a)
	return ca != "" && ca == CleanName(b)
}

// SimilarTitle reports whether a release title names the catalog title.
func SimilarTitle(release, catalog string) bool {
	r := CleanName(release)
	c := CleanName(catalog)
	if r == "" || c == "" {
		return false
	}
	if r == c {
		return true
	}

	words := strings.Fields(c)
	present := make(map[string]struct{})
	for _, w := range strings.Fields(r) {
		present[w] = struct{}{}
	}
	hits := 0
	for _, w := range words {
		if _, ok := present[w]; ok {
			hits++
		}
	}
	return float64(hits)/float64(len(words)) >= titleSimilarity
}
