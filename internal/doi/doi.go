// Package doi normalizes and extracts Digital Object Identifiers.
//
// All functions return the empty string when no valid DOI is found; the
// empty string is the "no DOI" value throughout the service.
package doi

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/helixir/paper-acquisition-service/internal/domain"
)

var (
	validPattern    = regexp.MustCompile(`^10\.\d{4,}/.+$`)
	textPattern     = regexp.MustCompile(`(?i)(?:doi[:\s]*)?(?:https?://(?:www\.)?(?:dx\.)?doi\.org/)?(10\.\d{4,}/[^\s"'<>\[\]]+)`)
	filenamePattern = regexp.MustCompile(`10\.\d{4,}[_\-/][^\s"'<>\[\]]+`)
	fileExtPattern  = regexp.MustCompile(`(?i)\.(pdf|epub|djvu|txt|html?)$`)
)

// Prefixes stripped from the front of a DOI until none matches, so that
// combinations such as "doi:https://doi.org/" are removed too. Matching is
// done on the lower-cased value.
var prefixes = []string{
	"https://",
	"http://",
	"www.",
	"dx.doi.org/",
	"doi.org/",
	"doi:",
}

// Normalize returns the canonical lower-case form of a DOI, or "" when the
// input does not hold a valid DOI. Normalize is idempotent.
func Normalize(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return ""
	}

	value = stripPrefixes(value)

	// Some sources concatenate a landing-page URL directly onto the DOI.
	if idx := strings.Index(value, "http"); idx > 0 {
		value = value[:idx]
	}

	value = strings.TrimRightFunc(value, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(".,;:)]", r)
	})

	if !validPattern.MatchString(value) {
		return ""
	}
	return value
}

func stripPrefixes(value string) string {
	for {
		trimmed := false
		for _, p := range prefixes {
			if strings.HasPrefix(value, p) {
				value = strings.TrimSpace(strings.TrimPrefix(value, p))
				trimmed = true
			}
		}
		if !trimmed {
			return value
		}
	}
}

// ExtractFromText returns the first valid DOI found in free text.
func ExtractFromText(text string) string {
	for _, m := range textPattern.FindAllStringSubmatch(text, -1) {
		if d := Normalize(m[1]); d != "" {
			return d
		}
	}
	return ""
}

// ExtractAllFromText returns every distinct valid DOI in text, in order of
// first appearance.
func ExtractAllFromText(text string) []string {
	matches := textPattern.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		d := Normalize(m[1])
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

// ExtractFromFilename recovers a DOI from a file name where the registrant
// separator was replaced by "_" or "-" (e.g. "10.1038_nature12373.pdf").
func ExtractFromFilename(name string) string {
	name = fileExtPattern.ReplaceAllString(strings.TrimSpace(name), "")
	m := filenamePattern.FindString(name)
	if m == "" {
		return ""
	}
	slash := strings.IndexAny(m, "_-/")
	return Normalize(m[:slash] + "/" + m[slash+1:])
}

// Equal reports whether two raw DOIs normalize to the same non-empty value.
func Equal(a, b string) bool {
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}

// IsMatch reports whether the release's DOI matches the criteria's DOI.
func IsMatch(r *domain.Release, c *domain.SearchCriteria) bool {
	if r == nil || c == nil {
		return false
	}
	return Equal(r.DOI, c.DOI)
}
