package indexers

import (
	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/doi"
)

// CriteriaDOIs returns the DOIs a criteria can be looked up by. An explicit
// DOI wins; otherwise DOIs hidden in the book query, alternate identifier,
// disambiguation string or requested items are used, deduplicated.
func CriteriaDOIs(c *domain.SearchCriteria) []string {
	if c == nil {
		return nil
	}
	if d := doi.Normalize(c.DOI); d != "" {
		return []string{d}
	}

	candidates := []string{c.QueryBook(), c.Identifier, c.Disambiguation}
	for _, b := range c.Books {
		candidates = append(candidates, b.DOI)
	}

	var out []string
	seen := make(map[string]struct{})
	for _, candidate := range candidates {
		d := doi.Normalize(candidate)
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
