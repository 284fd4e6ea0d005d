package search

import (
	"cmp"
	"slices"

	"github.com/helixir/paper-acquisition-service/internal/domain"
)

// Eligible returns the sources that may serve criteria: enabled, allowing
// the criteria's search mode and sharing a tag with the target author
// (or carrying no tags at all). The returned slice is a copy, so later
// priority updates do not affect a running dispatch.
func Eligible(sources []domain.Source, criteria *domain.SearchCriteria) []domain.Source {
	tags := criteria.AuthorTags()
	out := make([]domain.Source, 0, len(sources))
	for _, src := range sources {
		if !src.AllowsSearch(criteria.InteractiveSearch) {
			continue
		}
		if !src.MatchesTags(tags) {
			continue
		}
		out = append(out, src)
	}
	return out
}

// Deduplicate keeps one decision per release guid. Among duplicates the one
// with fewer rejections wins, then the one from the lower-numbered priority
// source, then the lower source id, so the survivor does not depend on the
// order sources answered in. First-seen order of guids is preserved.
func Deduplicate(decisions []domain.Decision) []domain.Decision {
	index := make(map[string]int, len(decisions))
	out := make([]domain.Decision, 0, len(decisions))

	for _, d := range decisions {
		guid := d.Candidate.Release.GUID
		i, seen := index[guid]
		if !seen {
			index[guid] = len(out)
			out = append(out, d)
			continue
		}
		if preferred(d, out[i]) {
			out[i] = d
		}
	}
	return out
}

// preferred reports whether a should replace b as the surviving duplicate.
func preferred(a, b domain.Decision) bool {
	if na, nb := len(a.Rejections), len(b.Rejections); na != nb {
		return na < nb
	}
	ra, rb := a.Candidate.Release, b.Candidate.Release
	if ra.SourcePriority != rb.SourcePriority {
		return ra.SourcePriority < rb.SourcePriority
	}
	return ra.SourceID < rb.SourceID
}

// Rank orders decisions best first: approved before rejected, then by
// weight, newer publish date, larger size and finally guid.
func Rank(decisions []domain.Decision) {
	slices.SortStableFunc(decisions, func(a, b domain.Decision) int {
		if aa, ba := a.Approved(), b.Approved(); aa != ba {
			if aa {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(a.Weight, b.Weight); c != 0 {
			return c
		}
		ra, rb := a.Candidate.Release, b.Candidate.Release
		if c := rb.PublishDate.Compare(ra.PublishDate); c != 0 {
			return c
		}
		if c := cmp.Compare(rb.Size, ra.Size); c != 0 {
			return c
		}
		return cmp.Compare(ra.GUID, rb.GUID)
	})
}
