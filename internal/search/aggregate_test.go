package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-acquisition-service/internal/domain"
)

func decisionFor(guid string, sourceID int64, priority int, rejections ...string) domain.Decision {
	r := release(guid)
	r.SourceID = sourceID
	r.SourcePriority = priority

	var rs []domain.Rejection
	for _, reason := range rejections {
		rs = append(rs, domain.Rejection{Rule: "test", Reason: reason})
	}
	return domain.NewDecision(domain.Candidate{Release: r}, rs)
}

func TestDeduplicate(t *testing.T) {
	t.Run("fewer rejections wins regardless of order", func(t *testing.T) {
		clean := decisionFor("g", 2, 20)
		rejected := decisionFor("g", 1, 1, "Wrong author")

		for _, input := range [][]domain.Decision{{clean, rejected}, {rejected, clean}} {
			out := Deduplicate(input)
			require.Len(t, out, 1)
			assert.Equal(t, int64(2), out[0].Candidate.Release.SourceID)
			assert.Empty(t, out[0].Rejections)
		}
	})

	t.Run("equal rejections prefers lower priority number", func(t *testing.T) {
		low := decisionFor("g", 7, 3, "Not an upgrade")
		high := decisionFor("g", 8, 12, "Not an upgrade")

		for _, input := range [][]domain.Decision{{low, high}, {high, low}} {
			out := Deduplicate(input)
			require.Len(t, out, 1)
			assert.Equal(t, int64(7), out[0].Candidate.Release.SourceID)
		}
	})

	t.Run("equal priority falls back to source id", func(t *testing.T) {
		a := decisionFor("g", 4, 5)
		b := decisionFor("g", 3, 5)

		assert.Equal(t, int64(3), Deduplicate([]domain.Decision{a, b})[0].Candidate.Release.SourceID)
		assert.Equal(t, int64(3), Deduplicate([]domain.Decision{b, a})[0].Candidate.Release.SourceID)
	})

	t.Run("distinct guids are kept in first-seen order", func(t *testing.T) {
		out := Deduplicate([]domain.Decision{decisionFor("b", 1, 1), decisionFor("a", 1, 1), decisionFor("b", 2, 2)})
		require.Len(t, out, 2)
		assert.Equal(t, "b", out[0].Candidate.Release.GUID)
		assert.Equal(t, "a", out[1].Candidate.Release.GUID)
	})
}

func TestRank(t *testing.T) {
	older := decisionFor("older", 1, 1)
	older.Candidate.Release.PublishDate = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := decisionFor("newer", 1, 1)
	newer.Candidate.Release.PublishDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lowPriority := decisionFor("low", 2, 9)
	rejected := decisionFor("rejected", 3, 1, "Wrong journal")

	decisions := []domain.Decision{rejected, lowPriority, older, newer}
	Rank(decisions)

	got := make([]string, 0, len(decisions))
	for _, d := range decisions {
		got = append(got, d.Candidate.Release.GUID)
	}
	assert.Equal(t, []string{"newer", "older", "low", "rejected"}, got)
}

func TestEligible(t *testing.T) {
	interactiveOnly := source(1, "i", 1)
	interactiveOnly.EnableAutomaticSearch = false
	noSearch := source(2, "n", 1)
	noSearch.SupportsSearch = false
	tagged := source(3, "t", 1)
	tagged.Tags = []string{"oa"}

	sources := []domain.Source{interactiveOnly, noSearch, tagged}

	auto := Eligible(sources, &domain.SearchCriteria{Author: &domain.Author{Tags: []string{"oa"}}})
	require.Len(t, auto, 1)
	assert.Equal(t, int64(3), auto[0].ID)

	interactive := Eligible(sources, &domain.SearchCriteria{InteractiveSearch: true})
	require.Len(t, interactive, 1)
	assert.Equal(t, int64(1), interactive[0].ID)
}
