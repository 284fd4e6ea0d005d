package unpaywall

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/indexers"
)

func TestNewFromSource(t *testing.T) {
	_, err := NewFromSource(domain.Source{Name: "Unpaywall"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	ad, err := NewFromSource(domain.Source{Name: "Unpaywall", Settings: map[string]string{"email": "ops@example.org"}})
	require.NoError(t, err)
	assert.Equal(t, "Unpaywall", ad.Name())
}

func TestAdapter_BuildSearchRequest(t *testing.T) {
	a := New(Config{Email: "ops@example.org"})

	t.Run("doi criteria", func(t *testing.T) {
		reqs, err := a.BuildSearchRequest(&domain.SearchCriteria{DOI: "doi:10.1038/NATURE12373"})
		require.NoError(t, err)
		require.Len(t, reqs, 1)
		assert.Equal(t, "https://api.unpaywall.org/v2/10.1038%2Fnature12373?email=ops%40example.org", reqs[0].URL)
		assert.Equal(t, indexers.KindDOI, reqs[0].Kind)
	})

	t.Run("author only", func(t *testing.T) {
		reqs, err := a.BuildSearchRequest(&domain.SearchCriteria{Author: &domain.Author{Name: "Someone"}})
		require.NoError(t, err)
		assert.Empty(t, reqs)
	})
}

func TestAdapter_Parse(t *testing.T) {
	a := New(Config{Email: "ops@example.org"})

	t.Run("open access record", func(t *testing.T) {
		body := `{"doi": "10.1038/nature12373", "title": "Nanometre-scale thermometry", "journal_name": "Nature",
			"published_date": "2013-07-31", "z_authors": [{"given": "G.", "family": "Kucsko"}],
			"best_oa_location": {"url": "https://example.org/landing", "url_for_pdf": "https://example.org/paper.pdf"}}`
		results, err := a.Parse(&indexers.Response{StatusCode: http.StatusOK, Body: []byte(body)})
		require.NoError(t, err)
		releases := indexers.Releases(results)
		require.Len(t, releases, 1)
		r := releases[0]
		assert.Equal(t, "Unpaywall-10.1038/nature12373", r.GUID)
		assert.Equal(t, "https://example.org/paper.pdf", r.DownloadURL)
		assert.Equal(t, "G. Kucsko", r.AuthorName)
		assert.Equal(t, "Nature", r.SourceJournal)
		assert.Equal(t, "https://doi.org/10.1038/nature12373", r.InfoURL)
	})

	t.Run("closed access is empty", func(t *testing.T) {
		results, err := a.Parse(&indexers.Response{StatusCode: http.StatusOK, Body: []byte(`{"doi": "10.1/x", "best_oa_location": null}`)})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("not found is empty", func(t *testing.T) {
		results, err := a.Parse(&indexers.Response{StatusCode: http.StatusNotFound})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("rate limited", func(t *testing.T) {
		_, err := a.Parse(&indexers.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{"Retry-After": []string{"5"}}})
		var rl *domain.RateLimitError
		require.ErrorAs(t, err, &rl)
	})
}
