package core

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/indexers"
)

const sampleResults = `{
  "totalHits": 3,
  "results": [
    {"id": 4211, "doi": "10.1000/XYZ.1", "title": "Open <b>Science</b>", "authors": [{"name": "Ada Lovelace"}],
     "downloadUrl": "https://core.ac.uk/download/4211.pdf", "publishedDate": "2021-05-01T00:00:00", "journals": [{"title": "J. Open"}]},
    {"id": 4212, "title": "No download", "authors": []},
    {"id": 4213, "title": "", "downloadUrl": "https://core.ac.uk/download/4213.pdf"}
  ]
}`

func TestAdapter_BuildSearchRequest(t *testing.T) {
	a := New(Config{APIKey: "secret"})

	reqs, err := a.BuildSearchRequest(&domain.SearchCriteria{
		Author: &domain.Author{Name: "Ada Lovelace"},
		Books:  []domain.Book{{Title: "Open Science"}},
	})
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, `https://api.core.ac.uk/v3/search/works?q=authors%3A%22Ada+Lovelace%22&limit=100`, reqs[0].URL)
	assert.Equal(t, `https://api.core.ac.uk/v3/search/works?q=title%3A%22Open+Science%22&limit=100`, reqs[1].URL)
	assert.Equal(t, "Bearer secret", reqs[0].Headers["Authorization"])

	t.Run("no key no header", func(t *testing.T) {
		reqs, err := New(Config{}).BuildSearchRequest(&domain.SearchCriteria{AuthorQuery: "x"})
		require.NoError(t, err)
		require.Len(t, reqs, 1)
		_, ok := reqs[0].Headers["Authorization"]
		assert.False(t, ok)
	})
}

func TestAdapter_BuildListingRequest(t *testing.T) {
	req, err := New(Config{}).BuildListingRequest()
	require.NoError(t, err)
	assert.Equal(t, "https://api.core.ac.uk/v3/search/works?q=the&limit=1", req.URL)
}

func TestAdapter_Parse(t *testing.T) {
	a := New(Config{})

	results, err := a.Parse(&indexers.Response{StatusCode: http.StatusOK, Body: []byte(sampleResults)})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 2, indexers.Skipped(results))

	releases := indexers.Releases(results)
	require.Len(t, releases, 1)
	r := releases[0]
	assert.Equal(t, "Core-4211", r.GUID)
	assert.Equal(t, "Ada Lovelace - Open Science", r.Title)
	assert.Equal(t, "10.1000/xyz.1", r.DOI)
	assert.Equal(t, "J. Open", r.SourceJournal)
	assert.Equal(t, "https://core.ac.uk/display/4211", r.InfoURL)
	assert.Equal(t, 2021, r.PublishDate.Year())

	t.Run("unauthorized", func(t *testing.T) {
		_, err := a.Parse(&indexers.Response{StatusCode: http.StatusUnauthorized})
		assert.True(t, errors.Is(err, domain.ErrSourceFailed))
	})
}
