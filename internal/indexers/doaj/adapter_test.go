package doaj

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/indexers"
)

const sampleResults = `{
  "total": 4,
  "results": [
    {"id": "abc123", "created_date": "2020-02-03T10:00:00Z", "bibjson": {
      "title": "Coral reefs",
      "author": [{"name": "Marie Curie"}],
      "identifier": [{"type": "eissn", "id": "1234-5678"}, {"type": "DOI", "id": "10.5555/REEF.9"}],
      "link": [{"type": "homepage", "url": "https://example.org"}, {"type": "fulltext", "url": "//example.org/reef.pdf"}],
      "journal": {"title": "Marine Letters"}
    }},
    {"id": "rel1", "bibjson": {"link": [{"type": "homepage", "url": "/files/x.pdf"}]}},
    {"id": "nolink", "bibjson": {"title": "No link"}},
    {"id": "nobib"}
  ]
}`

func TestAdapter_BuildSearchRequest(t *testing.T) {
	reqs, err := New(Config{}).BuildSearchRequest(&domain.SearchCriteria{
		Author: &domain.Author{Name: "Marie Curie"},
		Books:  []domain.Book{{Title: "Coral reefs"}},
	})
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, `https://doaj.org/api/v2/search/articles/bibjson.author.name:%22Marie%20Curie%22?page=1&pageSize=100`, reqs[0].URL)
	assert.Equal(t, `https://doaj.org/api/v2/search/articles/bibjson.title:%22Coral%20reefs%22?page=1&pageSize=100`, reqs[1].URL)
	assert.Equal(t, indexers.KindBook, reqs[1].Kind)
}

func TestAdapter_Parse(t *testing.T) {
	results, err := New(Config{}).Parse(&indexers.Response{StatusCode: http.StatusOK, Body: []byte(sampleResults)})
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, 2, indexers.Skipped(results))

	releases := indexers.Releases(results)
	require.Len(t, releases, 2)

	r := releases[0]
	assert.Equal(t, "DOAJ-abc123", r.GUID)
	assert.Equal(t, "https://example.org/reef.pdf", r.DownloadURL)
	assert.Equal(t, "10.5555/reef.9", r.DOI)
	assert.Equal(t, "Marine Letters", r.SourceJournal)
	assert.Equal(t, "https://doaj.org/article/abc123", r.InfoURL)
	assert.Equal(t, "Marie Curie - Coral reefs", r.Title)

	fallback := releases[1]
	assert.Equal(t, "https://doaj.org/files/x.pdf", fallback.DownloadURL)
	assert.Equal(t, "Unknown DOAJ Article", fallback.BookTitle)
	assert.Equal(t, domain.UnknownAuthor, fallback.AuthorName)
	assert.Empty(t, fallback.DOI)
}
