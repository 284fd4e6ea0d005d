package biorxiv

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/indexers"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }

const sampleDetails = `{
  "messages": [{"status": "ok", "cursor": 0, "count": 4, "total": 4}],
  "collection": [
    {"doi": "10.1101/2024.01.01.123456", "title": "Cell <i>atlas</i> of the fly", "authors": "Smith, J.; Doe, A.",
     "date": "2024-01-01", "version": "1", "type": "new results", "published_in": ""},
    {"doi": "10.1101/2024.01.01.123456", "title": "Cell atlas of the fly", "authors": "Smith, J.; Doe, A.",
     "date": "2024-02-01", "version": "2", "type": "new results", "published_in": "Nature"},
    {"doi": "10.1101/2024.01.02.999999", "title": "Retracted", "authors": "X, Y.",
     "date": "2024-01-02", "version": "1", "type": "withdrawn"},
    {"doi": "not-a-doi", "title": "Broken", "authors": "", "date": "2024-01-03", "version": "1"},
    {"doi": "10.1101/2024.01.04.111111", "title": "", "authors": "", "date": "2024-01-04", "version": ""}
  ]
}`

func TestNew(t *testing.T) {
	a := New(Config{})
	assert.Equal(t, "Biorxiv", a.Name())
	assert.Equal(t, DefaultBaseURL, a.config.BaseURL)

	ad, err := NewMedrxivFromSource(domain.Source{Name: "medRxiv"})
	require.NoError(t, err)
	m := ad.(*Adapter)
	assert.Equal(t, "medRxiv", m.Name())
	assert.Equal(t, "https://www.medrxiv.org", m.config.Server.ContentBaseURL)
}

func TestAdapter_BuildListingRequest(t *testing.T) {
	req, err := New(Config{Now: fixedNow}).BuildListingRequest()
	require.NoError(t, err)
	assert.Equal(t, "https://api.biorxiv.org/details/biorxiv/2024-03-08/2024-03-15/0", req.URL)
	assert.Equal(t, indexers.KindListing, req.Kind)
}

func TestAdapter_BuildSearchRequest(t *testing.T) {
	a := New(Config{Now: fixedNow, Server: Medrxiv})

	t.Run("doi lookup plus text query", func(t *testing.T) {
		reqs, err := a.BuildSearchRequest(&domain.SearchCriteria{
			Author: &domain.Author{Name: "Jane Doe"},
			Books:  []domain.Book{{Title: "Cell atlas", DOI: "https://doi.org/10.1101/2024.01.01.123456"}},
		})
		require.NoError(t, err)
		require.Len(t, reqs, 3)
		assert.Equal(t, "https://api.biorxiv.org/details/medrxiv/10.1101/2024.01.01.123456", reqs[0].URL)
		assert.Equal(t, indexers.KindDOI, reqs[0].Kind)
		assert.Equal(t, "https://api.biorxiv.org/details/medrxiv/2021-03-15/2024-03-15/0?q=Cell+atlas+Jane+Doe", reqs[1].URL)
		assert.Equal(t, "https://api.biorxiv.org/details/medrxiv/2021-03-15/2024-03-15/100?q=Cell+atlas+Jane+Doe", reqs[2].URL)
		assert.Equal(t, indexers.KindBook, reqs[1].Kind)
	})

	t.Run("nil criteria", func(t *testing.T) {
		reqs, err := a.BuildSearchRequest(nil)
		require.NoError(t, err)
		assert.Empty(t, reqs)
	})
}

func TestAdapter_Parse(t *testing.T) {
	a := New(Config{Now: fixedNow})

	t.Run("latest version per doi", func(t *testing.T) {
		results, err := a.Parse(&indexers.Response{StatusCode: http.StatusOK, Body: []byte(sampleDetails)})
		require.NoError(t, err)

		releases := indexers.Releases(results)
		require.Len(t, releases, 2)
		assert.Equal(t, 2, indexers.Skipped(results))

		r := releases[0]
		assert.Equal(t, "Biorxiv-10.1101/2024.01.01.123456-v2", r.GUID)
		assert.Equal(t, "https://www.biorxiv.org/content/10.1101/2024.01.01.123456v2.full.pdf", r.DownloadURL)
		assert.Equal(t, "https://www.biorxiv.org/content/10.1101/2024.01.01.123456v2", r.InfoURL)
		assert.Equal(t, "Smith, J.", r.AuthorName)
		assert.Equal(t, "Nature", r.SourceJournal)
		assert.Equal(t, "Cell atlas of the fly", r.BookTitle)
		assert.Equal(t, 2024, r.PublishDate.Year())
		assert.Equal(t, time.February, r.PublishDate.Month())

		untitled := releases[1]
		assert.Equal(t, "Unknown Title", untitled.BookTitle)
		assert.Equal(t, domain.UnknownAuthor, untitled.AuthorName)
		assert.Equal(t, "Biorxiv-10.1101/2024.01.04.111111-v1", untitled.GUID)
	})

	t.Run("not found is empty", func(t *testing.T) {
		results, err := a.Parse(&indexers.Response{StatusCode: http.StatusNotFound})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("server error", func(t *testing.T) {
		_, err := a.Parse(&indexers.Response{StatusCode: http.StatusInternalServerError, Body: []byte("boom")})
		var fe *domain.FetchError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := a.Parse(&indexers.Response{StatusCode: http.StatusOK, Body: []byte("{")})
		assert.Error(t, err)
	})
}
