package arxiv

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/indexers"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <title>ArXiv Query</title>
  <entry>
    <id>http://arxiv.org/abs/2301.12345v1</id>
    <published>2023-01-15T18:30:00Z</published>
    <title>Attention Is
      All You Need</title>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <arxiv:doi>10.48550/ARXIV.2301.12345</arxiv:doi>
    <arxiv:journal_ref>NeurIPS 2017</arxiv:journal_ref>
    <link href="http://arxiv.org/abs/2301.12345v1" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2301.12345v1" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2301.00001v1</id>
    <title>No PDF Here</title>
    <author><name>A. Nobody</name></author>
    <link href="http://arxiv.org/abs/2301.00001v1" rel="alternate" type="text/html"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2301.00002v2</id>
    <published>garbage</published>
    <title>Anonymous Work</title>
    <link href="http://arxiv.org/pdf/2301.00002v2" type="application/pdf"/>
  </entry>
</feed>`

func TestNew(t *testing.T) {
	a := New(Config{BaseURL: "http://localhost/api/"})
	assert.Equal(t, "http://localhost/api", a.config.BaseURL)
	assert.Equal(t, DefaultMaxResults, a.config.MaxResults)
	assert.Equal(t, "arXiv", a.Name())
}

func TestNewFromSource(t *testing.T) {
	ad, err := NewFromSource(domain.Source{Name: "arXiv mirror", Settings: map[string]string{"max_results": "25"}})
	require.NoError(t, err)
	a := ad.(*Adapter)
	assert.Equal(t, "arXiv mirror", a.Name())
	assert.Equal(t, DefaultBaseURL, a.config.BaseURL)
	assert.Equal(t, 25, a.config.MaxResults)
}

func TestAdapter_BuildListingRequest(t *testing.T) {
	req, err := New(Config{}).BuildListingRequest()
	require.NoError(t, err)
	assert.Equal(t, "https://export.arxiv.org/api/query?search_query=all:all&start=0&max_results=100&sortBy=submittedDate&sortOrder=descending", req.URL)
	assert.Equal(t, indexers.KindListing, req.Kind)
}

func TestAdapter_BuildSearchRequest(t *testing.T) {
	a := New(Config{})

	t.Run("author and book queries", func(t *testing.T) {
		reqs, err := a.BuildSearchRequest(&domain.SearchCriteria{
			Author: &domain.Author{Name: "Jane Doe"},
			Books:  []domain.Book{{Title: "Graphene: a (new) material?"}},
		})
		require.NoError(t, err)
		require.Len(t, reqs, 2)
		assert.Contains(t, reqs[0].URL, "search_query=all:Jane+Doe&")
		assert.Equal(t, indexers.KindAuthor, reqs[0].Kind)
		assert.Contains(t, reqs[1].URL, "search_query=all:Graphene+a+new+material&")
		assert.Contains(t, reqs[1].URL, "sortBy=relevance")
		assert.Equal(t, indexers.KindBook, reqs[1].Kind)
	})

	t.Run("no queries", func(t *testing.T) {
		reqs, err := a.BuildSearchRequest(&domain.SearchCriteria{})
		require.NoError(t, err)
		assert.Empty(t, reqs)

		reqs, err = a.BuildSearchRequest(nil)
		require.NoError(t, err)
		assert.Empty(t, reqs)
	})
}

func TestAdapter_Parse(t *testing.T) {
	a := New(Config{})

	t.Run("parses entries and skips those without pdf", func(t *testing.T) {
		results, err := a.Parse(&indexers.Response{StatusCode: http.StatusOK, Body: []byte(sampleFeed)})
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.False(t, results[1].OK())

		releases := indexers.Releases(results)
		require.Len(t, releases, 2)

		r := releases[0]
		assert.Equal(t, "http://arxiv.org/abs/2301.12345v1", r.GUID)
		assert.Equal(t, "Ashish Vaswani - Attention Is All You Need", r.Title)
		assert.Equal(t, "Attention Is All You Need", r.BookTitle)
		assert.Equal(t, "Ashish Vaswani", r.AuthorName)
		assert.Equal(t, "10.48550/arxiv.2301.12345", r.DOI)
		assert.Equal(t, "NeurIPS 2017", r.SourceJournal)
		assert.Equal(t, "http://arxiv.org/pdf/2301.12345v1", r.DownloadURL)
		assert.Equal(t, "PDF", r.Container)
		assert.Equal(t, []int{domain.CategoryBook}, r.Categories)
		assert.Equal(t, time.Date(2023, 1, 15, 18, 30, 0, 0, time.UTC), r.PublishDate)
		assert.Equal(t, domain.ProtocolHTTP, r.Protocol)

		anon := releases[1]
		assert.Equal(t, "Unknown Author - Anonymous Work", anon.Title)
		assert.Empty(t, anon.DOI)
		assert.WithinDuration(t, time.Now().UTC(), anon.PublishDate, time.Minute)
	})

	t.Run("non-success status is a fetch error", func(t *testing.T) {
		_, err := a.Parse(&indexers.Response{StatusCode: http.StatusServiceUnavailable, Body: []byte("down")})
		assert.ErrorIs(t, err, domain.ErrSourceFailed)
	})

	t.Run("invalid xml", func(t *testing.T) {
		_, err := a.Parse(&indexers.Response{StatusCode: http.StatusOK, Body: []byte("not xml")})
		assert.Error(t, err)
	})
}
