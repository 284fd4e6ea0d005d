package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-acquisition-service/internal/domain"
)

var samplePDFContent = []byte("%PDF-1.4 sample content for testing")

func writeContent(w http.ResponseWriter, content []byte) {
	_, _ = w.Write(content)
}

func pdfServer(t *testing.T, content []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusOK)
		writeContent(w, content)
	}))
	t.Cleanup(server.Close)
	return server
}

func testTransfer(t *testing.T, cfg TransferConfig) *HTTPTransfer {
	t.Helper()
	cfg.AllowPrivateNetworks = true
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	return NewHTTPTransfer(cfg)
}

func releaseAt(url string) domain.Release {
	return domain.Release{GUID: "arXiv-2401.00001", DownloadURL: url, SourceName: "arxiv", Container: "PDF"}
}

func TestNewHTTPTransfer_Defaults(t *testing.T) {
	tr := NewHTTPTransfer(TransferConfig{Dir: t.TempDir()})

	assert.Equal(t, int64(100*1024*1024), tr.cfg.MaxSize)
	assert.Equal(t, 60*time.Second, tr.cfg.Timeout)
	assert.Equal(t, DefaultContentTypes, tr.cfg.ContentTypes)
	assert.Equal(t, "http", tr.Info().Name)
	assert.Equal(t, domain.ProtocolHTTP, tr.Info().Protocol)
}

func TestHTTPTransfer_Success(t *testing.T) {
	server := pdfServer(t, samplePDFContent)
	dir := t.TempDir()
	tr := testTransfer(t, TransferConfig{Dir: dir})

	jobID, err := tr.Download(context.Background(), releaseAt(server.URL+"/paper.pdf"))
	require.NoError(t, err)

	sum := sha256.Sum256(samplePDFContent)
	assert.Equal(t, hex.EncodeToString(sum[:]), jobID)

	stored, err := os.ReadFile(filepath.Join(dir, jobID+".pdf"))
	require.NoError(t, err)
	assert.Equal(t, samplePDFContent, stored)

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.part"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestHTTPTransfer_DuplicateIsRejected(t *testing.T) {
	server := pdfServer(t, samplePDFContent)
	tr := testTransfer(t, TransferConfig{})

	_, err := tr.Download(context.Background(), releaseAt(server.URL))
	require.NoError(t, err)

	_, err = tr.Download(context.Background(), releaseAt(server.URL))
	var terminal *domain.TerminalSubmissionError
	require.ErrorAs(t, err, &terminal)
	assert.Equal(t, domain.ReasonClientRejectedRelease, terminal.Reason)
}

func TestHTTPTransfer_StatusHandling(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header map[string]string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "not found is terminal",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				var terminal *domain.TerminalSubmissionError
				require.ErrorAs(t, err, &terminal)
				assert.Equal(t, domain.ReasonReleaseUnavailable, terminal.Reason)
			},
		},
		{
			name:   "gone is terminal",
			status: http.StatusGone,
			check: func(t *testing.T, err error) {
				assert.True(t, domain.IsTerminalSubmission(err))
			},
		},
		{
			name:   "throttled",
			status: http.StatusTooManyRequests,
			header: map[string]string{"Retry-After": "30"},
			check: func(t *testing.T, err error) {
				var rl *domain.RateLimitError
				require.ErrorAs(t, err, &rl)
				assert.Equal(t, 30*time.Second, rl.RetryAfter)
			},
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			check: func(t *testing.T, err error) {
				var fetchErr *domain.FetchError
				require.ErrorAs(t, err, &fetchErr)
				assert.Equal(t, http.StatusBadGateway, fetchErr.StatusCode)
				assert.False(t, domain.IsTerminalSubmission(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := testTransfer(t, TransferConfig{}).Download(context.Background(), releaseAt(server.URL))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestHTTPTransfer_ContentChecks(t *testing.T) {
	t.Run("unexpected content type", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			writeContent(w, []byte("<html>captcha</html>"))
		}))
		defer server.Close()

		_, err := testTransfer(t, TransferConfig{}).Download(context.Background(), releaseAt(server.URL))
		assert.ErrorIs(t, err, ErrUnexpectedContent)
	})

	t.Run("too large", func(t *testing.T) {
		server := pdfServer(t, make([]byte, 2048))

		_, err := testTransfer(t, TransferConfig{MaxSize: 1024}).Download(context.Background(), releaseAt(server.URL))
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("exactly max size", func(t *testing.T) {
		server := pdfServer(t, make([]byte, 1024))

		_, err := testTransfer(t, TransferConfig{MaxSize: 1024}).Download(context.Background(), releaseAt(server.URL))
		assert.NoError(t, err)
	})
}

func TestHTTPTransfer_URLValidation(t *testing.T) {
	tr := testTransfer(t, TransferConfig{})

	for _, raw := range []string{"file:///etc/passwd", "gopher://example.org/", "https:///nohost"} {
		_, err := tr.Download(context.Background(), releaseAt(raw))
		assert.ErrorIs(t, err, ErrBlockedURL, raw)
	}
}

func TestHTTPTransfer_BlocksPrivateNetworks(t *testing.T) {
	server := pdfServer(t, samplePDFContent)
	tr := NewHTTPTransfer(TransferConfig{Dir: t.TempDir(), Timeout: 5 * time.Second})

	_, err := tr.Download(context.Background(), releaseAt(server.URL))
	require.Error(t, err, "loopback test server must be unreachable through the safe client")
	assert.False(t, domain.IsTerminalSubmission(err))
}
