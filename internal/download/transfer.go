package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/doyensec/safeurl"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/indexers"
)

// Sentinel errors for transfers.
var (
	// ErrUnexpectedContent is returned when the response Content-Type is not an accepted document type.
	ErrUnexpectedContent = errors.New("download: unexpected content type")
	// ErrTooLarge is returned when the file exceeds the maximum allowed size.
	ErrTooLarge = errors.New("download: file exceeds maximum size")
	// ErrBlockedURL is returned for URLs with a disallowed scheme or host.
	ErrBlockedURL = errors.New("download: url not allowed")
)

// DefaultContentTypes are accepted when TransferConfig.ContentTypes is empty.
var DefaultContentTypes = []string{
	"application/pdf",
	"application/epub+zip",
	"application/octet-stream",
	"application/x-download",
}

// TransferConfig configures an HTTPTransfer.
type TransferConfig struct {
	ID       int64
	Name     string
	Priority int
	Tags     []string

	// Dir is the directory completed files are written to.
	Dir string

	// Timeout is the HTTP request timeout. Default: 60 seconds.
	Timeout time.Duration
	// MaxSize is the maximum file size in bytes. Default: 100MB.
	MaxSize int64
	// UserAgent is the User-Agent header.
	UserAgent string
	// ContentTypes lists accepted Content-Type prefixes.
	ContentTypes []string

	// AllowPrivateNetworks disables the SSRF-safe dialer. Test environments only.
	AllowPrivateNetworks bool
}

// HTTPTransfer is the built-in client for HTTP releases: it fetches the
// document directly and stores it under its SHA-256 digest, which doubles
// as the job id.
type HTTPTransfer struct {
	cfg    TransferConfig
	client *http.Client
}

// NewHTTPTransfer creates the transfer backend.
func NewHTTPTransfer(cfg TransferConfig) *HTTPTransfer {
	if cfg.Name == "" {
		cfg.Name = "http"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 100 * 1024 * 1024 // 100MB
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; Helixir-Acquisition/1.0; +https://helixir.io/bot)"
	}
	if len(cfg.ContentTypes) == 0 {
		cfg.ContentTypes = DefaultContentTypes
	}

	var client *http.Client
	if cfg.AllowPrivateNetworks {
		client = &http.Client{Timeout: cfg.Timeout}
	} else {
		// safeurl validates the resolved address at dial time, so redirects
		// and DNS rebinding onto internal addresses are rejected as well.
		config := safeurl.GetConfigBuilder().
			SetTimeout(cfg.Timeout).
			SetAllowedSchemes("http", "https").
			SetAllowedPorts(80, 443, 8080, 8443).
			Build()
		client = safeurl.Client(config).Client
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return fmt.Errorf("%w: too many redirects", ErrBlockedURL)
		}
		return validateURL(req.URL)
	}

	return &HTTPTransfer{cfg: cfg, client: client}
}

// Info implements Client.
func (t *HTTPTransfer) Info() ClientInfo {
	return ClientInfo{
		ID:       t.cfg.ID,
		Name:     t.cfg.Name,
		Protocol: domain.ProtocolHTTP,
		Priority: t.cfg.Priority,
		Enabled:  true,
		Tags:     t.cfg.Tags,
	}
}

// Download fetches release.DownloadURL into the configured directory.
//
// 404 and 410 are reported as an unavailable release and a file that has
// already been stored as a rejected duplicate; both are terminal.
// 429 yields a *domain.RateLimitError and other non-2xx statuses a
// *domain.FetchError.
func (t *HTTPTransfer) Download(ctx context.Context, release domain.Release) (string, error) {
	parsed, err := url.Parse(release.DownloadURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBlockedURL, err)
	}
	if err := validateURL(parsed); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", t.cfg.UserAgent)
	req.Header.Set("Accept", "application/pdf, application/epub+zip, */*;q=0.8")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", release.GUID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return "", domain.NewTerminalSubmissionError(domain.ReasonReleaseUnavailable, release.GUID,
			fmt.Sprintf("source returned %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", domain.NewRateLimitError(release.SourceName, indexers.RetryAfter(resp.Header))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", domain.NewFetchError(release.SourceName, release.DownloadURL, resp.StatusCode, "")
	}

	contentType := resp.Header.Get("Content-Type")
	if !t.acceptsContent(contentType) {
		return "", fmt.Errorf("%w: %q", ErrUnexpectedContent, contentType)
	}

	return t.store(resp.Body, release)
}

// store streams body to a temporary file and moves it under its digest.
func (t *HTTPTransfer) store(body io.Reader, release domain.Release) (string, error) {
	if err := os.MkdirAll(t.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}
	tmp, err := os.CreateTemp(t.cfg.Dir, "transfer-*.part")
	if err != nil {
		return "", fmt.Errorf("creating temporary file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	hasher := sha256.New()
	// Read one extra byte to detect an oversized body.
	n, err := io.Copy(io.MultiWriter(tmp, hasher), io.LimitReader(body, t.cfg.MaxSize+1))
	closeErr := tmp.Close()
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	if closeErr != nil {
		return "", fmt.Errorf("writing %s: %w", tmp.Name(), closeErr)
	}
	if n > t.cfg.MaxSize {
		return "", fmt.Errorf("%w: exceeded %d bytes", ErrTooLarge, t.cfg.MaxSize)
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	target := filepath.Join(t.cfg.Dir, digest+extension(release.Container))
	if _, err := os.Stat(target); err == nil {
		return "", domain.NewTerminalSubmissionError(domain.ReasonClientRejectedRelease, release.GUID,
			"file already downloaded")
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("storing %s: %w", target, err)
	}
	return digest, nil
}

func (t *HTTPTransfer) acceptsContent(contentType string) bool {
	contentType = strings.ToLower(contentType)
	for _, accepted := range t.cfg.ContentTypes {
		if strings.HasPrefix(contentType, accepted) {
			return true
		}
	}
	return false
}

func validateURL(u *url.URL) error {
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: scheme %q is not allowed", ErrBlockedURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: empty host", ErrBlockedURL)
	}
	return nil
}

func extension(container string) string {
	container = strings.ToLower(strings.TrimSpace(container))
	if container == "" {
		return ".pdf"
	}
	return "." + container
}
