package indexers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"os"
	"syscall"

	"github.com/helixir/paper-acquisition-service/internal/domain"
)

// Classification is the health view of a caught error.
type Classification struct {
	Kind       domain.ErrorKind
	HTTPStatus *int
	Message    string
}

// Classify maps an error from a fetch, parse or submission onto an error
// kind. Timeouts are checked before connection errors because transport
// timeouts also satisfy the connection checks.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Kind: domain.ErrorKindUnknown}
	}
	c := Classification{Kind: domain.ErrorKindUnknown, Message: err.Error()}

	var (
		challenge *domain.ProviderChallengeError
		rateLimit *domain.RateLimitError
		fetchErr  *domain.FetchError
	)

	switch {
	case errors.As(err, &challenge):
		c.Kind = domain.ErrorKindProviderChallenge
	case errors.As(err, &rateLimit):
		c.Kind = domain.ErrorKindRateLimit
		c.HTTPStatus = intPtr(http.StatusTooManyRequests)
	case errors.As(err, &fetchErr):
		c.HTTPStatus = intPtr(fetchErr.StatusCode)
		c.Kind = kindForStatus(fetchErr.StatusCode)
	case isTimeout(err):
		c.Kind = domain.ErrorKindTimeout
	case isConnection(err):
		c.Kind = domain.ErrorKindConnection
	}
	return c
}

// kindForStatus maps an HTTP status onto an error kind.
func kindForStatus(code int) domain.ErrorKind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrorKindAuth
	case http.StatusTooManyRequests:
		return domain.ErrorKindRateLimit
	default:
		return domain.ErrorKindHTTP
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnection(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var (
		opErr  *net.OpError
		dnsErr *net.DNSError
		urlErr *url.Error
	)
	return errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.As(err, &urlErr)
}

func intPtr(v int) *int {
	return &v
}
