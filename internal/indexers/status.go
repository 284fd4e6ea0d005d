package indexers

import (
	"net/http"
	"slices"
	"strings"

	"github.com/helixir/paper-acquisition-service/internal/domain"
)

// maxErrorBody bounds how much of a failed response is kept in a FetchError.
const maxErrorBody = 512

// CheckStatus decides what to do with a response before parsing it.
//
// It returns (true, nil) for 2xx responses, (false, nil) when the status is
// one the source uses to say "nothing here", and an error otherwise:
// *domain.RateLimitError for 429, *domain.ProviderChallengeError for a
// challenge page, and *domain.FetchError for every other status.
func CheckStatus(source string, resp *Response, emptyStatuses ...int) (bool, error) {
	if resp == nil {
		return false, domain.NewFetchError(source, "", 0, "no response")
	}

	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return true, nil
	case code == http.StatusTooManyRequests:
		return false, domain.NewRateLimitError(source, RetryAfter(resp.Header))
	}

	if code == http.StatusForbidden || code == http.StatusServiceUnavailable {
		if provider, ok := DetectChallenge(resp.Body); ok {
			return false, domain.NewProviderChallengeError(source, provider)
		}
	}

	if slices.Contains(emptyStatuses, code) {
		return false, nil
	}

	body := strings.TrimSpace(string(resp.Body))
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return false, domain.NewFetchError(source, resp.Request.URL, code, body)
}

// Redirects lists the 3xx statuses; HTML mirrors use them to signal a
// missing item.
var Redirects = []int{
	http.StatusMovedPermanently,
	http.StatusFound,
	http.StatusSeeOther,
	http.StatusTemporaryRedirect,
	http.StatusPermanentRedirect,
}
