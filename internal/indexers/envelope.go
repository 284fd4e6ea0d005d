package indexers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// flareSolverrMaxTimeout is the solver-side timeout in milliseconds.
const flareSolverrMaxTimeout = 60000

// flareSolverrCommand is the body posted to a FlareSolverr instance.
type flareSolverrCommand struct {
	Cmd        string `json:"cmd"`
	URL        string `json:"url"`
	MaxTimeout int    `json:"maxTimeout"`
}

// flareSolverrEnvelope is the JSON wrapper FlareSolverr returns around the page.
type flareSolverrEnvelope struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Solution *struct {
		URL      string `json:"url"`
		Status   int    `json:"status"`
		Response string `json:"response"`
	} `json:"solution"`
}

// WrapFlareSolverr rewrites a GET request so it is proxied through the
// FlareSolverr instance at solverURL. An empty solverURL returns req unchanged.
func WrapFlareSolverr(solverURL string, req Request) Request {
	solverURL = strings.TrimRight(strings.TrimSpace(solverURL), "/")
	if solverURL == "" {
		return req
	}

	body, _ := json.Marshal(flareSolverrCommand{
		Cmd:        "request.get",
		URL:        req.URL,
		MaxTimeout: flareSolverrMaxTimeout,
	})

	return Request{
		Method:  http.MethodPost,
		URL:     solverURL + "/v1",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
		Kind:    req.Kind,
	}
}

// Unwrap returns the response with any FlareSolverr envelope removed. The
// inner page becomes the body and the solved URL becomes the base URL.
// Responses that are not envelopes are returned unchanged. A solver-side
// failure is reported as an error.
func Unwrap(resp *Response) (*Response, error) {
	if resp == nil {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(resp.Body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return resp, nil
	}

	var env flareSolverrEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return resp, nil
	}

	if env.Solution == nil {
		if env.Status == "error" {
			return nil, fmt.Errorf("flaresolverr: %s", env.Message)
		}
		return resp, nil
	}
	if env.Solution.Response == "" {
		return resp, nil
	}

	out := *resp
	out.Body = []byte(env.Solution.Response)
	if env.Solution.URL != "" {
		out.URL = env.Solution.URL
	}
	if env.Solution.Status != 0 {
		out.StatusCode = env.Solution.Status
	}
	return &out, nil
}

// challengeMarkers identify anti-automation interstitials served instead of content.
var challengeMarkers = []string{
	"Just a moment",
	"challenge-platform",
	"cf-challenge",
	"__cf_chl_opt",
	"Enable JavaScript and cookies to continue",
}

// DetectChallenge reports whether body looks like a Cloudflare challenge page.
func DetectChallenge(body []byte) (string, bool) {
	preview := body
	if len(preview) > 16<<10 {
		preview = preview[:16<<10]
	}
	for _, marker := range challengeMarkers {
		if bytes.Contains(preview, []byte(marker)) {
			return "cloudflare", true
		}
	}
	return "", false
}
