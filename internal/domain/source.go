package domain

import (
	"slices"
	"strings"
	"time"
)

// Priority bounds. Priority 1 is the most preferred source.
const (
	MinPriority     = 1
	DefaultPriority = 25
	MaxPriority     = 50
)

// Source is one external provider of candidate releases.
type Source struct {
	// ID is the persistent identifier of the source definition.
	ID int64 `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// Implementation selects the adapter (e.g. "arxiv", "scihub").
	Implementation string `json:"implementation"`

	// Protocol is the transfer protocol of releases produced by this source.
	Protocol Protocol `json:"protocol"`

	// Enabled disables the source entirely when false.
	Enabled bool `json:"enabled"`

	// SupportsListing is true if the adapter can build a recent-items request.
	SupportsListing bool `json:"supports_listing"`

	// SupportsSearch is true if the adapter can build criteria-driven requests.
	SupportsSearch bool `json:"supports_search"`

	// EnableAutomaticSearch allows background searches to use this source.
	EnableAutomaticSearch bool `json:"enable_automatic_search"`

	// EnableInteractiveSearch allows user-initiated searches to use this source.
	EnableInteractiveSearch bool `json:"enable_interactive_search"`

	// Priority ranks the source; lower numbers win ties.
	Priority int `json:"priority"`

	// Tags restrict the source to authors carrying an intersecting tag.
	// An empty set matches every author.
	Tags []string `json:"tags,omitempty"`

	// RateLimitInterval is the minimum delay between requests to the same host.
	RateLimitInterval time.Duration `json:"rate_limit_interval"`

	// Settings holds adapter-specific configuration (base_url, api_key, mirrors, ...).
	Settings map[string]string `json:"settings,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Setting returns the named adapter setting, or fallback if unset or blank.
func (s *Source) Setting(key, fallback string) string {
	if v, ok := s.Settings[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

// AllowsSearch reports whether the source may serve a search in the given mode.
func (s *Source) AllowsSearch(interactive bool) bool {
	if !s.Enabled || !s.SupportsSearch {
		return false
	}
	if interactive {
		return s.EnableInteractiveSearch
	}
	return s.EnableAutomaticSearch
}

// MatchesTags reports whether the source's tag set is empty or shares a tag
// with the given set.
func (s *Source) MatchesTags(tags []string) bool {
	if len(s.Tags) == 0 {
		return true
	}
	for _, t := range s.Tags {
		if slices.Contains(tags, t) {
			return true
		}
	}
	return false
}

// ClampPriority bounds p to [MinPriority, MaxPriority].
func ClampPriority(p int) int {
	return max(MinPriority, min(p, MaxPriority))
}
