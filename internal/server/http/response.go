package httpserver

import (
	"github.com/helixir/paper-acquisition-service/internal/domain"
)

// Response types for JSON serialization.

type searchResponse struct {
	Decisions     []domain.Decision `json:"decisions"`
	TotalCount    int               `json:"total_count"`
	ApprovedCount int               `json:"approved_count"`
}

type releasesResponse struct {
	Releases   []domain.Release `json:"releases"`
	TotalCount int              `json:"total_count"`
}

type statisticsListResponse struct {
	Sources []domain.Statistics `json:"sources"`
}

type failuresResponse struct {
	Failures   []domain.HealthEvent `json:"failures"`
	TotalCount int64                `json:"total_count"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
}

type purgeResponse struct {
	DeletedCount int64 `json:"deleted_count"`
}

func newSearchResponse(decisions []domain.Decision) searchResponse {
	if decisions == nil {
		decisions = []domain.Decision{}
	}
	resp := searchResponse{Decisions: decisions, TotalCount: len(decisions)}
	for i := range decisions {
		if decisions[i].Approved() {
			resp.ApprovedCount++
		}
	}
	return resp
}
