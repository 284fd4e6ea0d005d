package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/maintenance"
	"github.com/helixir/paper-acquisition-service/internal/search"
)

const maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies

// submitRequest is the JSON request body for submitting a decision.
type submitRequest struct {
	Decision *domain.Decision `json:"decision" validate:"required"`
	ClientID *int64           `json:"client_id,omitempty" validate:"omitempty,gt=0"`
}

// blocklistRequest is the JSON request body for blocklisting a release.
type blocklistRequest struct {
	Release domain.Release `json:"release"`
	Reason  string         `json:"reason" validate:"required,max=512"`
}

// purgeRequest is the optional JSON request body of a purge. A missing
// cutoff purges everything older than the configured retention.
type purgeRequest struct {
	Cutoff *time.Time `json:"cutoff,omitempty"`
}

// searchHandler handles POST /search. It resolves the request against the
// catalog, dispatches it to every eligible source and returns ranked decisions.
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	if !s.decodeBody(w, r, &req, false) {
		return
	}

	ctx := r.Context()
	criteria, err := search.BuildCriteria(ctx, s.deps.Catalog, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	decisions, err := s.deps.Searcher.Search(ctx, criteria)
	if err != nil {
		s.logger.Error().Err(err).Msg("search failed")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newSearchResponse(decisions))
}

// submitHandler handles POST /submissions.
func (s *Server) submitHandler(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !s.decodeBody(w, r, &req, false) {
		return
	}
	if err := req.Decision.Candidate.Release.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	event, err := s.deps.Submitter.Submit(r.Context(), req.Decision, req.ClientID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// blocklistHandler handles POST /blocklist.
func (s *Server) blocklistHandler(w http.ResponseWriter, r *http.Request) {
	var req blocklistRequest
	if !s.decodeBody(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Release.GUID) == "" {
		writeError(w, http.StatusBadRequest, "release guid is required")
		return
	}

	if err := s.deps.Blocklist.Add(r.Context(), req.Release, strings.TrimSpace(req.Reason)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"status": "blocklisted",
		"guid":   req.Release.GUID,
	})
}

// recentReleasesHandler handles GET /releases/recent.
func (s *Server) recentReleasesHandler(w http.ResponseWriter, r *http.Request) {
	releases, err := s.deps.Searcher.Recent(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("fetching recent releases failed")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, releasesResponse{Releases: releases, TotalCount: len(releases)})
}

// allStatisticsHandler handles GET /sources/statistics.
func (s *Server) allStatisticsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Health.AllStatistics(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if stats == nil {
		stats = []domain.Statistics{}
	}
	writeJSON(w, http.StatusOK, statisticsListResponse{Sources: stats})
}

// sourceStatisticsHandler handles GET /sources/{sourceID}/statistics.
func (s *Server) sourceStatisticsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSourceID(w, r)
	if !ok {
		return
	}

	stats, err := s.deps.Health.Statistics(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// sourceFailuresHandler handles GET /sources/{sourceID}/failures.
// Supported query parameters: since (RFC3339), operation, error_kind,
// page (1-based) and page_size.
func (s *Server) sourceFailuresHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSourceID(w, r)
	if !ok {
		return
	}

	filter, err := parseFailureFilter(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	filter.SourceID = id
	filter.Normalize()

	events, total, err := s.deps.Health.Failures(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if events == nil {
		events = []domain.HealthEvent{}
	}
	writeJSON(w, http.StatusOK, failuresResponse{
		Failures:   events,
		TotalCount: total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
	})
}

// adjustPrioritiesHandler handles POST /sources/priorities:adjust.
func (s *Server) adjustPrioritiesHandler(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Maintenance.AdjustPriorities(r.Context())
	if err != nil {
		if errors.Is(err, maintenance.ErrAdjustmentInProgress) {
			writeError(w, http.StatusConflict, "priority adjustment already in progress")
			return
		}
		s.logger.Error().Err(err).Msg("priority adjustment failed")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// purgeHealthEventsHandler handles POST /health-events:purge.
func (s *Server) purgeHealthEventsHandler(w http.ResponseWriter, r *http.Request) {
	var req purgeRequest
	if !s.decodeBody(w, r, &req, true) {
		return
	}

	deleted, err := s.deps.Maintenance.PurgeHealthEvents(r.Context(), req.Cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("purge failed")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, purgeResponse{DeletedCount: deleted})
}

// decodeBody reads a size-limited JSON body into v and validates it. An
// empty body is accepted only when optional is set. It writes the error
// response and returns false on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}, optional bool) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if len(body) > maxRequestBodySize {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		if optional {
			return true
		}
		writeError(w, http.StatusBadRequest, "request body is required")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// validationMessage renders the first failed field constraint. The
// submitted value is never echoed.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	field := fe.Field()
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

// parseSourceID parses the {sourceID} path parameter, writing a 400 error
// response if it is not a positive integer.
func parseSourceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "sourceID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "source id must be a positive integer")
		return 0, false
	}
	return id, true
}

// parseFailureFilter extracts the failure query parameters.
func parseFailureFilter(r *http.Request) (domain.FailureFilter, error) {
	var filter domain.FailureFilter
	q := r.URL.Query()

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, domain.NewValidationError("since", "expected RFC3339 timestamp")
		}
		filter.Since = &since
	}
	if v := q.Get("operation"); v != "" {
		op := domain.OperationKind(v)
		if !op.IsValid() {
			return filter, domain.NewValidationError("operation", "must be search or download")
		}
		filter.Operation = &op
	}
	if v := q.Get("error_kind"); v != "" {
		kind := domain.ErrorKind(v)
		if !kind.IsValid() {
			return filter, domain.NewValidationError("error_kind", "unknown error kind")
		}
		filter.ErrorKind = &kind
	}
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return filter, domain.NewValidationError("page", "must be a positive integer")
		}
		filter.Page = page
	}
	if v := q.Get("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 {
			return filter, domain.NewValidationError("page_size", "must be a positive integer")
		}
		filter.PageSize = size
	}
	return filter, nil
}

// writeDomainError maps domain errors to HTTP status codes. Unknown errors
// become a generic 500 so internal details never reach the client.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("%s not found", nf.Entity))
		} else {
			writeError(w, http.StatusNotFound, "resource not found")
		}
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrNotApproved):
		writeError(w, http.StatusConflict, "decision not approved")
	case errors.Is(err, domain.ErrTerminalSubmission):
		var te *domain.TerminalSubmissionError
		if errors.As(err, &te) {
			writeError(w, http.StatusUnprocessableEntity, string(te.Reason))
		} else {
			writeError(w, http.StatusUnprocessableEntity, "release cannot be submitted")
		}
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
