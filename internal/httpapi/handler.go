// Package httpapi exposes the analysis pipeline and its gates over HTTP.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/claimgate/internal/model"
	"github.com/ppiankov/claimgate/internal/pipeline"
	"github.com/ppiankov/claimgate/internal/ratelimit"
	"github.com/ppiankov/claimgate/internal/render"
)

const (
	maxBodyBytes = 64 << 10
	readyTimeout = 5 * time.Second
)

// Analyzer is the part of the pipeline the handlers need
type Analyzer interface {
	Analyze(ctx context.Context, req pipeline.Request) (*model.Result, error)
	LimiterStats(identifier string) ratelimit.Status
	GlobalStats() ratelimit.Status
	Stats() ratelimit.Stats
	Forget(identifier string)
	Provider() string
	Ready(ctx context.Context) bool
}

// Handler wires the HTTP endpoints to an Analyzer
type Handler struct {
	analyzer   Analyzer
	gatherer   prometheus.Gatherer
	adminToken string
	logger     *slog.Logger
	now        func() time.Time
}

// New constructs a handler. gatherer may be nil, in which case /metrics is
// not mounted. An empty adminToken leaves DELETE /v1/limits/{identifier}
// unmounted.
func New(analyzer Analyzer, gatherer prometheus.Gatherer, adminToken string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		analyzer:   analyzer,
		gatherer:   gatherer,
		adminToken: adminToken,
		logger:     logger,
		now:        time.Now,
	}
}

// Router builds the chi router with every endpoint mounted
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.HandleHealth)
	r.Get("/readyz", h.HandleReady)
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	h.Register(r)
	return r
}

// Register mounts the versioned API on r
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", h.HandleAnalyze)
		r.Get("/limits", h.HandleLimits)
		r.Get("/limits/{identifier}", h.HandleIdentifierLimits)
		if h.adminToken != "" {
			r.With(h.requireAdmin).Delete("/limits/{identifier}", h.HandleResetLimits)
		}
	})
}

// AnalyzeRequest is the POST /v1/analyze body
type AnalyzeRequest struct {
	Identifier string `json:"identifier"`
	Text       string `json:"text"`
	Mode       string `json:"mode,omitempty"`
	Automatic  bool   `json:"automatic,omitempty"`
}

// HandleAnalyze handles POST /v1/analyze
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetReqID(ctx)
	start := h.now()

	var req AnalyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Identifier) == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "identifier is required")
		return
	}

	mode := model.ModeVerify
	if req.Mode != "" {
		m, err := model.ParseMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
			return
		}
		mode = m
	}

	result, err := h.analyzer.Analyze(ctx, pipeline.Request{
		Identifier: req.Identifier,
		Text:       req.Text,
		Mode:       mode,
		Automatic:  req.Automatic,
	})
	if err != nil {
		h.logger.InfoContext(ctx, "analysis not completed",
			"request_id", requestID,
			"identifier", req.Identifier,
			"error", err,
		)
		h.writeAnalyzeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "analysis completed",
		"request_id", requestID,
		"identifier", req.Identifier,
		"mode", mode,
		"classification", result.Classification(),
		"duration_ms", h.now().Sub(start).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, render.NewReport(req.Text, h.analyzer.Provider(), result, h.now()))
}

func (h *Handler) writeAnalyzeError(w http.ResponseWriter, err error) {
	if rl, ok := pipeline.IsRateLimited(err); ok {
		w.Header().Set("Retry-After", retryAfterSeconds(rl.RetryAfter))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error:       codeRateLimited,
			Description: rl.Error(),
			Scope:       string(rl.Scope),
			RetryAfter:  rl.RetryAfter.Seconds(),
		})
		return
	}

	switch {
	case errors.Is(err, pipeline.ErrNotTriggered):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, pipeline.ErrClaimTooShort):
		writeError(w, http.StatusUnprocessableEntity, codeClaimTooShort, err.Error())
	case errors.Is(err, pipeline.ErrClaimTooLong):
		writeError(w, http.StatusUnprocessableEntity, codeClaimTooLong, err.Error())
	case pipeline.IsServiceUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, codeServiceUnavailable, "analysis service unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, codeTimeout, "analysis timed out")
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the body.
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		writeError(w, http.StatusInternalServerError, codeInternal, "")
	}
}

// LimitView is one gate's state with durations in seconds
type LimitView struct {
	Limit          int     `json:"limit"`
	Remaining      int     `json:"remaining"`
	ResetInSeconds float64 `json:"reset_in_seconds"`
}

func viewOf(s ratelimit.Status) LimitView {
	return LimitView{Limit: s.Limit, Remaining: s.Remaining, ResetInSeconds: s.ResetIn.Seconds()}
}

// LimitsResponse is the GET /v1/limits body
type LimitsResponse struct {
	Global             LimitView `json:"global"`
	TrackedIdentifiers int       `json:"tracked_identifiers"`
	ActiveIdentifiers  int       `json:"active_identifiers"`
	ActiveRequests     int       `json:"active_requests"`
	MaxRequests        int       `json:"max_requests"`
	WindowSeconds      float64   `json:"window_seconds"`
}

// IdentifierLimitsResponse is the GET /v1/limits/{identifier} body
type IdentifierLimitsResponse struct {
	Identifier string    `json:"identifier"`
	User       LimitView `json:"user"`
	Global     LimitView `json:"global"`
}

// HandleLimits handles GET /v1/limits
func (h *Handler) HandleLimits(w http.ResponseWriter, r *http.Request) {
	stats := h.analyzer.Stats()
	writeJSON(w, http.StatusOK, LimitsResponse{
		Global:             viewOf(h.analyzer.GlobalStats()),
		TrackedIdentifiers: stats.TrackedIdentifiers,
		ActiveIdentifiers:  stats.ActiveIdentifiers,
		ActiveRequests:     stats.ActiveRequests,
		MaxRequests:        stats.MaxRequests,
		WindowSeconds:      stats.Window.Seconds(),
	})
}

// HandleIdentifierLimits handles GET /v1/limits/{identifier}
func (h *Handler) HandleIdentifierLimits(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identifier")
	writeJSON(w, http.StatusOK, IdentifierLimitsResponse{
		Identifier: id,
		User:       viewOf(h.analyzer.LimiterStats(id)),
		Global:     viewOf(h.analyzer.GlobalStats()),
	})
}

// HandleResetLimits handles DELETE /v1/limits/{identifier}
func (h *Handler) HandleResetLimits(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identifier")
	h.analyzer.Forget(id)
	h.logger.InfoContext(r.Context(), "rate limit reset via api",
		"request_id", middleware.GetReqID(r.Context()),
		"identifier", id,
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleHealth handles GET /healthz
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"provider": h.analyzer.Provider(),
	})
}

// HandleReady handles GET /readyz by checking the provider answers
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if !h.analyzer.Ready(ctx) {
		writeError(w, http.StatusServiceUnavailable, codeServiceUnavailable, "provider unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"provider": h.analyzer.Provider(),
	})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.adminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
