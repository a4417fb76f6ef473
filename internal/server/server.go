package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ogulcanaydogan/genroute/internal/metrics"
	"github.com/ogulcanaydogan/genroute/pkg/model"
	"github.com/ogulcanaydogan/genroute/pkg/orchestrator"
	"github.com/ogulcanaydogan/genroute/pkg/storage"
)

const (
	// MaxBatchSize bounds a single batch request.
	MaxBatchSize = 100
	maxBodyBytes = 4 << 20
	queryTimeout = 10 * time.Second
)

// Generator serves generation requests.
type Generator interface {
	Generate(ctx context.Context, req model.GenerationRequest) (model.GenerationResult, error)
	BatchGenerate(ctx context.Context, reqs []model.GenerationRequest) []orchestrator.BatchItem
}

// Budgets manages organization budgets.
type Budgets interface {
	UsageStats(ctx context.Context, orgID string) (model.UsageStats, error)
	SetLimits(ctx context.Context, orgID string, tokens int64, cost float64) (*model.Budget, error)
	Deactivate(ctx context.Context, orgID string) error
}

// UsageReader reads the generation log.
type UsageReader interface {
	QueryUsage(ctx context.Context, filter model.ReportFilter) ([]model.UsageRecord, error)
	AggregateUsage(ctx context.Context, filter model.ReportFilter) (*model.UsageSummary, error)
}

// Server exposes generation, budget and usage endpoints.
type Server struct {
	gen     Generator
	budgets Budgets
	usage   UsageReader
	router  chi.Router
	logger  *slog.Logger
	now     func() time.Time
}

// NewServer creates an API server.
func NewServer(gen Generator, budgets Budgets, usage UsageReader, logger *slog.Logger) *Server {
	s := &Server{
		gen:     gen,
		budgets: budgets,
		usage:   usage,
		router:  chi.NewRouter(),
		logger:  logger,
		now:     time.Now,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)
		r.Post("/generate/batch", s.handleBatch)
		r.Get("/usage", s.handleUsage)
		r.Get("/summary", s.handleSummary)
		r.Route("/organizations/{org}", func(r chi.Router) {
			r.Get("/usage", s.handleOrgUsage)
			r.Put("/budget", s.handleSetBudget)
			r.Delete("/budget", s.handleDeactivateBudget)
		})
	})
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, RequestID: middleware.GetReqID(r.Context())})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// generationStatus maps a generation error to an HTTP status and a message
// safe to return to clients.
func generationStatus(err error) (int, string) {
	if errors.Is(err, orchestrator.ErrInvalidRequest) {
		return http.StatusBadRequest, err.Error()
	}
	var se *orchestrator.StageError
	if errors.As(err, &se) && se.Stage == orchestrator.StageProvider {
		return http.StatusBadGateway, "provider request failed"
	}
	return http.StatusInternalServerError, "internal error"
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req model.GenerationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Task == "" {
		writeError(w, r, http.StatusBadRequest, "task is required")
		return
	}

	res, err := s.gen.Generate(r.Context(), req)
	if err != nil {
		status, msg := generationStatus(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("generate", "task", req.Task, "org", req.OrganizationID,
				"request_id", middleware.GetReqID(r.Context()), "error", err)
		}
		writeError(w, r, status, msg)
		return
	}
	setGenerationHeaders(w, res)
	writeJSON(w, http.StatusOK, res)
}

func setGenerationHeaders(w http.ResponseWriter, res model.GenerationResult) {
	cacheStatus := "miss"
	if res.FromCache {
		cacheStatus = "hit"
	}
	w.Header().Set("X-Genroute-Provider", res.Provider)
	w.Header().Set("X-Genroute-Cost", strconv.FormatFloat(res.CostUSD, 'f', 6, 64))
	w.Header().Set("X-Genroute-Tokens", strconv.Itoa(res.InputTokens+res.OutputTokens))
	w.Header().Set("X-Genroute-Cache", cacheStatus)
}

type batchRequest struct {
	Requests []model.GenerationRequest `json:"requests"`
}

type batchItemResponse struct {
	Result *model.GenerationResult `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
	Status int                     `json:"status"`
}

type batchResponse struct {
	Results []batchItemResponse `json:"results"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Requests) == 0 {
		writeError(w, r, http.StatusBadRequest, "requests must not be empty")
		return
	}
	if len(req.Requests) > MaxBatchSize {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("at most %d requests per batch", MaxBatchSize))
		return
	}

	items := s.gen.BatchGenerate(r.Context(), req.Requests)
	resp := batchResponse{Results: make([]batchItemResponse, len(items))}
	for i, item := range items {
		if item.Err != nil {
			status, msg := generationStatus(item.Err)
			s.logger.Warn("batch item failed", "index", i, "task", req.Requests[i].Task, "error", item.Err)
			resp.Results[i] = batchItemResponse{Error: msg, Status: status}
			continue
		}
		res := item.Result
		resp.Results[i] = batchItemResponse{Result: &res, Status: http.StatusOK}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOrgUsage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	stats, err := s.budgets.UsageStats(ctx, chi.URLParam(r, "org"))
	if err != nil {
		s.logger.Error("usage stats", "org", chi.URLParam(r, "org"), "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type budgetRequest struct {
	DailyTokenLimit int64   `json:"daily_token_limit"`
	DailyCostLimit  float64 `json:"daily_cost_limit"`
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.DailyTokenLimit <= 0 || req.DailyCostLimit <= 0 {
		writeError(w, r, http.StatusBadRequest, "daily_token_limit and daily_cost_limit must be positive")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	org := chi.URLParam(r, "org")
	b, err := s.budgets.SetLimits(ctx, org, req.DailyTokenLimit, req.DailyCostLimit)
	if err != nil {
		s.logger.Error("set budget", "org", org, "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeactivateBudget(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	org := chi.URLParam(r, "org")
	if err := s.budgets.Deactivate(ctx, org); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "no active budget")
			return
		}
		s.logger.Error("deactivate budget", "org", org, "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func usageFilter(r *http.Request) model.ReportFilter {
	q := r.URL.Query()
	return model.ReportFilter{
		OrganizationID: q.Get("org"),
		Provider:       q.Get("provider"),
		Task:           q.Get("task"),
	}
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	records, err := s.usage.QueryUsage(ctx, usageFilter(r))
	if err != nil {
		s.logger.Error("query usage", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []model.UsageRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	period := model.ReportPeriod(r.URL.Query().Get("period"))
	switch period {
	case "":
		period = model.PeriodDaily
	case model.PeriodDaily, model.PeriodWeekly, model.PeriodMonthly:
	default:
		writeError(w, r, http.StatusBadRequest, "period must be daily, weekly or monthly")
		return
	}

	filter := usageFilter(r)
	filter.StartTime, filter.EndTime = model.PeriodBounds(period, s.now())

	summary, err := s.usage.AggregateUsage(ctx, filter)
	if err != nil {
		s.logger.Error("aggregate usage", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
