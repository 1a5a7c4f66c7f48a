// Package api exposes lead scoring and reply triage over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/lead-triage/internal/leadscorer"
	"github.com/sells-group/lead-triage/internal/model"
	"github.com/sells-group/lead-triage/internal/triage"
)

// Default request limits.
const (
	DefaultMaxBatchSize  = 500
	defaultApprovalLimit = 50
	maxBodyBytes         = 10 << 20
)

// LeadProcessor scores leads with duplicate protection.
type LeadProcessor interface {
	Process(ctx context.Context, lead model.Lead, force bool) (*model.LeadOutcome, error)
	ProcessBatch(ctx context.Context, leads []model.Lead, opts leadscorer.BatchOptions) []model.LeadOutcome
}

// ReplyHandler triages inbound replies.
type ReplyHandler interface {
	HandleReply(ctx context.Context, reply model.ReplyPayload) (*model.ReplyOutcome, error)
}

// ApprovalLister reads the approval queue.
type ApprovalLister interface {
	ListApprovals(ctx context.Context, limit int) ([]model.ApprovalItem, error)
}

// Deps are the collaborators behind the routes. Nil collaborators answer
// 503 on their routes.
type Deps struct {
	Leads     LeadProcessor
	Replies   ReplyHandler
	Approvals ApprovalLister
	// Health reports backing store reachability. Optional.
	Health func(ctx context.Context) error
}

// Config tunes the HTTP surface.
type Config struct {
	AllowedOrigins   []string
	MaxBatchSize     int
	BatchConcurrency int
}

// Server routes HTTP requests to the scoring and triage pipelines.
type Server struct {
	d   Deps
	cfg Config
}

// NewServer creates a Server.
func NewServer(d Deps, cfg Config) *Server {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return &Server{d: d, cfg: cfg}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/leads/score", s.scoreLead)
		r.Post("/leads/score/batch", s.scoreBatch)
		r.Post("/replies", s.handleReply)
		r.Get("/approvals", s.listApprovals)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.d.Health != nil {
		if err := s.d.Health(r.Context()); err != nil {
			zap.L().Warn("api: health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) scoreLead(w http.ResponseWriter, r *http.Request) {
	if s.d.Leads == nil {
		writeError(w, http.StatusServiceUnavailable, "lead scoring is not configured")
		return
	}
	var lead model.Lead
	if !decode(w, r, &lead) {
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	out, err := s.d.Leads.Process(r.Context(), lead, force)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type batchRequest struct {
	Leads []model.Lead `json:"leads"`
	Force bool         `json:"force"`
}

type batchResponse struct {
	Total    int                 `json:"total"`
	Scored   int                 `json:"scored"`
	Skipped  int                 `json:"skipped"`
	Failed   int                 `json:"failed"`
	Outcomes []model.LeadOutcome `json:"outcomes"`
}

func (s *Server) scoreBatch(w http.ResponseWriter, r *http.Request) {
	if s.d.Leads == nil {
		writeError(w, http.StatusServiceUnavailable, "lead scoring is not configured")
		return
	}
	var req batchRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Leads) > s.cfg.MaxBatchSize {
		writeError(w, http.StatusRequestEntityTooLarge, "batch exceeds "+strconv.Itoa(s.cfg.MaxBatchSize)+" leads")
		return
	}

	outcomes := s.d.Leads.ProcessBatch(r.Context(), req.Leads, leadscorer.BatchOptions{
		Concurrency: s.cfg.BatchConcurrency,
		Force:       req.Force,
	})

	resp := batchResponse{Total: len(outcomes), Outcomes: outcomes}
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			resp.Skipped++
		case o.Result == nil || o.Result.Error != "":
			resp.Failed++
		default:
			resp.Scored++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	if s.d.Replies == nil {
		writeError(w, http.StatusServiceUnavailable, "reply triage is not configured")
		return
	}
	var reply model.ReplyPayload
	if !decode(w, r, &reply) {
		return
	}
	out, err := s.d.Replies.HandleReply(r.Context(), reply)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listApprovals(w http.ResponseWriter, r *http.Request) {
	if s.d.Approvals == nil {
		writeError(w, http.StatusServiceUnavailable, "approval queue is not configured")
		return
	}
	limit := defaultApprovalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	items, err := s.d.Approvals.ListApprovals(r.Context(), limit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if items == nil {
		items = []model.ApprovalItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeFailure maps input defects to 400 and everything else to 500.
func writeFailure(w http.ResponseWriter, err error) {
	if errors.Is(err, leadscorer.ErrInvalidLead) || errors.Is(err, triage.ErrInvalidReply) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	zap.L().Error("api: request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
