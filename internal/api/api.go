// Package api serves the checklist engine and the pull request integration
// over a JSON REST API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/joescharf/reviewkit/internal/checklist"
	"github.com/joescharf/reviewkit/internal/models"
	"github.com/joescharf/reviewkit/internal/provider"
	"github.com/joescharf/reviewkit/internal/provider/common"
)

// PullRequests is the provider surface the API exposes.
type PullRequests interface {
	Provider() models.Remote
	OpenPullRequests(ctx context.Context) ([]models.PullRequestSummary, error)
	CreatePullRequest(ctx context.Context, title, description, sourceBranch, targetBranch string) (*models.CreatedPullRequest, error)
	AddReviewComment(ctx context.Context, prID int, filePath string, line int, comment string) bool
	SubmitReview(ctx context.Context, prID int, decision models.ReviewDecision, comment string) bool
	ChangedFiles(ctx context.Context, prID int) ([]string, error)
	CheckPullRequestQuality(ctx context.Context, prID int) models.QualityReport
	CheckFileQuality(ctx context.Context, path string) models.FileQuality
}

// Server provides the REST API handlers.
type Server struct {
	engine  *checklist.Engine
	pulls   PullRequests
	log     *slog.Logger
	origins []string
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins lists the browser origins granted cross-origin access.
// "*" allows any origin. Without it no CORS headers are sent and cross-origin
// writes are refused.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = append(s.origins, origins...) }
}

// NewServer creates a new API server. A nil logger uses slog.Default.
func NewServer(engine *checklist.Engine, pulls PullRequests, log *slog.Logger, opts ...Option) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{engine: engine, pulls: pulls, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/checklists", s.listChecklists)
	mux.HandleFunc("POST /api/v1/checklists", s.createChecklist)
	mux.HandleFunc("GET /api/v1/checklists/{name}", s.getChecklist)
	mux.HandleFunc("GET /api/v1/checklists/{name}/reports", s.checklistReports)

	mux.HandleFunc("GET /api/v1/reports", s.listReports)
	mux.HandleFunc("POST /api/v1/reports", s.generateReport)
	mux.HandleFunc("GET /api/v1/reports/{id}", s.getReport)
	mux.HandleFunc("PUT /api/v1/reports/{id}", s.updateReport)
	mux.HandleFunc("GET /api/v1/reports/{id}/export", s.exportReport)

	mux.HandleFunc("GET /api/v1/provider", s.getProvider)
	mux.HandleFunc("GET /api/v1/pulls", s.listPulls)
	mux.HandleFunc("POST /api/v1/pulls", s.createPull)
	mux.HandleFunc("GET /api/v1/pulls/{id}/files", s.pullFiles)
	mux.HandleFunc("GET /api/v1/pulls/{id}/quality", s.pullQuality)
	mux.HandleFunc("POST /api/v1/pulls/{id}/comments", s.addComment)
	mux.HandleFunc("POST /api/v1/pulls/{id}/reviews", s.submitReview)

	mux.HandleFunc("GET /api/v1/quality", s.fileQuality)

	return s.cors(s.logRequests(mux))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelDebug
		if rec.status >= 500 {
			level = slog.LevelWarn
		}
		s.log.Log(r.Context(), level, "api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// cors grants cross-origin access to configured origins only. Requests
// carrying any other Origin may read but never write.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := origin == "" || s.originAllowed(origin)
		if origin != "" {
			w.Header().Add("Vary", "Origin")
		}
		if origin != "" && allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		switch {
		case r.Method == http.MethodOptions && allowed:
			w.WriteHeader(http.StatusNoContent)
			return
		case r.Method == http.MethodOptions, !allowed && r.Method != http.MethodGet && r.Method != http.MethodHead:
			writeError(w, http.StatusForbidden, "origin not allowed: "+origin)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	return slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps the engine error taxonomy onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checklist.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, checklist.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeProviderError(w http.ResponseWriter, err error) {
	if errors.Is(err, common.ErrRequestFailed) || errors.Is(err, common.ErrInvalidPayload) {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// queryLimit parses ?limit=, returning -1 (engine default) when absent.
func queryLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return -1, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	return n, nil
}

func pathPRID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, errors.New("pull request id must be a positive integer")
	}
	return id, nil
}

// --- Checklists ---

func (s *Server) listChecklists(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.AvailableChecklists(r.Context()))
}

func (s *Server) createChecklist(w http.ResponseWriter, r *http.Request) {
	var body models.Checklist
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	cl, err := s.engine.CreateChecklist(r.Context(), body.Name, body.Items)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cl)
}

func (s *Server) getChecklist(w http.ResponseWriter, r *http.Request) {
	cl, err := s.engine.GetChecklist(r.Context(), r.PathValue("name"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cl)
}

func (s *Server) checklistReports(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reports, err := s.engine.ReportHistoryForChecklist(r.Context(), r.PathValue("name"), limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// --- Reports ---

type generateRequest struct {
	ChecklistName string   `json:"checklistName"`
	FilePaths     []string `json:"filePaths"`
	ReviewerID    string   `json:"reviewerId"`
}

type updateRequest struct {
	Results  []models.ReviewResult `json:"results"`
	Summary  string                `json:"summary"`
	Approved bool                  `json:"approved"`
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var reports []models.Report
	if name := r.URL.Query().Get("checklist"); name != "" {
		reports, err = s.engine.ReportHistoryForChecklist(r.Context(), name, limit)
	} else {
		reports, err = s.engine.ReportHistory(r.Context(), limit)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) generateReport(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	report, err := s.engine.GenerateReport(r.Context(), body.ChecklistName, body.FilePaths, body.ReviewerID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.GetReport(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) updateReport(w http.ResponseWriter, r *http.Request) {
	var body updateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	report, err := s.engine.UpdateReport(r.Context(), r.PathValue("id"), body.Results, body.Summary, body.Approved)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

var contentTypes = map[checklist.Format]string{
	checklist.FormatHTML:     "text/html; charset=utf-8",
	checklist.FormatMarkdown: "text/markdown; charset=utf-8",
	checklist.FormatJSON:     "application/json",
}

func (s *Server) exportReport(w http.ResponseWriter, r *http.Request) {
	format, err := checklist.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	doc := s.engine.ExportReport(r.Context(), r.PathValue("id"), format)
	w.Header().Set("Content-Type", contentTypes[format])
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// --- Provider ---

func (s *Server) getProvider(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pulls.Provider())
}

type createPullRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	SourceBranch string `json:"sourceBranch"`
	TargetBranch string `json:"targetBranch"`
}

type commentRequest struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Body string `json:"body"`
}

type reviewRequest struct {
	Decision models.ReviewDecision `json:"decision"`
	Body     string                `json:"body"`
}

func (s *Server) listPulls(w http.ResponseWriter, r *http.Request) {
	prs, err := s.pulls.OpenPullRequests(r.Context())
	if err != nil {
		writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prs)
}

func (s *Server) createPull(w http.ResponseWriter, r *http.Request) {
	var body createPullRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if body.Title == "" || body.SourceBranch == "" || body.TargetBranch == "" {
		writeError(w, http.StatusBadRequest, "title, sourceBranch and targetBranch are required")
		return
	}
	created, err := s.pulls.CreatePullRequest(r.Context(), body.Title, body.Description, body.SourceBranch, body.TargetBranch)
	if err != nil {
		writeProviderError(w, err)
		return
	}
	if created == nil {
		writeError(w, http.StatusUnprocessableEntity, provider.ErrNoProvider.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) pullFiles(w http.ResponseWriter, r *http.Request) {
	id, err := pathPRID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	files, err := s.pulls.ChangedFiles(r.Context(), id)
	if err != nil {
		writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) pullQuality(w http.ResponseWriter, r *http.Request) {
	id, err := pathPRID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.pulls.CheckPullRequestQuality(r.Context(), id))
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathPRID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body commentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if body.Path == "" || body.Line <= 0 || body.Body == "" {
		writeError(w, http.StatusBadRequest, "path, line and body are required")
		return
	}
	ok := s.pulls.AddReviewComment(r.Context(), id, body.Path, body.Line, body.Body)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

func (s *Server) submitReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathPRID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if !body.Decision.Valid() {
		writeError(w, http.StatusBadRequest, "decision must be approve, request_changes or comment")
		return
	}
	ok := s.pulls.SubmitReview(r.Context(), id, body.Decision, body.Body)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

func (s *Server) fileQuality(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	if !filepath.IsLocal(path) {
		writeError(w, http.StatusBadRequest, "path must be relative to the repository root")
		return
	}
	writeJSON(w, http.StatusOK, s.pulls.CheckFileQuality(r.Context(), filepath.Clean(path)))
}
