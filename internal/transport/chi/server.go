// Package chi serves the upload, query, logs, health and metrics endpoints.
package chi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
	"github.com/akashkatte-1/rag-paywatch/internal/eventlog"
	"github.com/akashkatte-1/rag-paywatch/internal/logger"
	"github.com/akashkatte-1/rag-paywatch/internal/metrics"
	healthuc "github.com/akashkatte-1/rag-paywatch/internal/usecase/health"
)

const (
	// DefaultMaxUploadBytes bounds the workbook request body.
	DefaultMaxUploadBytes = 20 << 20

	// FilenameHeader names the workbook when it is sent as a raw body.
	FilenameHeader = "X-Filename"

	uploadMessage  = "Data ingested successfully!"
	multipartField = "file"
	answerLogLimit = 200
)

var errMissingFile = errors.New("no file provided")

// Server handles the HTTP API.
type Server struct {
	ingest    Ingester
	agent     Asker
	events    EventLogger
	logs      LogReader
	health    HealthChecker
	logger    *zap.Logger
	maxUpload int64
	now       func() time.Time
}

// NewServer creates an HTTP API server.
func NewServer(
	ingest Ingester,
	agent Asker,
	events EventLogger,
	logs LogReader,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	return &Server{
		ingest:    ingest,
		agent:     agent,
		events:    events,
		logs:      logs,
		health:    health,
		logger:    logger,
		maxUpload: DefaultMaxUploadBytes,
		now:       time.Now,
	}
}

// WithMaxUploadBytes overrides the upload body limit. n <= 0 is ignored.
func (s *Server) WithMaxUploadBytes(n int64) *Server {
	if n > 0 {
		s.maxUpload = n
	}
	return s
}

// Router wires middleware and routes. Trailing slashes are optional on every route.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(middleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(middleware.StripSlashes)
	r.Use(APIKeyAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Post("/upload-excel", s.UploadExcel)
	r.Post("/query", s.Query)
	r.Get("/logs", s.Logs)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}

// UploadResponse is the body of a successful upload.
type UploadResponse struct {
	Message    string `json:"message"`
	IndexName  string `json:"index_name"`
	Generation uint64 `json:"generation"`
	Rows       int    `json:"rows"`
	Chunks     int    `json:"chunks"`
}

// UploadExcel handles POST /upload-excel/.
func (s *Server) UploadExcel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	filename, body, size, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			s.events.LogUpload(ctx, filename, size, false, err.Error())
			writeError(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge,
				"file exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
		case errors.Is(err, errMissingFile), errors.Is(err, http.ErrMissingFile):
			writeError(w, http.StatusBadRequest, codeMissingFile, "No file provided")
		default:
			writeError(w, http.StatusBadRequest, codeBadRequest, "invalid upload body")
		}
		return
	}
	defer func() { _ = body.Close() }()

	res, err := s.ingest.Ingest(ctx, filename, body)
	if err != nil {
		s.events.LogUpload(ctx, filename, size, false, err.Error())
		handleDomainError(w, r, err)
		return
	}
	s.events.LogUpload(ctx, filename, size, true, "")

	writeJSON(w, http.StatusOK, UploadResponse{
		Message:    uploadMessage,
		IndexName:  res.IndexName,
		Generation: res.Generation,
		Rows:       res.Rows,
		Chunks:     res.Chunks,
	})
}

// readUpload returns the workbook from a multipart "file" field or a raw body named by X-Filename.
func readUpload(r *http.Request) (string, io.ReadCloser, int64, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		f, hdr, err := r.FormFile(multipartField)
		if err != nil {
			return "", nil, 0, err //nolint:wrapcheck // classified by the caller
		}
		return hdr.Filename, f, hdr.Size, nil
	}

	filename := r.Header.Get(FilenameHeader)
	if filename == "" {
		return "", nil, 0, errMissingFile
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return filename, nil, int64(len(data)), err //nolint:wrapcheck // classified by the caller
	}
	if len(data) == 0 {
		return filename, nil, 0, errMissingFile
	}
	return filename, io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

// QueryRequest is the body of POST /query/.
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse is the body of a successful query.
type QueryResponse struct {
	Answer string `json:"answer"`
}

// Query handles POST /query/.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body")
		return
	}
	question := strings.TrimSpace(req.Query)
	if question == "" {
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "query is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	s.events.LogQuery(ctx, question)

	ans, err := s.agent.Ask(ctx, question)
	setUsageHeaders(w, usage.Totals())
	if err != nil {
		code := handleDomainError(w, r, err)
		s.events.LogError(ctx, code, err.Error())
		return
	}

	took := time.Since(start)
	s.events.LogResponse(ctx, question, ans.Text, took)
	logger.FromContext(ctx).Debug("query answered",
		zap.Uint64("generation", ans.Generation),
		zap.Int("steps", ans.Steps),
		zap.Int("tool_calls", len(ans.ToolCalls)),
		zap.String("answer", logger.TruncateForLog(ans.Text, answerLogLimit)),
	)

	writeJSON(w, http.StatusOK, QueryResponse{Answer: ans.Text})
}

// LogsResponse is the body of GET /logs/.
type LogsResponse struct {
	Date    string           `json:"date"`
	LogType string           `json:"log_type"`
	Count   int              `json:"count"`
	Entries []eventlog.Entry `json:"entries"`
}

// Logs handles GET /logs/?date=YYYYMMDD&log_type=all|queries|responses|uploads|errors.
func (s *Server) Logs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := q.Get("date")
	if date == "" {
		date = s.now().UTC().Format("20060102")
	}
	logType := q.Get("log_type")
	if logType == "" {
		logType = string(eventlog.TypeAll)
	}

	entries, err := s.logs.Read(date, logType)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, LogsResponse{
		Date:    date,
		LogType: logType,
		Count:   len(entries),
		Entries: entries,
	})
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setUsageHeaders(w http.ResponseWriter, t domain.UsageTotals) {
	if t.EmbeddingTokens > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(t.EmbeddingTokens))
	}
	if t.PromptTokens > 0 || t.CompletionTokens > 0 {
		w.Header().Set("X-Prompt-Tokens", strconv.Itoa(t.PromptTokens))
		w.Header().Set("X-Completion-Tokens", strconv.Itoa(t.CompletionTokens))
	}
	if t.ToolCalls > 0 {
		w.Header().Set("X-Tool-Calls", strconv.Itoa(t.ToolCalls))
	}
}
