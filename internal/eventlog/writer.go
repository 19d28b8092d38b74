package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akashkatte-1/rag-paywatch/internal/logger"
)

const responsePreview = 100

// Writer appends events to <dir>/<type>_<YYYYMMDD>.jsonl. Write failures are
// logged and never returned to the caller.
type Writer struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time

	mu sync.Mutex
}

// NewWriter creates dir if needed.
func NewWriter(dir string, logger *zap.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create event log dir: %w", err)
	}
	return &Writer{dir: dir, logger: logger, now: time.Now}, nil
}

// Dir returns the directory events are written to.
func (w *Writer) Dir() string { return w.dir }

// LogQuery records an incoming question.
func (w *Writer) LogQuery(ctx context.Context, query string) {
	w.logger.Info("User query", zap.String("query", logger.TruncateForLog(query, responsePreview)))
	w.write(ctx, TypeQueries, &Event{EventType: "user_query", Query: query})
}

// LogResponse records the answer to a question.
func (w *Writer) LogResponse(ctx context.Context, query, response string, took time.Duration) {
	secs := took.Seconds()
	w.logger.Info("Agent response",
		zap.String("response", logger.TruncateForLog(response, responsePreview)),
		zap.Duration("duration", took),
	)
	w.write(ctx, TypeResponses, &Event{
		EventType:      "rag_response",
		Query:          query,
		Response:       response,
		ProcessingTime: &secs,
	})
}

// LogUpload records an upload attempt. errMsg is empty on success.
func (w *Writer) LogUpload(ctx context.Context, filename string, size int64, success bool, errMsg string) {
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	w.logger.Info("File upload",
		zap.String("status", status),
		zap.String("filename", filename),
		zap.Int64("size", size),
	)
	w.write(ctx, TypeUploads, &Event{
		EventType:    "file_upload",
		Filename:     filename,
		FileSize:     &size,
		Success:      &success,
		ErrorMessage: errMsg,
	})
}

// LogError records a failure of the given kind, e.g. "query_error".
func (w *Writer) LogError(ctx context.Context, errType, msg string) {
	w.logger.Error("Request error", zap.String("error_type", errType), zap.String("error", msg))
	w.write(ctx, TypeErrors, &Event{EventType: "error", ErrorType: errType, ErrorMessage: msg})
}

func (w *Writer) write(ctx context.Context, t Type, ev *Event) {
	now := w.now().UTC()
	caller := CallerFromContext(ctx)
	ev.EventID = uuid.NewString()
	ev.Timestamp = now.Format(timestampLayout)
	ev.RequestID = caller.RequestID
	ev.APIKeyHash = caller.APIKeyHash

	line, err := json.Marshal(ev)
	if err != nil {
		w.logger.Error("Failed to encode event", zap.String("type", string(t)), zap.Error(err))
		return
	}
	line = append(line, '\n')

	path := filepath.Join(w.dir, fileName(t, now))

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		w.logger.Error("Failed to open event log", zap.String("path", path), zap.Error(err))
		return
	}
	if _, err := f.Write(line); err != nil {
		w.logger.Error("Failed to write event", zap.String("path", path), zap.Error(err))
	}
	if err := f.Close(); err != nil {
		w.logger.Error("Failed to close event log", zap.String("path", path), zap.Error(err))
	}
}

func fileName(t Type, day time.Time) string {
	return fmt.Sprintf("%s_%s.jsonl", t, day.Format(dateLayout))
}
