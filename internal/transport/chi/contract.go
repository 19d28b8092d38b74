package chi

import (
	"context"
	"io"
	"time"

	"github.com/akashkatte-1/rag-paywatch/internal/eventlog"
	"github.com/akashkatte-1/rag-paywatch/internal/usecase/agent"
	healthuc "github.com/akashkatte-1/rag-paywatch/internal/usecase/health"
	"github.com/akashkatte-1/rag-paywatch/internal/usecase/ingest"
)

// Ingester publishes an uploaded workbook.
type Ingester interface {
	Ingest(ctx context.Context, filename string, r io.Reader) (ingest.Result, error)
}

// Asker answers a question against the live data.
type Asker interface {
	Ask(ctx context.Context, question string) (agent.Answer, error)
}

// EventLogger records query, response, upload and error events.
type EventLogger interface {
	LogQuery(ctx context.Context, query string)
	LogResponse(ctx context.Context, query, response string, took time.Duration)
	LogUpload(ctx context.Context, filename string, size int64, success bool, errMsg string)
	LogError(ctx context.Context, errType, msg string)
}

// LogReader reads a day of recorded events.
type LogReader interface {
	Read(date, logType string) ([]eventlog.Entry, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
