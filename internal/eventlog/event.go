// Package eventlog appends structured query, response, upload and error
// events to daily NDJSON files and reads them back.
package eventlog

import (
	"context"
	"fmt"
	"slices"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
)

// Type is an event file family.
type Type string

// Event file families.
const (
	TypeQueries   Type = "queries"
	TypeResponses Type = "responses"
	TypeUploads   Type = "uploads"
	TypeErrors    Type = "errors"
	TypeAll       Type = "all"
)

// Types lists the concrete families in read order.
var Types = []Type{TypeQueries, TypeResponses, TypeUploads, TypeErrors}

// ParseType validates a log_type value.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if t == TypeAll || slices.Contains(Types, t) {
		return t, nil
	}
	return "", fmt.Errorf("unknown log type %q: %w", s, domain.ErrInvalidArgument)
}

const (
	dateLayout      = "20060102"
	timestampLayout = "2006-01-02T15:04:05.000000Z07:00"
)

// Event is one NDJSON line.
type Event struct {
	EventID        string         `json:"event_id"`
	Timestamp      string         `json:"timestamp"`
	EventType      string         `json:"event_type"`
	RequestID      string         `json:"request_id,omitempty"`
	APIKeyHash     string         `json:"api_key_hash,omitempty"`
	Query          string         `json:"query,omitempty"`
	Response       string         `json:"response,omitempty"`
	ProcessingTime *float64       `json:"processing_time_seconds,omitempty"`
	Filename       string         `json:"filename,omitempty"`
	FileSize       *int64         `json:"file_size_bytes,omitempty"`
	Success        *bool          `json:"success,omitempty"`
	ErrorType      string         `json:"error_type,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Additional     map[string]any `json:"additional_data,omitempty"`
}

// Caller identifies who triggered an event.
type Caller struct {
	APIKeyHash string
	RequestID  string
}

type callerKey struct{}

// WithCaller attaches caller identity to ctx for later events.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromContext returns the caller stored by WithCaller.
func CallerFromContext(ctx context.Context) Caller {
	c, _ := ctx.Value(callerKey{}).(Caller)
	return c
}
