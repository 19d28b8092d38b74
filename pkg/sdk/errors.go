package paywatch

import (
	"fmt"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidFileType = domain.ErrInvalidFileType
	ErrIngestFailure   = domain.ErrIngestFailure
	ErrDataNotReady    = domain.ErrDataNotReady
	ErrExternalCall    = domain.ErrExternalCall
	ErrAgentStepLimit  = domain.ErrAgentStepLimit
	ErrInvalidArgument = domain.ErrInvalidArgument
)

// sentinelByCode maps server error codes to sentinels.
var sentinelByCode = map[string]error{
	"invalid_file_type":    ErrInvalidFileType,
	"ingest_failed":        ErrIngestFailure,
	"data_not_ready":       ErrDataNotReady,
	"external_call_failed": ErrExternalCall,
	"agent_step_limit":     ErrAgentStepLimit,
	"invalid_argument":     ErrInvalidArgument,
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("paywatch: http %d", e.StatusCode)
	}
	return fmt.Sprintf("paywatch: http %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap exposes the matching sentinel so errors.Is works across the wire.
func (e *APIError) Unwrap() error {
	return sentinelByCode[e.Code]
}
