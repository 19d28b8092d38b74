package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
	"github.com/akashkatte-1/rag-paywatch/internal/logger"
)

// Error codes returned in the code field of error bodies.
const (
	codeBadRequest      = "bad_request"
	codeUnauthorized    = "unauthorized"
	codeInvalidFileType = "invalid_file_type"
	codeMissingFile     = "missing_file"
	codePayloadTooLarge = "payload_too_large"
	codeInvalidArgument = "invalid_argument"
	codeDataNotReady    = "data_not_ready"
	codeIngestFailed    = "ingest_failed"
	codeExternalCall    = "external_call_failed"
	codeAgentStepLimit  = "agent_step_limit"
	codeInternal        = "internal_error"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns the written code and true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) (string, bool)

// errorHandlers is ordered: an ingest failure caused by the embedding provider is still an ingest failure.
var errorHandlers = []errorHandler{
	sentinelHandler(domain.ErrInvalidFileType, http.StatusBadRequest, codeInvalidFileType),
	sentinelHandler(domain.ErrInvalidArgument, http.StatusBadRequest, codeInvalidArgument),
	sentinelHandler(domain.ErrDataNotReady, http.StatusConflict, codeDataNotReady),
	sentinelHandler(domain.ErrIngestFailure, http.StatusInternalServerError, codeIngestFailed),
	sentinelHandler(domain.ErrExternalCall, http.StatusBadGateway, codeExternalCall),
	sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeExternalCall),
	sentinelHandler(domain.ErrAgentStepLimit, http.StatusInternalServerError, codeAgentStepLimit),
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidFileType,
		domain.ErrInvalidArgument,
		domain.ErrDataNotReady,
		domain.ErrIngestFailure,
		domain.ErrExternalCall,
		domain.ErrEmbeddingProviderError,
		domain.ErrAgentStepLimit,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) (string, bool) {
		if !errors.Is(err, sentinel) {
			return "", false
		}
		writeError(w, status, code, msg)
		return code, true
	}
}

// handleDomainError writes the mapped error response and returns its code.
// The full error is only logged.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) string {
	log := logger.FromContext(r.Context())
	msg := safeDomainMessage(err)
	for _, h := range errorHandlers {
		if code, ok := h(w, err, msg); ok {
			log.Warn("domain error", zap.String("code", code), zap.Error(err))
			return code
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	return codeInternal
}
