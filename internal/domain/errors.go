package domain

import "errors"

var (
	// ErrInvalidFileType signals an upload that is not an Excel workbook.
	ErrInvalidFileType = errors.New("invalid file type")
	// ErrIngestFailure signals a parse, transform or index-build failure during ingest.
	ErrIngestFailure = errors.New("ingest failed")
	// ErrDataNotReady signals a query before any successful ingest.
	ErrDataNotReady = errors.New("data not ready: upload a spreadsheet first")
	// ErrExternalCall signals an unreachable or malformed external API (LLM, rates).
	ErrExternalCall = errors.New("external call failed")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrAgentStepLimit signals an agent loop that never produced a final answer.
	ErrAgentStepLimit = errors.New("agent step limit exceeded")
	// ErrInvalidArgument signals malformed client input.
	ErrInvalidArgument = errors.New("invalid argument")
)
