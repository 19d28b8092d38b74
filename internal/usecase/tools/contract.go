package tools

import (
	"context"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
)

// RateSource fetches a live exchange rate. ok=false means no rate is available.
type RateSource interface {
	Rate(ctx context.Context, from, to string) (float64, bool)
}

// Embedder vectorizes the retrieval query.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
