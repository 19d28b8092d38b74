package ingest

import (
	"context"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
)

// IndexBuilder creates one index generation from chunks and their vectors.
// On failure it must release anything it partially created.
type IndexBuilder interface {
	Build(ctx context.Context, name string, chunks []domain.Chunk, vectors [][]float32) (domain.ChunkIndex, error)
}

// Publisher swaps in a new snapshot and assigns its generation.
type Publisher interface {
	Publish(ctx context.Context, snap *domain.Snapshot) *domain.Snapshot
}
