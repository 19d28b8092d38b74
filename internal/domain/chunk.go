package domain

import "context"

// Chunk is a fragment of one candidate's Skills text with the rest of the row as metadata.
type Chunk struct {
	Row      int
	Text     string
	Metadata map[string]string
}

// ChunkHit is a chunk returned by a similarity search.
type ChunkHit struct {
	Chunk Chunk
	Score float64
}

// ChunkIndex is one immutable generation of the semantic index.
type ChunkIndex interface {
	Name() string
	Len() int
	Search(ctx context.Context, vector []float32, k int) ([]ChunkHit, error)
	// Close releases backend resources. Searching a closed index is an error.
	Close(ctx context.Context) error
}
