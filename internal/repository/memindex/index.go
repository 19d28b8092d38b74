// Package memindex is an in-process, exact cosine-similarity chunk index.
package memindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
)

var errClosed = errors.New("index closed")

var _ domain.ChunkIndex = (*Index)(nil)

// Index holds chunks with their unit-normalized vectors. It is read-only after New.
type Index struct {
	name    string
	dim     int
	chunks  []domain.Chunk
	vectors [][]float32
	closed  atomic.Bool
}

// Builder creates in-memory index generations.
type Builder struct{}

// Build implements the ingest index builder contract.
func (Builder) Build(_ context.Context, name string, chunks []domain.Chunk, vectors [][]float32) (domain.ChunkIndex, error) {
	return New(name, chunks, vectors)
}

// New indexes chunks[i] under vectors[i]. All vectors must share one non-zero dimension.
func New(name string, chunks []domain.Chunk, vectors [][]float32) (*Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%d chunks but %d vectors", len(chunks), len(vectors))
	}

	idx := &Index{
		name:    name,
		chunks:  make([]domain.Chunk, len(chunks)),
		vectors: make([][]float32, len(vectors)),
	}
	copy(idx.chunks, chunks)

	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("vector %d is empty", i)
		}
		if idx.dim == 0 {
			idx.dim = len(v)
		} else if len(v) != idx.dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), idx.dim)
		}
		idx.vectors[i] = normalize(v)
	}
	return idx, nil
}

// Name returns the generation name.
func (idx *Index) Name() string { return idx.name }

// Len returns the number of indexed chunks.
func (idx *Index) Len() int { return len(idx.chunks) }

// Search returns up to k chunks by descending cosine similarity. Ties keep insertion order.
func (idx *Index) Search(ctx context.Context, vector []float32, k int) ([]domain.ChunkHit, error) {
	if idx.closed.Load() {
		return nil, errClosed
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(idx.chunks) == 0 {
		return nil, nil
	}
	if len(vector) != idx.dim {
		return nil, fmt.Errorf("query has dimension %d, want %d", len(vector), idx.dim)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := normalize(vector)
	hits := make([]domain.ChunkHit, len(idx.chunks))
	for i, v := range idx.vectors {
		hits[i] = domain.ChunkHit{Chunk: idx.chunks[i], Score: dot(q, v)}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Close marks the index unusable. It is idempotent.
func (idx *Index) Close(_ context.Context) error {
	idx.closed.Store(true)
	return nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	n := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
