// Package chunk stores index generations as hashes under an FT vector index.
package chunk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/akashkatte-1/rag-paywatch/internal/db"
	"github.com/akashkatte-1/rag-paywatch/internal/domain"
)

// Hash field names.
const (
	fieldContent = "__content"
	fieldMeta    = "__meta"
	fieldRow     = "row"
	fieldVector  = "vector"
)

const writeBatchSize = 500

var errClosed = errors.New("index closed")

type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig holds HNSW graph parameters for the vector field.
type HNSWConfig struct {
	M              int
	EFConstruction int
}

// Builder writes a new generation per Build call.
type Builder struct {
	store     store
	keyPrefix string
	hnsw      HNSWConfig
	logger    *zap.Logger
}

// NewBuilder creates a Builder. keyPrefix namespaces every key and index name.
func NewBuilder(s store, keyPrefix string, hnsw HNSWConfig, logger *zap.Logger) *Builder {
	return &Builder{store: s, keyPrefix: keyPrefix, hnsw: hnsw, logger: logger}
}

// Build creates the FT index for generation name and writes chunks[i] with vectors[i].
// On failure the partially written generation is dropped.
func (b *Builder) Build(ctx context.Context, name string, chunks []domain.Chunk, vectors [][]float32) (domain.ChunkIndex, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%d chunks but %d vectors", len(chunks), len(vectors))
	}

	idx := &Index{
		store:  b.store,
		name:   b.keyPrefix + "idx:" + name,
		n:      len(chunks),
		logger: b.logger,
	}
	if len(chunks) == 0 {
		return idx, nil
	}

	dim := len(vectors[0])
	def, err := db.NewIndex(idx.name).
		Prefix(b.docPrefix(name)).
		Numeric(fieldRow).
		VectorHNSW(fieldVector, dim, db.DistanceCosine, b.hnsw.M, b.hnsw.EFConstruction).
		Build()
	if err != nil {
		return nil, fmt.Errorf("index definition: %w", err)
	}
	if err := b.store.CreateIndex(ctx, def); err != nil {
		return nil, fmt.Errorf("create index %s: %w", idx.name, err)
	}

	if err := b.write(ctx, name, dim, chunks, vectors); err != nil {
		if dropErr := b.store.DropIndex(context.WithoutCancel(ctx), idx.name, true); dropErr != nil {
			b.logger.Warn("Failed to drop partial index", zap.String("index", idx.name), zap.Error(dropErr))
		}
		return nil, err
	}
	return idx, nil
}

func (b *Builder) docPrefix(name string) string {
	return b.keyPrefix + "chunk:" + name + ":"
}

func (b *Builder) write(ctx context.Context, name string, dim int, chunks []domain.Chunk, vectors [][]float32) error {
	prefix := b.docPrefix(name)
	items := make([]db.HashSetItem, 0, min(writeBatchSize, len(chunks)))

	for i, c := range chunks {
		if len(vectors[i]) != dim {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(vectors[i]), dim)
		}
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata %d: %w", i, err)
		}
		items = append(items, db.HashSetItem{
			Key: prefix + strconv.Itoa(i),
			Fields: map[string]string{
				fieldContent: c.Text,
				fieldMeta:    string(meta),
				fieldRow:     strconv.Itoa(c.Row),
				fieldVector:  db.EncodeVector(vectors[i]),
			},
		})
		if len(items) == writeBatchSize {
			if err := b.store.HSetMulti(ctx, items); err != nil {
				return fmt.Errorf("write chunks: %w", err)
			}
			items = items[:0]
		}
	}
	if len(items) > 0 {
		if err := b.store.HSetMulti(ctx, items); err != nil {
			return fmt.Errorf("write chunks: %w", err)
		}
	}
	return nil
}

var _ domain.ChunkIndex = (*Index)(nil)

// Index is one generation backed by an FT index.
type Index struct {
	store  store
	name   string
	n      int
	closed atomic.Bool
	logger *zap.Logger
}

// Name returns the FT index name.
func (i *Index) Name() string { return i.name }

// Len returns the number of chunks written.
func (i *Index) Len() int { return i.n }

// Search runs a KNN query and decodes hits back into chunks.
func (i *Index) Search(ctx context.Context, vector []float32, k int) ([]domain.ChunkHit, error) {
	if i.closed.Load() {
		return nil, errClosed
	}
	if i.n == 0 {
		return nil, nil
	}

	res, err := i.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    i.name,
		VectorField:  fieldVector,
		Vector:       vector,
		K:            k,
		ReturnFields: []string{fieldContent, fieldMeta, fieldRow},
	})
	if err != nil {
		return nil, fmt.Errorf("knn %s: %w", i.name, err)
	}

	hits := make([]domain.ChunkHit, 0, len(res.Entries))
	for _, e := range res.Entries {
		c, err := decodeChunk(e.Fields)
		if err != nil {
			i.logger.Warn("Skipping undecodable chunk", zap.String("key", e.Key), zap.Error(err))
			continue
		}
		hits = append(hits, domain.ChunkHit{Chunk: c, Score: e.Score})
	}
	return hits, nil
}

// Close drops the FT index together with its hashes.
func (i *Index) Close(ctx context.Context) error {
	if i.closed.Swap(true) || i.n == 0 {
		return nil
	}
	if err := i.store.DropIndex(ctx, i.name, true); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop %s: %w", i.name, err)
	}
	return nil
}

func decodeChunk(fields map[string]string) (domain.Chunk, error) {
	row, err := strconv.Atoi(fields[fieldRow])
	if err != nil {
		return domain.Chunk{}, fmt.Errorf("row: %w", err)
	}
	var meta map[string]string
	if raw := fields[fieldMeta]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return domain.Chunk{}, fmt.Errorf("metadata: %w", err)
		}
	}
	return domain.Chunk{Row: row, Text: fields[fieldContent], Metadata: meta}, nil
}
