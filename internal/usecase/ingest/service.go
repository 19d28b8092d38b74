// Package ingest turns an uploaded workbook into a published snapshot.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
	"github.com/akashkatte-1/rag-paywatch/internal/domain/candidate"
	"github.com/akashkatte-1/rag-paywatch/internal/logger"
	"github.com/akashkatte-1/rag-paywatch/internal/metrics"
	"github.com/akashkatte-1/rag-paywatch/internal/spreadsheet"
	"github.com/akashkatte-1/rag-paywatch/internal/textsplit"
)

// Result describes a published ingest.
type Result struct {
	IndexName  string
	Generation uint64
	Rows       int
	Chunks     int
}

// Service runs ingests one at a time; concurrent uploads queue on mu.
type Service struct {
	mu        sync.Mutex
	splitter  *textsplit.Splitter
	embed     domain.Embedder
	builder   IndexBuilder
	publisher Publisher
}

// New creates an ingest service.
func New(splitter *textsplit.Splitter, embed domain.Embedder, builder IndexBuilder, publisher Publisher) *Service {
	return &Service{splitter: splitter, embed: embed, builder: builder, publisher: publisher}
}

// Ingest parses the workbook, indexes it and publishes the result. On any
// failure nothing is published and the previous snapshot stays live.
func (s *Service) Ingest(ctx context.Context, filename string, r io.Reader) (Result, error) {
	if err := spreadsheet.CheckFilename(filename); err != nil {
		metrics.IngestsTotal.WithLabelValues("rejected").Inc()
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.ingest(ctx, filename, r)
	if err != nil {
		metrics.IngestsTotal.WithLabelValues("error").Inc()
		logger.FromContext(ctx).Error("ingest failed", zap.String("filename", filename), zap.Error(err))
		return Result{}, fmt.Errorf("%w: %w", domain.ErrIngestFailure, err)
	}
	metrics.IngestsTotal.WithLabelValues("success").Inc()
	return res, nil
}

func (s *Service) ingest(ctx context.Context, filename string, r io.Reader) (Result, error) {
	log := logger.FromContext(ctx)

	table, err := spreadsheet.Read(r)
	if err != nil {
		return Result{}, fmt.Errorf("read workbook: %w", err)
	}
	table = table.WithoutColumn(candidate.ColumnName)

	skills, ok := table.Lookup(candidate.ColumnSkills)
	if !ok {
		return Result{}, errors.New("workbook has no Skills column")
	}

	chunks := s.chunk(table, skills)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var vectors [][]float32
	if len(texts) > 0 {
		emb, err := domain.EmbedAll(ctx, s.embed, texts)
		if err != nil {
			return Result{}, fmt.Errorf("embed chunks: %w", err)
		}
		vectors = emb.Embeddings
		domain.UsageFromContext(ctx).AddEmbeddingTokens(emb.TotalTokens)
	}

	name := "candidates-" + uuid.NewString()
	idx, err := s.builder.Build(ctx, name, chunks, vectors)
	if err != nil {
		return Result{}, fmt.Errorf("build index %s: %w", name, err)
	}
	if err := ctx.Err(); err != nil {
		if cerr := idx.Close(context.WithoutCancel(ctx)); cerr != nil {
			log.Warn("Failed to drop abandoned index", zap.String("index", name), zap.Error(cerr))
		}
		return Result{}, fmt.Errorf("ingest cancelled: %w", err)
	}

	// Publish may drop a retired index; that cleanup must outlive the request.
	snap := s.publisher.Publish(context.WithoutCancel(ctx), &domain.Snapshot{
		Table:  table,
		Index:  idx,
		Source: filename,
		Chunks: len(chunks),
	})

	metrics.SnapshotGeneration.Set(float64(snap.Generation))
	metrics.SnapshotRows.Set(float64(table.Len()))
	metrics.SnapshotChunks.Set(float64(len(chunks)))

	log.Info("Snapshot published",
		zap.String("filename", filename),
		zap.String("index", name),
		zap.Uint64("generation", snap.Generation),
		zap.Int("rows", table.Len()),
		zap.Int("chunks", len(chunks)),
	)

	return Result{
		IndexName:  name,
		Generation: snap.Generation,
		Rows:       table.Len(),
		Chunks:     len(chunks),
	}, nil
}

// chunk splits each row's Skills text. Every chunk of a row carries the row's
// other non-empty cells as metadata.
func (s *Service) chunk(table *candidate.Table, skills string) []domain.Chunk {
	var out []domain.Chunk
	for i := range table.Len() {
		rec := table.Record(i)
		meta := rec.Map(true)
		delete(meta, skills)

		for _, piece := range s.splitter.Split(rec.Get(skills)) {
			m := make(map[string]string, len(meta))
			for k, v := range meta {
				m[k] = v
			}
			out = append(out, domain.Chunk{Row: i, Text: piece, Metadata: m})
		}
	}
	return out
}
