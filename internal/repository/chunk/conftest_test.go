package chunk

import (
	"context"

	"github.com/akashkatte-1/rag-paywatch/internal/db"
)

type mockStore struct {
	createFn func(ctx context.Context, def *db.IndexDefinition) error
	hsetFn   func(ctx context.Context, items []db.HashSetItem) error
	searchFn func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)

	created []*db.IndexDefinition
	dropped []string
	written []db.HashSetItem
	batches int
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	m.created = append(m.created, def)
	if m.createFn != nil {
		return m.createFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(_ context.Context, name string, _ bool) error {
	m.dropped = append(m.dropped, name)
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	m.batches++
	if m.hsetFn != nil {
		return m.hsetFn(ctx, items)
	}
	m.written = append(m.written, items...)
	return nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}
