package document

import (
	"context"

	"github.com/kailas-cloud/plotpipe/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	jsonReplaceFn func(ctx context.Context, key string, data []byte) (bool, error)
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchListFn  func(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
}

func (m *mockStore) JSONReplace(ctx context.Context, key string, data []byte) (bool, error) {
	if m.jsonReplaceFn != nil {
		return m.jsonReplaceFn(ctx, key, data)
	}
	return true, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchList(
	ctx context.Context, index, query string, offset, limit int, fields []string,
) (*db.SearchResult, error) {
	if m.searchListFn != nil {
		return m.searchListFn(ctx, index, query, offset, limit, fields)
	}
	return &db.SearchResult{}, nil
}
