// Package query is the read path: embed the request text and return the
// nearest stored documents by cosine similarity.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/plotpipe/internal/domain"
)

// TopK is the number of nearest neighbors returned. No pagination.
const TopK = 3

// Service handles free-text similarity queries.
type Service struct {
	embed  Embedder
	search VectorSearcher
}

// New creates a query service.
func New(embed Embedder, search VectorSearcher) *Service {
	return &Service{embed: embed, search: search}
}

// Search converts the query text into a vector and returns up to TopK hits in
// descending similarity order. An embedding failure aborts the request; it is
// not retried here.
func (s *Service) Search(ctx context.Context, queryText string) ([]domain.Hit, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, domain.ErrEmptyQuery
	}

	embResult, err := s.embed.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	hits, err := s.search.VectorSearch(ctx, embResult.Embedding, TopK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hits, nil
}
