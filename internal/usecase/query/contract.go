package query

import (
	"context"

	"github.com/kailas-cloud/plotpipe/internal/domain"
)

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorSearcher runs a KNN similarity search over stored embeddings.
type VectorSearcher interface {
	VectorSearch(ctx context.Context, vector []float32, k int) ([]domain.Hit, error)
}
