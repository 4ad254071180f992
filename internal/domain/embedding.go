package domain

import "context"

// EmbeddingResult is a computed embedding plus provider-reported token usage.
// A cache hit reports zero tokens.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text into a fixed-length embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker is implemented by embedders that can verify provider
// availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Hit is one similarity search result projected for the query response.
type Hit struct {
	ID    string
	Title string
	Plot  string
	Score float64
}
