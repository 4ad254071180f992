package consume

import (
	"context"

	"github.com/kailas-cloud/plotpipe/internal/domain"
)

// Record is one delivered queue record as the consumer sees it. ID is the
// ack handle (outcomes are keyed by it); MessageID is the sender-assigned
// correlation identifier.
type Record struct {
	ID        string
	MessageID string
	Body      []byte
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// DocumentReplacer performs the idempotent full-document write. It returns
// the number of documents matched: zero means the key vanished or the write
// lost a race.
type DocumentReplacer interface {
	Replace(ctx context.Context, id string, doc domain.Document) (int, error)
}
