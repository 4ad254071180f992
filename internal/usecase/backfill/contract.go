package backfill

import (
	"context"

	"github.com/kailas-cloud/plotpipe/internal/domain"
	"github.com/kailas-cloud/plotpipe/internal/repository/queue"
)

// CandidateReader selects documents awaiting an embedding.
type CandidateReader interface {
	FindCandidates(ctx context.Context, limit int) ([]domain.Document, error)
}

// BatchSender enqueues one batch of messages.
type BatchSender interface {
	SendBatch(ctx context.Context, msgs []queue.Message) error
}
