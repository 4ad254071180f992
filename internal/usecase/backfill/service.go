// Package backfill selects documents that still need an embedding and fans
// them into the job queue as bounded batches.
package backfill

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/plotpipe/internal/domain"
	"github.com/kailas-cloud/plotpipe/internal/logger"
	"github.com/kailas-cloud/plotpipe/internal/metrics"
	"github.com/kailas-cloud/plotpipe/internal/repository/queue"
)

// TriggerName is stamped into dispatcher-produced change events so they stay
// indistinguishable from externally captured ones.
const TriggerName = "plotpipe-backfill"

// DefaultLimit caps candidate selection when the caller does not override it.
const DefaultLimit = 50

// Service is the backfill dispatcher.
type Service struct {
	docs         CandidateReader
	sender       BatchSender
	batchSize    int
	defaultLimit int
}

// New creates a backfill dispatcher.
func New(docs CandidateReader, sender BatchSender) *Service {
	return &Service{
		docs:         docs,
		sender:       sender,
		batchSize:    queue.MaxSendBatch,
		defaultLimit: DefaultLimit,
	}
}

// WithBatchSize configures the dispatch chunk size.
func (s *Service) WithBatchSize(size int) *Service {
	if size > 0 {
		s.batchSize = size
	}
	return s
}

// WithDefaultLimit configures the candidate limit used when the caller passes 0.
func (s *Service) WithDefaultLimit(limit int) *Service {
	if limit > 0 {
		s.defaultLimit = limit
	}
	return s
}

// Run selects up to limit candidates and dispatches them. limit == 0 means
// the configured default; a negative limit is a caller error. Returns how
// many candidates were read and how many were enqueued.
func (s *Service) Run(ctx context.Context, limit int) (read, sent int, err error) {
	docs, err := s.SelectCandidates(ctx, limit)
	if err != nil {
		return 0, 0, err
	}

	sent, err = s.Dispatch(ctx, docs)
	if err != nil {
		return len(docs), sent, err
	}
	return len(docs), sent, nil
}

// SelectCandidates returns documents with a plot and no embedding, capped at
// limit.
func (s *Service) SelectCandidates(ctx context.Context, limit int) ([]domain.Document, error) {
	if limit == 0 {
		limit = s.defaultLimit
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidLimit, limit)
	}

	docs, err := s.docs.FindCandidates(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	return docs, nil
}

// Dispatch groups documents into sequential chunks of exactly batchSize and
// sends each as one queue batch. A trailing partial chunk is NOT sent: it
// waits for the next trigger once enough candidates accumulate (throttling
// policy). A chunk send failure propagates; already-sent chunks are not
// rolled back — downstream processing is idempotent.
func (s *Service) Dispatch(ctx context.Context, docs []domain.Document) (int, error) {
	log := logger.FromContext(ctx)

	sent := 0
	for start := 0; start+s.batchSize <= len(docs); start += s.batchSize {
		chunk := docs[start : start+s.batchSize]

		msgs := make([]queue.Message, 0, len(chunk))
		for _, doc := range chunk {
			ev := domain.NewUpdateEvent(uuid.NewString(), TriggerName, doc)
			body, err := ev.Marshal()
			if err != nil {
				return sent, fmt.Errorf("encode event for %s: %w", doc.ID(), err)
			}
			msgs = append(msgs, queue.NewMessage(body))
		}

		if err := s.sender.SendBatch(ctx, msgs); err != nil {
			return sent, fmt.Errorf("send chunk at offset %d: %w", start, err)
		}
		sent += len(chunk)
		metrics.DocumentsDispatchedTotal.Add(float64(len(chunk)))
	}

	if rem := len(docs) - sent; rem > 0 {
		log.Debug("trailing partial chunk held back",
			zap.Int("remaining", rem),
			zap.Int("batch_size", s.batchSize),
		)
	}
	return sent, nil
}
