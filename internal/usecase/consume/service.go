// Package consume processes delivered queue batches: one embedding per
// record, an idempotent write-back, and a per-record outcome report so the
// queue redelivers only what failed.
package consume

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/plotpipe/internal/domain"
	"github.com/kailas-cloud/plotpipe/internal/logger"
	"github.com/kailas-cloud/plotpipe/internal/metrics"
)

// DefaultTimeSafety is the minimum remaining budget required to start a
// record.
const DefaultTimeSafety = time.Second

// Service is the batch consumer.
type Service struct {
	embed      Embedder
	docs       DocumentReplacer
	timeSafety time.Duration
}

// New creates a batch consumer.
func New(embed Embedder, docs DocumentReplacer) *Service {
	return &Service{embed: embed, docs: docs, timeSafety: DefaultTimeSafety}
}

// WithTimeSafety configures the remaining-budget threshold.
func (s *Service) WithTimeSafety(d time.Duration) *Service {
	if d > 0 {
		s.timeSafety = d
	}
	return s
}

// HandleBatch processes records sequentially in delivery order. Failures are
// isolated per record: one record failing never prevents the rest from being
// attempted. The returned results carry exactly which records failed; every
// failure here is retriable.
func (s *Service) HandleBatch(ctx context.Context, records []Record) []domain.Result {
	metrics.BatchesReceivedTotal.Inc()

	results := make([]domain.Result, 0, len(records))
	for _, rec := range records {
		results = append(results, s.handleRecord(ctx, rec))
	}
	return results
}

// handleRecord processes one record under the batch's time budget. The
// record-scoped logger carries the correlation identifiers; its scope ends
// with the record.
func (s *Service) handleRecord(ctx context.Context, rec Record) domain.Result {
	start := time.Now()
	defer func() {
		metrics.RecordProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	log := logger.FromContext(ctx).With(zap.String("message_id", rec.MessageID))
	ctx = logger.ContextWithLogger(ctx, log)

	// Starting a record we cannot finish would let the batch deadline drop
	// in-flight work silently. Fail fast and let redelivery pick it up.
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < s.timeSafety {
			log.Warn("skipping record, time budget too low",
				zap.Duration("remaining", remaining),
				zap.Duration("threshold", s.timeSafety),
			)
			metrics.RecordsProcessedTotal.WithLabelValues("retry").Inc()
			return domain.NewRetriable(rec.ID, fmt.Errorf("%w: %s left", domain.ErrTimeBudget, time.Until(deadline)))
		}
	}

	ev, err := domain.ParseChangeEvent(rec.Body)
	if err != nil {
		return s.retry(log, rec.ID, fmt.Errorf("parse payload: %w", err))
	}

	doc := ev.Document()
	log = log.With(zap.String("doc_id", doc.ID()))
	ctx = logger.ContextWithLogger(ctx, log)

	if doc.Plot() == "" {
		return s.retry(log, rec.ID, fmt.Errorf("%w: document %s has no plot", domain.ErrMalformedEvent, doc.ID()))
	}

	embResult, err := s.embed.Embed(ctx, doc.Plot())
	if err != nil {
		return s.retry(log, rec.ID, fmt.Errorf("embed plot: %w", err))
	}

	// Full-document replace: the stored document becomes exactly this
	// snapshot plus the vector. Replaying the same event is a no-op write.
	modified, err := s.docs.Replace(ctx, doc.ID(), doc.WithVector(embResult.Embedding))
	if err != nil {
		return s.retry(log, rec.ID, fmt.Errorf("replace document: %w", err))
	}
	if modified == 0 {
		return s.retry(log, rec.ID, fmt.Errorf("%w: %s", domain.ErrStaleDocument, doc.ID()))
	}

	log.Info("record processed",
		zap.Int("dimensions", len(embResult.Embedding)),
		zap.Int("tokens", embResult.TotalTokens),
	)
	metrics.RecordsProcessedTotal.WithLabelValues("success").Inc()
	return domain.NewOK(rec.ID)
}

func (s *Service) retry(log *zap.Logger, id string, err error) domain.Result {
	log.Warn("record failed, leaving for redelivery", zap.Error(err))
	metrics.RecordsProcessedTotal.WithLabelValues("retry").Inc()
	return domain.NewRetriable(id, err)
}
