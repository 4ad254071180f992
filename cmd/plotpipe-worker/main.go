package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/plotpipe/internal/config"
	dbRedis "github.com/kailas-cloud/plotpipe/internal/db/redis"
	"github.com/kailas-cloud/plotpipe/internal/domain"
	logpkg "github.com/kailas-cloud/plotpipe/internal/logger"
	"github.com/kailas-cloud/plotpipe/internal/metrics"
	documentrepo "github.com/kailas-cloud/plotpipe/internal/repository/document"
	"github.com/kailas-cloud/plotpipe/internal/repository/embcache"
	queuerepo "github.com/kailas-cloud/plotpipe/internal/repository/queue"
	openaiEmb "github.com/kailas-cloud/plotpipe/internal/transport/openai"
	consumeuc "github.com/kailas-cloud/plotpipe/internal/usecase/consume"
	"github.com/kailas-cloud/plotpipe/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	consumer := consumerName()
	logger = logger.With(zap.String("consumer", consumer))

	logger.Info("Starting plotpipe worker",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("stream", cfg.Queue.Stream),
		zap.String("group", cfg.Queue.Group),
		zap.Int("batch_size", cfg.Queue.BatchSize),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	var embedder domain.Embedder = openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	if cfg.Embedding.CacheTTLh > 0 {
		embedder = embcache.New(
			embedder, store,
			cfg.Storage.KeyPrefix, cfg.Embedding.Model,
			time.Duration(cfg.Embedding.CacheTTLh)*time.Hour,
			metrics.EmbeddingCacheTotal, logger,
		)
	}

	docRepo := documentrepo.New(store, cfg.Storage.KeyPrefix, cfg.Storage.Index)
	jobQueue := queuerepo.New(store, cfg.Queue.Stream, cfg.Queue.Group, cfg.Queue.DeadLetterStream)

	if err := jobQueue.EnsureGroup(ctx); err != nil {
		logger.Fatal("Failed to ensure consumer group", zap.Error(err))
	}

	consumeSvc := consumeuc.New(embedder, docRepo).
		WithTimeSafety(time.Duration(cfg.Consumer.TimeSafetyMillis) * time.Millisecond)

	w := &worker{
		queue:         jobQueue,
		consume:       consumeSvc,
		consumer:      consumer,
		batchSize:     cfg.Queue.BatchSize,
		block:         time.Duration(cfg.Queue.BlockMillis) * time.Millisecond,
		visibility:    time.Duration(cfg.Queue.VisibilitySec) * time.Second,
		maxDeliveries: int64(cfg.Queue.MaxDeliveries),
		batchDeadline: time.Duration(cfg.Consumer.BatchDeadlineSec) * time.Second,
		logger:        logger,
	}

	w.run(ctx)
	logger.Info("Worker stopped gracefully")
}

type worker struct {
	queue         *queuerepo.Queue
	consume       *consumeuc.Service
	consumer      string
	batchSize     int
	block         time.Duration
	visibility    time.Duration
	maxDeliveries int64
	batchDeadline time.Duration
	logger        *zap.Logger
}

// run polls the stream until the context is canceled. Each iteration handles
// one delivered batch: reclaimed stale deliveries first (dead-lettering the
// ones past the delivery limit), then new entries.
func (w *worker) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		batch, err := w.collectBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("Failed to receive batch", zap.Error(err))
			// Back off briefly so a down queue does not spin the loop.
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if len(batch) == 0 {
			continue
		}

		w.handleBatch(ctx, batch)
	}
}

// collectBatch merges reclaimed deliveries with freshly read ones, up to the
// batch size. Reclaimed records past the delivery limit go to the dead-letter
// stream instead of being processed again.
func (w *worker) collectBatch(ctx context.Context) ([]queuerepo.Delivery, error) {
	var batch []queuerepo.Delivery

	claimed, err := w.queue.Reclaim(ctx, w.consumer, w.visibility, w.batchSize)
	if err != nil {
		return nil, fmt.Errorf("reclaim pending: %w", err)
	}
	if len(claimed) > 0 {
		ids := make([]string, len(claimed))
		for i, d := range claimed {
			ids[i] = d.StreamID
		}
		counts, err := w.queue.DeliveryCounts(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("delivery counts: %w", err)
		}
		for _, d := range claimed {
			if counts[d.StreamID] > w.maxDeliveries {
				w.deadLetter(ctx, d, counts[d.StreamID])
				continue
			}
			batch = append(batch, d)
		}
	}

	if len(batch) < w.batchSize {
		fresh, err := w.queue.ReceiveBatch(ctx, w.consumer, w.batchSize-len(batch), w.block)
		if err != nil {
			return nil, fmt.Errorf("receive: %w", err)
		}
		batch = append(batch, fresh...)
	}

	return batch, nil
}

func (w *worker) handleBatch(ctx context.Context, batch []queuerepo.Delivery) {
	records := make([]consumeuc.Record, len(batch))
	for i, d := range batch {
		records[i] = consumeuc.Record{
			ID:        d.StreamID,
			MessageID: d.MessageID,
			Body:      d.Body,
		}
	}

	// The deadline is the batch's time budget; the consumer checks what
	// remains of it before starting each record.
	bctx, cancel := context.WithTimeout(ctx, w.batchDeadline)
	bctx = logpkg.ContextWithLogger(bctx, w.logger)
	results := w.consume.HandleBatch(bctx, records)
	cancel()

	var acks []string
	for _, res := range results {
		if res.OK() {
			acks = append(acks, res.ID())
		}
	}
	if err := w.queue.Ack(ctx, acks...); err != nil {
		// Failing to ack means successful records get redelivered. The
		// write-back is idempotent, so this costs a duplicate embed at worst.
		w.logger.Error("Failed to ack batch", zap.Error(err), zap.Int("count", len(acks)))
	}

	if failed := domain.FailedIDs(results); len(failed) > 0 {
		w.logger.Info("batch completed with failures",
			zap.Int("total", len(results)),
			zap.Int("failed", len(failed)),
			zap.Strings("failed_ids", failed),
		)
	}
}

func (w *worker) deadLetter(ctx context.Context, d queuerepo.Delivery, deliveries int64) {
	if err := w.queue.DeadLetter(ctx, d); err != nil {
		w.logger.Error("Failed to dead-letter record",
			zap.String("stream_id", d.StreamID),
			zap.Error(err),
		)
		return
	}
	metrics.RecordsProcessedTotal.WithLabelValues("dead_letter").Inc()
	w.logger.Warn("record dead-lettered",
		zap.String("stream_id", d.StreamID),
		zap.String("message_id", d.MessageID),
		zap.Int64("deliveries", deliveries),
	)
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + uuid.NewString()[:8]
}
