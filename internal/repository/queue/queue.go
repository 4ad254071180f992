// Package queue is the gateway to the embedding job stream: batched send,
// batched receive with per-record acks, visibility-window reclaim, and
// dead-lettering.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/plotpipe/internal/db"
)

// MaxSendBatch is the provider limit for one SendBatch call.
const MaxSendBatch = 10

// Stream entry field names.
const (
	fieldMessageID = "id"
	fieldBody      = "body"
)

// streamStore is the consumer interface for the job stream (ISP).
type streamStore interface {
	XAddMulti(ctx context.Context, stream string, entries []db.StreamEntry) ([]string, error)
	EnsureGroup(ctx context.Context, stream, group string) error
	ReadGroup(ctx context.Context, stream, group, consumer string, count int, block time.Duration) ([]db.StreamRecord, error)
	Ack(ctx context.Context, stream, group string, ids ...string) error
	AutoClaim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, count int) ([]db.StreamRecord, error)
	PendingCounts(ctx context.Context, stream, group string, ids []string) (map[string]int64, error)
}

// Message is one outbound queue message: an opaque payload plus an identifier
// unique within its send batch.
type Message struct {
	ID   string
	Body []byte
}

// NewMessage creates a message with a fresh uuid identifier.
func NewMessage(body []byte) Message {
	return Message{ID: uuid.NewString(), Body: body}
}

// Delivery is one received queue record. StreamID is the ack handle;
// MessageID is the sender-assigned correlation identifier.
type Delivery struct {
	StreamID  string
	MessageID string
	Body      []byte
}

// Queue implements the queue gateway over a Redis stream consumer group.
type Queue struct {
	store  streamStore
	stream string
	group  string
	dead   string
}

// New creates a queue gateway.
func New(s streamStore, stream, group, deadLetterStream string) *Queue {
	return &Queue{store: s, stream: stream, group: group, dead: deadLetterStream}
}

// EnsureGroup creates the consumer group if missing. Called once at worker
// startup.
func (q *Queue) EnsureGroup(ctx context.Context) error {
	if err := q.store.EnsureGroup(ctx, q.stream, q.group); err != nil {
		return fmt.Errorf("ensure group %s/%s: %w", q.stream, q.group, err)
	}
	return nil
}

// SendBatch enqueues up to MaxSendBatch messages in one pipelined call.
// Already-appended entries are not rolled back on a partial failure;
// downstream processing is idempotent.
func (q *Queue) SendBatch(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if len(msgs) > MaxSendBatch {
		return fmt.Errorf("batch of %d exceeds max send batch %d", len(msgs), MaxSendBatch)
	}
	if err := uniqueIDs(msgs); err != nil {
		return err
	}

	entries := make([]db.StreamEntry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, db.StreamEntry{Values: map[string]string{
			fieldMessageID: m.ID,
			fieldBody:      string(m.Body),
		}})
	}

	if _, err := q.store.XAddMulti(ctx, q.stream, entries); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// ReceiveBatch delivers up to count new records, blocking up to block.
func (q *Queue) ReceiveBatch(ctx context.Context, consumer string, count int, block time.Duration) ([]Delivery, error) {
	records, err := q.store.ReadGroup(ctx, q.stream, q.group, consumer, count, block)
	if err != nil {
		return nil, fmt.Errorf("receive batch: %w", err)
	}
	return toDeliveries(records), nil
}

// Ack acknowledges processed records by stream id. Unacked records stay
// pending and are redelivered via Reclaim once the visibility window passes.
func (q *Queue) Ack(ctx context.Context, streamIDs ...string) error {
	if err := q.store.Ack(ctx, q.stream, q.group, streamIDs...); err != nil {
		return fmt.Errorf("ack: %w", err)
	}
	return nil
}

// Reclaim transfers records pending longer than minIdle to this consumer for
// redelivery.
func (q *Queue) Reclaim(ctx context.Context, consumer string, minIdle time.Duration, count int) ([]Delivery, error) {
	records, err := q.store.AutoClaim(ctx, q.stream, q.group, consumer, minIdle, count)
	if err != nil {
		return nil, fmt.Errorf("reclaim: %w", err)
	}
	return toDeliveries(records), nil
}

// DeliveryCounts returns how many times each pending record has been
// delivered, keyed by stream id.
func (q *Queue) DeliveryCounts(ctx context.Context, streamIDs []string) (map[string]int64, error) {
	counts, err := q.store.PendingCounts(ctx, q.stream, q.group, streamIDs)
	if err != nil {
		return nil, fmt.Errorf("delivery counts: %w", err)
	}
	return counts, nil
}

// DeadLetter copies a record to the dead-letter stream and acks the original.
// The copy keeps the original message id for correlation.
func (q *Queue) DeadLetter(ctx context.Context, d Delivery) error {
	entry := db.StreamEntry{Values: map[string]string{
		fieldMessageID: d.MessageID,
		fieldBody:      string(d.Body),
		"source_id":    d.StreamID,
	}}
	if _, err := q.store.XAddMulti(ctx, q.dead, []db.StreamEntry{entry}); err != nil {
		return fmt.Errorf("dead-letter %s: %w", d.StreamID, err)
	}
	if err := q.store.Ack(ctx, q.stream, q.group, d.StreamID); err != nil {
		return fmt.Errorf("ack dead-lettered %s: %w", d.StreamID, err)
	}
	return nil
}

func toDeliveries(records []db.StreamRecord) []Delivery {
	deliveries := make([]Delivery, 0, len(records))
	for _, r := range records {
		deliveries = append(deliveries, Delivery{
			StreamID:  r.StreamID,
			MessageID: r.Values[fieldMessageID],
			Body:      []byte(r.Values[fieldBody]),
		})
	}
	return deliveries
}

func uniqueIDs(msgs []Message) error {
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if m.ID == "" {
			return fmt.Errorf("message id is required")
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("duplicate message id %q in send batch", m.ID)
		}
		seen[m.ID] = struct{}{}
	}
	return nil
}
