package queue

import (
	"context"
	"time"

	"github.com/kailas-cloud/plotpipe/internal/db"
)

// mockStreamStore implements the consumer interface for tests.
type mockStreamStore struct {
	xAddMultiFn     func(ctx context.Context, stream string, entries []db.StreamEntry) ([]string, error)
	ensureGroupFn   func(ctx context.Context, stream, group string) error
	readGroupFn     func(ctx context.Context, stream, group, consumer string, count int, block time.Duration) ([]db.StreamRecord, error)
	ackFn           func(ctx context.Context, stream, group string, ids ...string) error
	autoClaimFn     func(ctx context.Context, stream, group, consumer string, minIdle time.Duration, count int) ([]db.StreamRecord, error)
	pendingCountsFn func(ctx context.Context, stream, group string, ids []string) (map[string]int64, error)
}

func (m *mockStreamStore) XAddMulti(ctx context.Context, stream string, entries []db.StreamEntry) ([]string, error) {
	if m.xAddMultiFn != nil {
		return m.xAddMultiFn(ctx, stream, entries)
	}
	ids := make([]string, len(entries))
	for i := range entries {
		ids[i] = "0-0"
	}
	return ids, nil
}

func (m *mockStreamStore) EnsureGroup(ctx context.Context, stream, group string) error {
	if m.ensureGroupFn != nil {
		return m.ensureGroupFn(ctx, stream, group)
	}
	return nil
}

func (m *mockStreamStore) ReadGroup(
	ctx context.Context, stream, group, consumer string, count int, block time.Duration,
) ([]db.StreamRecord, error) {
	if m.readGroupFn != nil {
		return m.readGroupFn(ctx, stream, group, consumer, count, block)
	}
	return nil, nil
}

func (m *mockStreamStore) Ack(ctx context.Context, stream, group string, ids ...string) error {
	if m.ackFn != nil {
		return m.ackFn(ctx, stream, group, ids...)
	}
	return nil
}

func (m *mockStreamStore) AutoClaim(
	ctx context.Context, stream, group, consumer string, minIdle time.Duration, count int,
) ([]db.StreamRecord, error) {
	if m.autoClaimFn != nil {
		return m.autoClaimFn(ctx, stream, group, consumer, minIdle, count)
	}
	return nil, nil
}

func (m *mockStreamStore) PendingCounts(
	ctx context.Context, stream, group string, ids []string,
) (map[string]int64, error) {
	if m.pendingCountsFn != nil {
		return m.pendingCountsFn(ctx, stream, group, ids)
	}
	return map[string]int64{}, nil
}
