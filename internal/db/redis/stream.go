package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/plotpipe/internal/db"
)

// XAddMulti appends entries in one pipelined round trip (at-least-once: a
// partially applied pipeline is not rolled back; consumers are idempotent).
// Returns the assigned stream ids in order.
func (s *Store) XAddMulti(ctx context.Context, stream string, entries []db.StreamEntry) ([]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	cmds := make(rueidis.Commands, 0, len(entries))
	for _, e := range entries {
		partial := s.b().Xadd().Key(stream).Id("*").FieldValue()
		for f, v := range e.Values {
			partial = partial.FieldValue(f, v)
		}
		cmds = append(cmds, partial.Build())
	}

	results := s.client.DoMulti(ctx, cmds...)

	ids := make([]string, 0, len(results))
	for _, r := range results {
		id, err := r.ToString()
		if err != nil {
			return ids, &db.Error{Op: db.OpXAdd, Err: err}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// EnsureGroup creates the consumer group at the stream tail, creating the
// stream if needed. An already-existing group is not an error.
func (s *Store) EnsureGroup(ctx context.Context, stream, group string) error {
	cmd := s.b().XgroupCreate().Key(stream).Group(group).Id("$").Mkstream().Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "BUSYGROUP") {
			return nil
		}
		return &db.Error{Op: db.OpXGroup, Err: err}
	}
	return nil
}

// ReadGroup delivers up to count new entries for the consumer, blocking up to
// block. A block timeout yields no records and a nil error.
func (s *Store) ReadGroup(
	ctx context.Context, stream, group, consumer string, count int, block time.Duration,
) ([]db.StreamRecord, error) {
	cmd := s.b().Xreadgroup().
		Group(group, consumer).
		Count(int64(count)).
		Block(block.Milliseconds()).
		Streams().Key(stream).Id(">").
		Build()

	res, err := s.do(ctx, cmd).AsXRead()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, &db.Error{Op: db.OpXReadGroup, Err: err}
	}

	entries := res[stream]
	records := make([]db.StreamRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, db.StreamRecord{
			StreamID: e.ID,
			Values:   e.FieldValues,
		})
	}
	return records, nil
}

// Ack acknowledges processed entries.
func (s *Store) Ack(ctx context.Context, stream, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	cmd := s.b().Xack().Key(stream).Group(group).Id(ids...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpXAck, Err: err}
	}
	return nil
}

// AutoClaim transfers ownership of entries pending longer than minIdle to the
// given consumer. This is the visibility-window redelivery path.
func (s *Store) AutoClaim(
	ctx context.Context, stream, group, consumer string, minIdle time.Duration, count int,
) ([]db.StreamRecord, error) {
	cmd := s.b().Arbitrary("XAUTOCLAIM").Keys(stream).Args(
		group, consumer,
		strconv.FormatInt(minIdle.Milliseconds(), 10),
		"0-0",
		"COUNT", strconv.Itoa(count),
	).Build()

	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpXAutoClaim, Err: err}
	}

	// Reply: [next-cursor, entries, deleted-ids]. Entries deleted from the
	// stream surface as nil payloads and are skipped.
	if len(raw) < 2 {
		return nil, nil
	}
	entries, err := raw[1].ToArray()
	if err != nil {
		return nil, fmt.Errorf("parse claimed entries: %w", err)
	}

	records := make([]db.StreamRecord, 0, len(entries))
	for _, e := range entries {
		pair, err := e.ToArray()
		if err != nil || len(pair) < 2 {
			continue
		}
		id, err := pair[0].ToString()
		if err != nil {
			continue
		}
		fields, err := pair[1].ToArray()
		if err != nil {
			continue
		}
		records = append(records, db.StreamRecord{
			StreamID: id,
			Values:   parseFieldPairs(fields),
		})
	}
	return records, nil
}

// PendingCounts returns per-entry delivery counts via one XPENDING per id,
// pipelined. Missing (already acked) ids are absent from the result.
func (s *Store) PendingCounts(
	ctx context.Context, stream, group string, ids []string,
) (map[string]int64, error) {
	if len(ids) == 0 {
		return map[string]int64{}, nil
	}

	cmds := make(rueidis.Commands, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, s.b().Arbitrary("XPENDING").Keys(stream).Args(
			group, id, id, "1",
		).Build())
	}

	results := s.client.DoMulti(ctx, cmds...)

	counts := make(map[string]int64, len(ids))
	for i, r := range results {
		raw, err := r.ToArray()
		if err != nil {
			return nil, &db.Error{Op: db.OpXPending, Err: err}
		}
		if len(raw) == 0 {
			continue
		}
		// Detail row: [id, consumer, idle-ms, delivery-count]
		row, err := raw[0].ToArray()
		if err != nil || len(row) < 4 {
			continue
		}
		n, err := row[3].AsInt64()
		if err != nil {
			continue
		}
		counts[ids[i]] = n
	}
	return counts, nil
}
