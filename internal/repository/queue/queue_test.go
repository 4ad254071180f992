package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kailas-cloud/plotpipe/internal/db"
)

const (
	testStream = "embedding-jobs"
	testGroup  = "workers"
	testDLQ    = "embedding-jobs-dead"
)

func TestSendBatch_FieldMapping(t *testing.T) {
	var gotStream string
	var gotEntries []db.StreamEntry

	store := &mockStreamStore{
		xAddMultiFn: func(_ context.Context, stream string, entries []db.StreamEntry) ([]string, error) {
			gotStream, gotEntries = stream, entries
			return []string{"1-0", "2-0"}, nil
		},
	}

	q := New(store, testStream, testGroup, testDLQ)
	err := q.SendBatch(context.Background(), []Message{
		{ID: "msg-1", Body: []byte(`{"version":"0"}`)},
		{ID: "msg-2", Body: []byte(`{"version":"0"}`)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotStream != testStream {
		t.Errorf("stream = %q", gotStream)
	}
	if len(gotEntries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(gotEntries))
	}
	if gotEntries[0].Values[fieldMessageID] != "msg-1" {
		t.Errorf("id field = %q", gotEntries[0].Values[fieldMessageID])
	}
	if gotEntries[0].Values[fieldBody] != `{"version":"0"}` {
		t.Errorf("body field = %q", gotEntries[0].Values[fieldBody])
	}
}

func TestSendBatch_SizeLimit(t *testing.T) {
	store := &mockStreamStore{
		xAddMultiFn: func(context.Context, string, []db.StreamEntry) ([]string, error) {
			t.Fatal("oversized batch must not reach the store")
			return nil, nil
		},
	}

	msgs := make([]Message, MaxSendBatch+1)
	for i := range msgs {
		msgs[i] = Message{ID: fmt.Sprintf("msg-%d", i), Body: []byte("x")}
	}

	q := New(store, testStream, testGroup, testDLQ)
	if err := q.SendBatch(context.Background(), msgs); err == nil {
		t.Fatal("expected error for batch over the limit")
	}
}

func TestSendBatch_Validation(t *testing.T) {
	q := New(&mockStreamStore{}, testStream, testGroup, testDLQ)

	if err := q.SendBatch(context.Background(), nil); err != nil {
		t.Errorf("empty batch is a no-op, got %v", err)
	}

	dup := []Message{{ID: "same", Body: []byte("a")}, {ID: "same", Body: []byte("b")}}
	if err := q.SendBatch(context.Background(), dup); err == nil {
		t.Error("expected error for duplicate ids")
	}

	blank := []Message{{ID: "", Body: []byte("a")}}
	if err := q.SendBatch(context.Background(), blank); err == nil {
		t.Error("expected error for missing id")
	}
}

func TestNewMessage_UniqueIDs(t *testing.T) {
	a := NewMessage([]byte("x"))
	b := NewMessage([]byte("x"))
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct non-empty ids, got %q and %q", a.ID, b.ID)
	}
}

func TestReceiveBatch(t *testing.T) {
	store := &mockStreamStore{
		readGroupFn: func(_ context.Context, stream, group, consumer string, count int, block time.Duration) ([]db.StreamRecord, error) {
			if stream != testStream || group != testGroup || consumer != "w1" {
				t.Errorf("read called with %s/%s/%s", stream, group, consumer)
			}
			if count != 10 || block != 5*time.Second {
				t.Errorf("count=%d block=%v", count, block)
			}
			return []db.StreamRecord{
				{StreamID: "1-0", Values: map[string]string{"id": "msg-1", "body": "payload"}},
			}, nil
		},
	}

	q := New(store, testStream, testGroup, testDLQ)
	deliveries, err := q.ReceiveBatch(context.Background(), "w1", 10, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(deliveries))
	}
	d := deliveries[0]
	if d.StreamID != "1-0" || d.MessageID != "msg-1" || string(d.Body) != "payload" {
		t.Errorf("unexpected delivery: %+v", d)
	}
}

func TestReceiveBatch_Timeout(t *testing.T) {
	q := New(&mockStreamStore{}, testStream, testGroup, testDLQ)
	deliveries, err := q.ReceiveBatch(context.Background(), "w1", 10, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deliveries) != 0 {
		t.Errorf("expected no deliveries, got %v", deliveries)
	}
}

func TestDeadLetter(t *testing.T) {
	var dlqStream string
	var dlqEntries []db.StreamEntry
	var ackedIDs []string

	store := &mockStreamStore{
		xAddMultiFn: func(_ context.Context, stream string, entries []db.StreamEntry) ([]string, error) {
			dlqStream, dlqEntries = stream, entries
			return []string{"9-0"}, nil
		},
		ackFn: func(_ context.Context, stream, group string, ids ...string) error {
			if stream != testStream || group != testGroup {
				t.Errorf("ack called with %s/%s", stream, group)
			}
			ackedIDs = ids
			return nil
		},
	}

	q := New(store, testStream, testGroup, testDLQ)
	err := q.DeadLetter(context.Background(), Delivery{
		StreamID:  "5-0",
		MessageID: "msg-5",
		Body:      []byte("poison"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dlqStream != testDLQ {
		t.Errorf("dead-letter stream = %q", dlqStream)
	}
	if len(dlqEntries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(dlqEntries))
	}
	v := dlqEntries[0].Values
	if v[fieldMessageID] != "msg-5" || v[fieldBody] != "poison" || v["source_id"] != "5-0" {
		t.Errorf("unexpected dead-letter entry: %v", v)
	}
	if len(ackedIDs) != 1 || ackedIDs[0] != "5-0" {
		t.Errorf("original not acked: %v", ackedIDs)
	}
}

func TestDeadLetter_CopyFailsNoAck(t *testing.T) {
	store := &mockStreamStore{
		xAddMultiFn: func(context.Context, string, []db.StreamEntry) ([]string, error) {
			return nil, errors.New("stream full")
		},
		ackFn: func(context.Context, string, string, ...string) error {
			t.Fatal("must not ack when the dead-letter copy failed")
			return nil
		},
	}

	q := New(store, testStream, testGroup, testDLQ)
	if err := q.DeadLetter(context.Background(), Delivery{StreamID: "5-0"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestDeliveryCounts(t *testing.T) {
	store := &mockStreamStore{
		pendingCountsFn: func(_ context.Context, stream, group string, ids []string) (map[string]int64, error) {
			if stream != testStream || group != testGroup {
				t.Errorf("called with %s/%s", stream, group)
			}
			return map[string]int64{"1-0": 4}, nil
		},
	}

	q := New(store, testStream, testGroup, testDLQ)
	counts, err := q.DeliveryCounts(context.Background(), []string{"1-0", "2-0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts["1-0"] != 4 {
		t.Errorf("counts = %v", counts)
	}
}
