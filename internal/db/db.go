// Package db defines the storage facade the pipeline consumes: JSON document
// storage, FT.SEARCH vector queries, a small KV surface for the embedding
// cache, and the job stream. One rueidis connection per process serves all of
// it.
package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	JSONStore
	KVStore
	Searcher
	StreamStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// JSONStore provides JSON document operations.
type JSONStore interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	// JSONReplace overwrites an existing document (JSON.SET XX). Returns
	// false without error when the key does not exist.
	JSONReplace(ctx context.Context, key string, data []byte) (bool, error)
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// Searcher provides search operations over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*SearchResult, error)
}

// StreamEntry holds field-value pairs for one outbound stream message.
type StreamEntry struct {
	Values map[string]string
}

// StreamRecord is one delivered stream message.
type StreamRecord struct {
	// StreamID is the server-assigned entry id, used for acks.
	StreamID string
	Values   map[string]string
}

// StreamStore provides consumer-group stream operations for the job queue.
type StreamStore interface {
	// XAddMulti appends entries in one pipelined round trip and returns the
	// assigned stream ids in order.
	XAddMulti(ctx context.Context, stream string, entries []StreamEntry) ([]string, error)
	// EnsureGroup creates the consumer group if it does not exist yet.
	EnsureGroup(ctx context.Context, stream, group string) error
	// ReadGroup delivers up to count new entries, blocking up to block.
	// Returns no records (nil error) on block timeout.
	ReadGroup(ctx context.Context, stream, group, consumer string, count int, block time.Duration) ([]StreamRecord, error)
	// Ack acknowledges processed entries.
	Ack(ctx context.Context, stream, group string, ids ...string) error
	// AutoClaim transfers ownership of entries pending longer than minIdle.
	AutoClaim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, count int) ([]StreamRecord, error)
	// PendingCounts returns per-entry delivery counts for the given ids.
	PendingCounts(ctx context.Context, stream, group string, ids []string) (map[string]int64, error)
}
