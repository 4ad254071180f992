package embcache

import (
	"context"
	"time"

	"github.com/kailas-cloud/plotpipe/internal/db"
	"github.com/kailas-cloud/plotpipe/internal/domain"
)

// mockKV implements the cache store interface over a plain map.
type mockKV struct {
	data      map[string][]byte
	getErr    error
	setErr    error
	setCalls  int
	lastTTL   time.Duration
	lastKey   string
	lastValue []byte
}

func newMockKV() *mockKV {
	return &mockKV{data: map[string][]byte{}}
}

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.setCalls++
	m.lastKey, m.lastValue, m.lastTTL = key, value, ttl
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

// mockEmbedder counts calls and returns a fixed vector.
type mockEmbedder struct {
	calls  int
	result domain.EmbeddingResult
	err    error
}

func (m *mockEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return m.result, nil
}
