// Package document is the typed gateway to the movie document collection.
package document

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/plotpipe/internal/db"
	"github.com/kailas-cloud/plotpipe/internal/domain"
)

// candidateQuery matches documents with plot text present and no embedding
// yet. Requires DIALECT 2 and INDEXMISSING on both attributes.
const candidateQuery = "-ismissing(@plot) ismissing(@vector)"

// store is the consumer interface for documents (ISP).
type store interface {
	JSONReplace(ctx context.Context, key string, data []byte) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
}

// Repo implements the document store gateway: candidate selection, idempotent
// full-document replace, and vector similarity search.
type Repo struct {
	store  store
	prefix string
	index  string
}

// New creates a document repository.
func New(s store, keyPrefix, index string) *Repo {
	return &Repo{store: s, prefix: keyPrefix, index: index}
}

// FindCandidates returns up to limit documents that have a plot but no
// embedding. No ordering beyond store-stable iteration.
func (r *Repo) FindCandidates(ctx context.Context, limit int) ([]domain.Document, error) {
	result, err := r.store.SearchList(ctx, r.index, candidateQuery, 0, limit, []string{"$"})
	if err != nil {
		return nil, fmt.Errorf("search candidates: %w", err)
	}
	if result == nil || len(result.Entries) == 0 {
		return nil, nil
	}

	docs := make([]domain.Document, 0, len(result.Entries))
	for _, e := range result.Entries {
		raw, ok := e.Fields["$"]
		if !ok {
			continue
		}
		var snapshot map[string]any
		if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
			return nil, fmt.Errorf("parse document %s: %w", e.Key, err)
		}
		docs = append(docs, domain.FromSnapshot(r.keyToID(e.Key), snapshot))
	}
	return docs, nil
}

// Replace overwrites the full stored document matched by key and returns the
// modified count (0 when the key does not exist — a retriable condition for
// the consumer, not an error here). The write is all-or-nothing.
func (r *Repo) Replace(ctx context.Context, id string, doc domain.Document) (int, error) {
	data, err := json.Marshal(doc.Fields())
	if err != nil {
		return 0, fmt.Errorf("marshal document: %w", err)
	}

	matched, err := r.store.JSONReplace(ctx, r.docKey(id), data)
	if err != nil {
		return 0, fmt.Errorf("replace %s: %w", id, err)
	}
	if !matched {
		return 0, nil
	}
	return 1, nil
}

// VectorSearch returns the k nearest documents by cosine similarity,
// projecting only the fields the query response needs.
func (r *Repo) VectorSearch(ctx context.Context, vector []float32, k int) ([]domain.Hit, error) {
	result, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.index,
		Vector:       vector,
		K:            k,
		ReturnFields: []string{domain.FieldTitle, domain.FieldPlot, "__vector_score"},
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	hits := make([]domain.Hit, 0, len(result.Entries))
	for _, e := range result.Entries {
		hits = append(hits, domain.Hit{
			ID:    r.keyToID(e.Key),
			Title: e.Fields[domain.FieldTitle],
			Plot:  e.Fields[domain.FieldPlot],
			Score: e.Score,
		})
	}
	return hits, nil
}

func (r *Repo) docKey(id string) string {
	return r.prefix + id
}

func (r *Repo) keyToID(key string) string {
	return strings.TrimPrefix(key, r.prefix)
}
