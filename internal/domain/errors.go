package domain

import "errors"

var (
	// ErrEmptyQuery signals missing query text (caller error).
	ErrEmptyQuery = errors.New("query text is required")
	// ErrInvalidLimit signals a non-positive candidate limit (caller error).
	ErrInvalidLimit = errors.New("limit must be a positive integer")
	// ErrMalformedEvent signals an undecodable queue payload.
	ErrMalformedEvent = errors.New("malformed change event")
	// ErrStaleDocument signals a replace that matched nothing: the key
	// vanished or the write lost a race. Retriable.
	ErrStaleDocument = errors.New("document replace matched nothing")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrTimeBudget signals insufficient remaining execution budget to start
	// a record. The record stays pending and is redelivered.
	ErrTimeBudget = errors.New("insufficient time remaining")
)
