package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
)

// Op constants map to Redis command names for error context.
const (
	OpSearch     = "FT.SEARCH"
	OpJSONSet    = "JSON.SET"
	OpJSONGet    = "JSON.GET"
	OpExists     = "EXISTS"
	OpGet        = "GET"
	OpSet        = "SET"
	OpXAdd       = "XADD"
	OpXGroup     = "XGROUP"
	OpXReadGroup = "XREADGROUP"
	OpXAck       = "XACK"
	OpXAutoClaim = "XAUTOCLAIM"
	OpXPending   = "XPENDING"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
