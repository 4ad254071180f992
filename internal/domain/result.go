package domain

// Result is the per-record processing outcome. Failures in this pipeline are
// retriable by construction: the queue redelivers them until the delivery
// limit moves the record to the dead-letter stream.
type Result struct {
	id        string
	err       error
	retriable bool
}

// NewOK creates a success result. Success carries no payload.
func NewOK(id string) Result {
	return Result{id: id}
}

// NewRetriable creates a failure result that should be redelivered.
func NewRetriable(id string, err error) Result {
	return Result{id: id, err: err, retriable: true}
}

// ID returns the record identifier the outcome belongs to.
func (r Result) ID() string { return r.id }

// OK reports whether the record was processed successfully.
func (r Result) OK() bool { return r.err == nil }

// Err returns the failure cause, or nil on success.
func (r Result) Err() error { return r.err }

// Retriable reports whether the failure should be redelivered.
func (r Result) Retriable() bool { return r.retriable }

// FailedIDs returns the identifiers of failed records, in order. The worker
// acks everything else; the queue redelivers exactly these.
func FailedIDs(results []Result) []string {
	var failed []string
	for _, r := range results {
		if !r.OK() {
			failed = append(failed, r.ID())
		}
	}
	return failed
}
