package domain

import (
	"encoding/json"
	"fmt"
)

// OpUpdate is the operation type stamped on dispatcher-produced events.
const OpUpdate = "update"

// ChangeEvent is the queue payload describing an insert/update on a document.
// The shape round-trips: an event produced by the backfill dispatcher and one
// produced by an external change-capture trigger are indistinguishable to the
// consumer.
type ChangeEvent struct {
	Version    string      `json:"version"`
	ID         string      `json:"id"`
	DetailType string      `json:"detail-type"`
	Detail     EventDetail `json:"detail"`
}

// EventDetail carries the change itself.
type EventDetail struct {
	OperationType string         `json:"operationType"`
	FullDocument  map[string]any `json:"fullDocument"`
	DocumentKey   DocumentKey    `json:"documentKey"`
}

// DocumentKey identifies the changed document.
type DocumentKey struct {
	ID string `json:"_id"`
}

// NewUpdateEvent wraps a document into a change event with the given event id
// and trigger name.
func NewUpdateEvent(id, detailType string, doc Document) ChangeEvent {
	return ChangeEvent{
		Version:    "0",
		ID:         id,
		DetailType: detailType,
		Detail: EventDetail{
			OperationType: OpUpdate,
			FullDocument:  doc.Snapshot(),
			DocumentKey:   DocumentKey{ID: doc.ID()},
		},
	}
}

// ParseChangeEvent decodes a queue payload. A payload without a document key
// is malformed: there is nothing to write back against.
func ParseChangeEvent(data []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if ev.Detail.DocumentKey.ID == "" {
		return ChangeEvent{}, fmt.Errorf("%w: missing documentKey._id", ErrMalformedEvent)
	}
	return ev, nil
}

// Document extracts the document from the event: the key from documentKey,
// the snapshot from fullDocument with the inline key stripped.
func (e ChangeEvent) Document() Document {
	return FromSnapshot(e.Detail.DocumentKey.ID, e.Detail.FullDocument)
}

// Marshal encodes the event for queue transit.
func (e ChangeEvent) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal change event: %w", err)
	}
	return data, nil
}
