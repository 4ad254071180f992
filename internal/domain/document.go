// Package domain holds the pipeline's core entities: documents, change
// events, per-record processing results, and sentinel errors.
package domain

// Well-known document fields. The key field lives outside the snapshot: it is
// the storage key, carried separately on the wire in documentKey.
const (
	FieldKey    = "_id"
	FieldTitle  = "title"
	FieldPlot   = "plot"
	FieldVector = "plot_embedding"
)

// Document is one stored record: an opaque key plus its full JSON snapshot.
// A document is a backfill candidate iff the plot field is present and the
// vector field is absent.
type Document struct {
	id     string
	fields map[string]any
}

// New creates a document. fields must not contain the key field; use
// FromSnapshot for wire-format snapshots that embed it.
func New(id string, fields map[string]any) Document {
	return Document{id: id, fields: fields}
}

// FromSnapshot creates a document from a full snapshot that may carry the key
// field inline. The key argument wins; an inline key is stripped from the
// fields.
func FromSnapshot(key string, snapshot map[string]any) Document {
	fields := make(map[string]any, len(snapshot))
	for k, v := range snapshot {
		if k == FieldKey {
			continue
		}
		fields[k] = v
	}
	return Document{id: key, fields: fields}
}

// ID returns the document key.
func (d Document) ID() string { return d.id }

// Fields returns the snapshot without the key field.
func (d Document) Fields() map[string]any { return d.fields }

// Plot returns the source text, or "" if absent.
func (d Document) Plot() string {
	s, _ := d.fields[FieldPlot].(string)
	return s
}

// Title returns the display title, or "" if absent.
func (d Document) Title() string {
	s, _ := d.fields[FieldTitle].(string)
	return s
}

// HasVector reports whether the embedding has been computed.
func (d Document) HasVector() bool {
	_, ok := d.fields[FieldVector]
	return ok
}

// IsCandidate reports whether the document needs an embedding.
func (d Document) IsCandidate() bool {
	return d.Plot() != "" && !d.HasVector()
}

// WithVector returns a copy of the document with the embedding merged into
// the snapshot. The write to storage is all-or-nothing per document.
func (d Document) WithVector(vec []float32) Document {
	fields := make(map[string]any, len(d.fields)+1)
	for k, v := range d.fields {
		fields[k] = v
	}
	fields[FieldVector] = vec
	return Document{id: d.id, fields: fields}
}

// Snapshot returns the full snapshot including the key field, as carried in
// a change event's fullDocument.
func (d Document) Snapshot() map[string]any {
	snap := make(map[string]any, len(d.fields)+1)
	snap[FieldKey] = d.id
	for k, v := range d.fields {
		snap[k] = v
	}
	return snap
}
