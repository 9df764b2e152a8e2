// Package record defines the synthetic record model and the supplier
// contract consumed by encoders.
//
// Records follow the Airbyte protocol RECORD message shape: a stream name,
// a flat mapping of field names to string values, and the emission time in
// Unix milliseconds.
package record

import "sort"

// MessageTypeRecord is the envelope type for data records.
const MessageTypeRecord = "RECORD"

// Record is one synthetic data record. A Record is treated as immutable once
// returned by a Supplier; Data may be shared between records of the same
// supplier and must not be modified.
type Record struct {
	Stream    string            `json:"stream"`
	Data      map[string]string `json:"data"`
	EmittedAt int64             `json:"emitted_at"`
}

// Message is the wire envelope written for every record.
type Message struct {
	Type   string  `json:"type"`
	Record *Record `json:"record,omitempty"`
}

// NewMessage wraps a record in a RECORD envelope.
func NewMessage(r *Record) Message {
	return Message{Type: MessageTypeRecord, Record: r}
}

// FieldNames returns the record's field names in sorted order.
func (r *Record) FieldNames() []string {
	names := make([]string, 0, len(r.Data))
	for name := range r.Data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Equal reports whether two records carry the same stream, data and timestamp.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Stream != other.Stream || r.EmittedAt != other.EmittedAt || len(r.Data) != len(other.Data) {
		return false
	}
	for k, v := range r.Data {
		if ov, ok := other.Data[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Supplier is a pull-based, lazy sequence of records.
//
// Next returns the next record and true, or a zero Record and false once a
// bounded supplier is exhausted. Unbounded suppliers never return false.
// Close releases any resources held by the supplier whether or not the
// sequence was fully consumed; calling it more than once is safe.
type Supplier interface {
	Next() (Record, bool)
	Close() error
}

// SupplierFactory creates an independent Supplier. Each encoding job calls
// the factory once so that no supplier state is shared between tasks.
type SupplierFactory func() Supplier
