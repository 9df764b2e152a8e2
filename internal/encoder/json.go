package encoder

import (
	"github.com/goccy/go-json"

	"github.com/jittakal/sockeventwriter/internal/flush"
	"github.com/jittakal/sockeventwriter/pkg/encoder"
	"github.com/jittakal/sockeventwriter/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*JSONEncoder)(nil)

// JSONEncoder writes one RECORD message per line as compact JSON.
// Map keys are emitted in sorted order.
type JSONEncoder struct {
	policy flush.Policy
}

// NewJSONEncoder creates a JSON lines encoder.
func NewJSONEncoder(policy flush.Policy) *JSONEncoder {
	return &JSONEncoder{policy: policy}
}

// Encode writes records to the sink, one document per line.
func (e *JSONEncoder) Encode(records record.Supplier, sink encoder.Sink) (encoder.Stats, error) {
	return run(encoder.FormatJSON, e.policy, records, sink, &jsonWriter{sink: sink})
}

// Format returns the wire format.
func (e *JSONEncoder) Format() encoder.Format {
	return encoder.FormatJSON
}

type jsonWriter struct {
	nopTrailer
	line []byte
	sink encoder.Sink
}

func (w *jsonWriter) write(seq int64, r *record.Record) error {
	b, err := json.Marshal(record.NewMessage(r))
	if err != nil {
		return encodeError(encoder.FormatJSON, seq, err)
	}
	w.line = append(append(w.line[:0], b...), LineSeparator...)
	if _, err := w.sink.Write(w.line); err != nil {
		return writeError(encoder.FormatJSON, err)
	}
	return nil
}
