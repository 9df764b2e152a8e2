package encoder

import (
	"encoding/binary"
	"fmt"

	"github.com/linkedin/goavro/v2"

	"github.com/jittakal/sockeventwriter/internal/flush"
	"github.com/jittakal/sockeventwriter/pkg/encoder"
	"github.com/jittakal/sockeventwriter/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*AvroEncoder)(nil)

// AvroEncoder writes each record as Avro binary under a fixed record schema.
// Every payload is framed as an Avro bytes value: a zig-zag varint length
// followed by the payload, so a reader can split the stream with the same
// schema-less primitive.
type AvroEncoder struct {
	policy flush.Policy
	codec  *goavro.Codec
}

// NewAvroEncoder creates an Avro encoder.
func NewAvroEncoder(policy flush.Policy) (*AvroEncoder, error) {
	codec, err := goavro.NewCodec(AvroSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}

	return &AvroEncoder{
		policy: policy,
		codec:  codec,
	}, nil
}

// AvroSchema returns the Avro schema of a record.
func AvroSchema() string {
	return `{
		"type": "record",
		"name": "AirbyteRecordMessage",
		"namespace": "io.sockeventwriter",
		"fields": [
			{"name": "stream", "type": "string"},
			{"name": "data", "type": {"type": "map", "values": "string"}},
			{"name": "emitted_at", "type": "long"}
		]
	}`
}

// Codec returns the encoder's Avro codec.
func (e *AvroEncoder) Codec() *goavro.Codec {
	return e.codec
}

// Encode writes records to the sink as framed Avro payloads.
func (e *AvroEncoder) Encode(records record.Supplier, sink encoder.Sink) (encoder.Stats, error) {
	return run(encoder.FormatAvro, e.policy, records, sink, &avroWriter{codec: e.codec, sink: sink})
}

// Format returns the wire format.
func (e *AvroEncoder) Format() encoder.Format {
	return encoder.FormatAvro
}

// convertToAvroMap converts a record to its native Avro representation.
func convertToAvroMap(r *record.Record) map[string]interface{} {
	data := make(map[string]interface{}, len(r.Data))
	for k, v := range r.Data {
		data[k] = v
	}
	return map[string]interface{}{
		"stream":     r.Stream,
		"data":       data,
		"emitted_at": r.EmittedAt,
	}
}

type avroWriter struct {
	nopTrailer
	codec   *goavro.Codec
	sink    encoder.Sink
	payload []byte
	frame   []byte
}

func (w *avroWriter) write(seq int64, r *record.Record) error {
	payload, err := w.codec.BinaryFromNative(w.payload[:0], convertToAvroMap(r))
	if err != nil {
		return encodeError(encoder.FormatAvro, seq, err)
	}
	w.payload = payload

	w.frame = binary.AppendVarint(w.frame[:0], int64(len(payload)))
	w.frame = append(w.frame, payload...)
	if _, err := w.sink.Write(w.frame); err != nil {
		return writeError(encoder.FormatAvro, err)
	}
	return nil
}
