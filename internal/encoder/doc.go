// Package encoder provides record stream encoders for socket sinks.
//
// Every encoder pulls records from a record.Supplier in order, writes them
// to an encoder.Sink, flushes the sink each time the shared flush policy
// triggers and performs a final flush of its own writes before returning.
// Encoders therefore compose sequentially over a single connection.
//
// # Supported Formats
//
//   - json: one RECORD message per line, host line separator
//   - msgpack: consecutive MessagePack documents, no separators
//   - protobuf: varint-length-delimited AirbyteRecordMessage
//   - avro: Avro binary payloads framed as Avro bytes values
//   - parquet: a streamed Parquet file, one row group per flush
//
// # Encoder Factory
//
// Use Factory to create encoder instances:
//
//	factory := encoder.NewFactory(flush.NewPolicy(100_000), "snappy")
//	enc, err := factory.CreateEncoder(encoder.FormatJSON)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stats, err := enc.Encode(supplier, sink)
//
// # Errors
//
// A record that cannot be serialized yields *errors.EncodeError carrying the
// format and the record's position within the job. Sink failures yield
// *errors.WriteError or *errors.FlushError.
//
// # Thread Safety
//
// Factory is safe for concurrent use. An encoder returned by CreateEncoder
// belongs to one job at a time.
package encoder
