// Package encoder defines interfaces for encoding record streams to a wire format.
package encoder

import (
	"io"

	"github.com/jittakal/sockeventwriter/pkg/record"
)

// Format identifies a wire encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMsgpack  Format = "msgpack"
	FormatProtobuf Format = "protobuf"
	FormatAvro     Format = "avro"
	FormatParquet  Format = "parquet"
)

// Sink is the buffered output an encoder writes to.
type Sink interface {
	io.Writer

	// Flush forces buffered bytes toward the peer.
	Flush() error
}

// Stats summarizes one encoding job.
type Stats struct {
	// Records is the number of records fully written to the sink.
	Records int64

	// Flushes is the number of flushes issued by the flush policy,
	// excluding the final end-of-job flush.
	Flushes int64
}

// Encoder serializes a record sequence to a sink.
type Encoder interface {
	// Encode writes every record the supplier yields, in order, until the
	// supplier is exhausted or an error occurs. It flushes its own buffered
	// output before returning successfully.
	Encode(records record.Supplier, sink Sink) (Stats, error)

	// Format returns the wire format this encoder produces.
	Format() Format
}
