package encoder

import (
	"github.com/goccy/go-json"
	"github.com/parquet-go/parquet-go"

	"github.com/jittakal/sockeventwriter/internal/flush"
	"github.com/jittakal/sockeventwriter/pkg/encoder"
	"github.com/jittakal/sockeventwriter/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*ParquetEncoder)(nil)

// parquetBatchSize is the number of rows handed to the writer at once.
const parquetBatchSize = 1024

// RecordParquet is the Parquet row schema of a record. Data is stored as a
// JSON object string.
type RecordParquet struct {
	Stream    string `parquet:"stream,dict"`
	Data      string `parquet:"data"`
	EmittedAt int64  `parquet:"emitted_at"`
}

// ParquetEncoder streams records as a single Parquet file. Every flush
// policy trigger closes the current row group; the footer is written when
// the job ends.
type ParquetEncoder struct {
	policy          flush.Policy
	compressionName string
}

// NewParquetEncoder creates a Parquet encoder with the given column compression.
func NewParquetEncoder(policy flush.Policy, compression string) *ParquetEncoder {
	return &ParquetEncoder{
		policy:          policy,
		compressionName: compression,
	}
}

// compressionCodec converts a compression name to a parquet writer option.
func compressionCodec(compression string) parquet.WriterOption {
	switch compression {
	case "snappy", "SNAPPY":
		return parquet.Compression(&parquet.Snappy)
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip)
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd)
	case "uncompressed", "UNCOMPRESSED", "none", "NONE":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// Encode streams records to the sink as a Parquet file.
func (e *ParquetEncoder) Encode(records record.Supplier, sink encoder.Sink) (encoder.Stats, error) {
	w := &parquetWriter{
		sink: sink,
		rows: make([]RecordParquet, 0, parquetBatchSize),
		writer: parquet.NewGenericWriter[RecordParquet](
			sink,
			parquet.SchemaOf(new(RecordParquet)),
			compressionCodec(e.compressionName),
			parquet.CreatedBy("sockeventwriter", "1.0", "0"),
		),
	}
	return run(encoder.FormatParquet, e.policy, records, sink, w)
}

// Format returns the wire format.
func (e *ParquetEncoder) Format() encoder.Format {
	return encoder.FormatParquet
}

type parquetWriter struct {
	sink   encoder.Sink
	writer *parquet.GenericWriter[RecordParquet]
	rows   []RecordParquet
}

func (w *parquetWriter) write(seq int64, r *record.Record) error {
	data, err := json.Marshal(r.Data)
	if err != nil {
		return encodeError(encoder.FormatParquet, seq, err)
	}
	w.rows = append(w.rows, RecordParquet{
		Stream:    r.Stream,
		Data:      string(data),
		EmittedAt: r.EmittedAt,
	})
	if len(w.rows) < parquetBatchSize {
		return nil
	}
	return w.writeRows()
}

func (w *parquetWriter) writeRows() error {
	if len(w.rows) == 0 {
		return nil
	}
	if _, err := w.writer.Write(w.rows); err != nil {
		return writeError(encoder.FormatParquet, err)
	}
	w.rows = w.rows[:0]
	return nil
}

func (w *parquetWriter) drain() error {
	if err := w.writeRows(); err != nil {
		return err
	}
	return w.writer.Flush()
}

func (w *parquetWriter) finish() error {
	if err := w.writeRows(); err != nil {
		return err
	}
	if err := w.writer.Close(); err != nil {
		return flushError(encoder.FormatParquet, err)
	}
	return nil
}
