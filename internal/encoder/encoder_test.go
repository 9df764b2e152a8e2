package encoder

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/goccy/go-json"
	"github.com/parquet-go/parquet-go"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/dynamicpb"

	apperrors "github.com/jittakal/sockeventwriter/internal/errors"
	"github.com/jittakal/sockeventwriter/internal/flush"
	"github.com/jittakal/sockeventwriter/internal/generator"
	"github.com/jittakal/sockeventwriter/pkg/encoder"
	"github.com/jittakal/sockeventwriter/pkg/record"
)

// bufferSink records written bytes and the buffer length at every flush.
type bufferSink struct {
	bytes.Buffer
	flushedAt []int
	flushErr  error
}

func (s *bufferSink) Flush() error {
	if s.flushErr != nil {
		return s.flushErr
	}
	s.flushedAt = append(s.flushedAt, s.Len())
	return nil
}

type failingSink struct {
	err error
}

func (s *failingSink) Write(p []byte) (int, error) { return 0, s.err }
func (s *failingSink) Flush() error                { return nil }

// trackingSupplier reports whether Close was called.
type trackingSupplier struct {
	record.Supplier
	closed bool
}

func (s *trackingSupplier) Close() error {
	s.closed = true
	return s.Supplier.Close()
}

func fixedSupplier(n int64) record.Supplier {
	return generator.Limit(generator.NewFixed(generator.DefaultStreamName, generator.DefaultFieldCount,
		len(generator.DefaultValue), generator.DefaultBaseTimestampMs), n)
}

func drain(t *testing.T, s record.Supplier) []record.Record {
	t.Helper()
	defer s.Close()
	var out []record.Record
	for {
		r, ok := s.Next()
		if !ok {
			return out
		}
		out = append(out, r)
	}
}

func mustEncoder(t *testing.T, format encoder.Format, threshold int64) encoder.Encoder {
	t.Helper()
	enc, err := NewFactory(flush.NewPolicy(threshold), "snappy").CreateEncoder(format)
	if err != nil {
		t.Fatalf("CreateEncoder(%s) error = %v", format, err)
	}
	return enc
}

func assertRecords(t *testing.T, got, want []record.Record) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("decoded %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(&want[i]) {
			t.Fatalf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func decodeJSON(t *testing.T, b []byte) []record.Record {
	t.Helper()
	var out []record.Record
	scanner := bufio.NewScanner(bytes.NewReader(b))
	for scanner.Scan() {
		var msg record.Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			t.Fatalf("line %d: %v", len(out), err)
		}
		if msg.Type != record.MessageTypeRecord || msg.Record == nil {
			t.Fatalf("line %d: unexpected message %+v", len(out), msg)
		}
		out = append(out, *msg.Record)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func decodeMsgpack(t *testing.T, b []byte) []record.Record {
	t.Helper()
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	var out []record.Record
	for {
		var msg record.Message
		err := dec.Decode(&msg)
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("document %d: %v", len(out), err)
		}
		out = append(out, *msg.Record)
	}
}

func decodeProtobuf(t *testing.T, b []byte) []record.Record {
	t.Helper()
	desc, err := RecordDescriptor()
	if err != nil {
		t.Fatalf("RecordDescriptor() error = %v", err)
	}
	r := bufio.NewReader(bytes.NewReader(b))
	var out []record.Record
	for {
		msg := dynamicpb.NewMessage(desc)
		err := protodelim.UnmarshalFrom(r, msg)
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("message %d: %v", len(out), err)
		}
		out = append(out, FromMessage(msg))
	}
}

func decodeAvro(t *testing.T, b []byte) []record.Record {
	t.Helper()
	enc, err := NewAvroEncoder(flush.Policy{})
	if err != nil {
		t.Fatalf("NewAvroEncoder() error = %v", err)
	}
	r := bufio.NewReader(bytes.NewReader(b))
	var out []record.Record
	for {
		n, err := binary.ReadVarint(r)
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("frame %d: %v", len(out), err)
		}
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			t.Fatalf("frame %d payload: %v", len(out), err)
		}
		native, rest, err := enc.Codec().NativeFromBinary(payload)
		if err != nil {
			t.Fatalf("frame %d decode: %v", len(out), err)
		}
		if len(rest) != 0 {
			t.Fatalf("frame %d: %d trailing bytes", len(out), len(rest))
		}
		m := native.(map[string]interface{})
		rec := record.Record{
			Stream:    m["stream"].(string),
			EmittedAt: m["emitted_at"].(int64),
			Data:      make(map[string]string),
		}
		for k, v := range m["data"].(map[string]interface{}) {
			rec.Data[k] = v.(string)
		}
		out = append(out, rec)
	}
}

func decodeParquet(t *testing.T, b []byte) []record.Record {
	t.Helper()
	rows, err := parquet.Read[RecordParquet](bytes.NewReader(b), int64(len(b)))
	if err != nil {
		t.Fatalf("parquet.Read() error = %v", err)
	}
	out := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		rec := record.Record{Stream: row.Stream, EmittedAt: row.EmittedAt}
		if err := json.Unmarshal([]byte(row.Data), &rec.Data); err != nil {
			t.Fatalf("row data: %v", err)
		}
		out = append(out, rec)
	}
	return out
}

var decoders = map[encoder.Format]func(*testing.T, []byte) []record.Record{
	encoder.FormatJSON:     decodeJSON,
	encoder.FormatMsgpack:  decodeMsgpack,
	encoder.FormatProtobuf: decodeProtobuf,
	encoder.FormatAvro:     decodeAvro,
	encoder.FormatParquet:  decodeParquet,
}

func TestEncoders_RoundTrip(t *testing.T) {
	for _, format := range SupportedFormats() {
		t.Run(string(format), func(t *testing.T) {
			sink := &bufferSink{}
			stats, err := mustEncoder(t, format, 0).Encode(fixedSupplier(1000), sink)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if stats.Records != 1000 {
				t.Errorf("Records = %d, want 1000", stats.Records)
			}
			if len(sink.flushedAt) == 0 || sink.flushedAt[len(sink.flushedAt)-1] != sink.Len() {
				t.Error("encoder did not flush its final writes")
			}

			assertRecords(t, decoders[format](t, sink.Bytes()), drain(t, fixedSupplier(1000)))
		})
	}
}

func TestEncoders_FlushCadence(t *testing.T) {
	tests := []struct {
		threshold int64
		records   int64
		want      int64
	}{
		{100, 99, 0},
		{100, 100, 1},
		{100, 250, 2},
		{7, 50, 7},
	}

	for _, format := range SupportedFormats() {
		for _, tt := range tests {
			t.Run(string(format), func(t *testing.T) {
				sink := &bufferSink{}
				stats, err := mustEncoder(t, format, tt.threshold).Encode(fixedSupplier(tt.records), sink)
				if err != nil {
					t.Fatalf("Encode() error = %v", err)
				}
				if stats.Flushes != tt.want {
					t.Errorf("Flushes = %d, want %d", stats.Flushes, tt.want)
				}
				if int64(len(sink.flushedAt)) != tt.want+1 {
					t.Errorf("sink flushed %d times, want %d policy flushes plus the final one", len(sink.flushedAt), tt.want)
				}
			})
		}
	}
}

func TestJSONEncoder_ReferenceLine(t *testing.T) {
	sink := &bufferSink{}
	if _, err := NewJSONEncoder(flush.Policy{}).Encode(fixedSupplier(1), sink); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	want := `{"type":"RECORD","record":{"stream":"stream1","data":{` +
		`"field1":"valuevaluevaluevaluevalue1","field2":"valuevaluevaluevaluevalue1",` +
		`"field3":"valuevaluevaluevaluevalue1","field4":"valuevaluevaluevaluevalue1",` +
		`"field5":"valuevaluevaluevaluevalue1"},"emitted_at":1742801071589}}` + string(LineSeparator)
	if got := sink.String(); got != want {
		t.Errorf("line = %q\nwant   %q", got, want)
	}
}

func TestJSONEncoder_ReferenceRun(t *testing.T) {
	const n = 250_000
	sink := &bufferSink{}

	stats, err := NewJSONEncoder(flush.NewPolicy(flush.DefaultThreshold)).Encode(fixedSupplier(n), sink)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if stats.Flushes != 2 {
		t.Errorf("policy flushes = %d, want 2", stats.Flushes)
	}
	if len(sink.flushedAt) != 3 {
		t.Errorf("sink flushes = %d, want 3", len(sink.flushedAt))
	}

	got := decodeJSON(t, sink.Bytes())
	if len(got) != n {
		t.Fatalf("lines = %d, want %d", len(got), n)
	}
	for i, r := range got {
		if r.EmittedAt != generator.DefaultBaseTimestampMs+int64(i) {
			t.Fatalf("line %d out of order: emitted_at=%d", i, r.EmittedAt)
		}
	}
}

func TestEncoders_WriteFailure(t *testing.T) {
	broken := errors.New("broken pipe")

	for _, format := range []encoder.Format{encoder.FormatJSON, encoder.FormatMsgpack, encoder.FormatProtobuf, encoder.FormatAvro} {
		t.Run(string(format), func(t *testing.T) {
			supplier := &trackingSupplier{Supplier: fixedSupplier(10)}
			stats, err := mustEncoder(t, format, 0).Encode(supplier, &failingSink{err: broken})

			var writeErr *apperrors.WriteError
			if !errors.As(err, &writeErr) {
				t.Fatalf("error = %v, want *WriteError", err)
			}
			if !errors.Is(err, broken) {
				t.Errorf("error does not wrap the sink failure: %v", err)
			}
			if writeErr.Format != string(format) {
				t.Errorf("Format = %s, want %s", writeErr.Format, format)
			}
			if stats.Records != 0 {
				t.Errorf("Records = %d, want 0", stats.Records)
			}
			if !supplier.closed {
				t.Error("supplier was not closed")
			}
		})
	}
}

func TestEncoders_FlushFailure(t *testing.T) {
	broken := errors.New("connection reset")

	for _, format := range SupportedFormats() {
		t.Run(string(format), func(t *testing.T) {
			sink := &bufferSink{flushErr: broken}
			_, err := mustEncoder(t, format, 5).Encode(fixedSupplier(10), sink)

			var flushErr *apperrors.FlushError
			if !errors.As(err, &flushErr) {
				t.Fatalf("error = %v, want *FlushError", err)
			}
			if !errors.Is(err, broken) {
				t.Errorf("error does not wrap the flush failure: %v", err)
			}
		})
	}
}

func TestEncoders_EmptySupplier(t *testing.T) {
	for _, format := range SupportedFormats() {
		t.Run(string(format), func(t *testing.T) {
			sink := &bufferSink{}
			stats, err := mustEncoder(t, format, 0).Encode(fixedSupplier(0), sink)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if stats.Records != 0 || stats.Flushes != 0 {
				t.Errorf("stats = %+v, want zero", stats)
			}
			if len(sink.flushedAt) != 1 {
				t.Errorf("sink flushes = %d, want 1", len(sink.flushedAt))
			}
		})
	}
}

func TestEncoders_ComposeOnOneSink(t *testing.T) {
	sink := &bufferSink{}
	want := drain(t, fixedSupplier(50))

	if _, err := mustEncoder(t, encoder.FormatJSON, 0).Encode(fixedSupplier(50), sink); err != nil {
		t.Fatalf("json Encode() error = %v", err)
	}
	boundary := sink.Len()
	if _, err := mustEncoder(t, encoder.FormatMsgpack, 0).Encode(fixedSupplier(50), sink); err != nil {
		t.Fatalf("msgpack Encode() error = %v", err)
	}

	assertRecords(t, decodeJSON(t, sink.Bytes()[:boundary]), want)
	assertRecords(t, decodeMsgpack(t, sink.Bytes()[boundary:]), want)
}

func TestParquetEncoder_RowGroupPerFlush(t *testing.T) {
	sink := &bufferSink{}
	if _, err := NewParquetEncoder(flush.NewPolicy(100), "none").Encode(fixedSupplier(250), sink); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	f, err := parquet.OpenFile(bytes.NewReader(sink.Bytes()), int64(sink.Len()))
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	if got := len(f.RowGroups()); got != 3 {
		t.Errorf("row groups = %d, want 3", got)
	}
	if f.NumRows() != 250 {
		t.Errorf("NumRows = %d, want 250", f.NumRows())
	}
}

func TestLineSeparator(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"linux", "\n"},
		{"darwin", "\n"},
		{"windows", "\r\n"},
	}

	for _, tt := range tests {
		if got := string(lineSeparator(tt.goos)); got != tt.want {
			t.Errorf("lineSeparator(%s) = %q, want %q", tt.goos, got, tt.want)
		}
	}
}
