package encoder

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/jittakal/sockeventwriter/internal/flush"
	"github.com/jittakal/sockeventwriter/pkg/encoder"
	"github.com/jittakal/sockeventwriter/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*MsgpackEncoder)(nil)

// MsgpackEncoder writes consecutive self-describing MessagePack documents
// with no separators. Struct fields use their json names and integers take
// the smallest encoding that fits.
type MsgpackEncoder struct {
	policy flush.Policy
}

// NewMsgpackEncoder creates a MessagePack encoder.
func NewMsgpackEncoder(policy flush.Policy) *MsgpackEncoder {
	return &MsgpackEncoder{policy: policy}
}

// Encode writes records to the sink as a MessagePack stream.
func (e *MsgpackEncoder) Encode(records record.Supplier, sink encoder.Sink) (encoder.Stats, error) {
	w := &msgpackWriter{sink: sink}
	w.enc = msgpack.NewEncoder(&w.buf)
	w.enc.SetCustomStructTag("json")
	w.enc.SetSortMapKeys(true)
	w.enc.UseCompactInts(true)
	return run(encoder.FormatMsgpack, e.policy, records, sink, w)
}

// Format returns the wire format.
func (e *MsgpackEncoder) Format() encoder.Format {
	return encoder.FormatMsgpack
}

type msgpackWriter struct {
	nopTrailer
	buf  bytes.Buffer
	enc  *msgpack.Encoder
	sink encoder.Sink
}

func (w *msgpackWriter) write(seq int64, r *record.Record) error {
	w.buf.Reset()
	if err := w.enc.Encode(record.NewMessage(r)); err != nil {
		return encodeError(encoder.FormatMsgpack, seq, err)
	}
	if _, err := w.sink.Write(w.buf.Bytes()); err != nil {
		return writeError(encoder.FormatMsgpack, err)
	}
	return nil
}
