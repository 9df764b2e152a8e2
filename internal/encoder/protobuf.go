package encoder

import (
	"bytes"
	"fmt"

	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/jittakal/sockeventwriter/internal/flush"
	"github.com/jittakal/sockeventwriter/pkg/encoder"
	"github.com/jittakal/sockeventwriter/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*ProtobufEncoder)(nil)

// RecordMessageName is the fully qualified protobuf message name of a record.
const RecordMessageName = "sockeventwriter.v1.AirbyteRecordMessage"

// ProtobufEncoder writes each record as a varint-length-delimited protobuf
// message. The message type is built from a descriptor at runtime:
//
//	message AirbyteRecordMessage {
//	  string stream = 1;
//	  map<string, string> data = 2;
//	  int64 emitted_at = 3;
//	}
type ProtobufEncoder struct {
	policy flush.Policy
	desc   protoreflect.MessageDescriptor
}

// NewProtobufEncoder creates a protobuf encoder.
func NewProtobufEncoder(policy flush.Policy) (*ProtobufEncoder, error) {
	desc, err := RecordDescriptor()
	if err != nil {
		return nil, err
	}
	return &ProtobufEncoder{policy: policy, desc: desc}, nil
}

// RecordDescriptor builds the AirbyteRecordMessage descriptor.
func RecordDescriptor() (protoreflect.MessageDescriptor, error) {
	label := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
	str := descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum()

	file := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("sockeventwriter/v1/record.proto"),
		Package: proto.String("sockeventwriter.v1"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("AirbyteRecordMessage"),
			Field: []*descriptorpb.FieldDescriptorProto{
				{Name: proto.String("stream"), Number: proto.Int32(1), Label: label, Type: str},
				{
					Name:     proto.String("data"),
					Number:   proto.Int32(2),
					Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
					Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
					TypeName: proto.String("." + RecordMessageName + ".DataEntry"),
				},
				{Name: proto.String("emitted_at"), Number: proto.Int32(3), Label: label, Type: descriptorpb.FieldDescriptorProto_TYPE_INT64.Enum()},
			},
			NestedType: []*descriptorpb.DescriptorProto{{
				Name: proto.String("DataEntry"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{Name: proto.String("key"), Number: proto.Int32(1), Label: label, Type: str},
					{Name: proto.String("value"), Number: proto.Int32(2), Label: label, Type: str},
				},
				Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
			}},
		}},
	}

	fd, err := protodesc.NewFile(file, new(protoregistry.Files))
	if err != nil {
		return nil, fmt.Errorf("failed to build record descriptor: %w", err)
	}
	return fd.Messages().ByName("AirbyteRecordMessage"), nil
}

// Encode writes records to the sink as delimited protobuf messages.
func (e *ProtobufEncoder) Encode(records record.Supplier, sink encoder.Sink) (encoder.Stats, error) {
	fields := e.desc.Fields()
	w := &protobufWriter{
		sink:      sink,
		msg:       dynamicpb.NewMessage(e.desc),
		stream:    fields.ByName("stream"),
		data:      fields.ByName("data"),
		emittedAt: fields.ByName("emitted_at"),
		opts:      protodelim.MarshalOptions{MarshalOptions: proto.MarshalOptions{Deterministic: true}},
	}
	return run(encoder.FormatProtobuf, e.policy, records, sink, w)
}

// Format returns the wire format.
func (e *ProtobufEncoder) Format() encoder.Format {
	return encoder.FormatProtobuf
}

// ToMessage converts a record into a dynamic AirbyteRecordMessage.
func (e *ProtobufEncoder) ToMessage(r *record.Record) *dynamicpb.Message {
	fields := e.desc.Fields()
	msg := dynamicpb.NewMessage(e.desc)
	setRecord(msg, fields.ByName("stream"), fields.ByName("data"), fields.ByName("emitted_at"), r)
	return msg
}

// FromMessage converts a dynamic AirbyteRecordMessage back into a record.
func FromMessage(msg protoreflect.Message) record.Record {
	fields := msg.Descriptor().Fields()
	r := record.Record{
		Stream:    msg.Get(fields.ByName("stream")).String(),
		EmittedAt: msg.Get(fields.ByName("emitted_at")).Int(),
		Data:      make(map[string]string),
	}
	msg.Get(fields.ByName("data")).Map().Range(func(k protoreflect.MapKey, v protoreflect.Value) bool {
		r.Data[k.String()] = v.String()
		return true
	})
	return r
}

func setRecord(msg *dynamicpb.Message, stream, data, emittedAt protoreflect.FieldDescriptor, r *record.Record) {
	msg.Set(stream, protoreflect.ValueOfString(r.Stream))
	m := msg.Mutable(data).Map()
	for k, v := range r.Data {
		m.Set(protoreflect.ValueOfString(k).MapKey(), protoreflect.ValueOfString(v))
	}
	msg.Set(emittedAt, protoreflect.ValueOfInt64(r.EmittedAt))
}

type protobufWriter struct {
	nopTrailer
	sink      encoder.Sink
	buf       bytes.Buffer
	msg       *dynamicpb.Message
	stream    protoreflect.FieldDescriptor
	data      protoreflect.FieldDescriptor
	emittedAt protoreflect.FieldDescriptor
	opts      protodelim.MarshalOptions
}

func (w *protobufWriter) write(seq int64, r *record.Record) error {
	proto.Reset(w.msg)
	setRecord(w.msg, w.stream, w.data, w.emittedAt, r)

	w.buf.Reset()
	if _, err := w.opts.MarshalTo(&w.buf, w.msg); err != nil {
		return encodeError(encoder.FormatProtobuf, seq, err)
	}
	if _, err := w.sink.Write(w.buf.Bytes()); err != nil {
		return writeError(encoder.FormatProtobuf, err)
	}
	return nil
}
