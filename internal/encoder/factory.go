package encoder

import (
	"fmt"
	"strings"

	apperrors "github.com/jittakal/sockeventwriter/internal/errors"
	"github.com/jittakal/sockeventwriter/internal/flush"
	"github.com/jittakal/sockeventwriter/pkg/encoder"
)

// Factory creates encoders that share one flush policy.
type Factory struct {
	policy             flush.Policy
	parquetCompression string
}

// NewFactory creates a new encoder factory.
func NewFactory(policy flush.Policy, parquetCompression string) *Factory {
	return &Factory{
		policy:             policy,
		parquetCompression: parquetCompression,
	}
}

// Policy returns the flush policy applied by created encoders.
func (f *Factory) Policy() flush.Policy {
	return f.policy
}

// CreateEncoder creates a fresh encoder for format. Encoders hold per-job
// state and must not be shared between concurrent jobs.
func (f *Factory) CreateEncoder(format encoder.Format) (encoder.Encoder, error) {
	switch format {
	case encoder.FormatJSON:
		return NewJSONEncoder(f.policy), nil
	case encoder.FormatMsgpack:
		return NewMsgpackEncoder(f.policy), nil
	case encoder.FormatProtobuf:
		return NewProtobufEncoder(f.policy)
	case encoder.FormatAvro:
		return NewAvroEncoder(f.policy)
	case encoder.FormatParquet:
		return NewParquetEncoder(f.policy, f.parquetCompression), nil
	default:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format)
	}
}

// ParseFormat resolves a case-insensitive format name.
func ParseFormat(name string) (encoder.Format, error) {
	format := encoder.Format(strings.ToLower(strings.TrimSpace(name)))
	for _, f := range SupportedFormats() {
		if f == format {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, name)
}

// ParseFormats resolves an ordered list of format names.
func ParseFormats(names []string) ([]encoder.Format, error) {
	formats := make([]encoder.Format, 0, len(names))
	for _, name := range names {
		f, err := ParseFormat(name)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, nil
}

// SupportedFormats returns a list of supported wire formats.
func SupportedFormats() []encoder.Format {
	return []encoder.Format{
		encoder.FormatJSON,
		encoder.FormatMsgpack,
		encoder.FormatProtobuf,
		encoder.FormatAvro,
		encoder.FormatParquet,
	}
}

// DefaultFormats returns the formats written when none are configured:
// text first, then compact binary.
func DefaultFormats() []encoder.Format {
	return []encoder.Format{encoder.FormatJSON, encoder.FormatMsgpack}
}
