// Package generator implements the synthetic record suppliers.
package generator

import (
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jaswdr/faker"
	"go.uber.org/zap"

	"github.com/jittakal/sockeventwriter/internal/config/dto"
	"github.com/jittakal/sockeventwriter/pkg/record"
)

// Supplier modes.
const (
	ModeFixed = "fixed"
	ModeFaker = "faker"
)

// Defaults matching the reference record.
const (
	DefaultStreamName      = "stream1"
	DefaultFieldCount      = 5
	DefaultValue           = "valuevaluevaluevaluevalue1"
	DefaultBaseTimestampMs = int64(1742801071589)
)

// Ensure implementations satisfy the interface at compile time.
var (
	_ record.Supplier = (*Fixed)(nil)
	_ record.Supplier = (*Faker)(nil)
	_ record.Supplier = (*limited)(nil)
)

// NewFactory returns a SupplierFactory for the configured mode. Every call of
// the returned factory yields an independent supplier bounded by MaxRecords.
func NewFactory(cfg dto.GeneratorConfig, logger *zap.Logger) (record.SupplierFactory, error) {
	cfg = withDefaults(cfg)

	var next func(instance int64) record.Supplier
	switch cfg.Mode {
	case ModeFixed:
		next = func(int64) record.Supplier {
			return NewFixed(cfg.StreamName, cfg.FieldCount, cfg.ValueLength, cfg.BaseTimestampMs)
		}
	case ModeFaker:
		// Each instance gets its own seed so concurrent suppliers never share a source.
		next = func(instance int64) record.Supplier {
			return NewFaker(cfg.StreamName, cfg.ValueLength, cfg.Seed+instance, cfg.BaseTimestampMs)
		}
	default:
		return nil, fmt.Errorf("unsupported generator mode: %s", cfg.Mode)
	}

	logger.Info("record supplier configured",
		zap.String("mode", cfg.Mode),
		zap.String("stream", cfg.StreamName),
		zap.Int("fieldCount", cfg.FieldCount),
		zap.Int("valueLength", cfg.ValueLength),
		zap.Int64("maxRecords", cfg.MaxRecords),
	)

	var instances atomic.Int64
	return func() record.Supplier {
		return Limit(next(instances.Add(1)), cfg.MaxRecords)
	}, nil
}

func withDefaults(cfg dto.GeneratorConfig) dto.GeneratorConfig {
	if cfg.Mode == "" {
		cfg.Mode = ModeFixed
	}
	if cfg.StreamName == "" {
		cfg.StreamName = DefaultStreamName
	}
	if cfg.FieldCount <= 0 {
		cfg.FieldCount = DefaultFieldCount
	}
	if cfg.ValueLength <= 0 {
		cfg.ValueLength = len(DefaultValue)
	}
	if cfg.BaseTimestampMs == 0 {
		cfg.BaseTimestampMs = DefaultBaseTimestampMs
	}
	return cfg
}

// Fixed yields structurally identical records. Only EmittedAt changes: it
// is the base timestamp plus the record's sequence number.
type Fixed struct {
	stream string
	data   map[string]string
	base   int64
	seq    int64
	closed bool
}

// NewFixed creates a fixed-shape supplier with fields field1..fieldN.
func NewFixed(stream string, fieldCount, valueLength int, baseTimestampMs int64) *Fixed {
	value := fixedValue(valueLength)
	data := make(map[string]string, fieldCount)
	for i := 1; i <= fieldCount; i++ {
		data[fmt.Sprintf("field%d", i)] = value
	}
	return &Fixed{
		stream: stream,
		data:   data,
		base:   baseTimestampMs,
	}
}

// Next returns the next record. The sequence never ends until Close.
func (f *Fixed) Next() (record.Record, bool) {
	if f.closed {
		return record.Record{}, false
	}
	r := record.Record{
		Stream:    f.stream,
		Data:      f.data,
		EmittedAt: f.base + f.seq,
	}
	f.seq++
	return r, true
}

// Close stops the sequence.
func (f *Fixed) Close() error {
	f.closed = true
	return nil
}

// fixedValue builds "valuevalue...1" of exactly n bytes.
func fixedValue(n int) string {
	if n == len(DefaultValue) {
		return DefaultValue
	}
	if n <= 1 {
		return "1"
	}
	return strings.Repeat("value", n/5+1)[:n-1] + "1"
}

// Faker yields records whose values are realistic but padded to a fixed
// length, keeping the field set and value sizes constant for a run.
type Faker struct {
	stream      string
	valueLength int
	faker       faker.Faker
	rng         *rand.Rand
	base        int64
	seq         int64
	closed      bool
}

// FakerFields is the fixed field set produced by the Faker supplier.
var FakerFields = []string{"record_id", "name", "email", "city", "title", "code"}

// NewFaker creates a faker-backed supplier seeded for reproducibility.
func NewFaker(stream string, valueLength int, seed, baseTimestampMs int64) *Faker {
	return &Faker{
		stream:      stream,
		valueLength: valueLength,
		faker:       faker.NewWithSeed(rand.NewSource(seed)),
		rng:         rand.New(rand.NewSource(seed)),
		base:        baseTimestampMs,
	}
}

// Next returns the next record. The sequence never ends until Close.
func (f *Faker) Next() (record.Record, bool) {
	if f.closed {
		return record.Record{}, false
	}

	id, err := uuid.NewRandomFromReader(f.rng)
	if err != nil {
		id = uuid.Nil
	}

	r := record.Record{
		Stream: f.stream,
		Data: map[string]string{
			"record_id": id.String(),
			"name":      f.fit(f.faker.Person().Name()),
			"email":     f.fit(f.faker.Internet().Email()),
			"city":      f.fit(f.faker.Address().City()),
			"title":     f.fit(f.faker.Lorem().Sentence(5)),
			"code":      f.fit(f.faker.RandomStringWithLength(f.valueLength)),
		},
		EmittedAt: f.base + f.seq,
	}
	f.seq++
	return r, true
}

// Close stops the sequence.
func (f *Faker) Close() error {
	f.closed = true
	return nil
}

// fit pads or truncates s to exactly the configured value length in bytes,
// never splitting a multi-byte rune.
func (f *Faker) fit(s string) string {
	if len(s) > f.valueLength {
		cut := f.valueLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s + strings.Repeat("_", f.valueLength-len(s))
}

// Limit bounds s to exactly n records. n <= 0 leaves s unbounded.
func Limit(s record.Supplier, n int64) record.Supplier {
	if n <= 0 {
		return s
	}
	return &limited{Supplier: s, remaining: n}
}

type limited struct {
	record.Supplier
	remaining int64
}

func (l *limited) Next() (record.Record, bool) {
	if l.remaining <= 0 {
		return record.Record{}, false
	}
	r, ok := l.Supplier.Next()
	if !ok {
		return record.Record{}, false
	}
	l.remaining--
	return r, true
}
