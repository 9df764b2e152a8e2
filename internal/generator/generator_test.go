package generator

import (
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/jittakal/sockeventwriter/internal/config/dto"
	"github.com/jittakal/sockeventwriter/pkg/record"
)

func TestFixed_ReferenceRecord(t *testing.T) {
	s := NewFixed(DefaultStreamName, DefaultFieldCount, len(DefaultValue), DefaultBaseTimestampMs)
	defer s.Close()

	r, ok := s.Next()
	if !ok {
		t.Fatal("expected a record")
	}
	if r.Stream != "stream1" {
		t.Errorf("Stream = %s, want stream1", r.Stream)
	}
	if len(r.Data) != 5 {
		t.Fatalf("len(Data) = %d, want 5", len(r.Data))
	}
	for _, name := range []string{"field1", "field2", "field3", "field4", "field5"} {
		if r.Data[name] != "valuevaluevaluevaluevalue1" {
			t.Errorf("Data[%s] = %q", name, r.Data[name])
		}
	}
	if r.EmittedAt != 1742801071589 {
		t.Errorf("EmittedAt = %d, want 1742801071589", r.EmittedAt)
	}
}

func TestFixed_EmittedAtIsSequential(t *testing.T) {
	s := NewFixed("s", 2, 10, 1000)

	for i := int64(0); i < 100; i++ {
		r, ok := s.Next()
		if !ok {
			t.Fatalf("supplier ended at %d", i)
		}
		if r.EmittedAt != 1000+i {
			t.Fatalf("record %d EmittedAt = %d, want %d", i, r.EmittedAt, 1000+i)
		}
	}
}

func TestFixed_CloseEndsSequence(t *testing.T) {
	s := NewFixed("s", 1, 5, 0)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if _, ok := s.Next(); ok {
		t.Error("expected no records after Close")
	}
}

func TestFixedValue(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{26, "valuevaluevaluevaluevalue1"},
		{1, "1"},
		{6, "value1"},
		{8, "valueva1"},
	}

	for _, tt := range tests {
		if got := fixedValue(tt.n); got != tt.want {
			t.Errorf("fixedValue(%d) = %q, want %q", tt.n, got, tt.want)
		}
		if len(fixedValue(tt.n)) != tt.n {
			t.Errorf("len(fixedValue(%d)) = %d", tt.n, len(fixedValue(tt.n)))
		}
	}
}

func TestFaker_FixedShape(t *testing.T) {
	s := NewFaker("people", 20, 7, 0)
	defer s.Close()

	for i := 0; i < 50; i++ {
		r, ok := s.Next()
		if !ok {
			t.Fatal("expected a record")
		}
		if len(r.Data) != len(FakerFields) {
			t.Fatalf("len(Data) = %d, want %d", len(r.Data), len(FakerFields))
		}
		for _, name := range FakerFields {
			v, ok := r.Data[name]
			if !ok {
				t.Fatalf("missing field %s", name)
			}
			want := 20
			if name == "record_id" {
				want = 36
			}
			if len(v) != want {
				t.Errorf("len(Data[%s]) = %d, want %d (%q)", name, len(v), want, v)
			}
		}
	}
}

func TestFaker_SameSeedSameSequence(t *testing.T) {
	a := NewFaker("s", 16, 42, 0)
	b := NewFaker("s", 16, 42, 0)

	for i := 0; i < 10; i++ {
		ra, _ := a.Next()
		rb, _ := b.Next()
		if !ra.Equal(&rb) {
			t.Fatalf("record %d differs: %v vs %v", i, ra, rb)
		}
	}
}

func TestLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int64
		pulls int
		want  int
	}{
		{"bounded", 3, 10, 3},
		{"zero is unbounded", 0, 10, 10},
		{"negative is unbounded", -1, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Limit(NewFixed("s", 1, 5, 0), tt.limit)
			got := 0
			for i := 0; i < tt.pulls; i++ {
				if _, ok := s.Next(); ok {
					got++
				}
			}
			if got != tt.want {
				t.Errorf("records = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewFactory(t *testing.T) {
	logger := zaptest.NewLogger(t)

	tests := []struct {
		name    string
		cfg     dto.GeneratorConfig
		wantErr bool
	}{
		{"default mode", dto.GeneratorConfig{MaxRecords: 4}, false},
		{"fixed", dto.GeneratorConfig{Mode: ModeFixed, MaxRecords: 4}, false},
		{"faker", dto.GeneratorConfig{Mode: ModeFaker, MaxRecords: 4, ValueLength: 12}, false},
		{"unknown", dto.GeneratorConfig{Mode: "random"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory, err := NewFactory(tt.cfg, logger)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFactory() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			s := factory()
			defer s.Close()
			n := 0
			for {
				if _, ok := s.Next(); !ok {
					break
				}
				n++
			}
			if n != 4 {
				t.Errorf("records = %d, want 4", n)
			}
		})
	}
}

func TestNewFactory_IndependentInstances(t *testing.T) {
	factory, err := NewFactory(dto.GeneratorConfig{Mode: ModeFixed, MaxRecords: 1000}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewFactory() error = %v", err)
	}

	var wg sync.WaitGroup
	counts := make([]int, 8)
	for i := range counts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := factory()
			defer s.Close()
			var last *record.Record
			for {
				r, ok := s.Next()
				if !ok {
					break
				}
				if last != nil && r.EmittedAt != last.EmittedAt+1 {
					t.Errorf("instance %d: out of order record", i)
				}
				last = &r
				counts[i]++
			}
		}(i)
	}
	wg.Wait()

	for i, c := range counts {
		if c != 1000 {
			t.Errorf("instance %d produced %d records, want 1000", i, c)
		}
	}
}
