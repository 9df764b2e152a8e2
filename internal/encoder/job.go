package encoder

import (
	"errors"
	"runtime"

	apperrors "github.com/jittakal/sockeventwriter/internal/errors"
	"github.com/jittakal/sockeventwriter/internal/flush"
	"github.com/jittakal/sockeventwriter/pkg/encoder"
	"github.com/jittakal/sockeventwriter/pkg/record"
)

// LineSeparator terminates every text-structured record.
var LineSeparator = lineSeparator(runtime.GOOS)

func lineSeparator(goos string) []byte {
	if goos == "windows" {
		return []byte("\r\n")
	}
	return []byte("\n")
}

// recordWriter is the per-format part of an encoding job.
type recordWriter interface {
	// write serializes one record and hands the bytes to the sink.
	write(seq int64, r *record.Record) error

	// drain pushes encoder-internal buffers into the sink ahead of a flush.
	drain() error

	// finish writes any end-of-stream trailer.
	finish() error
}

// flusherFunc adapts a function to flush.Flusher.
type flusherFunc func() error

func (f flusherFunc) Flush() error { return f() }

// run drives the supplier through w in order, applying the flush policy,
// and ends with the job's own final flush. The supplier is always closed.
func run(format encoder.Format, policy flush.Policy, records record.Supplier, sink encoder.Sink, w recordWriter) (stats encoder.Stats, err error) {
	defer func() {
		if cerr := records.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	counter := policy.NewCounter(flusherFunc(func() error {
		if err := w.drain(); err != nil {
			return err
		}
		return sink.Flush()
	}))

	for {
		r, ok := records.Next()
		if !ok {
			break
		}
		if err := w.write(counter.Total(), &r); err != nil {
			return snapshot(counter), err
		}
		if _, err := counter.Record(); err != nil {
			return snapshot(counter), flushError(format, err)
		}
	}

	if err := w.finish(); err != nil {
		return snapshot(counter), err
	}
	if err := sink.Flush(); err != nil {
		return snapshot(counter), flushError(format, err)
	}
	return snapshot(counter), nil
}

func snapshot(c *flush.Counter) encoder.Stats {
	return encoder.Stats{Records: c.Total(), Flushes: c.Flushes()}
}

func encodeError(format encoder.Format, seq int64, err error) error {
	return &apperrors.EncodeError{Format: string(format), Sequence: seq, Err: err}
}

func writeError(format encoder.Format, err error) error {
	return &apperrors.WriteError{Format: string(format), Err: err}
}

// flushError wraps err unless it already carries a module error type.
func flushError(format encoder.Format, err error) error {
	var (
		writeErr  *apperrors.WriteError
		encodeErr *apperrors.EncodeError
		flushErr  *apperrors.FlushError
	)
	if errors.As(err, &writeErr) || errors.As(err, &encodeErr) || errors.As(err, &flushErr) {
		return err
	}
	return &apperrors.FlushError{Format: string(format), Err: err}
}

// nopTrailer provides no-op drain and finish for stream formats without
// internal buffering.
type nopTrailer struct{}

func (nopTrailer) drain() error  { return nil }
func (nopTrailer) finish() error { return nil }
