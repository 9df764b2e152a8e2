package endpoint

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/mxk/go-flowrate/flowrate"

	apperrors "github.com/jittakal/sockeventwriter/internal/errors"
)

// Compression codecs applied to the whole connection stream.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// DefaultBufferSize is the sink's write buffer size when none is configured.
const DefaultBufferSize = 8 * 1024

// SupportedCompressions returns the accepted stream compression names.
func SupportedCompressions() []string {
	return []string{CompressionNone, CompressionZstd}
}

// Sink is the buffered writer every encoder on a connection writes to.
//
// Bytes travel through a write buffer, an optional zstd stream encoder and a
// flowrate monitor before reaching the transport. A Sink is used by one
// goroutine at a time.
type Sink struct {
	buf  *bufio.Writer
	zw   *zstd.Encoder
	rate *flowrate.Writer

	closeOnce sync.Once
	closed    bool
	closeErr  error
}

// newSink wraps w. A rateLimit <= 0 disables throttling.
func newSink(w io.Writer, bufferSize int, compression string, rateLimit int64) (*Sink, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	s := &Sink{rate: flowrate.NewWriter(w, rateLimit)}
	var next io.Writer = s.rate

	switch compression {
	case "", CompressionNone:
	case CompressionZstd:
		zw, err := zstd.NewWriter(s.rate, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		s.zw = zw
		next = zw
	default:
		return nil, fmt.Errorf("unsupported compression: %s", compression)
	}

	s.buf = bufio.NewWriterSize(next, bufferSize)
	return s, nil
}

// Write buffers p.
func (s *Sink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, apperrors.ErrSinkClosed
	}
	return s.buf.Write(p)
}

// Flush pushes buffered bytes through the compressor to the transport.
func (s *Sink) Flush() error {
	if s.closed {
		return apperrors.ErrSinkClosed
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	if s.zw != nil {
		return s.zw.Flush()
	}
	return nil
}

// Close flushes pending bytes and ends the compressed frame. It does not
// close the transport. Subsequent calls return the first result.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.buf.Flush()
		if s.zw != nil {
			if err := s.zw.Close(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
		s.rate.Done()
		s.closed = true
	})
	return s.closeErr
}

// Status returns transfer statistics measured at the transport.
func (s *Sink) Status() flowrate.Status {
	return s.rate.Status()
}
