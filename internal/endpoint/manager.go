// Package endpoint binds local socket endpoints and accepts their single peer.
package endpoint

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/jittakal/sockeventwriter/internal/errors"
)

// Defaults for the identity to path mapping.
const (
	DefaultDirectory = "/var/run/sockets"
	DefaultPrefix    = "source."
)

// Config holds endpoint manager settings.
type Config struct {
	// Dir is the directory socket files are created in.
	Dir string
	// Prefix is prepended to the identity to form the file name.
	Prefix string
	// BufferSize is the sink write buffer size in bytes.
	BufferSize int
	// Compression is the stream compression codec, none or zstd.
	Compression string
	// RateLimit caps bytes per second written to each peer; <= 0 is unlimited.
	RateLimit int64
}

// Endpoint is a named local socket.
type Endpoint struct {
	Identity string
	Path     string
}

// Manager binds endpoints and hands out their accepted connections. Each
// identity is served at most once at a time.
type Manager struct {
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	inUse map[string]struct{}
}

// NewManager creates an endpoint manager.
func NewManager(cfg Config, logger *zap.Logger) (*Manager, error) {
	if cfg.Dir == "" {
		cfg.Dir = DefaultDirectory
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	switch cfg.Compression {
	case "":
		cfg.Compression = CompressionNone
	case CompressionNone, CompressionZstd:
	default:
		return nil, fmt.Errorf("unsupported compression: %s", cfg.Compression)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		cfg:    cfg,
		logger: logger,
		inUse:  make(map[string]struct{}),
	}, nil
}

// Path returns the socket file path for identity.
func (m *Manager) Path(identity string) string {
	return filepath.Join(m.cfg.Dir, m.cfg.Prefix+identity)
}

// Endpoint returns the endpoint for identity.
func (m *Manager) Endpoint(identity string) Endpoint {
	return Endpoint{Identity: identity, Path: m.Path(identity)}
}

// Serve binds the endpoint for identity, waits for exactly one peer and
// returns the wrapped connection. A stale file at the path is removed first.
//
// The wait has no timeout. Cancelling ctx is the only way to abandon it, in
// which case the listener is closed and an *errors.AcceptError wrapping
// ctx.Err() is returned.
func (m *Manager) Serve(ctx context.Context, identity string) (*Conn, error) {
	ep := m.Endpoint(identity)
	if err := validateIdentity(identity); err != nil {
		return nil, &apperrors.BindError{Identity: identity, Path: ep.Path, Err: err}
	}
	if !m.acquire(identity) {
		return nil, &apperrors.BindError{Identity: identity, Path: ep.Path, Err: apperrors.ErrEndpointInUse}
	}

	conn, err := m.serve(ctx, ep)
	if err != nil {
		m.Release(identity)
		return nil, err
	}
	return conn, nil
}

func (m *Manager) serve(ctx context.Context, ep Endpoint) (*Conn, error) {
	if err := os.Remove(ep.Path); err != nil && !os.IsNotExist(err) {
		return nil, &apperrors.BindError{Identity: ep.Identity, Path: ep.Path, Err: fmt.Errorf("failed to remove stale socket: %w", err)}
	}

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: ep.Path, Net: "unix"})
	if err != nil {
		return nil, &apperrors.BindError{Identity: ep.Identity, Path: ep.Path, Err: err}
	}
	m.logger.Info("Endpoint bound, waiting for peer",
		zap.String("endpoint", ep.Identity),
		zap.String("path", ep.Path))

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	uc, err := ln.AcceptUnix()
	stop()
	ln.Close()

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &apperrors.AcceptError{Identity: ep.Identity, Path: ep.Path, Err: err}
	}

	sink, err := newSink(uc, m.cfg.BufferSize, m.cfg.Compression, m.cfg.RateLimit)
	if err != nil {
		uc.Close()
		return nil, &apperrors.AcceptError{Identity: ep.Identity, Path: ep.Path, Err: err}
	}

	m.logger.Info("Peer connected",
		zap.String("endpoint", ep.Identity),
		zap.String("compression", m.cfg.Compression))

	return newConn(ep, uc, sink, m), nil
}

// Release marks identity as no longer served. Conn.Close calls it.
func (m *Manager) Release(identity string) {
	m.mu.Lock()
	delete(m.inUse, identity)
	m.mu.Unlock()
}

// InUse reports whether identity is currently being served.
func (m *Manager) InUse(identity string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inUse[identity]
	return ok
}

func (m *Manager) acquire(identity string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inUse[identity]; ok {
		return false
	}
	m.inUse[identity] = struct{}{}
	return true
}

func validateIdentity(identity string) error {
	if identity == "" || identity == "." || identity == ".." ||
		strings.ContainsRune(identity, '/') || strings.ContainsRune(identity, os.PathSeparator) {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidIdentity, identity)
	}
	return nil
}

// Status describes an accepted connection's transfer so far.
type Status struct {
	Identity    string
	Path        string
	ConnectedAt time.Time
	Bytes       int64
	AvgRate     int64
	PeakRate    int64
	Duration    time.Duration
}

// Conn is an accepted peer connection and its sink. It is released exactly
// once by Close.
type Conn struct {
	endpoint    Endpoint
	transport   io.WriteCloser
	sink        *Sink
	manager     *Manager
	connectedAt time.Time

	closeOnce sync.Once
	closeErr  error
}

func newConn(ep Endpoint, transport io.WriteCloser, sink *Sink, m *Manager) *Conn {
	return &Conn{
		endpoint:    ep,
		transport:   transport,
		sink:        sink,
		manager:     m,
		connectedAt: time.Now(),
	}
}

// Endpoint returns the endpoint the connection was accepted on.
func (c *Conn) Endpoint() Endpoint {
	return c.endpoint
}

// Sink returns the connection's buffered sink.
func (c *Conn) Sink() *Sink {
	return c.sink
}

// Close flushes and closes the sink, then the transport, and releases the
// endpoint. It returns the first error encountered; later calls return the
// same result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.sink.Close()
		if err := c.transport.Close(); err != nil && c.closeErr == nil {
			c.closeErr = err
		}
		c.manager.Release(c.endpoint.Identity)

		st := c.Status()
		c.manager.logger.Info("Connection closed",
			zap.String("endpoint", c.endpoint.Identity),
			zap.Int64("bytes", st.Bytes),
			zap.Int64("avg_bytes_per_sec", st.AvgRate),
			zap.Duration("duration", st.Duration),
			zap.Error(c.closeErr))
	})
	return c.closeErr
}

// Status returns transfer statistics for the connection.
func (c *Conn) Status() Status {
	st := c.sink.Status()
	return Status{
		Identity:    c.endpoint.Identity,
		Path:        c.endpoint.Path,
		ConnectedAt: c.connectedAt,
		Bytes:       st.Bytes,
		AvgRate:     st.AvgRate,
		PeakRate:    st.PeakRate,
		Duration:    st.Duration,
	}
}
