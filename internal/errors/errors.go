// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrEndpointInUse     = errors.New("endpoint is already being served")
	ErrInvalidIdentity   = errors.New("invalid endpoint identity")
	ErrDuplicateIdentity = errors.New("duplicate endpoint identity")
	ErrSinkClosed        = errors.New("sink is closed")
	ErrUnsupportedFormat = errors.New("unsupported encoding format")
)

// BindError reports a failure to prepare or bind an endpoint's socket file.
type BindError struct {
	Identity string
	Path     string
	Err      error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind error: endpoint=%s path=%s: %v", e.Identity, e.Path, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// AcceptError reports a transport failure while waiting for the endpoint's peer.
type AcceptError struct {
	Identity string
	Path     string
	Err      error
}

func (e *AcceptError) Error() string {
	return fmt.Sprintf("accept error: endpoint=%s path=%s: %v", e.Identity, e.Path, e.Err)
}

func (e *AcceptError) Unwrap() error {
	return e.Err
}

// EncodeError reports a record that could not be serialized under a format.
// Sequence is the zero-based position of the record within its job.
type EncodeError struct {
	Format   string
	Sequence int64
	Err      error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode error: format=%s sequence=%d: %v", e.Format, e.Sequence, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// WriteError reports a sink-level write failure, e.g. the peer closed early.
type WriteError struct {
	Format string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write error: format=%s: %v", e.Format, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// FlushError reports a failure to force buffered bytes toward the peer.
type FlushError struct {
	Format string
	Err    error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flush error: format=%s: %v", e.Format, e.Err)
}

func (e *FlushError) Unwrap() error {
	return e.Err
}

// TaskError scopes a worker task failure to the endpoint it was serving.
type TaskError struct {
	Identity string
	Err      error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task error: endpoint=%s: %v", e.Identity, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// PublishError represents a run report publication failure.
type PublishError struct {
	Backend string
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish error: backend=%s: %v", e.Backend, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Kind classifies an error into a short label suitable for metrics.
// It returns "unknown" for errors that are not produced by this module.
func Kind(err error) string {
	if err == nil {
		return ""
	}

	var (
		bindErr    *BindError
		acceptErr  *AcceptError
		encodeErr  *EncodeError
		writeErr   *WriteError
		flushErr   *FlushError
		publishErr *PublishError
	)

	switch {
	case errors.As(err, &bindErr):
		return "bind"
	case errors.As(err, &acceptErr):
		return "accept"
	case errors.As(err, &encodeErr):
		return "encode"
	case errors.As(err, &writeErr):
		return "write"
	case errors.As(err, &flushErr):
		return "flush"
	case errors.As(err, &publishErr):
		return "publish"
	case errors.Is(err, ErrSinkClosed):
		return "write"
	default:
		return "unknown"
	}
}
