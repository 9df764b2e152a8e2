// Package coordinator runs one writer task per socket endpoint on a bounded
// worker pool and joins them.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jittakal/sockeventwriter/internal/endpoint"
	apperrors "github.com/jittakal/sockeventwriter/internal/errors"
	"github.com/jittakal/sockeventwriter/internal/observability"
	"github.com/jittakal/sockeventwriter/internal/pool"
	"github.com/jittakal/sockeventwriter/pkg/encoder"
	"github.com/jittakal/sockeventwriter/pkg/record"
)

// EndpointServer binds an endpoint and accepts its single peer.
type EndpointServer interface {
	Serve(ctx context.Context, identity string) (*endpoint.Conn, error)
}

// EncoderFactory creates a fresh encoder per job.
type EncoderFactory interface {
	CreateEncoder(format encoder.Format) (encoder.Encoder, error)
}

// Options configures a Coordinator.
type Options struct {
	Manager   EndpointServer
	Pool      *pool.Pool
	Factory   EncoderFactory
	Formats   []encoder.Format
	Suppliers record.SupplierFactory
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// Coordinator fans writer tasks out over the pool.
type Coordinator struct {
	manager   EndpointServer
	pool      *pool.Pool
	factory   EncoderFactory
	formats   []encoder.Format
	suppliers record.SupplierFactory
	logger    *zap.Logger
	metrics   *observability.Metrics

	status *statusTable
}

// New creates a coordinator.
func New(opts Options) (*Coordinator, error) {
	if opts.Manager == nil {
		return nil, fmt.Errorf("endpoint manager is required")
	}
	if opts.Factory == nil {
		return nil, fmt.Errorf("encoder factory is required")
	}
	if opts.Suppliers == nil {
		return nil, fmt.Errorf("supplier factory is required")
	}
	if len(opts.Formats) == 0 {
		return nil, fmt.Errorf("at least one format is required")
	}
	if opts.Pool == nil {
		opts.Pool = pool.New(pool.DefaultSize)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Coordinator{
		manager:   opts.Manager,
		pool:      opts.Pool,
		factory:   opts.Factory,
		formats:   opts.Formats,
		suppliers: opts.Suppliers,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		status:    newStatusTable(),
	}, nil
}

// Identities returns the reference identities sock0..sock{n-1}.
func Identities(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("sock%d", i)
	}
	return ids
}

// RunAll starts one task per identity and blocks until every task is
// terminal. Results are returned in identity order. The returned error is
// the first task failure observed, as an *errors.TaskError.
//
// A task waits for its peer without a timeout; cancelling ctx aborts pending
// accepts only. Tasks already streaming run to completion.
func (c *Coordinator) RunAll(ctx context.Context, identities []string) ([]TaskResult, error) {
	seen := make(map[string]struct{}, len(identities))
	for _, id := range identities {
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrDuplicateIdentity, id)
		}
		seen[id] = struct{}{}
	}

	c.status.reset(identities)
	results := make([]TaskResult, len(identities))

	c.logger.Info("Starting writer tasks",
		zap.Int("endpoints", len(identities)),
		zap.Int("poolSize", c.pool.Size()),
		zap.Any("formats", c.formats))

	tasks := make([]pool.Task, len(identities))
	for i, id := range identities {
		tasks[i] = func() error {
			results[i] = c.runTask(ctx, id)
			if results[i].Err != nil {
				return &apperrors.TaskError{Identity: id, Err: results[i].Err}
			}
			return nil
		}
	}

	err := c.pool.Run(tasks...)

	c.logger.Info("Writer tasks finished",
		zap.Int("endpoints", len(identities)),
		zap.Error(err))
	return results, err
}

// Status returns a snapshot of every task in the current run.
func (c *Coordinator) Status() []TaskStatus {
	return c.status.snapshot()
}

func (c *Coordinator) runTask(ctx context.Context, id string) TaskResult {
	res := TaskResult{Identity: id, State: StateWaiting}
	start := time.Now()
	c.status.set(id, StateWaiting, 0, nil)

	conn, err := c.manager.Serve(ctx, id)
	if err != nil {
		return c.finish(res, start, err)
	}
	c.metrics.IncEndpointsConnected()
	defer c.metrics.DecEndpointsConnected()
	c.status.set(id, StateRunning, 0, nil)

	jobErr := c.runJobs(id, conn, &res)
	closeErr := conn.Close()

	st := conn.Status()
	res.Bytes = st.Bytes
	res.AvgRate = st.AvgRate
	res.PeakRate = st.PeakRate
	c.metrics.AddBytesWritten(id, st.Bytes)

	if jobErr == nil {
		jobErr = closeErr
	}
	return c.finish(res, start, jobErr)
}

// runJobs drives every configured format, in order, over one connection.
func (c *Coordinator) runJobs(id string, conn *endpoint.Conn, res *TaskResult) error {
	for _, format := range c.formats {
		enc, err := c.factory.CreateEncoder(format)
		if err != nil {
			return err
		}

		c.logger.Info("Encoding started",
			zap.String("endpoint", id),
			zap.String("format", string(format)))

		start := time.Now()
		stats, err := enc.Encode(c.suppliers(), conn.Sink())
		elapsed := time.Since(start)

		res.Records += stats.Records
		res.Flushes += stats.Flushes
		res.Jobs = append(res.Jobs, JobResult{Format: format, Stats: stats, Duration: elapsed})
		c.metrics.ObserveJob(id, string(format), stats.Records, stats.Flushes, elapsed.Seconds())
		c.status.set(id, StateRunning, res.Records, nil)

		if err != nil {
			return err
		}
		c.logger.Info("Encoding finished",
			zap.String("endpoint", id),
			zap.String("format", string(format)),
			zap.Int64("records", stats.Records),
			zap.Int64("flushes", stats.Flushes),
			zap.Duration("duration", elapsed))
	}
	return nil
}

func (c *Coordinator) finish(res TaskResult, start time.Time, err error) TaskResult {
	res.Duration = time.Since(start)
	res.Err = err
	if err != nil {
		res.State = StateFailed
		c.metrics.IncErrors(res.Identity, apperrors.Kind(err))
		c.logger.Error("Task failed",
			zap.String("endpoint", res.Identity),
			zap.String("kind", apperrors.Kind(err)),
			zap.Int64("records", res.Records),
			zap.Error(err))
	} else {
		res.State = StateCompleted
		c.logger.Info("Task completed",
			zap.String("endpoint", res.Identity),
			zap.Int64("records", res.Records),
			zap.Int64("bytes", res.Bytes),
			zap.Duration("duration", res.Duration))
	}
	c.metrics.IncTasks(string(res.State))
	c.status.set(res.Identity, res.State, res.Records, err)
	return res
}
