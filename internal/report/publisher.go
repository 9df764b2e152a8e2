package report

import (
	"context"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/jittakal/sockeventwriter/internal/config/dto"
	apperrors "github.com/jittakal/sockeventwriter/internal/errors"
	"github.com/jittakal/sockeventwriter/internal/observability"
)

// Publisher delivers a run report envelope to a backend.
type Publisher interface {
	Publish(ctx context.Context, event cloudevents.Event) error
	Close() error
}

// Backend names accepted by NewPublisher.
const (
	BackendLog   = "log"
	BackendFile  = "file"
	BackendS3    = "s3"
	BackendGCS   = "gcs"
	BackendAzure = "azure"
	BackendKafka = "kafka"
)

// NewPublisher creates the publisher selected by cfg.Backend.
func NewPublisher(ctx context.Context, cfg dto.ReportConfig, logger *zap.Logger) (Publisher, error) {
	switch cfg.Backend {
	case BackendLog, "":
		return NewLogPublisher(logger), nil
	case BackendFile:
		return NewFilePublisher(cfg.File, logger)
	case BackendS3:
		return NewS3Publisher(ctx, cfg.S3, logger)
	case BackendGCS:
		return NewGCSPublisher(ctx, cfg.GCS, logger)
	case BackendAzure:
		return NewAzurePublisher(cfg.Azure, logger)
	case BackendKafka:
		return NewKafkaPublisher(cfg.Kafka, logger)
	default:
		return nil, fmt.Errorf("unsupported report backend: %s", cfg.Backend)
	}
}

// Reporter turns run results into an envelope and hands it to a Publisher.
type Reporter struct {
	publisher Publisher
	backend   string
	source    string
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewReporter creates a reporter. A zero timeout means no deadline beyond ctx.
func NewReporter(publisher Publisher, backend, source string, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Reporter {
	return &Reporter{
		publisher: publisher,
		backend:   backend,
		source:    source,
		timeout:   timeout,
		logger:    logger,
		metrics:   metrics,
	}
}

// Publish sends the report. Failures are logged and returned as *errors.PublishError.
func (r *Reporter) Publish(ctx context.Context, report *RunReport) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	err := r.publish(ctx, report)
	if err != nil {
		r.metrics.IncReportsPublished(r.backend, "failure")
		r.logger.Error("Failed to publish run report",
			zap.String("backend", r.backend),
			zap.String("runId", report.RunID),
			zap.Error(err),
		)
		return &apperrors.PublishError{Backend: r.backend, Err: err}
	}

	r.metrics.IncReportsPublished(r.backend, "success")
	r.logger.Info("Run report published",
		zap.String("backend", r.backend),
		zap.String("runId", report.RunID),
		zap.Int("endpoints", len(report.Endpoints)),
		zap.Int("failed", report.Failed),
	)
	return nil
}

func (r *Reporter) publish(ctx context.Context, report *RunReport) error {
	event, err := report.Event(r.source)
	if err != nil {
		return err
	}
	return r.publisher.Publish(ctx, event)
}

// Close releases the underlying publisher.
func (r *Reporter) Close() error {
	return r.publisher.Close()
}

// marshalEvent serializes the structured-mode envelope.
func marshalEvent(event cloudevents.Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal CloudEvent: %w", err)
	}
	return data, nil
}
