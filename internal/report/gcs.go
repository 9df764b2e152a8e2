package report

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/jittakal/sockeventwriter/internal/config/dto"
)

var _ Publisher = (*GCSPublisher)(nil)

// GCSPublisher uploads envelopes to a Google Cloud Storage bucket.
type GCSPublisher struct {
	client   *storage.Client
	bucket   string
	basePath string
	logger   *zap.Logger
}

// NewGCSPublisher creates a GCS publisher.
func NewGCSPublisher(ctx context.Context, cfg dto.GCSConfig, logger *zap.Logger) (*GCSPublisher, error) {
	client, err := storage.NewClient(ctx, gcsClientOptions(cfg, logger)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	logger.Info("GCS report publisher created",
		zap.String("bucket", cfg.Bucket),
		zap.String("projectId", cfg.ProjectID),
	)

	return &GCSPublisher{
		client:   client,
		bucket:   cfg.Bucket,
		basePath: cfg.BasePath,
		logger:   logger,
	}, nil
}

func gcsClientOptions(cfg dto.GCSConfig, logger *zap.Logger) []option.ClientOption {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	switch {
	case cfg.UseDefaultCredential:
		logger.Info("Using default GCP credentials")
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		logger.Info("Using GCP credentials from file", zap.String("file", cfg.CredentialsFile))
	default:
		logger.Info("No explicit credentials provided, using default GCP credentials")
	}
	return opts
}

// Publish writes the envelope to its object key.
func (p *GCSPublisher) Publish(ctx context.Context, event cloudevents.Event) error {
	data, err := marshalEvent(event)
	if err != nil {
		return err
	}

	key := ObjectKey(p.basePath, event.ID(), event.Time())
	w := p.client.Bucket(p.bucket).Object(key).NewWriter(ctx)
	w.ContentType = ContentTypeCloudEvents

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}

	p.logger.Info("Report uploaded to GCS",
		zap.String("bucket", p.bucket),
		zap.String("object", key),
		zap.Int("size", len(data)),
	)
	return nil
}

// Close closes the GCS client.
func (p *GCSPublisher) Close() error {
	return p.client.Close()
}
