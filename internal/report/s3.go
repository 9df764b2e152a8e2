package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"

	"github.com/jittakal/sockeventwriter/internal/config/dto"
)

var _ Publisher = (*S3Publisher)(nil)

// S3Publisher uploads envelopes to an S3 bucket.
type S3Publisher struct {
	uploader    *manager.Uploader
	bucket      string
	basePath    string
	sseEnabled  bool
	sseKMSKeyID string
	logger      *zap.Logger
}

// NewS3Publisher creates an S3 publisher from the default AWS credential chain.
func NewS3Publisher(ctx context.Context, cfg dto.S3Config, logger *zap.Logger) (*S3Publisher, error) {
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	logger.Info("S3 report publisher created",
		zap.String("bucket", cfg.Bucket),
		zap.String("region", cfg.Region),
		zap.Bool("sseEnabled", cfg.SSEEnabled),
	)

	return &S3Publisher{
		uploader:    manager.NewUploader(s3Client),
		bucket:      cfg.Bucket,
		basePath:    cfg.BasePath,
		sseEnabled:  cfg.SSEEnabled,
		sseKMSKeyID: cfg.SSEKMSKeyID,
		logger:      logger,
	}, nil
}

// Publish uploads the envelope under its object key.
func (p *S3Publisher) Publish(ctx context.Context, event cloudevents.Event) error {
	data, err := marshalEvent(event)
	if err != nil {
		return err
	}

	key := ObjectKey(p.basePath, event.ID(), event.Time())
	input := p.putObjectInput(key, data)

	if _, err := p.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	p.logger.Info("Report uploaded to S3",
		zap.String("bucket", p.bucket),
		zap.String("key", key),
		zap.Int("size", len(data)),
	)
	return nil
}

func (p *S3Publisher) putObjectInput(key string, data []byte) *s3.PutObjectInput {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ContentTypeCloudEvents),
	}

	if p.sseEnabled {
		if p.sseKMSKeyID != "" {
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			input.SSEKMSKeyId = aws.String(p.sseKMSKeyID)
		} else {
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}
	return input
}

// Close is a no-op.
func (p *S3Publisher) Close() error {
	return nil
}
