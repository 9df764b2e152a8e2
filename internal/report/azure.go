package report

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"

	"github.com/jittakal/sockeventwriter/internal/config/dto"
)

var _ Publisher = (*AzurePublisher)(nil)

// AzurePublisher uploads envelopes to an Azure Blob Storage container.
type AzurePublisher struct {
	client    *azblob.Client
	container string
	basePath  string
	logger    *zap.Logger
}

// NewAzurePublisher creates an Azure publisher authenticated by account key.
func NewAzurePublisher(cfg dto.AzureConfig, logger *zap.Logger) (*AzurePublisher, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString(cfg), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	logger.Info("Azure report publisher created",
		zap.String("account", cfg.AccountName),
		zap.String("container", cfg.Container),
	)

	return &AzurePublisher{
		client:    client,
		container: cfg.Container,
		basePath:  cfg.BasePath,
		logger:    logger,
	}, nil
}

func connectionString(cfg dto.AzureConfig) string {
	if cfg.Endpoint != "" {
		return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			cfg.AccountName, cfg.AccountKey, cfg.Endpoint)
	}
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		cfg.AccountName, cfg.AccountKey)
}

// Publish uploads the envelope as a block blob.
func (p *AzurePublisher) Publish(ctx context.Context, event cloudevents.Event) error {
	data, err := marshalEvent(event)
	if err != nil {
		return err
	}

	key := ObjectKey(p.basePath, event.ID(), event.Time())
	contentType := ContentTypeCloudEvents
	_, err = p.client.UploadBuffer(ctx, p.container, key, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return fmt.Errorf("failed to upload to Azure: %w", err)
	}

	p.logger.Info("Report uploaded to Azure",
		zap.String("container", p.container),
		zap.String("blob", key),
		zap.Int("size", len(data)),
	)
	return nil
}

// Close is a no-op.
func (p *AzurePublisher) Close() error {
	return nil
}
