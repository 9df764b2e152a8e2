package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"

	"github.com/jittakal/sockeventwriter/internal/config/dto"
)

var _ Publisher = (*FilePublisher)(nil)

// FilePublisher writes envelopes below a local base directory.
type FilePublisher struct {
	basePath string
	logger   *zap.Logger
}

// NewFilePublisher creates a file publisher, creating the base path if needed.
func NewFilePublisher(cfg dto.FileConfig, logger *zap.Logger) (*FilePublisher, error) {
	if err := os.MkdirAll(cfg.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	logger.Info("File report publisher created", zap.String("basePath", cfg.BasePath))

	return &FilePublisher{basePath: cfg.BasePath, logger: logger}, nil
}

// Publish writes the envelope to <base>/dt=YYYY-MM-DD/run=<id>.json.
func (p *FilePublisher) Publish(ctx context.Context, event cloudevents.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := marshalEvent(event)
	if err != nil {
		return err
	}

	filePath := filepath.FromSlash(ObjectKey(filepath.ToSlash(p.basePath), event.ID(), event.Time()))
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	p.logger.Info("Report written to file",
		zap.String("path", filePath),
		zap.Int("size", len(data)),
	)
	return nil
}

// Close is a no-op.
func (p *FilePublisher) Close() error {
	return nil
}
