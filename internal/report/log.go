package report

import (
	"context"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"
)

var _ Publisher = (*LogPublisher)(nil)

// LogPublisher writes the envelope to the application log.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a log publisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the serialized envelope at info level.
func (p *LogPublisher) Publish(_ context.Context, event cloudevents.Event) error {
	data, err := marshalEvent(event)
	if err != nil {
		return err
	}

	p.logger.Info("Run report",
		zap.String("eventId", event.ID()),
		zap.String("eventType", event.Type()),
		zap.ByteString("event", data),
	)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error {
	return nil
}
