package publisher

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	rediscommon "body-metrics/internal/common/redis"
	"body-metrics/internal/models"
)

// EventPublisher 测量事件发布器（Redis Streams）
type EventPublisher struct {
	redisClient *redis.Client
	stream      string
	logger      *zap.Logger
}

// NewEventPublisher 创建事件发布器
func NewEventPublisher(redisClient *redis.Client, stream string, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{
		redisClient: redisClient,
		stream:      stream,
		logger:      logger,
	}
}

// PublishMeasurement 发布一条测量事件
// 事件 ID 未填时在此分配
func (p *EventPublisher) PublishMeasurement(ctx context.Context, event *models.MeasurementEvent) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}

	streamID, err := rediscommon.PublishJSONToStream(ctx, p.redisClient, p.stream, event)
	if err != nil {
		return fmt.Errorf("failed to publish measurement event: %w", err)
	}

	p.logger.Info("Published measurement event",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.String("entry_id", event.EntryID),
		zap.String("person", event.Person),
		zap.String("stream_id", streamID),
	)

	return nil
}
