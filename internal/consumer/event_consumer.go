package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	rediscommon "body-metrics/internal/common/redis"
	"body-metrics/internal/models"
	"body-metrics/internal/repository"
)

// Metrics 事件消费监控指标
type Metrics struct {
	mu sync.RWMutex

	// 消息处理统计
	MessagesProcessed int64 // 处理的消息总数
	MessagesSucceeded int64 // 成功落库的消息数
	MessagesFailed    int64 // 处理失败的消息数

	// 错误分类统计
	ErrorsParse int64 // 解析错误
	ErrorsDB    int64 // 数据库写入错误

	// 性能指标
	TotalProcessingTime time.Duration // 总处理时间
	LastProcessTime     time.Time     // 最后处理时间

	// 启动时间
	StartTime time.Time
}

// GetSnapshot 获取指标快照（线程安全）
func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		MessagesProcessed:   m.MessagesProcessed,
		MessagesSucceeded:   m.MessagesSucceeded,
		MessagesFailed:      m.MessagesFailed,
		ErrorsParse:         m.ErrorsParse,
		ErrorsDB:            m.ErrorsDB,
		TotalProcessingTime: m.TotalProcessingTime,
		LastProcessTime:     m.LastProcessTime,
		StartTime:           m.StartTime,
	}
}

// IncrementProcessed 增加处理计数
func (m *Metrics) IncrementProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesProcessed++
}

// IncrementSucceeded 增加成功计数
func (m *Metrics) IncrementSucceeded(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesSucceeded++
	m.TotalProcessingTime += duration
	m.LastProcessTime = time.Now()
}

// IncrementFailed 增加失败计数
func (m *Metrics) IncrementFailed(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesFailed++
	switch errorType {
	case "parse":
		m.ErrorsParse++
	case "db":
		m.ErrorsDB++
	}
}

// EventConsumer 测量事件消费者
// 从 Redis Streams 读取测量事件并写入 Postgres 审计表
type EventConsumer struct {
	redisClient     *redis.Client
	measurementRepo *repository.MeasurementRepository
	logger          *zap.Logger
	stream          string
	groupName       string
	consumerName    string
	batchSize       int64
	metrics         *Metrics
}

// NewEventConsumer 创建事件消费者
func NewEventConsumer(
	redisClient *redis.Client,
	measurementRepo *repository.MeasurementRepository,
	logger *zap.Logger,
	stream string,
	groupName string,
	consumerName string,
	batchSize int64,
) *EventConsumer {
	return &EventConsumer{
		redisClient:     redisClient,
		measurementRepo: measurementRepo,
		logger:          logger,
		stream:          stream,
		groupName:       groupName,
		consumerName:    consumerName,
		batchSize:       batchSize,
		metrics: &Metrics{
			StartTime: time.Now(),
		},
	}
}

// Start 启动事件消费者
func (c *EventConsumer) Start(ctx context.Context) error {
	// 创建消费者组
	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, c.stream, c.groupName); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("Event consumer started",
		zap.String("stream", c.stream),
		zap.String("consumer_group", c.groupName),
		zap.String("consumer_name", c.consumerName),
	)

	// 启动指标报告协程
	metricsCtx, metricsCancel := context.WithCancel(ctx)
	defer metricsCancel()
	go c.reportMetrics(metricsCtx)

	// 消费事件（带指数退避）
	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.consumeEvents(ctx); err != nil {
				c.logger.Error("Failed to consume events",
					zap.Error(err),
					zap.Duration("backoff", backoffDuration),
				)

				// 指数退避
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoffDuration):
					backoffDuration *= 2
					if backoffDuration > maxBackoff {
						backoffDuration = maxBackoff
					}
				}
			} else {
				// 成功时重置退避时间
				backoffDuration = time.Second
			}
		}
	}
}

// consumeEvents 消费一批事件
func (c *EventConsumer) consumeEvents(ctx context.Context) error {
	messages, err := rediscommon.ReadFromStream(
		ctx,
		c.redisClient,
		c.stream,
		c.groupName,
		c.consumerName,
		c.batchSize,
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, msg := range messages {
		c.metrics.IncrementProcessed()
		if err := c.processMessage(ctx, msg); err != nil {
			c.logger.Error("Failed to process measurement event",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			// 继续处理下一条消息，不中断
		} else {
			// 处理成功后确认消息
			if err := c.ackMessage(ctx, msg.ID); err != nil {
				c.logger.Warn("Failed to ack message",
					zap.String("message_id", msg.ID),
					zap.Error(err),
				)
			}
		}
	}

	return nil
}

// processMessage 处理单条测量事件
func (c *EventConsumer) processMessage(ctx context.Context, msg rediscommon.StreamMessage) error {
	startTime := time.Now()

	dataStr, ok := msg.Values["data"].(string)
	if !ok {
		c.metrics.IncrementFailed("parse")
		return fmt.Errorf("missing data field in message")
	}

	var event models.MeasurementEvent
	if err := json.Unmarshal([]byte(dataStr), &event); err != nil {
		c.metrics.IncrementFailed("parse")
		return fmt.Errorf("failed to unmarshal measurement event: %w", err)
	}

	if event.EventID == "" || event.EntryID == "" {
		c.metrics.IncrementFailed("parse")
		return fmt.Errorf("invalid event: missing event_id or entry_id")
	}

	if err := c.measurementRepo.InsertMeasurement(ctx, &event); err != nil {
		c.metrics.IncrementFailed("db")
		return fmt.Errorf("failed to persist measurement event: %w", err)
	}

	processingDuration := time.Since(startTime)
	c.metrics.IncrementSucceeded(processingDuration)

	c.logger.Debug("Persisted measurement event",
		zap.String("event_id", event.EventID),
		zap.String("entry_id", event.EntryID),
		zap.String("person", event.Person),
		zap.String("event_type", event.EventType),
		zap.Duration("processing_time", processingDuration),
	)

	return nil
}

// ackMessage 确认消息
func (c *EventConsumer) ackMessage(ctx context.Context, messageID string) error {
	return c.redisClient.XAck(ctx, c.stream, c.groupName, messageID).Err()
}

// reportMetrics 定期报告指标（每60秒）
func (c *EventConsumer) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := c.metrics.GetSnapshot()
			uptime := time.Since(snapshot.StartTime)

			var avgProcessingTime time.Duration
			if snapshot.MessagesSucceeded > 0 {
				avgProcessingTime = snapshot.TotalProcessingTime / time.Duration(snapshot.MessagesSucceeded)
			}

			c.logger.Info("Event consumer metrics report",
				zap.Int64("messages_processed", snapshot.MessagesProcessed),
				zap.Int64("messages_succeeded", snapshot.MessagesSucceeded),
				zap.Int64("messages_failed", snapshot.MessagesFailed),
				zap.Int64("errors_parse", snapshot.ErrorsParse),
				zap.Int64("errors_db", snapshot.ErrorsDB),
				zap.Duration("avg_processing_time", avgProcessingTime),
				zap.Duration("uptime", uptime),
			)
		}
	}
}
