package consumer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	mqttcommon "body-metrics/internal/common/mqtt"
	"body-metrics/internal/models"
)

// MQTTConsumer 秤传感器 MQTT 消费者
// 订阅所有秤实体的重量/阻抗主题，把原始读数写入缓存
type MQTTConsumer struct {
	mqttClient *mqttcommon.Client
	cache      *SensorCache
	topics     []string
	qos        byte
	logger     *zap.Logger
}

// NewMQTTConsumer 创建 MQTT 消费者
func NewMQTTConsumer(
	mqttClient *mqttcommon.Client,
	cache *SensorCache,
	entries []models.ScaleEntry,
	qos byte,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		mqttClient: mqttClient,
		cache:      cache,
		topics:     collectTopics(entries),
		qos:        qos,
		logger:     logger,
	}
}

// Topics 返回订阅的主题列表
func (c *MQTTConsumer) Topics() []string {
	return c.topics
}

// Start 启动消费者
func (c *MQTTConsumer) Start(ctx context.Context) error {
	for _, topic := range c.topics {
		if err := c.mqttClient.Subscribe(topic, c.qos, c.handleMessage); err != nil {
			return fmt.Errorf("failed to subscribe to sensor topic %s: %w", topic, err)
		}
	}

	c.logger.Info("MQTT sensor consumer started",
		zap.Int("topic_count", len(c.topics)),
	)

	// 等待上下文取消
	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if len(c.topics) > 0 {
		if err := c.mqttClient.Unsubscribe(c.topics...); err != nil {
			c.logger.Error("Failed to unsubscribe", zap.Error(err))
		}
	}

	c.logger.Info("MQTT sensor consumer stopped")
	return nil
}

// handleMessage 处理传感器读数
// 秤的负载是纯文本（如 "70.2 kg" 或 "520"），直接缓存，解析留给测量循环
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	value := strings.TrimSpace(string(payload))
	c.cache.Update(topic, value)
	return nil
}

// collectTopics 收集所有实体的去重主题
func collectTopics(entries []models.ScaleEntry) []string {
	seen := make(map[string]bool)
	topics := make([]string, 0, len(entries)*2)

	for _, entry := range entries {
		for _, topic := range []string{entry.WeightTopic, entry.ImpedanceTopic} {
			if topic == "" || seen[topic] {
				continue
			}
			seen[topic] = true
			topics = append(topics, topic)
		}
	}

	return topics
}
