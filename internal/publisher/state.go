package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"body-metrics/internal/models"
)

// MQTTPublisher MQTT 发布接口
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// StatePayload 指标主题的保留消息负载
type StatePayload struct {
	Value     interface{} `json:"value"`
	Unit      string      `json:"unit,omitempty"`
	UpdatedAt int64       `json:"updated_at"`
}

// StatePublisher 状态发布器
// 指标以保留消息发布到 MQTT，快照镜像写入 Redis 供重启恢复
type StatePublisher struct {
	mqtt        MQTTPublisher
	redisClient *redis.Client
	topicPrefix string
	keyPrefix   string
	qos         byte
	logger      *zap.Logger
}

// NewStatePublisher 创建状态发布器
func NewStatePublisher(
	mqtt MQTTPublisher,
	redisClient *redis.Client,
	topicPrefix, keyPrefix string,
	qos byte,
	logger *zap.Logger,
) *StatePublisher {
	return &StatePublisher{
		mqtt:        mqtt,
		redisClient: redisClient,
		topicPrefix: topicPrefix,
		keyPrefix:   keyPrefix,
		qos:         qos,
		logger:      logger,
	}
}

// PublishPerson 发布某人的全部指标
// 缺失的指标发布空保留消息清掉旧值，订阅方读到即为 unknown
func (p *StatePublisher) PublishPerson(entryID, slug string, snapshot *models.MetricsSnapshot, guest bool) error {
	descs := Descriptions
	if guest {
		descs = GuestDescriptions()
	}

	now := time.Now().Unix()
	for _, desc := range descs {
		topic := p.topic(entryID, slug, desc.Key)

		value, ok := desc.Value(snapshot)
		if !ok {
			if err := p.mqtt.Publish(topic, p.qos, true, nil); err != nil {
				return fmt.Errorf("failed to clear metric topic %s: %w", topic, err)
			}
			continue
		}

		payload, err := json.Marshal(StatePayload{
			Value:     value,
			Unit:      desc.Unit,
			UpdatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal metric payload: %w", err)
		}

		if err := p.mqtt.Publish(topic, p.qos, true, payload); err != nil {
			return fmt.Errorf("failed to publish metric topic %s: %w", topic, err)
		}
	}

	p.logger.Debug("Published person state",
		zap.String("entry_id", entryID),
		zap.String("slug", slug),
		zap.Bool("guest", guest),
	)

	return nil
}

// ClearPerson 清空某人的全部指标保留消息
func (p *StatePublisher) ClearPerson(entryID, slug string) error {
	for _, desc := range Descriptions {
		topic := p.topic(entryID, slug, desc.Key)
		if err := p.mqtt.Publish(topic, p.qos, true, nil); err != nil {
			return fmt.Errorf("failed to clear metric topic %s: %w", topic, err)
		}
	}

	p.logger.Info("Cleared person state",
		zap.String("entry_id", entryID),
		zap.String("slug", slug),
	)

	return nil
}

// SaveSnapshots 把实体的快照镜像写入 Redis
func (p *StatePublisher) SaveSnapshots(ctx context.Context, entryID string, snapshots map[string]*models.MetricsSnapshot) error {
	data, err := json.Marshal(snapshots)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshots: %w", err)
	}

	if err := p.redisClient.Set(ctx, p.snapshotKey(entryID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save snapshots: %w", err)
	}

	return nil
}

// LoadSnapshots 读取实体的快照镜像，不存在时返回空表
func (p *StatePublisher) LoadSnapshots(ctx context.Context, entryID string) (map[string]*models.MetricsSnapshot, error) {
	data, err := p.redisClient.Get(ctx, p.snapshotKey(entryID)).Result()
	if err == redis.Nil {
		return map[string]*models.MetricsSnapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}

	var snapshots map[string]*models.MetricsSnapshot
	if err := json.Unmarshal([]byte(data), &snapshots); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshots: %w", err)
	}

	return snapshots, nil
}

func (p *StatePublisher) topic(entryID, slug, key string) string {
	return fmt.Sprintf("%s/%s/%s/%s", p.topicPrefix, entryID, slug, key)
}

func (p *StatePublisher) snapshotKey(entryID string) string {
	return p.keyPrefix + entryID + ":snapshots"
}
