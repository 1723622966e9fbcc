package consumer

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"body-metrics/internal/models"
)

// SensorCache 传感器最新读数的内存缓存
// MQTT 消费者和 REST 轮询器写入，测量循环非阻塞读取
type SensorCache struct {
	mu     sync.RWMutex
	values map[string]sensorValue
	logger *zap.Logger
}

type sensorValue struct {
	raw  string
	seen time.Time
}

// NewSensorCache 创建传感器缓存
func NewSensorCache(logger *zap.Logger) *SensorCache {
	return &SensorCache{
		values: make(map[string]sensorValue),
		logger: logger,
	}
}

// Update 写入某个传感器引用（MQTT 主题或 HA 实体 ID）的最新原始值
func (c *SensorCache) Update(ref, raw string) {
	c.mu.Lock()
	c.values[ref] = sensorValue{raw: raw, seen: time.Now()}
	c.mu.Unlock()

	c.logger.Debug("Sensor value updated",
		zap.String("ref", ref),
		zap.String("value", raw),
	)
}

// Read 读取传感器当前状态，从不阻塞
// 未收到过任何读数返回 missing；"unknown"/"unavailable" 原样映射为对应状态
func (c *SensorCache) Read(ref string) models.SensorState {
	c.mu.RLock()
	value, ok := c.values[ref]
	c.mu.RUnlock()

	if !ok {
		return models.SensorState{Status: models.SensorStatusMissing}
	}

	switch value.raw {
	case "unknown":
		return models.SensorState{Status: models.SensorStatusUnknown, RawValue: value.raw}
	case "unavailable":
		return models.SensorState{Status: models.SensorStatusUnavailable, RawValue: value.raw}
	}

	return models.SensorState{Status: models.SensorStatusOK, RawValue: value.raw}
}

// LastSeen 返回某个传感器最近一次写入时间
func (c *SensorCache) LastSeen(ref string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.values[ref]
	if !ok {
		return time.Time{}, false
	}
	return value.seen, true
}
