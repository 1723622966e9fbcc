package models

import "time"

// 测量事件类型
const (
	EventTypeMeasurement      = "measurement"
	EventTypeGuestMeasurement = "guest_measurement"
)

// MeasurementEvent 新测量事件（发布到 Redis Streams）
// Metrics 只携带检测时刻已填充的字段（空字段不序列化）
type MeasurementEvent struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	EntryID   string          `json:"entry_id"`
	Person    string          `json:"person"`
	Timestamp time.Time       `json:"timestamp"`
	Metrics   MetricsSnapshot `json:"metrics"`
}
