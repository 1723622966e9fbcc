package config

import (
	"os"
	"strconv"

	"body-metrics/internal/common/config"
)

// Config 体重测量服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	// 体重测量服务特定配置
	Scale struct {
		// 测量主循环
		PollInterval   int     // 采样间隔（秒），默认 2 秒
		GuestMinWeight float64 // 访客识别的最低重量（kg），低于视为噪声

		// 体重历史
		HistoryLimit int // 每人保留的历史条数，默认 365
		SaveDelay    int // 历史持久化去抖间隔（秒），默认 60 秒

		// 状态发布
		State struct {
			TopicPrefix string // MQTT 状态主题前缀，如 "body-metrics"
			KeyPrefix   string // Redis 快照键前缀，如 "body-metrics:entry:"
		}

		// Redis Streams 配置（测量事件）
		EventStream   string // 事件流名称，如 "body-metrics:events"
		ConsumerGroup string // 消费者组名称，如 "body-metrics-group"
		ConsumerName  string // 消费者名称，如 "body-metrics-1"
		BatchSize     int64  // 批量处理大小，默认 10

		// 测量审计（事件落库 Postgres）
		Audit struct {
			Enabled bool
		}

		// 配案重载（秤实体/人员档案轮询）
		Reload struct {
			Interval int // 轮询间隔（秒），默认 60 秒
		}
	}

	// Home Assistant REST 轮询（可选的备用采集通道）
	HomeAssistant struct {
		Enabled      bool
		BaseURL      string // 如 "http://homeassistant:8123"
		Token        string // 长效访问令牌
		PollInterval int    // 轮询间隔（秒），默认 30 秒
	}

	HTTP struct {
		Addr string // 监听地址，如 ":8080"
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 公共配置默认值，环境变量按前缀覆盖
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "bodymetrics"
	cfg.Database.SSLMode = "disable"
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.Password = ""
	cfg.Redis.DB = 0
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "body-metrics"
	cfg.MQTT.Username = ""
	cfg.MQTT.Password = ""
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	// 测量服务配置
	cfg.Scale.PollInterval = getEnvInt("SCALE_POLL_INTERVAL", 2)
	cfg.Scale.GuestMinWeight = getEnvFloat("SCALE_GUEST_MIN_WEIGHT", 10)
	cfg.Scale.HistoryLimit = getEnvInt("SCALE_HISTORY_LIMIT", 365)
	cfg.Scale.SaveDelay = getEnvInt("SCALE_SAVE_DELAY", 60)

	cfg.Scale.State.TopicPrefix = getEnv("SCALE_STATE_TOPIC_PREFIX", "body-metrics")
	cfg.Scale.State.KeyPrefix = getEnv("SCALE_STATE_KEY_PREFIX", "body-metrics:entry:")

	cfg.Scale.EventStream = getEnv("SCALE_EVENT_STREAM", "body-metrics:events")
	cfg.Scale.ConsumerGroup = getEnv("SCALE_CONSUMER_GROUP", "body-metrics-group")
	cfg.Scale.ConsumerName = getEnv("SCALE_CONSUMER_NAME", "body-metrics-1")
	cfg.Scale.BatchSize = 10 // 默认批量处理 10 条消息

	cfg.Scale.Audit.Enabled = getEnv("SCALE_AUDIT_ENABLED", "true") == "true"
	cfg.Scale.Reload.Interval = getEnvInt("SCALE_RELOAD_INTERVAL", 60)

	// Home Assistant 轮询配置
	cfg.HomeAssistant.Enabled = getEnv("HA_ENABLED", "false") == "true"
	cfg.HomeAssistant.BaseURL = getEnv("HA_BASE_URL", "")
	cfg.HomeAssistant.Token = getEnv("HA_TOKEN", "")
	cfg.HomeAssistant.PollInterval = getEnvInt("HA_POLL_INTERVAL", 30)

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil && v > 0 {
			return v
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil && v >= 0 {
			return v
		}
	}
	return defaultValue
}
