package main

import (
	"fmt"
	"os"

	_ "github.com/lib/pq"

	"body-metrics/internal/common/config"
	"body-metrics/internal/common/database"
)

// 秤实体、人员档案与测量审计三张表的建表脚本
const schema = `
CREATE TABLE IF NOT EXISTS scale_entries (
	entry_id        VARCHAR(64) PRIMARY KEY,
	name            VARCHAR(128) NOT NULL,
	weight_topic    VARCHAR(255) NOT NULL,
	impedance_topic VARCHAR(255),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS scale_people (
	person_id          VARCHAR(64) PRIMARY KEY,
	entry_id           VARCHAR(64) NOT NULL REFERENCES scale_entries(entry_id) ON DELETE CASCADE,
	name               VARCHAR(128) NOT NULL,
	slug               VARCHAR(128),
	height_cm          DOUBLE PRECISION NOT NULL,
	age                INTEGER NOT NULL,
	sex                VARCHAR(16),
	expected_weight    DOUBLE PRECISION NOT NULL,
	expected_impedance DOUBLE PRECISION,
	tolerance          DOUBLE PRECISION NOT NULL DEFAULT 8,
	sort_order         INTEGER NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_scale_people_entry ON scale_people (entry_id, sort_order);

CREATE TABLE IF NOT EXISTS scale_measurements (
	id          BIGSERIAL PRIMARY KEY,
	event_id    VARCHAR(64) NOT NULL UNIQUE,
	entry_id    VARCHAR(64) NOT NULL,
	person_slug VARCHAR(128) NOT NULL,
	event_type  VARCHAR(32) NOT NULL,
	measured_at TIMESTAMPTZ NOT NULL,
	weight      DOUBLE PRECISION NOT NULL,
	impedance   DOUBLE PRECISION,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_scale_measurements_entry_time ON scale_measurements (entry_id, measured_at DESC);
CREATE INDEX IF NOT EXISTS idx_scale_measurements_person ON scale_measurements (person_slug, measured_at DESC);
`

func main() {
	// 加载配置
	cfg := &config.DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		Database: getEnv("DB_NAME", "bodymetrics"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// 连接数据库
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 执行 SQL
	if _, err := db.Exec(schema); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute SQL: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ scale tables created successfully!")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
