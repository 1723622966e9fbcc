package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"body-metrics/internal/models"
)

// MeasurementRepository 测量审计仓库（Postgres 追加写）
type MeasurementRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMeasurementRepository 创建测量审计仓库
func NewMeasurementRepository(db *sql.DB, logger *zap.Logger) *MeasurementRepository {
	return &MeasurementRepository{
		db:     db,
		logger: logger,
	}
}

// InsertMeasurement 写入一条测量审计记录
// 流消费是至少一次投递，按 event_id 去重保证重放安全
func (r *MeasurementRepository) InsertMeasurement(ctx context.Context, event *models.MeasurementEvent) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	if event.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if event.EntryID == "" {
		return fmt.Errorf("entry_id is required")
	}

	query := `
		INSERT INTO scale_measurements (
			event_id,
			entry_id,
			person_slug,
			event_type,
			measured_at,
			weight,
			impedance,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		ON CONFLICT (event_id) DO NOTHING
	`

	var impedance sql.NullFloat64
	if event.Metrics.Impedance != nil {
		impedance = sql.NullFloat64{Float64: *event.Metrics.Impedance, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		query,
		event.EventID,
		event.EntryID,
		event.Person,
		event.EventType,
		event.Timestamp,
		event.Metrics.Weight,
		impedance,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert scale measurement: %w", err)
	}

	return nil
}

// CountMeasurements 统计某实体的审计记录数
func (r *MeasurementRepository) CountMeasurements(ctx context.Context, entryID string) (int64, error) {
	query := `SELECT COUNT(*) FROM scale_measurements WHERE entry_id = $1`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, entryID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count scale measurements: %w", err)
	}

	return count, nil
}
