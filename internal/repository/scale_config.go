package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"body-metrics/internal/models"
)

// ScaleConfigRepository 秤配置仓库（秤实体与人员档案）
type ScaleConfigRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewScaleConfigRepository 创建秤配置仓库
func NewScaleConfigRepository(db *sql.DB, logger *zap.Logger) *ScaleConfigRepository {
	return &ScaleConfigRepository{
		db:     db,
		logger: logger,
	}
}

// GetEntries 获取全部秤实体
func (r *ScaleConfigRepository) GetEntries() ([]models.ScaleEntry, error) {
	query := `
		SELECT
			entry_id,
			name,
			weight_topic,
			impedance_topic
		FROM scale_entries
		ORDER BY entry_id
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query scale entries: %w", err)
	}
	defer rows.Close()

	var entries []models.ScaleEntry
	for rows.Next() {
		var entry models.ScaleEntry
		var impedanceTopic sql.NullString

		if err := rows.Scan(
			&entry.EntryID,
			&entry.Name,
			&entry.WeightTopic,
			&impedanceTopic,
		); err != nil {
			return nil, fmt.Errorf("failed to scan scale entry: %w", err)
		}

		entry.ImpedanceTopic = impedanceTopic.String
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scale entries: %w", err)
	}

	return entries, nil
}

// GetProfiles 获取某个秤实体的人员档案
// 按 sort_order 返回，匹配时并列分数取靠前的档案
func (r *ScaleConfigRepository) GetProfiles(entryID string) ([]models.PersonProfile, error) {
	query := `
		SELECT
			person_id,
			entry_id,
			name,
			slug,
			height_cm,
			age,
			sex,
			expected_weight,
			expected_impedance,
			tolerance
		FROM scale_people
		WHERE entry_id = $1
		ORDER BY sort_order, person_id
	`

	rows, err := r.db.Query(query, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scale people: %w", err)
	}
	defer rows.Close()

	var profiles []models.PersonProfile
	for rows.Next() {
		var p models.PersonProfile
		var slug, sex sql.NullString
		var expectedImpedance sql.NullFloat64

		if err := rows.Scan(
			&p.PersonID,
			&p.EntryID,
			&p.Name,
			&slug,
			&p.HeightCM,
			&p.Age,
			&sex,
			&p.ExpectedWeight,
			&expectedImpedance,
			&p.Tolerance,
		); err != nil {
			return nil, fmt.Errorf("failed to scan scale person: %w", err)
		}

		p.Slug = slug.String
		p.Sex = models.Sex(sex.String)
		if expectedImpedance.Valid {
			v := expectedImpedance.Float64
			p.ExpectedImpedance = &v
		}

		// 越界字段拉回范围而不是拒绝整行，保持测量循环可用
		if adjusted := p.Normalize(); len(adjusted) > 0 {
			r.logger.Warn("Profile fields out of range, normalized",
				zap.String("person_id", p.PersonID),
				zap.String("slug", p.Slug),
				zap.Strings("fields", adjusted),
			)
		}

		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scale people: %w", err)
	}

	return profiles, nil
}
