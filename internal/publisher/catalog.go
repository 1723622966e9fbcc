package publisher

import (
	"time"

	"body-metrics/internal/models"
)

// MetricDescription 单个指标的发布描述
// Value 从快照中取值，指标缺失时返回 false
type MetricDescription struct {
	Key   string
	Unit  string
	Value func(s *models.MetricsSnapshot) (interface{}, bool)
}

// Descriptions 人员身份发布的全部指标，顺序即发布顺序
var Descriptions = []MetricDescription{
	{
		Key:  "weight",
		Unit: "kg",
		Value: func(s *models.MetricsSnapshot) (interface{}, bool) {
			return s.Weight, true
		},
	},
	{
		Key:   "impedance",
		Unit:  "Ω",
		Value: optionalFloat(func(s *models.MetricsSnapshot) *float64 { return s.Impedance }),
	},
	{
		Key:   "bmi",
		Unit:  "kg/m²",
		Value: optionalFloat(func(s *models.MetricsSnapshot) *float64 { return s.BMI }),
	},
	{
		Key:   "body_fat",
		Unit:  "%",
		Value: optionalFloat(func(s *models.MetricsSnapshot) *float64 { return s.BodyFat }),
	},
	{
		Key:   "muscle_mass",
		Unit:  "kg",
		Value: optionalFloat(func(s *models.MetricsSnapshot) *float64 { return s.MuscleMass }),
	},
	{
		Key:   "water_pct",
		Unit:  "%",
		Value: optionalFloat(func(s *models.MetricsSnapshot) *float64 { return s.WaterPct }),
	},
	{
		Key:   "bone_mass",
		Unit:  "kg",
		Value: optionalFloat(func(s *models.MetricsSnapshot) *float64 { return s.BoneMass }),
	},
	{
		Key:   "confidence",
		Unit:  "%",
		Value: optionalFloat(func(s *models.MetricsSnapshot) *float64 { return s.Confidence }),
	},
	{
		Key:   "bmr",
		Unit:  "kcal",
		Value: optionalInt(func(s *models.MetricsSnapshot) *int { return s.BMR }),
	},
	{
		Key:   "visceral_fat",
		Unit:  "level",
		Value: optionalInt(func(s *models.MetricsSnapshot) *int { return s.VisceralFat }),
	},
	{
		Key:   "ideal_weight",
		Unit:  "kg",
		Value: optionalFloat(func(s *models.MetricsSnapshot) *float64 { return s.IdealWeight }),
	},
	{
		Key: "body_type",
		Value: func(s *models.MetricsSnapshot) (interface{}, bool) {
			if s.BodyType == nil {
				return nil, false
			}
			return *s.BodyType, true
		},
	},
	{
		Key: "last_measurement",
		Value: func(s *models.MetricsSnapshot) (interface{}, bool) {
			if s.LastMeasurement == nil {
				return nil, false
			}
			return s.LastMeasurement.Format(time.RFC3339), true
		},
	},
	{
		Key:   "weight_trend_week",
		Unit:  "kg",
		Value: optionalFloat(func(s *models.MetricsSnapshot) *float64 { return s.WeightTrendWeek }),
	},
	{
		Key:   "weight_trend_month",
		Unit:  "kg",
		Value: optionalFloat(func(s *models.MetricsSnapshot) *float64 { return s.WeightTrendMonth }),
	},
}

// 访客身份只发布体重/阻抗/最近测量时间
var guestKeys = map[string]bool{
	"weight":           true,
	"impedance":        true,
	"last_measurement": true,
}

// GuestDescriptions 访客身份发布的指标子集
func GuestDescriptions() []MetricDescription {
	descs := make([]MetricDescription, 0, len(guestKeys))
	for _, d := range Descriptions {
		if guestKeys[d.Key] {
			descs = append(descs, d)
		}
	}
	return descs
}

func optionalFloat(get func(s *models.MetricsSnapshot) *float64) func(s *models.MetricsSnapshot) (interface{}, bool) {
	return func(s *models.MetricsSnapshot) (interface{}, bool) {
		v := get(s)
		if v == nil {
			return nil, false
		}
		return *v, true
	}
}

func optionalInt(get func(s *models.MetricsSnapshot) *int) func(s *models.MetricsSnapshot) (interface{}, bool) {
	return func(s *models.MetricsSnapshot) (interface{}, bool) {
		v := get(s)
		if v == nil {
			return nil, false
		}
		return *v, true
	}
}
