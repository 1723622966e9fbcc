package models

import "time"

// SensorStatus 传感器读取状态
type SensorStatus string

const (
	SensorStatusOK          SensorStatus = "ok"
	SensorStatusUnknown     SensorStatus = "unknown"
	SensorStatusUnavailable SensorStatus = "unavailable"
	SensorStatusMissing     SensorStatus = "missing"
)

// SensorState 传感器的当前状态（非阻塞读取的结果）
type SensorState struct {
	Status   SensorStatus
	RawValue string
}

// RawSample 单次采样解码后的读数
type RawSample struct {
	Weight     float64
	Impedance  *float64
	ObservedAt time.Time
}

// HistoryEntry 体重历史记录条目
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Weight    float64   `json:"weight"`
}

// MetricsSnapshot 每次匹配后重建的人员指标快照
// 阻抗缺失时身体成分字段为空；访客身份只有体重/阻抗/最近测量时间
type MetricsSnapshot struct {
	Weight           float64    `json:"weight"`
	Impedance        *float64   `json:"impedance,omitempty"`
	BMI              *float64   `json:"bmi,omitempty"`
	Confidence       *float64   `json:"confidence,omitempty"`
	BMR              *int       `json:"bmr,omitempty"`
	IdealWeight      *float64   `json:"ideal_weight,omitempty"`
	BodyFat          *float64   `json:"body_fat,omitempty"`
	MuscleMass       *float64   `json:"muscle_mass,omitempty"`
	WaterPct         *float64   `json:"water_pct,omitempty"`
	BoneMass         *float64   `json:"bone_mass,omitempty"`
	VisceralFat      *int       `json:"visceral_fat,omitempty"`
	BodyType         *string    `json:"body_type,omitempty"`
	LastMeasurement  *time.Time `json:"last_measurement,omitempty"`
	WeightTrendWeek  *float64   `json:"weight_trend_week,omitempty"`
	WeightTrendMonth *float64   `json:"weight_trend_month,omitempty"`
}

// Clone 返回快照的深拷贝（对外暴露时避免共享内部可变状态）
func (s *MetricsSnapshot) Clone() *MetricsSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Impedance = cloneFloat(s.Impedance)
	c.BMI = cloneFloat(s.BMI)
	c.Confidence = cloneFloat(s.Confidence)
	c.BMR = cloneInt(s.BMR)
	c.IdealWeight = cloneFloat(s.IdealWeight)
	c.BodyFat = cloneFloat(s.BodyFat)
	c.MuscleMass = cloneFloat(s.MuscleMass)
	c.WaterPct = cloneFloat(s.WaterPct)
	c.BoneMass = cloneFloat(s.BoneMass)
	c.VisceralFat = cloneInt(s.VisceralFat)
	if s.BodyType != nil {
		v := *s.BodyType
		c.BodyType = &v
	}
	if s.LastMeasurement != nil {
		t := *s.LastMeasurement
		c.LastMeasurement = &t
	}
	c.WeightTrendWeek = cloneFloat(s.WeightTrendWeek)
	c.WeightTrendMonth = cloneFloat(s.WeightTrendMonth)
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
