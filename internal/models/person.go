package models

import (
	"regexp"
	"strings"
)

// Sex 生理性别（公式系数按此区分）
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// 档案字段默认值与取值范围（外部配置编辑器使用同一套约束）
const (
	DefaultHeightCM          = 170
	DefaultAge               = 30
	DefaultExpectedWeight    = 70.0
	DefaultExpectedImpedance = 500.0
	DefaultTolerance         = 8.0

	MinHeightCM          = 100
	MaxHeightCM          = 250
	MinAge               = 1
	MaxAge               = 120
	MinExpectedWeight    = 20.0
	MaxExpectedWeight    = 300.0
	MinExpectedImpedance = 100.0
	MaxExpectedImpedance = 1500.0
	MinTolerance         = 1.0
	MaxTolerance         = 50.0
)

// Guest 合成身份：未匹配但超过噪声下限的读数挂在该身份下
const (
	GuestSlug = "guest"
	GuestName = "Guest"
)

// PersonProfile 人员档案（外部配置，服务只读）
type PersonProfile struct {
	PersonID          string   `json:"person_id"`
	EntryID           string   `json:"entry_id"`
	Name              string   `json:"name"`
	Slug              string   `json:"slug"`
	HeightCM          int      `json:"height_cm"`
	Age               int      `json:"age"`
	Sex               Sex      `json:"sex"`
	ExpectedWeight    float64  `json:"expected_weight"`
	ExpectedImpedance *float64 `json:"expected_impedance,omitempty"`
	Tolerance         float64  `json:"tolerance"`
}

// ScaleEntry 体脂秤配置项：一个秤对应一个体重传感器与可选阻抗传感器
type ScaleEntry struct {
	EntryID        string `json:"entry_id"`
	Name           string `json:"name"`
	WeightTopic    string `json:"weight_topic"`
	ImpedanceTopic string `json:"impedance_topic,omitempty"`
}

// Normalize 将档案字段拉回取值范围，返回被调整的字段名（供调用方记录日志）
func (p *PersonProfile) Normalize() []string {
	var adjusted []string

	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	if p.Sex != SexMale && p.Sex != SexFemale {
		p.Sex = SexMale
		adjusted = append(adjusted, "sex")
	}
	if p.HeightCM < MinHeightCM || p.HeightCM > MaxHeightCM {
		p.HeightCM = clampInt(p.HeightCM, MinHeightCM, MaxHeightCM)
		adjusted = append(adjusted, "height_cm")
	}
	if p.Age < MinAge || p.Age > MaxAge {
		p.Age = clampInt(p.Age, MinAge, MaxAge)
		adjusted = append(adjusted, "age")
	}
	if p.ExpectedWeight < MinExpectedWeight || p.ExpectedWeight > MaxExpectedWeight {
		p.ExpectedWeight = clampFloat(p.ExpectedWeight, MinExpectedWeight, MaxExpectedWeight)
		adjusted = append(adjusted, "expected_weight")
	}
	if p.ExpectedImpedance != nil && (*p.ExpectedImpedance < MinExpectedImpedance || *p.ExpectedImpedance > MaxExpectedImpedance) {
		v := clampFloat(*p.ExpectedImpedance, MinExpectedImpedance, MaxExpectedImpedance)
		p.ExpectedImpedance = &v
		adjusted = append(adjusted, "expected_impedance")
	}
	if p.Tolerance <= 0 {
		p.Tolerance = DefaultTolerance
		adjusted = append(adjusted, "tolerance")
	} else if p.Tolerance < MinTolerance || p.Tolerance > MaxTolerance {
		p.Tolerance = clampFloat(p.Tolerance, MinTolerance, MaxTolerance)
		adjusted = append(adjusted, "tolerance")
	}

	return adjusted
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify 将显示名转换为稳定的标识符形式（小写，下划线分隔）
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugPattern.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
