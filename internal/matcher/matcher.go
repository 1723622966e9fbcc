// Package matcher 将一次采样归属到最可能的人员档案。
package matcher

import (
	"math"

	"body-metrics/internal/models"
)

// 匹配打分权重：体重偏差按 1.5 加权，阻抗偏差按 0.02 加权
const (
	weightFactor    = 1.5
	impedanceFactor = 0.02
)

// Score 计算采样相对某个档案的偏差分数，越小越接近
// 采样或档案缺失阻抗时按 0 参与计算
func Score(sample models.RawSample, p *models.PersonProfile) float64 {
	expectedImpedance := 0.0
	if p.ExpectedImpedance != nil {
		expectedImpedance = *p.ExpectedImpedance
	}
	sampleImpedance := 0.0
	if sample.Impedance != nil {
		sampleImpedance = *sample.Impedance
	}

	dw := math.Abs(sample.Weight - p.ExpectedWeight)
	di := math.Abs(sampleImpedance - expectedImpedance)
	return dw*weightFactor + di*impedanceFactor
}

// Match 在档案列表中选出分数最小且低于各自容差的档案
// 分数相同取先出现者；没有档案达标时返回 nil（视为访客读数）
func Match(sample models.RawSample, profiles []models.PersonProfile) (*models.PersonProfile, float64) {
	var best *models.PersonProfile
	bestScore := math.Inf(1)

	for i := range profiles {
		p := &profiles[i]
		score := Score(sample, p)

		tolerance := p.Tolerance
		if tolerance <= 0 {
			tolerance = models.DefaultTolerance
		}

		if score < tolerance && score < bestScore {
			bestScore = score
			best = p
		}
	}

	return best, bestScore
}

// Confidence 将匹配分数转换为 0-100 的置信度
func Confidence(score float64) float64 {
	return math.Max(0.0, math.Min(100.0, 100.0-score))
}
