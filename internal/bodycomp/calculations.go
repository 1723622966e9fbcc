// Package bodycomp 实现体脂秤（BIA）身体成分计算公式。
// 所有函数为纯函数：越界输入通过钳位/默认值吸收，永不报错。
package bodycomp

import (
	"math"

	"body-metrics/internal/models"
)

// 体型分类标签（按体脂率与肌肉占比的 3x3 决策表）
const (
	BodyTypeObese           = "Obese"
	BodyTypeOverweight      = "Overweight"
	BodyTypeThickSet        = "Thick-set"
	BodyTypeLackOfExercise  = "Lack of exercise"
	BodyTypeBalanced        = "Balanced"
	BodyTypeBalancedMuscle  = "Balanced-muscular"
	BodyTypeSkinny          = "Skinny"
	BodyTypeBalancedSkinny  = "Balanced-skinny"
	BodyTypeSkinnyMuscular  = "Skinny-muscular"
)

// BMI 计算身体质量指数（kg/m²），身高非正时返回 0
func BMI(weight, heightCM float64) float64 {
	heightM := heightCM / 100.0
	if heightM <= 0 {
		return 0.0
	}
	return round1(weight / (heightM * heightM))
}

// lbmCoefficient 计算去脂体重系数，上限为体重的 95%
func lbmCoefficient(weight, heightCM float64, age int, impedance float64) float64 {
	lbm := (heightCM * 9.058 / 100) * (heightCM / 100)
	lbm += weight*0.32 + 12.226
	lbm -= impedance * 0.0068
	lbm -= float64(age) * 0.0542
	return math.Min(lbm, weight*0.95)
}

// BodyFatPct 基于生物电阻抗估算体脂率，钳位到 [3,60]，体重非正时返回 0
func BodyFatPct(weight, heightCM float64, age int, sex models.Sex, impedance float64) float64 {
	if weight <= 0 {
		return 0.0
	}
	lbm := lbmCoefficient(weight, heightCM, age, impedance)
	coeff := 0.055
	if sex != models.SexMale {
		coeff = 0.025
	}
	fatPct := (1.0 - ((lbm-(impedance*coeff/100*(30.0-float64(age))))/weight)*1.1) * 100
	return round1(math.Max(3.0, math.Min(60.0, fatPct)))
}

// BoneMass 估算骨量（kg）
// 钳位采用随体重的相对边界：下限 max(0.1, 1%体重)，上限 min(性别上限, 15%体重)
func BoneMass(weight, heightCM float64, age int, sex models.Sex, impedance float64) float64 {
	lbm := lbmCoefficient(weight, heightCM, age, impedance)
	base := 0.18016894
	if sex != models.SexMale {
		base = 0.245691014
	}
	bone := (base - lbm*0.05158) * -1

	if bone > 2.2 {
		bone += 0.1
	} else {
		bone -= 0.1
	}

	maxBone := 5.1
	if sex != models.SexMale {
		maxBone = 4.2
	}
	maxBone = math.Min(maxBone, weight*0.15)
	minBone := math.Max(0.1, weight*0.01)
	bone = math.Max(minBone, math.Min(maxBone, bone))

	return round1(bone)
}

// MuscleMass 估算肌肉量（kg），钳位到体重的 [25%,75%]
func MuscleMass(weight, heightCM float64, age int, sex models.Sex, impedance float64) float64 {
	fatPct := BodyFatPct(weight, heightCM, age, sex, impedance)
	bone := BoneMass(weight, heightCM, age, sex, impedance)
	muscle := weight - ((fatPct / 100) * weight) - bone

	muscle = math.Max(weight*0.25, math.Min(weight*0.75, muscle))

	return round1(muscle)
}

// BMR 基于 Mifflin-St Jeor 公式计算基础代谢率（kcal），下限 0
func BMR(weight, heightCM float64, age int, sex models.Sex) int {
	bmr := 10*weight + 6.25*heightCM - 5*float64(age)
	if sex == models.SexMale {
		bmr += 5
	} else {
		bmr -= 161
	}
	return int(math.Round(math.Max(0.0, bmr)))
}

// VisceralFat 估算内脏脂肪等级（1-59），身高非正时返回 1
func VisceralFat(weight, heightCM float64, age int, sex models.Sex) int {
	heightM := heightCM / 100.0
	if heightM <= 0 {
		return 1
	}

	var vf float64
	if sex == models.SexMale {
		vf = (weight*0.74 - heightCM*0.082 + 13.95) * 0.55
		if age > 30 {
			vf += float64(age-30) * 0.1
		}
	} else {
		vf = (weight*0.74 - heightCM*0.082 + 13.95) * 0.44
		if age > 30 {
			vf += float64(age-30) * 0.07
		}
	}

	return int(math.Round(math.Max(1.0, math.Min(59.0, vf))))
}

// IdealWeight 基于 Devine 公式计算理想体重（kg），下限 0
func IdealWeight(heightCM float64, sex models.Sex) float64 {
	heightIn := heightCM / 2.54
	var ideal float64
	if sex == models.SexMale {
		ideal = 50.0 + 2.3*(heightIn-60)
	} else {
		ideal = 45.5 + 2.3*(heightIn-60)
	}
	return round1(math.Max(0.0, ideal))
}

// WaterPct 估算体水分率，钳位到 [5,80]
func WaterPct(weight, heightCM float64, age int, sex models.Sex, impedance float64) float64 {
	fatPct := BodyFatPct(weight, heightCM, age, sex, impedance)
	water := (100 - fatPct) * 0.7
	coeff := 1.02
	if water > 50 {
		coeff = 0.98
	}
	water *= coeff
	return round1(math.Max(5.0, math.Min(80.0, water)))
}

// BodyType 按体脂率与肌肉占比分类体型，体重非正时返回 Balanced
func BodyType(bodyFatPct, muscleMass, weight float64, sex models.Sex) string {
	if weight <= 0 {
		return BodyTypeBalanced
	}

	muscleRatio := muscleMass / weight

	var fatLow, fatHigh, muscleLow, muscleHigh float64
	if sex == models.SexMale {
		fatLow, fatHigh = 15.0, 25.0
		muscleLow, muscleHigh = 0.38, 0.46
	} else {
		fatLow, fatHigh = 22.0, 32.0
		muscleLow, muscleHigh = 0.30, 0.37
	}

	if bodyFatPct > fatHigh {
		if muscleRatio >= muscleHigh {
			return BodyTypeThickSet
		}
		if muscleRatio >= muscleLow {
			return BodyTypeOverweight
		}
		return BodyTypeObese
	}
	if bodyFatPct >= fatLow {
		if muscleRatio >= muscleHigh {
			return BodyTypeBalancedMuscle
		}
		if muscleRatio >= muscleLow {
			return BodyTypeBalanced
		}
		return BodyTypeLackOfExercise
	}
	if muscleRatio >= muscleHigh {
		return BodyTypeSkinnyMuscular
	}
	if muscleRatio >= muscleLow {
		return BodyTypeBalancedSkinny
	}
	return BodyTypeSkinny
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
