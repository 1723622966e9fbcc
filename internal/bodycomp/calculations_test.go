package bodycomp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"body-metrics/internal/models"
)

func TestBMI(t *testing.T) {
	assert.Equal(t, 22.9, BMI(70.2, 175))
	assert.Equal(t, 24.7, BMI(80, 180))

	// Non-positive height returns 0
	assert.Equal(t, 0.0, BMI(70, 0))
	assert.Equal(t, 0.0, BMI(70, -5))
}

func TestBodyFatPct(t *testing.T) {
	// Reference case: 70.2kg / 175cm / 30y / male / 520ohm
	assert.Equal(t, 10.3, BodyFatPct(70.2, 175, 30, models.SexMale, 520))

	// Female case with age over 30
	assert.Equal(t, 28.3, BodyFatPct(90, 150, 60, models.SexFemale, 700))

	// Non-positive weight returns 0
	assert.Equal(t, 0.0, BodyFatPct(0, 175, 30, models.SexMale, 520))
	assert.Equal(t, 0.0, BodyFatPct(-10, 175, 30, models.SexMale, 520))
}

func TestBoneMass(t *testing.T) {
	assert.Equal(t, 2.9, BoneMass(70.2, 175, 30, models.SexMale, 520))
	assert.Equal(t, 3.1, BoneMass(80, 180, 35, models.SexMale, 480))
	assert.Equal(t, 2.6, BoneMass(90, 150, 60, models.SexFemale, 700))
}

func TestMuscleMass(t *testing.T) {
	// Lean subject hits the 75% weight ceiling
	assert.Equal(t, 60.0, MuscleMass(80, 180, 35, models.SexMale, 480))

	// Higher body fat keeps the value inside the band
	assert.Equal(t, 61.9, MuscleMass(90, 150, 60, models.SexFemale, 700))
}

func TestBMR(t *testing.T) {
	assert.Equal(t, 1651, BMR(70.2, 175, 30, models.SexMale))
	assert.Equal(t, 1676, BMR(70.2, 175, 25, models.SexMale))
	assert.Equal(t, 1270, BMR(60, 165, 40, models.SexFemale))

	// Floored at zero
	assert.Equal(t, 0, BMR(1, 10, 120, models.SexFemale))
}

func TestVisceralFat(t *testing.T) {
	assert.Equal(t, 28, VisceralFat(70.2, 175, 30, models.SexMale))
	assert.Equal(t, 24, VisceralFat(70, 160, 45, models.SexFemale))

	// Non-positive height returns 1
	assert.Equal(t, 1, VisceralFat(70, 0, 30, models.SexMale))
}

func TestIdealWeight(t *testing.T) {
	assert.Equal(t, 70.5, IdealWeight(175, models.SexMale))
	assert.Equal(t, 52.4, IdealWeight(160, models.SexFemale))

	// Devine goes negative for very short heights, floored at 0
	assert.Equal(t, 0.0, IdealWeight(10, models.SexMale))
}

func TestWaterPct(t *testing.T) {
	assert.Equal(t, 61.5, WaterPct(70.2, 175, 30, models.SexMale, 520))
}

func TestBodyType(t *testing.T) {
	tests := []struct {
		name       string
		fatPct     float64
		muscleMass float64
		weight     float64
		sex        models.Sex
		want       string
	}{
		{"male high fat high muscle", 30, 50, 100, models.SexMale, BodyTypeThickSet},
		{"male high fat mid muscle", 30, 40, 100, models.SexMale, BodyTypeOverweight},
		{"male high fat low muscle", 30, 30, 100, models.SexMale, BodyTypeObese},
		{"male mid fat high muscle", 20, 50, 100, models.SexMale, BodyTypeBalancedMuscle},
		{"male mid fat mid muscle", 20, 40, 100, models.SexMale, BodyTypeBalanced},
		{"male mid fat low muscle", 20, 30, 100, models.SexMale, BodyTypeLackOfExercise},
		{"male low fat high muscle", 10, 50, 100, models.SexMale, BodyTypeSkinnyMuscular},
		{"male low fat mid muscle", 10, 40, 100, models.SexMale, BodyTypeBalancedSkinny},
		{"male low fat low muscle", 10, 30, 100, models.SexMale, BodyTypeSkinny},
		{"female thresholds differ", 30, 35, 100, models.SexFemale, BodyTypeBalanced},
		{"fat exactly at high bound stays mid band", 25, 40, 100, models.SexMale, BodyTypeBalanced},
		{"fat exactly at low bound goes mid band", 15, 40, 100, models.SexMale, BodyTypeBalanced},
		{"zero weight", 20, 40, 0, models.SexMale, BodyTypeBalanced},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BodyType(tt.fatPct, tt.muscleMass, tt.weight, tt.sex))
		})
	}
}

// TestClampBounds sweeps a wide input grid and checks every output stays
// inside its documented range.
func TestClampBounds(t *testing.T) {
	weights := []float64{5, 20, 40, 70.2, 120, 200, 300}
	heights := []float64{100, 150, 175, 220, 250}
	ages := []int{1, 25, 30, 45, 80, 120}
	impedances := []float64{0, 100, 500, 1500, 10000}
	sexes := []models.Sex{models.SexMale, models.SexFemale}

	for _, w := range weights {
		for _, h := range heights {
			for _, age := range ages {
				for _, imp := range impedances {
					for _, sex := range sexes {
						fat := BodyFatPct(w, h, age, sex, imp)
						assert.GreaterOrEqual(t, fat, 3.0)
						assert.LessOrEqual(t, fat, 60.0)

						water := WaterPct(w, h, age, sex, imp)
						assert.GreaterOrEqual(t, water, 5.0)
						assert.LessOrEqual(t, water, 80.0)

						vf := VisceralFat(w, h, age, sex)
						assert.GreaterOrEqual(t, vf, 1)
						assert.LessOrEqual(t, vf, 59)

						// Rounding to one decimal may overshoot the bound by
						// at most 0.05.
						sexCap := 5.1
						if sex == models.SexFemale {
							sexCap = 4.2
						}
						bone := BoneMass(w, h, age, sex, imp)
						assert.GreaterOrEqual(t, bone, maxFloat(0.1, w*0.01)-0.05)
						assert.LessOrEqual(t, bone, minFloat(sexCap, w*0.15)+0.05)

						muscle := MuscleMass(w, h, age, sex, imp)
						assert.GreaterOrEqual(t, muscle, w*0.25-0.05)
						assert.LessOrEqual(t, muscle, w*0.75+0.05)
					}
				}
			}
		}
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
