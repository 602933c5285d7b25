// Package bmi is the single source of truth for body mass index
// computation and classification. Every caller that needs a BMI value
// or category goes through Compute or Classify; nothing else in the
// service derives BMI from height and weight.
package bmi

import "math"

// Category is a human-facing BMI classification.
type Category string

const (
	CategoryUnderweight Category = "Underweight"
	CategoryNormal      Category = "Normal"
	CategoryOverweight  Category = "Overweight"
)

// Classification thresholds, applied to the rounded value.
const (
	// UnderweightMax is the exclusive upper bound of the underweight band.
	UnderweightMax = 18.5
	// OverweightMin is the inclusive lower bound of the overweight band.
	OverweightMin = 25.0
)

// BMI is a computed body mass index with its classification.
type BMI struct {
	Value    float64  `json:"value"`
	Category Category `json:"category"`
}

// Compute derives a BMI from height in centimeters and weight in
// kilograms. The value is rounded to one decimal place, half away
// from zero, and the category is assigned from the rounded value so
// the displayed number and the classification never disagree.
//
// Compute performs no input validation. Zero or negative height
// produces Inf or NaN; callers check IsValid before using the result.
func Compute(heightCm, weightKg float64) BMI {
	heightM := heightCm / 100
	value := round1(weightKg / (heightM * heightM))
	return BMI{
		Value:    value,
		Category: Classify(value),
	}
}

// Classify maps a rounded BMI value onto its category.
func Classify(value float64) Category {
	switch {
	case value < UnderweightMax:
		return CategoryUnderweight
	case value < OverweightMin:
		return CategoryNormal
	default:
		return CategoryOverweight
	}
}

// IsValid reports whether the value is a usable BMI. Degenerate
// inputs (zero height, non-finite operands) yield NaN or Inf, which
// callers must reject.
func (b BMI) IsValid() bool {
	return !math.IsNaN(b.Value) && !math.IsInf(b.Value, 0) && b.Value > 0
}

// round1 rounds to one decimal place, half away from zero.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
