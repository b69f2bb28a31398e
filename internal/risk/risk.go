// Package risk derives scores and criticality bands from impact and
// likelihood ratings.
package risk

import (
	"fmt"
	"math"
)

// Band is a criticality classification of a score.
type Band string

const (
	BandLow      Band = "Low"
	BandMedium   Band = "Medium"
	BandHigh     Band = "High"
	BandCritical Band = "Critical"
)

const (
	MinRating = 1
	MaxRating = 5
)

// ValidateRating checks a 1..5 impact or likelihood rating.
func ValidateRating(field string, v int) error {
	if v < MinRating || v > MaxRating {
		return fmt.Errorf("%s must be between %d and %d", field, MinRating, MaxRating)
	}
	return nil
}

// Score is impact × likelihood.
func Score(impact, likelihood int) int {
	return impact * likelihood
}

// BandFor classifies a score: >=20 Critical, >=15 High, >=8 Medium.
func BandFor(score int) Band {
	switch {
	case score >= 20:
		return BandCritical
	case score >= 15:
		return BandHigh
	case score >= 8:
		return BandMedium
	default:
		return BandLow
	}
}

// ReductionRatio is (inherent - residual) / inherent, or 0 when the
// inherent score is not positive.
func ReductionRatio(inherent, residual int) float64 {
	if inherent <= 0 {
		return 0
	}
	return float64(inherent-residual) / float64(inherent)
}

// ReductionPercentage is ReductionRatio scaled to 0..100, rounded to one
// decimal.
func ReductionPercentage(inherent, residual int) float64 {
	return math.Round(ReductionRatio(inherent, residual)*1000) / 10
}

// Assessment bundles the derived values for one risk.
type Assessment struct {
	InherentScore       int     `json:"inherent_score"`
	InherentBand        Band    `json:"inherent_band"`
	ResidualScore       int     `json:"residual_score"`
	ResidualBand        Band    `json:"residual_band"`
	ReductionPercentage float64 `json:"risk_reduction_percentage"`
}

// Assess computes every derived value.
func Assess(inherentImpact, inherentLikelihood, residualImpact, residualLikelihood int) Assessment {
	inh := Score(inherentImpact, inherentLikelihood)
	res := Score(residualImpact, residualLikelihood)
	return Assessment{
		InherentScore:       inh,
		InherentBand:        BandFor(inh),
		ResidualScore:       res,
		ResidualBand:        BandFor(res),
		ReductionPercentage: ReductionPercentage(inh, res),
	}
}
