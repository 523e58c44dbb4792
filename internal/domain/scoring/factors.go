package scoring

import (
	"math"
	"sort"

	"github.com/okian/diarisk/internal/domain/model"
)

// maxKeyFactors caps the factors presented to the user.
const maxKeyFactors = 3

// Suggestion catalog.
const (
	SuggestExercise      = "Engage in at least 30 minutes of moderate exercise most days of the week."
	SuggestGlucose       = "Monitor carbohydrate intake and choose whole grains over refined carbs."
	SuggestBMI           = "Focus on a balanced diet with plenty of fruits, vegetables, and lean protein to manage weight."
	SuggestBloodPressure = "Reduce sodium intake and manage stress through techniques like meditation or yoga."
	SuggestSleep         = "Aim for 7-8 hours of consistent, quality sleep per night and establish a relaxing bedtime routine."
	SuggestFallback      = "Maintain a balanced diet and regular check-ups with your doctor."
)

// factorSuggestions is checked in this order regardless of key-factor order.
var factorSuggestions = []struct {
	factor     string
	suggestion string
}{
	{FactorGlucose, SuggestGlucose},
	{FactorBMI, SuggestBMI},
	{FactorBloodPressure, SuggestBloodPressure},
	{FactorSleepQuality, SuggestSleep},
}

// SelectKeyFactors returns up to three primary contributions with a positive
// value, largest first. Equal values keep their original relative order.
func SelectKeyFactors(shap []model.Contribution) []model.KeyFactor {
	candidates := make([]model.KeyFactor, 0, len(shap))
	for _, c := range shap {
		if c.Kind != model.KindPrimary || !(c.Value > 0) {
			continue
		}
		candidates = append(candidates, model.KeyFactor{Name: c.Name, Value: c.Value})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Value > candidates[j].Value
	})
	if len(candidates) > maxKeyFactors {
		candidates = candidates[:maxKeyFactors]
	}
	return candidates
}

// SuggestHealthActions maps key factors to the fixed suggestion catalog.
// The exercise suggestion always comes first; a generic fallback is added
// when no factor-specific suggestion applies.
func SuggestHealthActions(keyFactors []model.KeyFactor) []string {
	present := make(map[string]bool, len(keyFactors))
	for _, kf := range keyFactors {
		present[kf.Name] = true
	}

	out := []string{SuggestExercise}
	for _, fs := range factorSuggestions {
		if present[fs.factor] {
			out = append(out, fs.suggestion)
		}
	}
	if len(out) == 1 {
		out = append(out, SuggestFallback)
	}
	return out
}

// Confidence constants: scores near the extremes are reported with more
// confidence than scores near the midpoint.
const (
	confidenceFloor    = 85
	confidenceSpan     = 15
	confidenceMidpoint = 50
)

// ConfidenceScore returns round(85 + |riskScore-50|/50*15).
func ConfidenceScore(riskScore int) int {
	dist := math.Abs(float64(riskScore-confidenceMidpoint)) / confidenceMidpoint
	return int(math.Round(confidenceFloor + dist*confidenceSpan))
}

// Band thresholds.
const (
	highRiskThreshold   = 70
	mediumRiskThreshold = 40
)

// BandFor classifies a risk score: high above 70, medium above 40.
func BandFor(riskScore int) model.Band {
	switch {
	case riskScore > highRiskThreshold:
		return model.BandHigh
	case riskScore > mediumRiskThreshold:
		return model.BandMedium
	default:
		return model.BandLow
	}
}

// IsHighRisk reports whether the score falls in the high band.
func IsHighRisk(riskScore int) bool { return BandFor(riskScore) == model.BandHigh }
