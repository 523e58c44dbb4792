package loadgen

import (
	"fmt"

	"github.com/okian/diarisk/internal/domain/model"
)

// Score bounds on the normal path.
const (
	minRiskScore  = 5
	maxRiskScore  = 95
	maxKeyFactors = 3
	baselineName  = "Baseline"
)

// VerifyHistory checks one user's history as returned by the service.
// want is the number of items the history should hold. Each violation is
// returned as a readable message.
func VerifyHistory(userID string, items []model.Assessment, want int) []string {
	var out []string
	if len(items) != want {
		out = append(out, fmt.Sprintf("user %s: history has %d items, want %d", userID, len(items), want))
	}
	for i, a := range items {
		if a.UserID != userID {
			out = append(out, fmt.Sprintf("user %s: item %s belongs to %s", userID, a.ID, a.UserID))
		}
		if i > 0 && a.CreatedAt.After(items[i-1].CreatedAt) {
			out = append(out, fmt.Sprintf("user %s: item %d is newer than item %d", userID, i, i-1))
		}
		out = append(out, verifyAssessment(a)...)
	}
	return out
}

func verifyAssessment(a model.Assessment) []string {
	var out []string
	if a.RiskScore != 0 && (a.RiskScore < minRiskScore || a.RiskScore > maxRiskScore) {
		out = append(out, fmt.Sprintf("assessment %s: risk score %d out of range", a.ID, a.RiskScore))
	}
	if a.RiskScore == 0 {
		if len(a.ShapValues) != 0 || len(a.KeyFactors) != 0 {
			out = append(out, fmt.Sprintf("assessment %s: degenerate result carries contributions", a.ID))
		}
	} else if len(a.ShapValues) == 0 || a.ShapValues[0].Name != baselineName {
		out = append(out, fmt.Sprintf("assessment %s: first contribution is not %s", a.ID, baselineName))
	}
	if len(a.KeyFactors) > maxKeyFactors {
		out = append(out, fmt.Sprintf("assessment %s: %d key factors", a.ID, len(a.KeyFactors)))
	}
	return out
}
