package scoring

import "github.com/okian/diarisk/internal/domain/model"

// Assessment bundles a score with everything derived from it.
type Assessment struct {
	Result
	KeyFactors        []model.KeyFactor `json:"keyFactors"`
	HealthSuggestions []string          `json:"healthSuggestions"`
	ConfidenceScore   int               `json:"confidenceScore"`
	RiskBand          model.Band        `json:"riskBand"`
	ModelVersion      string            `json:"modelVersion"`
}

// Assess scores m and derives key factors, suggestions, confidence and band.
func (e *Engine) Assess(m model.HealthMetrics) (Assessment, error) {
	res, err := e.Score(m)
	if err != nil {
		return Assessment{}, err
	}
	keyFactors := SelectKeyFactors(res.ShapValues)
	return Assessment{
		Result:            res,
		KeyFactors:        keyFactors,
		HealthSuggestions: SuggestHealthActions(keyFactors),
		ConfidenceScore:   ConfidenceScore(res.RiskScore),
		RiskBand:          BandFor(res.RiskScore),
		ModelVersion:      e.model.Version,
	}, nil
}
