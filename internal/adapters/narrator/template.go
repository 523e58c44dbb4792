package narrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/diarisk/internal/domain/model"
)

// Template writes a deterministic report without calling out to any service.
type Template struct{}

// NewTemplate returns the offline narrator.
func NewTemplate() *Template { return &Template{} }

// Name implements Narrator.
func (*Template) Name() string { return "template" }

// Generate implements Narrator.
func (*Template) Generate(ctx context.Context, in model.NarrativeInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s, here is your health summary. ", patientName(in))
	if in.RiskScore == 0 {
		b.WriteString("We could not estimate your risk because age, BMI, glucose or blood pressure was missing. ")
	} else {
		fmt.Fprintf(&b, "Your simulated risk score is %d/100, with %d%% confidence. ", in.RiskScore, in.ConfidenceScore)
	}

	switch len(in.KeyFactors) {
	case 0:
		b.WriteString("None of your measurements stood out as a major contributor. ")
	case 1:
		fmt.Fprintf(&b, "%s contributed most to this result. ", in.KeyFactors[0])
	default:
		last := len(in.KeyFactors) - 1
		fmt.Fprintf(&b, "%s and %s contributed most to this result. ",
			strings.Join(in.KeyFactors[:last], ", "), in.KeyFactors[last])
	}

	if len(in.HealthSuggestions) > 0 {
		b.WriteString("Small steps make a difference: ")
		b.WriteString(strings.Join(in.HealthSuggestions, " "))
		b.WriteString(" ")
	}
	b.WriteString(disclaimer)
	return b.String(), nil
}
