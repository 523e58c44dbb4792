// Package narrator turns a scored assessment into a short written report.
package narrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/diarisk/internal/domain/model"
)

// Narrator writes a report for one assessment.
type Narrator interface {
	Generate(ctx context.Context, in model.NarrativeInput) (string, error)
	Name() string
}

// DefaultPatientName is used when the caller did not supply one.
const DefaultPatientName = "Patient"

const disclaimer = "This is a simulated prediction for educational purposes and not a real medical diagnosis. " +
	"Please consult a healthcare professional for medical advice."

func patientName(in model.NarrativeInput) string {
	if name := strings.TrimSpace(in.PatientName); name != "" {
		return name
	}
	return DefaultPatientName
}

// BuildPrompt renders the instruction sent to a generative model.
func BuildPrompt(in model.NarrativeInput) string {
	var b strings.Builder
	b.WriteString("You are a digital health assistant.\n\n")
	fmt.Fprintf(&b, "Generate a brief, encouraging, and personalized health summary for %s.\n\n", patientName(in))
	fmt.Fprintf(&b, "Your simulated risk score is %d/100. This score is based on a formula that weighs several health factors. "+
		"The model is %d%% confident in this assessment.\n\n", in.RiskScore, in.ConfidenceScore)

	b.WriteString("Here's a breakdown of your key risk factors and why they are important:\n")
	for _, kf := range in.KeyFactors {
		fmt.Fprintf(&b, "- **%s**: This factor played a significant role in your assessment. "+
			"Effectively managing this can have a positive impact on your overall health.\n", kf)
	}

	b.WriteString("\nHere are some personalized suggestions based on your profile to help you improve your health:\n")
	for _, hs := range in.HealthSuggestions {
		fmt.Fprintf(&b, "- %s\n", hs)
	}

	b.WriteString("\nKeep the summary concise and positive. End by reminding the user to consult a healthcare professional " +
		"for medical advice. IMPORTANT: Include a disclaimer that this is a simulated prediction for educational purposes " +
		"and not a real medical diagnosis.")
	return b.String()
}
