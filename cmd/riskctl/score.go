package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/diarisk/internal/domain/model"
	"github.com/okian/diarisk/internal/domain/scoring"
	"github.com/okian/diarisk/internal/domain/types"
)

// metricFlag binds one command-line flag to a HealthMetrics field.
type metricFlag struct {
	name  string
	usage string
	field func(*model.HealthMetrics) **float64
}

var metricFlags = []metricFlag{
	{"age", "Age in years", func(m *model.HealthMetrics) **float64 { return &m.Age }},
	{"bmi", "Body mass index in kg/m²", func(m *model.HealthMetrics) **float64 { return &m.BMI }},
	{"glucose", "Fasting glucose in mg/dL", func(m *model.HealthMetrics) **float64 { return &m.Glucose }},
	{"blood-pressure", "Diastolic blood pressure in mmHg", func(m *model.HealthMetrics) **float64 { return &m.BloodPressure }},
	{"pregnancies", "Number of pregnancies", func(m *model.HealthMetrics) **float64 { return &m.Pregnancies }},
	{"skin-thickness", "Triceps skin fold in mm", func(m *model.HealthMetrics) **float64 { return &m.SkinThickness }},
	{"insulin", "Two-hour serum insulin in mu U/ml", func(m *model.HealthMetrics) **float64 { return &m.Insulin }},
	{"pedigree", "Diabetes pedigree function", func(m *model.HealthMetrics) **float64 { return &m.DiabetesPedigreeFunction }},
	{"sleep-hours", "Average sleep per night in hours", func(m *model.HealthMetrics) **float64 { return &m.SleepHours }},
}

func newScoreCmd() *cobra.Command {
	var (
		values    = make([]float64, len(metricFlags))
		outputFmt string
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one health profile",
		Long: `Scores one profile. Flags that are not given are treated as absent, so the
optional fields fall back to their population defaults and a missing
mandatory field yields the insufficient-data result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var m model.HealthMetrics
			for i, f := range metricFlags {
				if cmd.Flags().Changed(f.name) {
					*f.field(&m) = model.Float(values[i])
				}
			}
			return runScore(cmd.OutOrStdout(), m, outputFmt)
		},
	}

	for i, f := range metricFlags {
		cmd.Flags().Float64Var(&values[i], f.name, 0, f.usage)
	}
	cmd.Flags().StringVarP(&outputFmt, "output", "o", outputText, "Output format: text, json or yaml")

	return cmd
}

func runScore(w io.Writer, m model.HealthMetrics, outputFmt string) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}
	engine, err := scoring.NewEngine()
	if err != nil {
		return err
	}
	a, err := engine.Assess(m)
	if err != nil {
		return err
	}
	resp := types.NewScoreResponse(a)
	return render(w, outputFmt, resp, func(w io.Writer) error {
		return writeScoreText(w, resp)
	})
}

func writeScoreText(w io.Writer, r types.ScoreResponse) error {
	var b strings.Builder
	if r.RiskScore == 0 {
		b.WriteString("Risk score: insufficient data (age, bmi, glucose and blood pressure are required)\n")
	} else {
		fmt.Fprintf(&b, "Risk score: %d/100 (%s, confidence %d%%)\n", r.RiskScore, r.RiskBand, r.ConfidenceScore)
		fmt.Fprintf(&b, "Log-odds:   %.4f\n", r.LogOdds)
	}
	if len(r.KeyFactors) > 0 {
		b.WriteString("\nKey factors:\n")
		for _, kf := range r.KeyFactors {
			fmt.Fprintf(&b, "  %-28s %+.4f\n", kf.Name, kf.Value)
		}
	}
	if len(r.ShapValues) > 0 {
		b.WriteString("\nContributions:\n")
		for _, c := range r.ShapValues {
			fmt.Fprintf(&b, "  %-28s %+.4f  %s\n", c.Name, c.Value, c.Kind)
		}
	}
	if len(r.HealthSuggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for _, s := range r.HealthSuggestions {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}
	fmt.Fprintf(&b, "\nModel: %s\n", r.ModelVersion)
	_, err := io.WriteString(w, b.String())
	return err
}
