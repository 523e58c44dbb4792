package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/diarisk/internal/domain/scoring"
)

func newModelCmd() *cobra.Command {
	var outputFmt string

	cmd := &cobra.Command{
		Use:   "model",
		Short: "Print the active model table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := scoring.ModelV1()
			return render(cmd.OutOrStdout(), outputFmt, m, func(w io.Writer) error {
				return writeModelText(w, m)
			})
		},
	}
	cmd.Flags().StringVarP(&outputFmt, "output", "o", outputYAML, "Output format: text, json or yaml")

	return cmd
}

func writeModelText(w io.Writer, m scoring.Model) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Model %s\n\nNorms:\n", m.Version)
	n := m.Norms
	for _, row := range []struct {
		name string
		norm scoring.Norm
	}{
		{"glucose", n.Glucose},
		{"bmi", n.BMI},
		{"age", n.Age},
		{"diabetesPedigreeFunction", n.DiabetesPedigreeFunction},
		{"bloodPressure", n.BloodPressure},
		{"pregnancies", n.Pregnancies},
		{"skinThickness", n.SkinThickness},
		{"insulin", n.Insulin},
		{"sleepHours", n.SleepHours},
	} {
		fmt.Fprintf(&b, "  %-26s mean %-7g std %g\n", row.name, row.norm.Mean, row.norm.Std)
	}

	wt := m.Weights
	b.WriteString("\nWeights:\n")
	for _, row := range []struct {
		name  string
		value float64
	}{
		{"base", wt.Base},
		{"glucose", wt.Glucose},
		{"bmi", wt.BMI},
		{"age", wt.Age},
		{"diabetesPedigreeFunction", wt.DiabetesPedigreeFunction},
		{"sleepQuality", wt.SleepQuality},
		{"bloodPressure", wt.BloodPressure},
		{"pregnancies", wt.Pregnancies},
		{"insulin", wt.Insulin},
		{"skinThickness", wt.SkinThickness},
		{"glucose_bmi", wt.GlucoseBMI},
		{"age_glucose", wt.AgeGlucose},
		{"bp_bmi", wt.BPBMI},
		{"age_squared", wt.AgeSquared},
		{"glucose_squared", wt.GlucoseSquared},
	} {
		fmt.Fprintf(&b, "  %-26s %g\n", row.name, row.value)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
