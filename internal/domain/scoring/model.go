package scoring

import (
	"fmt"
	"strings"
)

// Norm holds the population constants used to standardize one field.
type Norm struct {
	Mean float64 `json:"mean" yaml:"mean"`
	Std  float64 `json:"std" yaml:"std"`
}

// Norms groups the standardization constants per input field. SleepHours is
// used as a deviation scale, not a signed z-score.
type Norms struct {
	Glucose                  Norm `json:"glucose" yaml:"glucose"`
	BMI                      Norm `json:"bmi" yaml:"bmi"`
	Age                      Norm `json:"age" yaml:"age"`
	DiabetesPedigreeFunction Norm `json:"diabetesPedigreeFunction" yaml:"diabetesPedigreeFunction"`
	BloodPressure            Norm `json:"bloodPressure" yaml:"bloodPressure"`
	Pregnancies              Norm `json:"pregnancies" yaml:"pregnancies"`
	SkinThickness            Norm `json:"skinThickness" yaml:"skinThickness"`
	Insulin                  Norm `json:"insulin" yaml:"insulin"`
	SleepHours               Norm `json:"sleepHours" yaml:"sleepHours"`
}

// Weights holds the hand-tuned coefficients of the log-odds model.
type Weights struct {
	Base                     float64 `json:"base" yaml:"base"`
	Glucose                  float64 `json:"glucose" yaml:"glucose"`
	BMI                      float64 `json:"bmi" yaml:"bmi"`
	Age                      float64 `json:"age" yaml:"age"`
	DiabetesPedigreeFunction float64 `json:"diabetesPedigreeFunction" yaml:"diabetesPedigreeFunction"`
	SleepQuality             float64 `json:"sleepQuality" yaml:"sleepQuality"`
	BloodPressure            float64 `json:"bloodPressure" yaml:"bloodPressure"`
	Pregnancies              float64 `json:"pregnancies" yaml:"pregnancies"`
	Insulin                  float64 `json:"insulin" yaml:"insulin"`
	SkinThickness            float64 `json:"skinThickness" yaml:"skinThickness"`
	GlucoseBMI               float64 `json:"glucose_bmi" yaml:"glucose_bmi"`
	AgeGlucose               float64 `json:"age_glucose" yaml:"age_glucose"`
	BPBMI                    float64 `json:"bp_bmi" yaml:"bp_bmi"`
	AgeSquared               float64 `json:"age_squared" yaml:"age_squared"`
	GlucoseSquared           float64 `json:"glucose_squared" yaml:"glucose_squared"`
}

// Model is a versioned table of standardization constants and weights.
type Model struct {
	Version string  `json:"version" yaml:"version"`
	Norms   Norms   `json:"norms" yaml:"norms"`
	Weights Weights `json:"weights" yaml:"weights"`
}

// ModelV1 returns the first published risk model.
func ModelV1() Model {
	return Model{
		Version: "v1",
		Norms: Norms{
			Glucose:                  Norm{Mean: 105, Std: 30},
			BMI:                      Norm{Mean: 28, Std: 6},
			Age:                      Norm{Mean: 45, Std: 18},
			DiabetesPedigreeFunction: Norm{Mean: 0.5, Std: 0.4},
			BloodPressure:            Norm{Mean: 85, Std: 20},
			Pregnancies:              Norm{Mean: 3, Std: 3},
			SkinThickness:            Norm{Mean: 25, Std: 12},
			Insulin:                  Norm{Mean: 100, Std: 60},
			SleepHours:               Norm{Mean: 7, Std: 1.5},
		},
		Weights: Weights{
			Base:                     -5.5,
			Glucose:                  3.5,
			BMI:                      3.2,
			Age:                      2.5,
			DiabetesPedigreeFunction: 2.0,
			SleepQuality:             1.5,
			BloodPressure:            1.2,
			Pregnancies:              0.7,
			Insulin:                  0.5,
			SkinThickness:            0.3,
			GlucoseBMI:               2.8,
			AgeGlucose:               1.8,
			BPBMI:                    1.0,
			AgeSquared:               0.8,
			GlucoseSquared:           1.0,
		},
	}
}

// Validate checks that every standard deviation is positive.
func (m Model) Validate() error {
	norms := map[string]Norm{
		"glucose":                  m.Norms.Glucose,
		"bmi":                      m.Norms.BMI,
		"age":                      m.Norms.Age,
		"diabetesPedigreeFunction": m.Norms.DiabetesPedigreeFunction,
		"bloodPressure":            m.Norms.BloodPressure,
		"pregnancies":              m.Norms.Pregnancies,
		"skinThickness":            m.Norms.SkinThickness,
		"insulin":                  m.Norms.Insulin,
		"sleepHours":               m.Norms.SleepHours,
	}
	for name, n := range norms {
		if !(n.Std > 0) {
			return fmt.Errorf("%w: std for %s must be positive", ErrInvalidModel, name)
		}
	}
	return nil
}

// weightRef maps a lower-cased weight key to its field.
func (w *Weights) weightRef(key string) (*float64, bool) {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "base":
		return &w.Base, true
	case "glucose":
		return &w.Glucose, true
	case "bmi":
		return &w.BMI, true
	case "age":
		return &w.Age, true
	case "diabetespedigreefunction", "diabetes_pedigree_function", "pedigree":
		return &w.DiabetesPedigreeFunction, true
	case "sleepquality", "sleep_quality":
		return &w.SleepQuality, true
	case "bloodpressure", "blood_pressure":
		return &w.BloodPressure, true
	case "pregnancies":
		return &w.Pregnancies, true
	case "insulin":
		return &w.Insulin, true
	case "skinthickness", "skin_thickness":
		return &w.SkinThickness, true
	case "glucose_bmi":
		return &w.GlucoseBMI, true
	case "age_glucose":
		return &w.AgeGlucose, true
	case "bp_bmi":
		return &w.BPBMI, true
	case "age_squared":
		return &w.AgeSquared, true
	case "glucose_squared":
		return &w.GlucoseSquared, true
	}
	return nil, false
}

// WithWeights returns a copy of m with the given weights replaced. Keys are
// matched case-insensitively. The version gains a "+custom" suffix when any
// weight changes.
func (m Model) WithWeights(overrides map[string]float64) (Model, error) {
	out := m
	changed := false
	for key, v := range overrides {
		ref, ok := out.Weights.weightRef(key)
		if !ok {
			return m, fmt.Errorf("%w: %q", ErrUnknownWeight, key)
		}
		if *ref != v {
			*ref = v
			changed = true
		}
	}
	if changed && !strings.HasSuffix(out.Version, "+custom") {
		out.Version += "+custom"
	}
	return out, nil
}
