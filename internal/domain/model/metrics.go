// Package model contains domain models passed between layers.
package model

import "math"

// HealthMetrics is the self-reported health profile submitted for scoring.
// Fields are pointers so an absent value can be told apart from zero.
type HealthMetrics struct {
	Age                      *float64 `json:"age,omitempty" bson:"age,omitempty" yaml:"age,omitempty"`                                                                // years
	BMI                      *float64 `json:"bmi,omitempty" bson:"bmi,omitempty" yaml:"bmi,omitempty"`                                                                // kg/m²
	Glucose                  *float64 `json:"glucose,omitempty" bson:"glucose,omitempty" yaml:"glucose,omitempty"`                                                    // mg/dL
	BloodPressure            *float64 `json:"bloodPressure,omitempty" bson:"bloodPressure,omitempty" yaml:"bloodPressure,omitempty"`                                  // diastolic mmHg
	Pregnancies              *float64 `json:"pregnancies,omitempty" bson:"pregnancies,omitempty" yaml:"pregnancies,omitempty"`                                        // count
	SkinThickness            *float64 `json:"skinThickness,omitempty" bson:"skinThickness,omitempty" yaml:"skinThickness,omitempty"`                                  // mm
	Insulin                  *float64 `json:"insulin,omitempty" bson:"insulin,omitempty" yaml:"insulin,omitempty"`                                                    // mu U/ml
	DiabetesPedigreeFunction *float64 `json:"diabetesPedigreeFunction,omitempty" bson:"diabetesPedigreeFunction,omitempty" yaml:"diabetesPedigreeFunction,omitempty"` // unitless
	SleepHours               *float64 `json:"sleepHours,omitempty" bson:"sleepHours,omitempty" yaml:"sleepHours,omitempty"`                                           // hours/night
}

// Default values for the optional fields.
const (
	DefaultPregnancies              = 0
	DefaultSkinThickness            = 20
	DefaultInsulin                  = 80
	DefaultDiabetesPedigreeFunction = 0.4
	DefaultSleepHours               = 7
)

// Float returns a pointer to v. It keeps literals in tests and fixtures short.
func Float(v float64) *float64 { return &v }

// Resolved is HealthMetrics with defaults applied to the optional fields.
type Resolved struct {
	Age                      float64
	BMI                      float64
	Glucose                  float64
	BloodPressure            float64
	Pregnancies              float64
	SkinThickness            float64
	Insulin                  float64
	DiabetesPedigreeFunction float64
	SleepHours               float64
}

// HasMandatory reports whether age, bmi, glucose and bloodPressure are all
// present and non-zero. Zero is never a valid reading for these fields.
func (m HealthMetrics) HasMandatory() bool {
	for _, v := range []*float64{m.Age, m.BMI, m.Glucose, m.BloodPressure} {
		if v == nil || *v == 0 {
			return false
		}
	}
	return true
}

// Finite reports whether every present field is a finite number. The name of
// the first offending field is returned when it is not.
func (m HealthMetrics) Finite() (string, bool) {
	for _, f := range m.fields() {
		if f.val != nil && (math.IsNaN(*f.val) || math.IsInf(*f.val, 0)) {
			return f.name, false
		}
	}
	return "", true
}

// Resolve applies defaults for the optional fields. Mandatory fields that are
// absent resolve to zero.
func (m HealthMetrics) Resolve() Resolved {
	return Resolved{
		Age:                      valueOr(m.Age, 0),
		BMI:                      valueOr(m.BMI, 0),
		Glucose:                  valueOr(m.Glucose, 0),
		BloodPressure:            valueOr(m.BloodPressure, 0),
		Pregnancies:              valueOr(m.Pregnancies, DefaultPregnancies),
		SkinThickness:            valueOr(m.SkinThickness, DefaultSkinThickness),
		Insulin:                  valueOr(m.Insulin, DefaultInsulin),
		DiabetesPedigreeFunction: valueOr(m.DiabetesPedigreeFunction, DefaultDiabetesPedigreeFunction),
		SleepHours:               valueOr(m.SleepHours, DefaultSleepHours),
	}
}

// Validate checks every present field against its accepted bounds and
// returns a *RangeError for the first one outside them. A zero in a mandatory
// field counts as missing and is left to the degenerate path. Non-finite
// values are reported by Finite instead.
func (m HealthMetrics) Validate() error {
	for _, f := range m.fields() {
		if f.val == nil {
			continue
		}
		v := *f.val
		if (v == 0 && f.mandatory) || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if v < f.min || v > f.max {
			return &RangeError{Field: f.name, Min: f.min, Max: f.max}
		}
	}
	return nil
}

type namedField struct {
	name      string
	val       *float64
	mandatory bool
	min, max  float64
}

func (m HealthMetrics) fields() []namedField {
	inf := math.Inf(1)
	return []namedField{
		{"age", m.Age, true, 1, 120},
		{"bmi", m.BMI, true, 10, 70},
		{"glucose", m.Glucose, true, 0, inf},
		{"bloodPressure", m.BloodPressure, true, 0, inf},
		{"pregnancies", m.Pregnancies, false, 0, 20},
		{"skinThickness", m.SkinThickness, false, 0, 99},
		{"insulin", m.Insulin, false, 0, 900},
		{"diabetesPedigreeFunction", m.DiabetesPedigreeFunction, false, 0, 3},
		{"sleepHours", m.SleepHours, false, 0, 24},
	}
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// Clone copies every present value so the result shares no pointers with m.
func (m HealthMetrics) Clone() HealthMetrics {
	cp := func(p *float64) *float64 {
		if p == nil {
			return nil
		}
		return Float(*p)
	}
	return HealthMetrics{
		Age:                      cp(m.Age),
		BMI:                      cp(m.BMI),
		Glucose:                  cp(m.Glucose),
		BloodPressure:            cp(m.BloodPressure),
		Pregnancies:              cp(m.Pregnancies),
		SkinThickness:            cp(m.SkinThickness),
		Insulin:                  cp(m.Insulin),
		DiabetesPedigreeFunction: cp(m.DiabetesPedigreeFunction),
		SleepHours:               cp(m.SleepHours),
	}
}
