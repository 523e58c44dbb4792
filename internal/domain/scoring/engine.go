// Package scoring computes the diabetes risk score from a health profile.
//
// The engine is a logistic model over standardized features with pairwise
// interaction and quadratic terms. It is pure: no I/O and no shared mutable
// state, so one Engine may be used from any number of goroutines.
package scoring

import (
	"fmt"
	"math"

	"github.com/okian/diarisk/internal/domain/model"
)

// Score bounds on the normal path.
const (
	minRiskScore = 5
	maxRiskScore = 95
	percent      = 100
)

// BaselineName labels the intercept contribution.
const BaselineName = "Baseline"

// Contribution labels.
const (
	FactorGlucose       = "Glucose"
	FactorBMI           = "BMI"
	FactorAge           = "Age"
	FactorSleepQuality  = "Sleep Quality"
	FactorFamilyHistory = "Family History"
	FactorBloodPressure = "Blood Pressure"
	FactorPregnancies   = "Pregnancies"
	FactorInsulin       = "Insulin"
	FactorSkinThickness = "Skin Thickness"
	FactorGlucoseXBMI   = "Glucose x BMI"
	FactorAgeXGlucose   = "Age x Glucose"
	FactorBPXBMI        = "BP x BMI"
)

// Result is the outcome of one scoring call.
type Result struct {
	RiskScore  int                  `json:"riskScore"`
	LogOdds    float64              `json:"logOdds"`
	ShapValues []model.Contribution `json:"shapValues"`
}

// Degenerate reports whether the result is the insufficient-data sentinel.
func (r Result) Degenerate() bool { return len(r.ShapValues) == 0 }

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithModel replaces the model table.
func WithModel(m Model) Option {
	return func(e *Engine) {
		e.model = m
	}
}

// Engine scores health metrics against a model table.
type Engine struct {
	model Model
}

// NewEngine creates an engine using ModelV1 unless overridden. It fails when
// the resulting model does not validate.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{model: ModelV1()}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.model.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Model returns the active model table.
func (e *Engine) Model() Model { return e.model }

// standardized holds the z-scores of one profile plus the sleep impact.
type standardized struct {
	glucose, bmi, age, pedigree, bp, pregnancies, skin, insulin float64
	sleepImpact                                                 float64
}

// term is one named entry of the log-odds sum.
type term struct {
	name  string
	kind  model.Kind
	value func(z standardized, w Weights) float64
}

// terms lists the contributions in presentation order. Key-factor tie
// breaking depends on this order.
var terms = []term{
	{FactorGlucose, model.KindPrimary, func(z standardized, w Weights) float64 {
		return z.glucose*w.Glucose + z.glucose*z.glucose*w.GlucoseSquared
	}},
	{FactorBMI, model.KindPrimary, func(z standardized, w Weights) float64 {
		return z.bmi * w.BMI
	}},
	{FactorAge, model.KindPrimary, func(z standardized, w Weights) float64 {
		return z.age*w.Age + z.age*z.age*w.AgeSquared
	}},
	{FactorSleepQuality, model.KindPrimary, func(z standardized, w Weights) float64 {
		return z.sleepImpact * w.SleepQuality
	}},
	{FactorFamilyHistory, model.KindPrimary, func(z standardized, w Weights) float64 {
		return z.pedigree * w.DiabetesPedigreeFunction
	}},
	{FactorBloodPressure, model.KindPrimary, func(z standardized, w Weights) float64 {
		return z.bp * w.BloodPressure
	}},
	{FactorPregnancies, model.KindPrimary, func(z standardized, w Weights) float64 {
		return z.pregnancies * w.Pregnancies
	}},
	{FactorInsulin, model.KindPrimary, func(z standardized, w Weights) float64 {
		return z.insulin * w.Insulin
	}},
	{FactorSkinThickness, model.KindPrimary, func(z standardized, w Weights) float64 {
		return z.skin * w.SkinThickness
	}},
	{FactorGlucoseXBMI, model.KindInteraction, func(z standardized, w Weights) float64 {
		return z.glucose * z.bmi * w.GlucoseBMI
	}},
	{FactorAgeXGlucose, model.KindInteraction, func(z standardized, w Weights) float64 {
		return z.age * z.glucose * w.AgeGlucose
	}},
	{FactorBPXBMI, model.KindInteraction, func(z standardized, w Weights) float64 {
		return z.bp * z.bmi * w.BPBMI
	}},
}

// Score computes the risk score and per-term contributions for m.
//
// A profile missing any of age, bmi, glucose or bloodPressure (or carrying
// zero for one of them) yields RiskScore 0 and no contributions. Non-finite
// input, or finite input whose contributions overflow, is rejected with
// ErrInvalidNumeric.
func (e *Engine) Score(m model.HealthMetrics) (Result, error) {
	if name, ok := m.Finite(); !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidNumeric, name)
	}
	if !m.HasMandatory() {
		return Result{RiskScore: 0, ShapValues: []model.Contribution{}}, nil
	}

	z := e.standardize(m.Resolve())
	w := e.model.Weights

	shap := make([]model.Contribution, 0, len(terms)+1)
	shap = append(shap, model.Contribution{Name: BaselineName, Value: w.Base, Kind: model.KindBaseline})
	for _, t := range terms {
		shap = append(shap, model.Contribution{Name: t.name, Value: t.value(z, w), Kind: t.kind})
	}

	// Summing the listed values keeps logOdds equal to their total.
	var logOdds float64
	for _, c := range shap {
		logOdds += c.Value
	}
	for _, c := range shap {
		if !isFinite(c.Value) {
			return Result{}, fmt.Errorf("%w: %s overflowed", ErrInvalidNumeric, c.Name)
		}
	}
	if !isFinite(logOdds) {
		return Result{}, fmt.Errorf("%w: log-odds overflowed", ErrInvalidNumeric)
	}

	score := sigmoid(logOdds) * percent
	return Result{
		RiskScore:  int(math.Round(clamp(score, minRiskScore, maxRiskScore))),
		LogOdds:    logOdds,
		ShapValues: shap,
	}, nil
}

func (e *Engine) standardize(r model.Resolved) standardized {
	n := e.model.Norms
	return standardized{
		glucose:     zScore(r.Glucose, n.Glucose),
		bmi:         zScore(r.BMI, n.BMI),
		age:         zScore(r.Age, n.Age),
		pedigree:    zScore(r.DiabetesPedigreeFunction, n.DiabetesPedigreeFunction),
		bp:          zScore(r.BloodPressure, n.BloodPressure),
		pregnancies: zScore(r.Pregnancies, n.Pregnancies),
		skin:        zScore(r.SkinThickness, n.SkinThickness),
		insulin:     zScore(r.Insulin, n.Insulin),
		sleepImpact: math.Abs(r.SleepHours-n.SleepHours.Mean) / n.SleepHours.Std,
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func zScore(v float64, n Norm) float64 {
	return (v - n.Mean) / n.Std
}

// sigmoid is the logistic function, evaluated so exp never overflows.
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	ex := math.Exp(x)
	return ex / (1 + ex)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
