// Package dataset scores tabular batches of health profiles and
// summarizes the outcome.
package dataset

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/diarisk/internal/domain/model"
	"github.com/okian/diarisk/internal/domain/scoring"
	"github.com/okian/diarisk/pkg/metrics"
)

// Format names a supported file format.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts a format name or a file name with a known extension.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	switch Format(s) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Defaults for the analyzer.
const (
	DefaultMaxRows = 5000
	// MaxBytes caps uploaded datasets.
	MaxBytes      = 5 << 20
	maxTopFactors = 5
)

// RequiredColumns must be present in the header row.
var RequiredColumns = []string{"age", "glucose", "bmi", "bloodPressure"}

// Row is one scored line of a dataset.
type Row struct {
	Line       int                  `json:"line" yaml:"line"`
	Input      model.HealthMetrics  `json:"input" yaml:"input"`
	RiskScore  int                  `json:"riskScore" yaml:"riskScore"`
	RiskBand   model.Band           `json:"riskBand" yaml:"riskBand"`
	KeyFactors []model.KeyFactor    `json:"keyFactors" yaml:"keyFactors"`
	ShapValues []model.Contribution `json:"shapValues" yaml:"-"`
}

// FactorImpact is the summed positive contribution of one factor.
type FactorImpact struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
}

// Report summarizes a scored dataset.
type Report struct {
	Total        int            `json:"total" yaml:"total"`
	HighRisk     int            `json:"highRisk" yaml:"highRisk"`
	AverageScore int            `json:"averageScore" yaml:"averageScore"`
	Skipped      int            `json:"skipped" yaml:"skipped"`
	TopFactors   []FactorImpact `json:"topFactors" yaml:"topFactors"`
	Rows         []Row          `json:"rows" yaml:"rows"`
}

// Analyzer scores datasets with a risk engine.
type Analyzer struct {
	engine  *scoring.Engine
	maxRows int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMaxRows sets the row limit; non-positive values keep the default.
func WithMaxRows(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxRows = n
		}
	}
}

// NewAnalyzer returns an analyzer backed by engine.
func NewAnalyzer(engine *scoring.Engine, opts ...Option) *Analyzer {
	a := &Analyzer{engine: engine, maxRows: DefaultMaxRows}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze reads a dataset in the given format and scores every row.
func (a *Analyzer) Analyze(ctx context.Context, r io.Reader, f Format) (Report, error) {
	var (
		records [][]string
		err     error
	)
	switch f {
	case FormatCSV:
		records, err = readCSV(r)
	case FormatXLSX:
		records, err = readXLSX(r)
	default:
		return Report{}, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	if err != nil {
		return Report{}, err
	}
	metrics.RecordDatasetAnalysis(string(f))
	return a.score(ctx, records)
}

func (a *Analyzer) score(ctx context.Context, records [][]string) (Report, error) {
	if len(records) == 0 {
		return Report{}, ErrEmpty
	}
	cols, err := mapHeader(records[0])
	if err != nil {
		return Report{}, err
	}

	body := records[1:]
	rows := make([]Row, 0, len(body))
	skipped := 0
	for i, rec := range body {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return Report{}, err
			}
		}
		if blank(rec) {
			skipped++
			continue
		}
		if len(rows) == a.maxRows {
			return Report{}, fmt.Errorf("%w: more than %d rows", ErrTooManyRows, a.maxRows)
		}
		line := i + 2 // header is line 1
		m, err := parseRow(rec, cols)
		if err != nil {
			return Report{}, fmt.Errorf("%w: line %d: %v", ErrInvalidRow, line, err)
		}
		res, err := a.engine.Assess(m)
		if err != nil {
			return Report{}, fmt.Errorf("%w: line %d: %v", ErrInvalidRow, line, err)
		}
		rows = append(rows, Row{
			Line:       line,
			Input:      m,
			RiskScore:  res.RiskScore,
			RiskBand:   res.RiskBand,
			KeyFactors: res.KeyFactors,
			ShapValues: res.ShapValues,
		})
	}

	metrics.RecordDatasetRows("scored", len(rows))
	metrics.RecordDatasetRows("skipped", skipped)
	rep := Summarize(rows)
	rep.Skipped = skipped
	return rep, nil
}

// mapHeader returns the column index of every known field.
func mapHeader(header []string) (map[string]int, error) {
	known := make(map[string]string, len(fieldSetters))
	for name := range fieldSetters {
		known[strings.ToLower(name)] = name
	}

	cols := make(map[string]int)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if name, ok := known[h]; ok {
			cols[name] = i
		}
	}

	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return cols, nil
}

var fieldSetters = map[string]func(*model.HealthMetrics, *float64){
	"age":                      func(m *model.HealthMetrics, v *float64) { m.Age = v },
	"bmi":                      func(m *model.HealthMetrics, v *float64) { m.BMI = v },
	"glucose":                  func(m *model.HealthMetrics, v *float64) { m.Glucose = v },
	"bloodPressure":            func(m *model.HealthMetrics, v *float64) { m.BloodPressure = v },
	"pregnancies":              func(m *model.HealthMetrics, v *float64) { m.Pregnancies = v },
	"skinThickness":            func(m *model.HealthMetrics, v *float64) { m.SkinThickness = v },
	"insulin":                  func(m *model.HealthMetrics, v *float64) { m.Insulin = v },
	"diabetesPedigreeFunction": func(m *model.HealthMetrics, v *float64) { m.DiabetesPedigreeFunction = v },
	"sleepHours":               func(m *model.HealthMetrics, v *float64) { m.SleepHours = v },
}

func parseRow(rec []string, cols map[string]int) (model.HealthMetrics, error) {
	var m model.HealthMetrics
	for name, idx := range cols {
		if idx >= len(rec) {
			continue
		}
		cell := strings.TrimSpace(rec[idx])
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return m, fmt.Errorf("%s: %q is not a number", name, cell)
		}
		fieldSetters[name](&m, model.Float(v))
	}
	return m, m.Validate()
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Summarize computes totals, the rounded mean score and the top factors of rows.
func Summarize(rows []Row) Report {
	rep := Report{Rows: rows, Total: len(rows), TopFactors: []FactorImpact{}}
	if len(rows) == 0 {
		return rep
	}

	sum := 0
	impact := make(map[string]float64)
	var order []string
	for _, r := range rows {
		sum += r.RiskScore
		if scoring.IsHighRisk(r.RiskScore) {
			rep.HighRisk++
		}
		for _, c := range r.ShapValues {
			if c.Kind != model.KindPrimary {
				continue
			}
			if _, ok := impact[c.Name]; !ok {
				order = append(order, c.Name)
			}
			impact[c.Name] += math.Max(0, c.Value)
		}
	}
	rep.AverageScore = int(math.Round(float64(sum) / float64(len(rows))))

	for _, name := range order {
		rep.TopFactors = append(rep.TopFactors, FactorImpact{Name: name, Value: impact[name]})
	}
	sort.SliceStable(rep.TopFactors, func(i, j int) bool {
		return rep.TopFactors[i].Value > rep.TopFactors[j].Value
	})
	if len(rep.TopFactors) > maxTopFactors {
		rep.TopFactors = rep.TopFactors[:maxTopFactors]
	}
	return rep
}

// Range is an inclusive bound. A nil *Range matches everything.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r *Range) match(v float64) bool {
	return r == nil || (v >= r.Min && v <= r.Max)
}

// Filter narrows a report by risk score and input ranges.
type Filter struct {
	Risk    *Range
	Age     *Range
	BMI     *Range
	Glucose *Range
}

func valueOf(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// Apply returns a new report holding only matching rows, summarized again.
// Missing inputs compare as zero.
func (f Filter) Apply(rep Report) Report {
	rows := make([]Row, 0, len(rep.Rows))
	for _, r := range rep.Rows {
		if f.Risk.match(float64(r.RiskScore)) &&
			f.Age.match(valueOf(r.Input.Age)) &&
			f.BMI.match(valueOf(r.Input.BMI)) &&
			f.Glucose.match(valueOf(r.Input.Glucose)) {
			rows = append(rows, r)
		}
	}
	out := Summarize(rows)
	out.Skipped = rep.Skipped
	return out
}
