package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/xuri/excelize/v2"

	"github.com/okian/diarisk/internal/domain/model"
	"github.com/okian/diarisk/internal/domain/scoring"
)

func newAnalyzer(t *testing.T, opts ...Option) *Analyzer {
	t.Helper()
	e, err := scoring.NewEngine()
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return NewAnalyzer(e, opts...)
}

func xlsxFixture(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.SetCellValue("Sheet1", cell, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	return &buf
}

const sampleCSV = `Age,Glucose,BMI,BloodPressure,SleepHours
70,200,40,100,
50,125,31,84,
,,,,
40,90,22,70,7
`

func TestParseFormat(t *testing.T) {
	Convey("ParseFormat", t, func() {
		f, err := ParseFormat("CSV")
		So(err, ShouldBeNil)
		So(f, ShouldEqual, FormatCSV)

		f, err = ParseFormat("patients.xlsx")
		So(err, ShouldBeNil)
		So(f, ShouldEqual, FormatXLSX)

		_, err = ParseFormat("json")
		So(errors.Is(err, ErrUnknownFormat), ShouldBeTrue)
	})
}

func TestAnalyzeCSV(t *testing.T) {
	Convey("Given a CSV dataset", t, func() {
		a := newAnalyzer(t)

		Convey("every non-blank row is scored", func() {
			rep, err := a.Analyze(context.Background(), strings.NewReader(sampleCSV), FormatCSV)
			So(err, ShouldBeNil)
			So(rep.Total, ShouldEqual, 3)
			So(rep.Skipped, ShouldEqual, 1)
			So(rep.Rows[0].Line, ShouldEqual, 2)
			So(rep.Rows[0].RiskScore, ShouldEqual, 95)
			So(rep.Rows[1].RiskScore, ShouldEqual, 34)
			So(rep.Rows[2].Line, ShouldEqual, 5)
			So(rep.HighRisk, ShouldEqual, 1)
			So(*rep.Rows[2].Input.SleepHours, ShouldEqual, 7.0)
			So(rep.Rows[0].Input.SleepHours, ShouldBeNil)
		})

		Convey("the average is the rounded mean", func() {
			rep, err := a.Analyze(context.Background(), strings.NewReader(sampleCSV), FormatCSV)
			So(err, ShouldBeNil)
			sum := 0
			for _, r := range rep.Rows {
				sum += r.RiskScore
			}
			want := int(float64(sum)/3 + 0.5)
			So(rep.AverageScore, ShouldEqual, want)
		})

		Convey("top factors are positive primary sums in descending order", func() {
			rep, err := a.Analyze(context.Background(), strings.NewReader(sampleCSV), FormatCSV)
			So(err, ShouldBeNil)
			So(len(rep.TopFactors), ShouldBeLessThanOrEqualTo, 5)
			So(rep.TopFactors[0].Name, ShouldEqual, scoring.FactorGlucose)
			for i := 1; i < len(rep.TopFactors); i++ {
				So(rep.TopFactors[i-1].Value, ShouldBeGreaterThanOrEqualTo, rep.TopFactors[i].Value)
			}
			for _, f := range rep.TopFactors {
				So(f.Name, ShouldNotEqual, scoring.BaselineName)
				So(f.Name, ShouldNotContainSubstring, " x ")
			}
		})

		Convey("missing required columns are reported by name", func() {
			_, err := a.Analyze(context.Background(), strings.NewReader("age,bmi\n1,2\n"), FormatCSV)
			So(errors.Is(err, ErrMissingColumns), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "glucose")
			So(err.Error(), ShouldContainSubstring, "bloodPressure")
		})

		Convey("an empty input has no header", func() {
			_, err := a.Analyze(context.Background(), strings.NewReader(""), FormatCSV)
			So(errors.Is(err, ErrEmpty), ShouldBeTrue)
		})

		Convey("a non-numeric cell names its line", func() {
			_, err := a.Analyze(context.Background(), strings.NewReader("age,glucose,bmi,bloodPressure\n40,abc,22,70\n"), FormatCSV)
			So(errors.Is(err, ErrInvalidRow), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "line 2")
		})

		Convey("negative and non-finite values are rejected", func() {
			_, err := a.Analyze(context.Background(), strings.NewReader("age,glucose,bmi,bloodPressure\n-4,100,22,70\n"), FormatCSV)
			So(errors.Is(err, ErrInvalidRow), ShouldBeTrue)
			_, err = a.Analyze(context.Background(), strings.NewReader("age,glucose,bmi,bloodPressure\n40,NaN,22,70\n"), FormatCSV)
			So(errors.Is(err, ErrInvalidRow), ShouldBeTrue)
		})

		Convey("values outside their accepted range are rejected with the line", func() {
			_, err := a.Analyze(context.Background(), strings.NewReader("age,glucose,bmi,bloodPressure,insulin\n40,100,22,70,80\n40,100,22,70,901\n"), FormatCSV)
			So(errors.Is(err, ErrInvalidRow), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "line 3")
			So(err.Error(), ShouldContainSubstring, "insulin must be between 0 and 900")

			_, err = a.Analyze(context.Background(), strings.NewReader("age,glucose,bmi,bloodPressure\n121,100,22,70\n"), FormatCSV)
			So(errors.Is(err, ErrInvalidRow), ShouldBeTrue)
		})

		Convey("values on their bounds are accepted", func() {
			rep, err := a.Analyze(context.Background(), strings.NewReader("age,glucose,bmi,bloodPressure,sleepHours\n120,100,70,70,24\n1,100,10,70,0\n"), FormatCSV)
			So(err, ShouldBeNil)
			So(rep.Rows, ShouldHaveLength, 2)
		})

		Convey("rows without mandatory values score as insufficient data", func() {
			rep, err := a.Analyze(context.Background(), strings.NewReader("age,glucose,bmi,bloodPressure\n40,,22,70\n"), FormatCSV)
			So(err, ShouldBeNil)
			So(rep.Rows[0].RiskScore, ShouldEqual, 0)
			So(rep.Rows[0].ShapValues, ShouldBeEmpty)
		})

		Convey("the row limit is enforced", func() {
			var b strings.Builder
			b.WriteString("age,glucose,bmi,bloodPressure\n")
			for i := 0; i < 4; i++ {
				fmt.Fprintf(&b, "%d,100,25,70\n", 30+i)
			}
			_, err := newAnalyzer(t, WithMaxRows(3)).Analyze(context.Background(), strings.NewReader(b.String()), FormatCSV)
			So(errors.Is(err, ErrTooManyRows), ShouldBeTrue)
		})

		Convey("a canceled context stops the analysis", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := a.Analyze(ctx, strings.NewReader(sampleCSV), FormatCSV)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestAnalyzeXLSX(t *testing.T) {
	Convey("Given an XLSX workbook", t, func() {
		buf := xlsxFixture(t, [][]any{
			{"age", "glucose", "bmi", "bloodPressure"},
			{70, 200, 40, 100},
			{50, 125, 31, 84},
		})
		rep, err := newAnalyzer(t).Analyze(context.Background(), buf, FormatXLSX)
		So(err, ShouldBeNil)
		So(rep.Total, ShouldEqual, 2)
		So(rep.Rows[0].RiskScore, ShouldEqual, 95)
		So(rep.Rows[1].RiskScore, ShouldEqual, 34)
	})

	Convey("Given bytes that are not a workbook", t, func() {
		_, err := newAnalyzer(t).Analyze(context.Background(), strings.NewReader("nope"), FormatXLSX)
		So(err, ShouldNotBeNil)
	})
}

func TestFilter(t *testing.T) {
	Convey("Given an analyzed report", t, func() {
		rep, err := newAnalyzer(t).Analyze(context.Background(), strings.NewReader(sampleCSV), FormatCSV)
		So(err, ShouldBeNil)

		Convey("an empty filter keeps every row", func() {
			out := Filter{}.Apply(rep)
			So(out.Total, ShouldEqual, rep.Total)
			So(out.Skipped, ShouldEqual, rep.Skipped)
		})

		Convey("a risk range narrows and resummarizes", func() {
			out := Filter{Risk: &Range{Min: 71, Max: 100}}.Apply(rep)
			So(out.Total, ShouldEqual, 1)
			So(out.HighRisk, ShouldEqual, 1)
			So(out.AverageScore, ShouldEqual, 95)
		})

		Convey("input ranges combine", func() {
			out := Filter{Age: &Range{Min: 45, Max: 80}, Glucose: &Range{Min: 0, Max: 150}}.Apply(rep)
			So(out.Total, ShouldEqual, 1)
			So(out.Rows[0].RiskScore, ShouldEqual, 34)
		})

		Convey("no match yields an empty summary", func() {
			out := Filter{BMI: &Range{Min: 90, Max: 99}}.Apply(rep)
			So(out.Total, ShouldEqual, 0)
			So(out.AverageScore, ShouldEqual, 0)
			So(out.TopFactors, ShouldBeEmpty)
		})
	})
}

func TestSummarize(t *testing.T) {
	Convey("Summarize keeps at most five factors", t, func() {
		shap := []model.Contribution{{Name: scoring.BaselineName, Value: -5.5, Kind: model.KindBaseline}}
		for i := 0; i < 7; i++ {
			shap = append(shap, model.Contribution{Name: fmt.Sprintf("f%d", i), Value: float64(i), Kind: model.KindPrimary})
		}
		shap = append(shap, model.Contribution{Name: "a x b", Value: 100, Kind: model.KindInteraction})
		rep := Summarize([]Row{{RiskScore: 40, ShapValues: shap}, {RiskScore: 71, ShapValues: shap}})
		So(rep.AverageScore, ShouldEqual, 56)
		So(rep.HighRisk, ShouldEqual, 1)
		So(len(rep.TopFactors), ShouldEqual, 5)
		So(rep.TopFactors[0], ShouldResemble, FactorImpact{Name: "f6", Value: 12.0})
		So(rep.TopFactors[4].Name, ShouldEqual, "f2")
	})
}

func TestWriteXLSX(t *testing.T) {
	Convey("WriteXLSX round-trips through the analyzer", t, func() {
		a := newAnalyzer(t)
		rep, err := a.Analyze(context.Background(), strings.NewReader(sampleCSV), FormatCSV)
		So(err, ShouldBeNil)

		var buf bytes.Buffer
		So(WriteXLSX(&buf, rep), ShouldBeNil)
		data := bytes.Clone(buf.Bytes())

		f, err := excelize.OpenReader(bytes.NewReader(data))
		So(err, ShouldBeNil)
		defer f.Close()
		rows, err := f.GetRows(exportSheet)
		So(err, ShouldBeNil)
		So(len(rows), ShouldEqual, rep.Total+1)
		So(rows[0][0], ShouldEqual, "line")
		So(rows[1][10], ShouldEqual, "95")
		So(rows[1][11], ShouldEqual, string(model.BandHigh))

		again, err := a.Analyze(context.Background(), bytes.NewReader(data), FormatXLSX)
		So(err, ShouldBeNil)
		So(again.Total, ShouldEqual, rep.Total)
		for i := range rep.Rows {
			So(again.Rows[i].RiskScore, ShouldEqual, rep.Rows[i].RiskScore)
		}
	})
}
