package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v3"

	"github.com/okian/diarisk/internal/adapters/dataset"
	"github.com/okian/diarisk/internal/domain/model"
	"github.com/okian/diarisk/internal/domain/scoring"
	"github.com/okian/diarisk/internal/domain/types"
)

const sampleCSV = `Age,Glucose,BMI,BloodPressure,SleepHours
70,200,40,100,
50,125,31,84,
,,,,
40,90,22,70,7
`

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patients.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o600); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func TestScoreCommand(t *testing.T) {
	Convey("Given the score command", t, func() {
		Convey("a high-risk profile is scored as JSON", func() {
			out, err := execute("score", "--age", "70", "--bmi", "40", "--glucose", "200", "--blood-pressure", "100", "-o", "json")
			So(err, ShouldBeNil)

			var resp types.ScoreResponse
			So(json.Unmarshal([]byte(out), &resp), ShouldBeNil)
			So(resp.RiskScore, ShouldEqual, 95)
			So(resp.RiskBand, ShouldEqual, model.BandHigh)
			So(resp.ShapValues[0].Name, ShouldEqual, scoring.BaselineName)
			So(len(resp.KeyFactors), ShouldBeLessThanOrEqualTo, 3)
		})

		Convey("YAML output uses the wire field names", func() {
			out, err := execute("score", "--age", "50", "--bmi", "31", "--glucose", "125", "--blood-pressure", "84", "-o", "yaml")
			So(err, ShouldBeNil)

			var doc map[string]any
			So(yaml.Unmarshal([]byte(out), &doc), ShouldBeNil)
			So(doc["riskScore"], ShouldEqual, 34)
			So(doc["modelVersion"], ShouldEqual, "v1")
		})

		Convey("a missing mandatory field reports insufficient data", func() {
			out, err := execute("score", "--age", "50", "--bmi", "31")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "insufficient data")
		})

		Convey("negative values are rejected", func() {
			_, err := execute("score", "--age", "-1", "--bmi", "31", "--glucose", "125", "--blood-pressure", "84")
			So(err, ShouldWrap, types.ErrInvalidInput)
		})

		Convey("values outside their range are rejected", func() {
			_, err := execute("score", "--age", "121", "--bmi", "31", "--glucose", "125", "--blood-pressure", "84")
			So(err, ShouldWrap, types.ErrInvalidInput)
			So(err.Error(), ShouldContainSubstring, "age must be between 1 and 120")
		})

		Convey("an unknown output format is an error", func() {
			_, err := execute("score", "-o", "xml")
			So(err, ShouldWrap, errUnknownOutput)
		})
	})
}

func TestBatchCommand(t *testing.T) {
	Convey("Given a CSV dataset on disk", t, func() {
		path := writeSample(t)

		Convey("every row is summarized", func() {
			out, err := execute("batch", path, "-o", "json")
			So(err, ShouldBeNil)

			var rep dataset.Report
			So(json.Unmarshal([]byte(out), &rep), ShouldBeNil)
			So(rep.Total, ShouldEqual, 3)
			So(rep.Skipped, ShouldEqual, 1)
			So(rep.HighRisk, ShouldEqual, 1)
		})

		Convey("a risk range filters rows", func() {
			out, err := execute("batch", path, "--min-risk", "71", "-o", "yaml")
			So(err, ShouldBeNil)

			var rep dataset.Report
			So(yaml.Unmarshal([]byte(out), &rep), ShouldBeNil)
			So(rep.Total, ShouldEqual, 1)
			So(rep.Rows[0].RiskScore, ShouldEqual, 95)
		})

		Convey("the text summary lists every line", func() {
			out, err := execute("batch", path)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "Rows scored:   3")
			So(out, ShouldContainSubstring, "Top factors:")
		})

		Convey("an XLSX export can be read back", func() {
			xlsx := filepath.Join(t.TempDir(), "scored.xlsx")
			_, err := execute("batch", path, "--xlsx", xlsx, "-o", "json")
			So(err, ShouldBeNil)

			f, err := os.Open(xlsx)
			So(err, ShouldBeNil)
			defer f.Close()
			engine, err := scoring.NewEngine()
			So(err, ShouldBeNil)
			rep, err := dataset.NewAnalyzer(engine).Analyze(t.Context(), f, dataset.FormatXLSX)
			So(err, ShouldBeNil)
			So(rep.Total, ShouldEqual, 3)
		})

		Convey("the row limit is enforced", func() {
			_, err := execute("batch", path, "--max-rows", "2")
			So(err, ShouldWrap, dataset.ErrTooManyRows)
		})

		Convey("an unknown extension is rejected", func() {
			_, err := execute("batch", filepath.Join(t.TempDir(), "data.json"))
			So(err, ShouldWrap, dataset.ErrUnknownFormat)
		})
	})
}

func TestModelCommand(t *testing.T) {
	Convey("Given the model command", t, func() {
		Convey("YAML output round-trips into the model table", func() {
			out, err := execute("model")
			So(err, ShouldBeNil)

			var m scoring.Model
			So(yaml.Unmarshal([]byte(out), &m), ShouldBeNil)
			So(m, ShouldResemble, scoring.ModelV1())
		})

		Convey("text output names every weight", func() {
			out, err := execute("model", "-o", "text")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "Model v1")
			So(out, ShouldContainSubstring, "glucose_squared")
		})
	})
}
