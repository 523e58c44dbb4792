package dataset

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Assessments"

var exportHeaders = []string{
	"line", "age", "bmi", "glucose", "bloodPressure", "pregnancies", "skinThickness",
	"insulin", "diabetesPedigreeFunction", "sleepHours", "riskScore", "riskBand", "keyFactors",
}

// WriteXLSX writes the scored rows of rep as a workbook to w.
func WriteXLSX(w io.Writer, rep Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	for i, h := range exportHeaders {
		if err := setCell(f, i+1, 1, h); err != nil {
			return err
		}
	}
	last, err := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(exportSheet, "A1", last, style); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	for i, r := range rep.Rows {
		row := i + 2
		in := r.Input
		values := []any{
			r.Line, cellValue(in.Age), cellValue(in.BMI), cellValue(in.Glucose), cellValue(in.BloodPressure),
			cellValue(in.Pregnancies), cellValue(in.SkinThickness), cellValue(in.Insulin),
			cellValue(in.DiabetesPedigreeFunction), cellValue(in.SleepHours),
			r.RiskScore, string(r.RiskBand), factorNames(r),
		}
		for col, v := range values {
			if err := setCell(f, col+1, row, v); err != nil {
				return fmt.Errorf("row %d: %w", row, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(exportSheet, cell, v)
}

func cellValue(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}

func factorNames(r Row) string {
	names := make([]string, 0, len(r.KeyFactors))
	for _, k := range r.KeyFactors {
		names = append(names, k.Name)
	}
	return strings.Join(names, "; ")
}
