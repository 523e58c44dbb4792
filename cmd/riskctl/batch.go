package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/diarisk/internal/adapters/dataset"
	"github.com/okian/diarisk/internal/domain/scoring"
)

type batchOpts struct {
	path      string
	outputFmt string
	xlsxPath  string
	maxRows   int
	filter    dataset.Filter
}

func newBatchCmd() *cobra.Command {
	var (
		opts    batchOpts
		minRisk float64
		maxRisk float64
	)

	cmd := &cobra.Command{
		Use:   "batch <file.csv|file.xlsx>",
		Short: "Score every row of a dataset",
		Long: `Scores a CSV or XLSX dataset. The header row must name age, glucose, bmi
and bloodPressure; the optional columns are read when present.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.path = args[0]
			if cmd.Flags().Changed("min-risk") || cmd.Flags().Changed("max-risk") {
				opts.filter.Risk = &dataset.Range{Min: minRisk, Max: maxRisk}
			}
			return runBatch(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outputFmt, "output", "o", outputText, "Output format: text, json or yaml")
	cmd.Flags().StringVar(&opts.xlsxPath, "xlsx", "", "Also write the scored rows to this XLSX file")
	cmd.Flags().IntVar(&opts.maxRows, "max-rows", dataset.DefaultMaxRows, "Maximum number of data rows")
	cmd.Flags().Float64Var(&minRisk, "min-risk", 0, "Keep rows with a risk score of at least this value")
	cmd.Flags().Float64Var(&maxRisk, "max-risk", 100, "Keep rows with a risk score of at most this value")

	return cmd
}

func runBatch(ctx context.Context, w io.Writer, opts batchOpts) error {
	if ctx == nil {
		ctx = context.Background()
	}
	format, err := dataset.ParseFormat(opts.path)
	if err != nil {
		return err
	}
	engine, err := scoring.NewEngine()
	if err != nil {
		return err
	}

	f, err := os.Open(opts.path)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	rep, err := dataset.NewAnalyzer(engine, dataset.WithMaxRows(opts.maxRows)).Analyze(ctx, f, format)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", opts.path, err)
	}
	rep = opts.filter.Apply(rep)

	if opts.xlsxPath != "" {
		if err := exportXLSX(opts.xlsxPath, rep); err != nil {
			return err
		}
	}

	return render(w, opts.outputFmt, rep, func(w io.Writer) error {
		return writeReportText(w, rep)
	})
}

func exportXLSX(path string, rep dataset.Report) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close export: %w", cerr)
		}
	}()
	if err := dataset.WriteXLSX(out, rep); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

func writeReportText(w io.Writer, rep dataset.Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Rows scored:   %d\n", rep.Total)
	fmt.Fprintf(&b, "Rows skipped:  %d\n", rep.Skipped)
	fmt.Fprintf(&b, "High risk:     %d\n", rep.HighRisk)
	fmt.Fprintf(&b, "Average score: %d\n", rep.AverageScore)
	if len(rep.TopFactors) > 0 {
		b.WriteString("\nTop factors:\n")
		for _, f := range rep.TopFactors {
			fmt.Fprintf(&b, "  %-28s %.4f\n", f.Name, f.Value)
		}
	}
	if len(rep.Rows) > 0 {
		fmt.Fprintf(&b, "\n%6s  %5s  %-6s  %s\n", "LINE", "SCORE", "BAND", "KEY FACTORS")
		for _, r := range rep.Rows {
			names := make([]string, 0, len(r.KeyFactors))
			for _, kf := range r.KeyFactors {
				names = append(names, kf.Name)
			}
			fmt.Fprintf(&b, "%6d  %5d  %-6s  %s\n", r.Line, r.RiskScore, r.RiskBand, strings.Join(names, ", "))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
