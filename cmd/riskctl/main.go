// Package main provides the riskctl CLI: offline scoring, dataset analysis
// and model inspection without a running server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "riskctl",
		Short: "Offline diabetes-risk scoring",
		Long: `riskctl scores health profiles and datasets with the same engine the
diarisk service uses. Nothing is stored and no report is generated.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newScoreCmd(),
		newBatchCmd(),
		newModelCmd(),
	)
	return rootCmd
}
