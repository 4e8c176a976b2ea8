package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/medkb/kbgen/internal/config"
	"github.com/medkb/kbgen/internal/report"
)

var reportFailedOnly bool

func init() {
	reportCmd.Flags().BoolVar(&reportFailedOnly, "failed", false, "Show only failed entries")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the run ledger",
	Long:  `Print every entry from the run ledger accumulated across runs.`,
	RunE:  runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return failf(ExitConfigError, "%v", err)
	}

	entries, err := report.ReadLedger(filepath.Join(cfg.OutputDir, "runs.jsonl"))
	if err != nil {
		return failf(ExitDataError, "%v", err)
	}

	if reportFailedOnly {
		var failed []report.Entry
		for _, e := range entries {
			if e.Outcome == report.OutcomeFailed {
				failed = append(failed, e)
			}
		}
		entries = failed
	}

	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
