package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"takumi/internal/diagnostics"
)

// reportCmd uploads a failure report to the collector
var reportCmd = &cobra.Command{
	Use:   "report <log-file> [recipe-file]",
	Short: "Upload an installation failure report",
	Long: `Collects system information (OS, Python version, GPU inventory,
installed packages), the tail of the given log file, and optionally
the target recipe, then uploads the bundle to the collector.

Paths in the log are sanitized before upload. Upload failures are
logged but never fatal; diagnostics must not break the host.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	logPath := args[0]
	recipePath := ""
	if len(args) > 1 {
		recipePath = args[1]
	}

	python := orDefault(cfg.Installer.Python, "python3")
	collector := diagnostics.NewCollector(buildRunner(), python, logger)
	report := collector.Collect(ctx, logPath, recipePath)

	reporter := buildTelemetry()
	reporter.ReportFailure(ctx, report)

	fmt.Println("failure report submitted")
	return nil
}
