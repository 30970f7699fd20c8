package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"takumi/internal/diagnostics"
)

var (
	nodesRoot   string
	nodesReport string
)

// nodesCmd installs each node's requirements in isolation
var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "Diagnose each custom node's requirements in isolation",
	Long: `Installs every node's requirements.txt separately, without
strategies or conflict arbitration, to discover which specific node
breaks the environment. Individual failures never abort the run.

Results are written as a JSON report with a summary header.`,
	RunE: runNodes,
}

func init() {
	nodesCmd.Flags().StringVar(&nodesRoot, "root", "", "Custom-node root directory (default from config)")
	nodesCmd.Flags().StringVar(&nodesReport, "report", "", "Report output path (default from config)")
}

func runNodes(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	resolver := diagnostics.NewResolver(buildRunner(), logger)
	reports := resolver.ResolveEach(ctx, orDefault(nodesRoot, cfg.Paths.NodesRoot))

	success := 0
	for _, rep := range reports {
		marker := "FAIL"
		if rep.Status == diagnostics.StatusSuccess {
			marker = " OK "
			success++
		}
		fmt.Printf("  [%s] %s\n", marker, rep.NodeName)
	}
	fmt.Printf("%d/%d nodes resolved\n", success, len(reports))

	reportPath := orDefault(nodesReport, cfg.Paths.ReportPath)
	if err := diagnostics.WriteReport(reports, reportPath); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Printf("report written to %s\n", reportPath)
	return nil
}
