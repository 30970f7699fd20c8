package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"takumi/internal/catalog"
	"takumi/internal/workflow"
)

var inspectCatalog string

// inspectCmd lists the nodes used by workflow files
var inspectCmd = &cobra.Command{
	Use:   "inspect <workflow>...",
	Short: "List the nodes a workflow file uses",
	Long: `Parses workflow JSON files and lists each node's type, display
title, and widget values. With --catalog, every node type is checked
against the catalog and unknown types are reported as missing, which
usually means an uninstalled custom node.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectCatalog, "catalog", "", "Catalog file for node-type lookups")
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	var service *catalog.Service
	if inspectCatalog != "" {
		loaded, err := catalog.Load(inspectCatalog)
		if err != nil {
			return fmt.Errorf("loading catalog: %w", err)
		}
		service, err = catalog.NewService(loaded)
		if err != nil {
			return err
		}
		logger.Info("catalog loaded",
			zap.String("path", inspectCatalog),
			zap.Int("entries", service.Len()))
	}

	inspector := workflow.NewInspector(service, logger)
	for _, report := range inspector.Inspect(ctx, args...) {
		fmt.Printf("%s\n", report.Path)
		if report.Error != "" {
			fmt.Printf("  error: %s\n", report.Error)
			continue
		}
		for _, node := range report.Nodes {
			fmt.Printf("  #%-4d %-30s %s\n", node.ID, node.Type, node.Title)
			if node.Widgets != "" {
				fmt.Printf("        widgets: %s\n", node.Widgets)
			}
		}
		if len(report.MissingTypes) > 0 {
			fmt.Printf("  missing from catalog: %v\n", report.MissingTypes)
		}
	}
	return nil
}
