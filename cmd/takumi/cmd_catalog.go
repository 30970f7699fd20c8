package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"takumi/internal/catalog"
)

// catalogCmd groups catalog maintenance subcommands
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Maintain the custom-node catalog",
}

// catalogMergeCmd merges catalog files into one
var catalogMergeCmd = &cobra.Command{
	Use:   "merge <output> <input>...",
	Short: "Merge catalog files, later inputs winning",
	Long: `Merges node catalogs into a single ID-keyed file. Inputs may be
ID-keyed maps, bare entry arrays, or documents wrapped under
"custom_nodes"; all are normalized before merging. Later inputs win
on key collisions. Missing or malformed inputs are skipped.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCatalogMerge,
}

func init() {
	catalogCmd.AddCommand(catalogMergeCmd)
}

func runCatalogMerge(cmd *cobra.Command, args []string) error {
	output, inputs := args[0], args[1:]

	merged := catalog.NewMerger(logger).Merge(inputs...)
	if err := merged.Write(output); err != nil {
		return fmt.Errorf("writing catalog: %w", err)
	}

	fmt.Printf("%d entries written to %s\n", len(merged), output)
	return nil
}
