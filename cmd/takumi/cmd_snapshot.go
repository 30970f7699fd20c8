package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"takumi/internal/recipe"
)

var snapshotOutput string

// snapshotCmd captures the live environment as a curated recipe
var snapshotCmd = &cobra.Command{
	Use:   "snapshot <slug>",
	Short: "Capture the live environment as a use-case recipe",
	Long: `Builds a curated recipe from the running environment: the base
platform checkout, every git-controlled custom node, and the key pip
packages from the freeze listing. The slug names the use case and
becomes part of the recipe's asset ID.

Example:
  takumi snapshot wan21-video-generation`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringVarP(&snapshotOutput, "output", "o", "", "Recipe output path (default <slug>.json)")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	slug := args[0]
	nodesRoot := cfg.Paths.NodesRoot
	comfyRoot := filepath.Dir(nodesRoot)

	snap := recipe.NewSnapshotter(buildRunner(), comfyRoot, nodesRoot, logger)
	rec, err := snap.Snapshot(ctx, slug)
	if err != nil {
		return fmt.Errorf("capturing snapshot: %w", err)
	}

	output := orDefault(snapshotOutput, slug+".json")
	if err := rec.Write(output); err != nil {
		return fmt.Errorf("writing recipe: %w", err)
	}

	fmt.Printf("recipe %s written to %s (%d components)\n", rec.AssetID, output, len(rec.Components))
	return nil
}
