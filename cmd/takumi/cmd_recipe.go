package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"takumi/internal/recipe"
)

// recipeCmd groups recipe tooling subcommands
var recipeCmd = &cobra.Command{
	Use:   "recipe",
	Short: "Work with environment recipes",
}

// recipeMergeCmd resolves a recipe against its base
var recipeMergeCmd = &cobra.Command{
	Use:   "merge <main-recipe>",
	Short: "Merge a recipe with its base recipe",
	Long: `Loads the main recipe and, when it names a base recipe, resolves
that base through the layered meta root (enterprise namespace before
core) and merges the component lists, the main recipe winning on
type:source collisions. The merged recipe is printed to stdout.

A named base recipe that cannot be found is an error.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecipeMerge,
}

// recipeManifestCmd exports a recipe as an asset manifest
var recipeManifestCmd = &cobra.Command{
	Use:   "manifest <recipe> <output>",
	Short: "Export a recipe as an asset-manifest YAML document",
	Args:  cobra.ExactArgs(2),
	RunE:  runRecipeManifest,
}

func init() {
	recipeCmd.AddCommand(recipeMergeCmd)
	recipeCmd.AddCommand(recipeManifestCmd)
}

func runRecipeMerge(cmd *cobra.Command, args []string) error {
	merger := recipe.NewMerger(cfg.Paths.MetaRoot, logger)
	merged, err := merger.Merge(args[0])
	if err != nil {
		return fmt.Errorf("merging recipe: %w", err)
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding recipe: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func runRecipeManifest(cmd *cobra.Command, args []string) error {
	recipePath, output := args[0], args[1]

	rec, err := recipe.Load(recipePath)
	if err != nil {
		return fmt.Errorf("loading recipe: %w", err)
	}
	if err := recipe.ExportManifest(rec, output); err != nil {
		return fmt.Errorf("exporting manifest: %w", err)
	}

	fmt.Printf("manifest written to %s\n", output)
	return nil
}
