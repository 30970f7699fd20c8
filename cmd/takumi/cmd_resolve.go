package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"takumi/internal/session"
)

var (
	resolveRoot   string
	resolveKB     string
	resolveRecipe string
)

// resolveCmd runs one full resolution session
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Scan custom nodes and install their dependencies",
	Long: `Runs one full resolution session against the custom-node root:

  1. Scan every node's requirement declarations into a manifest
  2. Purge packages the conflict matrix bans for the detected set
  3. Install through uv, falling back across configured strategies

On success the installed environment is exported as a recipe. The
session is reported to telemetry and archived locally either way.

Exits 1 when every strategy fails.`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveRoot, "root", "", "Custom-node root directory (default from config)")
	resolveCmd.Flags().StringVar(&resolveKB, "kb", "", "Knowledge base file (default resolved through the meta root)")
	resolveCmd.Flags().StringVar(&resolveRecipe, "recipe", "", "Recipe output path (default from config)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	kb := loadKnowledge(resolveKB)
	ctrl, cleanup := buildController(kb, orDefault(resolveRecipe, cfg.Paths.RecipePath))
	defer cleanup()

	sess := ctrl.Run(ctx, orDefault(resolveRoot, cfg.Paths.NodesRoot))

	fmt.Printf("session %s: %s\n", sess.ID, sess.Status)
	for _, trial := range sess.Trials {
		marker := "FAIL"
		if trial.Success {
			marker = " OK "
		}
		fmt.Printf("  [%s] %-20s %s\n", marker, trial.Strategy, trial.Duration.Round(time.Millisecond))
	}
	if sess.RecipePath != "" {
		fmt.Printf("recipe written to %s\n", sess.RecipePath)
	}

	if sess.Status != session.StatusSuccess {
		_ = logger.Sync()
		os.Exit(sess.ExitCode())
	}
	return nil
}
