package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"takumi/internal/session"
	"takumi/internal/watch"
)

var (
	watchRoot   string
	watchKB     string
	watchRecipe string
)

// watchCmd re-resolves whenever declaration files change
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-resolve whenever requirement declarations change",
	Long: `Watches the custom-node root for changes to requirement
declarations and runs a full resolution session each time the
changes settle. An initial session runs on startup.

Runs until interrupted; the exit code reflects the last completed
session.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchRoot, "root", "", "Custom-node root directory (default from config)")
	watchCmd.Flags().StringVar(&watchKB, "kb", "", "Knowledge base file (default resolved through the meta root)")
	watchCmd.Flags().StringVar(&watchRecipe, "recipe", "", "Recipe output path (default from config)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	root := orDefault(watchRoot, cfg.Paths.NodesRoot)
	kb := loadKnowledge(watchKB)

	ctrl, cleanup := buildController(kb, orDefault(watchRecipe, cfg.Paths.RecipePath))
	defer cleanup()

	run := func(ctx context.Context) bool {
		sess := ctrl.Run(ctx, root)
		fmt.Printf("session %s: %s\n", sess.ID, sess.Status)
		return sess.Status == session.StatusSuccess
	}

	watcher, err := watch.New(root, kb, run, logger)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}

	fmt.Printf("watching %s, press Ctrl-C to stop\n", root)
	watcher.TriggerNow()

	<-ctx.Done()
	watcher.Stop()

	if !watcher.LastOutcome() {
		_ = logger.Sync()
		os.Exit(1)
	}
	return nil
}
