// Package main implements the takumi CLI: a dependency resolution
// agent for Python custom-node environments. It scans node
// requirement declarations, arbitrates known conflicts, and installs
// through uv with strategy fallback.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"takumi/internal/config"
	"takumi/internal/logging"
)

var version = "2.0.0"

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "takumi",
	Short: "Takumi - dependency resolution agent for custom-node environments",
	Long: `Takumi resolves the Python dependencies of a custom-node tree.

It scans every node's requirement declarations, removes packages the
conflict matrix bans for the detected set, and installs the rest
through uv. When the default installation fails, configured fallback
strategies (pin overrides plus extra constraints) are attempted in
order until one succeeds.

Successful sessions export an environment recipe; every session posts
a compressed telemetry record and is archived in the local history
database.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format, verbose)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// versionCmd prints the build version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the takumi version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("takumi %s\n", version)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	// Add commands to root
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(nodesCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(recipeCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
