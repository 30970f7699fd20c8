package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"takumi/internal/history"
	"takumi/internal/installer"
	"takumi/internal/knowledge"
	"takumi/internal/manifest"
	"takumi/internal/recipe"
	"takumi/internal/session"
	"takumi/internal/strategy"
	"takumi/internal/telemetry"
)

// signalContext returns a context canceled on SIGINT/SIGTERM so
// in-flight installer subprocesses are killed on shutdown.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// orDefault returns value unless it is empty.
func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// buildRunner assembles the shared subprocess runner from the loaded
// configuration.
func buildRunner() *installer.Runner {
	return installer.NewRunner(installer.Config{
		Binary:              cfg.Installer.Binary,
		Python:              cfg.Installer.Python,
		SystemSite:          cfg.Installer.SystemSite,
		InstallTimeout:      cfg.GetInstallTimeout(),
		ProbeTimeout:        cfg.GetProbeTimeout(),
		MaxOutputBytes:      cfg.Installer.MaxOutputBytes,
		ConcurrentDownloads: cfg.Installer.ConcurrentDownloads,
		LinkMode:            cfg.Installer.LinkMode,
	}, logger)
}

// loadKnowledge loads the knowledge base from the explicit path when
// one is given, otherwise resolves the standard filename through the
// layered meta root.
func loadKnowledge(explicit string) *knowledge.Base {
	path := orDefault(explicit, cfg.Paths.KnowledgeFile)
	if path == "" {
		path = knowledge.ResolvePath(cfg.Paths.MetaRoot, knowledge.DefaultFileName)
	}
	return knowledge.Load(path, logger)
}

// buildTelemetry assembles the session telemetry reporter.
func buildTelemetry() *telemetry.Reporter {
	client := telemetry.NewClient(
		cfg.Telemetry.Endpoint,
		cfg.Telemetry.UserAgent,
		cfg.GetTelemetryTimeout(),
		logger,
	)
	return telemetry.NewReporter(client, cfg.Telemetry.Enabled, logger)
}

// buildController wires a full session controller: scanner, strategy
// executor, recipe exporter, telemetry, and the history archive. The
// returned cleanup closes the history store and must be called after
// the last session.
func buildController(kb *knowledge.Base, recipePath string) (*session.Controller, func()) {
	runner := buildRunner()
	scanner := manifest.NewScanner(kb, logger)
	executor := strategy.NewExecutor(runner, logger)

	ctrl := session.NewController(kb, scanner, executor, logger)
	ctrl.SetRecipeExporter(recipe.NewExporter(runner, logger), recipePath)
	ctrl.SetReporter(buildTelemetry())

	cleanup := func() {}
	store, err := history.Open(cfg.Paths.DatabasePath, logger)
	if err != nil {
		// Sessions run without an archive rather than failing.
		logger.Warn("history store unavailable",
			zap.String("path", cfg.Paths.DatabasePath),
			zap.Error(err))
	} else {
		ctrl.SetArchiver(store)
		cleanup = func() { _ = store.Close() }
	}

	return ctrl, cleanup
}
