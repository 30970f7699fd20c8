// Package diagnostics holds the operator-facing troubleshooting modes:
// per-node installation reports and install-failure uploads.
package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"go.uber.org/zap"

	"takumi/internal/installer"
	"takumi/internal/manifest"
)

// Per-node outcome statuses. "error" means the installer itself could
// not run, as opposed to a resolution that ran and failed.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusError   = "error"
)

// errorLogBytes caps the stderr excerpt per node report.
const errorLogBytes = 1000

// NodeReport records one per-node install outcome.
type NodeReport struct {
	NodeName  string `json:"node_name"`
	FilePath  string `json:"file_path"`
	Status    string `json:"status"`
	ErrorLog  string `json:"error_log"`
	Timestamp string `json:"timestamp"`
}

// ReportMeta summarizes a per-node resolution run.
type ReportMeta struct {
	Tool         string `json:"tool"`
	GeneratedAt  string `json:"generated_at"`
	Platform     string `json:"platform"`
	TotalTargets int    `json:"total_targets"`
	SuccessCount int    `json:"success_count"`
	FailCount    int    `json:"fail_count"`
}

// ResolverReport is the persisted artifact of a per-node run.
type ResolverReport struct {
	Meta    ReportMeta   `json:"meta"`
	Details []NodeReport `json:"details"`
}

// NodeInstaller installs a single requirement file.
type NodeInstaller interface {
	Install(ctx context.Context, requirementFile string) (*installer.Result, error)
}

// Resolver is the per-node diagnostic mode: install every node's
// declarations separately to find which one breaks the environment.
// No strategies, no conflict arbitration; the point is isolation.
type Resolver struct {
	installer NodeInstaller
	logger    *zap.Logger
}

// NewResolver returns a per-node resolver.
func NewResolver(inst NodeInstaller, logger *zap.Logger) *Resolver {
	return &Resolver{installer: inst, logger: logger}
}

// ResolveEach installs every declaration file under root on its own.
// Individual failures never abort the run; the report is only useful
// if it covers every node.
func (r *Resolver) ResolveEach(ctx context.Context, root string) []NodeReport {
	files := r.findDeclarationFiles(root)
	r.logger.Info("per-node resolution started",
		zap.String("root", root),
		zap.Int("targets", len(files)))

	reports := make([]NodeReport, 0, len(files))
	for _, file := range files {
		report := NodeReport{
			NodeName:  filepath.Base(filepath.Dir(file)),
			FilePath:  file,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		res, err := r.installer.Install(ctx, file)
		switch {
		case err != nil:
			report.Status = StatusError
			report.ErrorLog = err.Error()
			r.logger.Error("installer could not run for node",
				zap.String("node", report.NodeName),
				zap.Error(err))
		case res.ExitCode == 0:
			report.Status = StatusSuccess
			r.logger.Info("node resolved", zap.String("node", report.NodeName))
		default:
			report.Status = StatusFailed
			report.ErrorLog = stderrTail(res)
			r.logger.Warn("node failed to resolve",
				zap.String("node", report.NodeName),
				zap.Int("exit_code", res.ExitCode))
		}
		reports = append(reports, report)
	}
	return reports
}

// findDeclarationFiles walks root recursively for standard declaration
// files, sorted for a stable report order.
func (r *Resolver) findDeclarationFiles(root string) []string {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			r.logger.Warn("walk error, skipping subtree", zap.String("path", path), zap.Error(err))
			return fs.SkipDir
		}
		if !d.IsDir() && d.Name() == manifest.StandardDeclarationFile {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("component root not walkable", zap.String("root", root), zap.Error(err))
	}
	sort.Strings(files)
	return files
}

// stderrTail keeps the last chunk of stderr, where pip resolution
// errors land.
func stderrTail(res *installer.Result) string {
	if res.Stderr == "" {
		return "Unknown Error"
	}
	if len(res.Stderr) <= errorLogBytes {
		return res.Stderr
	}
	return res.Stderr[len(res.Stderr)-errorLogBytes:]
}

// WriteReport persists the run with its summary header.
func WriteReport(reports []NodeReport, path string) error {
	success, fail := 0, 0
	for _, rep := range reports {
		if rep.Status == StatusSuccess {
			success++
		} else {
			fail++
		}
	}

	doc := ResolverReport{
		Meta: ReportMeta{
			Tool:         "Takumi Resolver v2.0",
			GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
			Platform:     runtime.GOOS + "/" + runtime.GOARCH,
			TotalTargets: len(reports),
			SuccessCount: success,
			FailCount:    fail,
		},
		Details: reports,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
