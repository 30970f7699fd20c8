package strategy

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"takumi/internal/arbiter"
	"takumi/internal/installer"
	"takumi/internal/knowledge"
	"takumi/internal/manifest"
	"takumi/internal/requirement"
)

// LogSnippetBytes caps the log excerpt kept per trial.
const LogSnippetBytes = 1000

// Installer abstracts the subprocess layer the executor installs
// through.
type Installer interface {
	Install(ctx context.Context, requirementFile string) (*installer.Result, error)
}

// Executor attempts strategies against the shared environment.
type Executor struct {
	installer Installer
	logger    *zap.Logger
}

// NewExecutor returns an executor over the given installer.
func NewExecutor(inst Installer, logger *zap.Logger) *Executor {
	return &Executor{installer: inst, logger: logger}
}

// BuildPool concatenates every component's requirements in manifest
// order, dropping the ones named by the strategy's overrides. The pool
// keeps duplicates; resolving conflicting declarations is the
// installer's job.
func BuildPool(strat Strategy, m *manifest.Manifest) []requirement.Requirement {
	var pool []requirement.Requirement
	for _, comp := range m.Components {
		for _, req := range comp.Requirements {
			if strat.Overrides[req.Name] {
				continue
			}
			pool = append(pool, req)
		}
	}
	return pool
}

// Input builds the strategy's final installer input: the override-free
// pool, purged by the conflict matrix, with the strategy's constraints
// appended last so they win resolution.
func (e *Executor) Input(strat Strategy, m *manifest.Manifest, matrix []knowledge.ConflictRule) []requirement.Requirement {
	pool := BuildPool(strat, m)
	purged := arbiter.Arbitrate(pool, matrix, e.logger)
	return append(purged, strat.Constraints...)
}

// Attempt runs one strategy: serialize the final input to a temporary
// requirement file, invoke the installer, classify by exit status.
// There are no retries inside a strategy; retrying is moving on to the
// next one. Infrastructure failures come back as a failed trial
// carrying the error text so the session can keep falling back.
func (e *Executor) Attempt(ctx context.Context, strat Strategy, m *manifest.Manifest, matrix []knowledge.ConflictRule) Trial {
	input := e.Input(strat, m, matrix)
	trial := Trial{Strategy: strat.Name}

	e.logger.Info("attempting strategy",
		zap.String("strategy", strat.Name),
		zap.Int("requirements", len(input)))

	if len(input) == 0 {
		trial.Success = true
		trial.LogSnippet = "no requirements to install"
		e.logger.Info("nothing to install, trial succeeds trivially",
			zap.String("strategy", strat.Name))
		return trial
	}

	file, err := writeRequirementFile(input)
	if err != nil {
		e.logger.Warn("could not stage requirement file",
			zap.String("strategy", strat.Name),
			zap.Error(err))
		trial.LogSnippet = err.Error()
		return trial
	}
	defer os.Remove(file)

	start := time.Now()
	res, err := e.installer.Install(ctx, file)
	if err != nil {
		trial.Duration = time.Since(start)
		trial.LogSnippet = err.Error()
		e.logger.Warn("installer could not run",
			zap.String("strategy", strat.Name),
			zap.Error(err))
		return trial
	}

	trial.Success = res.ExitCode == 0
	trial.Duration = res.Duration
	trial.LogSnippet = res.Tail(LogSnippetBytes)

	if trial.Success {
		e.logger.Info("strategy succeeded",
			zap.String("strategy", strat.Name),
			zap.Duration("duration", trial.Duration))
	} else {
		e.logger.Warn("strategy failed",
			zap.String("strategy", strat.Name),
			zap.Int("exit_code", res.ExitCode),
			zap.Bool("killed", res.Killed),
			zap.String("kill_reason", res.KillReason),
			zap.Duration("duration", trial.Duration))
	}
	return trial
}

// writeRequirementFile stages the input as one raw declaration per
// line. The caller removes the file when the attempt finishes.
func writeRequirementFile(reqs []requirement.Requirement) (string, error) {
	f, err := os.CreateTemp("", "takumi-requirements-*.txt")
	if err != nil {
		return "", fmt.Errorf("staging requirement file: %w", err)
	}

	var b strings.Builder
	for _, r := range reqs {
		b.WriteString(r.Raw)
		b.WriteByte('\n')
	}

	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing requirement file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("closing requirement file: %w", err)
	}
	return f.Name(), nil
}
