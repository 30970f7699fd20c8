// Package session orchestrates one end-to-end resolution run: scan,
// arbitrated strategy attempts with fallback, recipe export, telemetry,
// and history.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"takumi/internal/history"
	"takumi/internal/knowledge"
	"takumi/internal/manifest"
	"takumi/internal/strategy"
	"takumi/internal/telemetry"
)

// Status is a session's disposition. Sessions start pending and end
// success or failed; there is no other terminal state.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Session is one resolution run from scan to terminal status.
type Session struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Manifest   *manifest.Manifest
	Trials     []strategy.Trial
	Status     Status

	// RecipePath is set only when the recipe export succeeded.
	RecipePath string
}

// ExitCode maps the terminal status to the process exit convention.
func (s *Session) ExitCode() int {
	if s.Status == StatusSuccess {
		return 0
	}
	return 1
}

// Attempter runs one strategy attempt. Satisfied by
// strategy.Executor.
type Attempter interface {
	Attempt(ctx context.Context, strat strategy.Strategy, m *manifest.Manifest, matrix []knowledge.ConflictRule) strategy.Trial
}

// RecipeExporter persists the installed closure after a success.
type RecipeExporter interface {
	Export(ctx context.Context, sessionID, path string) error
}

// Reporter submits the session record to the telemetry collector.
type Reporter interface {
	Report(ctx context.Context, record telemetry.SessionRecord)
}

// Archiver persists finished sessions locally.
type Archiver interface {
	SaveSession(row history.SessionRow) error
}

// Controller owns the session state machine. The required
// collaborators come in through the constructor; optional sinks
// (recipe, telemetry, history) are injected through setters so a bare
// controller still resolves.
type Controller struct {
	kb       *knowledge.Base
	scanner  *manifest.Scanner
	attempt  Attempter
	logger   *zap.Logger

	exporter   RecipeExporter
	recipePath string
	reporter   Reporter
	archiver   Archiver
}

// NewController assembles a controller over its required
// collaborators.
func NewController(kb *knowledge.Base, scanner *manifest.Scanner, attempt Attempter, logger *zap.Logger) *Controller {
	return &Controller{kb: kb, scanner: scanner, attempt: attempt, logger: logger}
}

// SetRecipeExporter wires the post-success recipe export.
func (c *Controller) SetRecipeExporter(exporter RecipeExporter, path string) {
	c.exporter = exporter
	c.recipePath = path
}

// SetReporter wires the telemetry sink.
func (c *Controller) SetReporter(reporter Reporter) {
	c.reporter = reporter
}

// SetArchiver wires the local session history sink.
func (c *Controller) SetArchiver(archiver Archiver) {
	c.archiver = archiver
}

// Run drives one session to a terminal status. It never returns an
// error: scan problems yield an empty manifest, strategy failures fall
// through to the next strategy, and the optional sinks are all
// best-effort. The returned session's Status is the sole verdict.
func (c *Controller) Run(ctx context.Context, root string) *Session {
	sess := &Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Status:    StatusPending,
	}
	log := c.logger.With(zap.String("session_id", sess.ID))
	log.Info("session started", zap.String("root", root))

	sess.Manifest = c.scanner.Scan(root)
	log.Info("manifest assembled",
		zap.Int("components", sess.Manifest.Len()),
		zap.Int("requirements", sess.Manifest.TotalRequirements()))

	plan := strategy.Plan(c.kb)
	for i, strat := range plan {
		trial := c.attempt.Attempt(ctx, strat, sess.Manifest, c.kb.ConflictMatrix)
		sess.Trials = append(sess.Trials, trial)
		if trial.Success {
			sess.Status = StatusSuccess
			break
		}
		if i < len(plan)-1 {
			log.Warn("strategy failed, falling back",
				zap.String("strategy", strat.Name),
				zap.String("next", plan[i+1].Name))
		}
	}
	if sess.Status != StatusSuccess {
		sess.Status = StatusFailed
	}
	sess.FinishedAt = time.Now().UTC()

	// Export only what actually installed. A failed export does not
	// demote the session: the environment is good even if the artifact
	// write was not.
	if sess.Status == StatusSuccess && c.exporter != nil {
		if err := c.exporter.Export(ctx, sess.ID, c.recipePath); err != nil {
			log.Warn("recipe export failed", zap.Error(err))
		} else {
			sess.RecipePath = c.recipePath
		}
	}

	// Telemetry goes out for every session, success or not.
	if c.reporter != nil {
		c.reporter.Report(ctx, Record(sess))
	}

	if c.archiver != nil {
		if err := c.archiver.SaveSession(historyRow(sess)); err != nil {
			log.Warn("session not archived", zap.Error(err))
		}
	}

	log.Info("session finished",
		zap.String("status", string(sess.Status)),
		zap.Int("trials", len(sess.Trials)),
		zap.Duration("elapsed", sess.FinishedAt.Sub(sess.StartedAt)))
	return sess
}

// Record converts a finished session into its telemetry payload.
func Record(sess *Session) telemetry.SessionRecord {
	record := telemetry.SessionRecord{
		SessionID:     sess.ID,
		InputManifest: sess.Manifest.Raw(),
		FinalStatus:   string(sess.Status),
	}
	for _, trial := range sess.Trials {
		record.Trials = append(record.Trials, telemetry.TrialRecord{
			Strategy:   trial.Strategy,
			Success:    trial.Success,
			Duration:   trial.Duration.Seconds(),
			LogSnippet: trial.LogSnippet,
		})
	}
	return record
}

func historyRow(sess *Session) history.SessionRow {
	row := history.SessionRow{
		ID:         sess.ID,
		StartedAt:  sess.StartedAt,
		FinishedAt: sess.FinishedAt,
		Status:     string(sess.Status),
		Manifest:   sess.Manifest.Raw(),
		RecipePath: sess.RecipePath,
	}
	for i, trial := range sess.Trials {
		row.Trials = append(row.Trials, history.TrialRow{
			Seq:        i,
			Strategy:   trial.Strategy,
			Success:    trial.Success,
			Duration:   trial.Duration,
			LogSnippet: trial.LogSnippet,
		})
	}
	return row
}
