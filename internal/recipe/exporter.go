package recipe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"takumi/internal/installer"
)

// Freezer lists the installed packages of the live environment.
type Freezer interface {
	Freeze(ctx context.Context) (*installer.Result, error)
}

// Exporter captures the installed closure after a successful session.
type Exporter struct {
	freezer Freezer
	logger  *zap.Logger
}

// NewExporter returns an exporter over the given freezer.
func NewExporter(freezer Freezer, logger *zap.Logger) *Exporter {
	return &Exporter{freezer: freezer, logger: logger}
}

// Export snapshots the live environment into the session's recipe
// artifact. Only exact pins survive; the recipe is what a clean
// machine replays to reproduce the environment.
func (e *Exporter) Export(ctx context.Context, sessionID, path string) error {
	res, err := e.freezer.Freeze(ctx)
	if err != nil {
		return fmt.Errorf("freezing environment: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("freeze exited %d: %s", res.ExitCode, strings.TrimSpace(res.Tail(200)))
	}

	rec := &Recipe{
		AssetID:    SessionAssetID(sessionID),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		Components: ParseFreeze(res.Stdout),
	}
	if err := rec.Write(path); err != nil {
		return err
	}

	e.logger.Info("recipe exported",
		zap.String("path", path),
		zap.String("asset_id", rec.AssetID),
		zap.Int("components", len(rec.Components)))
	return nil
}

// SessionAssetID derives the recipe asset id from a session id.
func SessionAssetID(sessionID string) string {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	return "takumi-session-" + short
}

// ParseFreeze converts freeze output into pinned pip components. Lines
// without an exact "==" pin (editable installs, VCS references, blank
// lines) are skipped: they are not reproducible as written.
func ParseFreeze(output string) []Component {
	var components []Component
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		name, version, ok := strings.Cut(line, "==")
		if !ok || name == "" || strings.HasPrefix(name, "-") {
			continue
		}
		components = append(components, Component{
			Type:    "pip",
			Source:  name,
			Version: "==" + version,
		})
	}
	return components
}
