// Package knowledge loads the operator-authored rule base: per-node
// scanning rules, installation strategies, and the conflict matrix.
//
// The knowledge base is read once at session start and passed by
// reference into the scanner and the session; it is never mutated.
// Loading never fails: an absent or malformed file yields an empty
// base with a logged warning, so the agent can still attempt the
// default strategy.
package knowledge

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
	"go.uber.org/zap"
)

// DefaultFileName is the knowledge base filename looked up under the
// meta root namespaces.
const DefaultFileName = "knowledge.json"

// NodeRule customizes how one component is scanned.
type NodeRule struct {
	// ExtraFiles are additional declaration filenames to read beside
	// the standard requirements.txt, relative to the component dir.
	ExtraFiles []string `json:"extra_files"`

	// Inject are raw requirement lines appended to the component's
	// sequence regardless of what its files declare.
	Inject []string `json:"inject"`
}

// StrategyConfig configures one named fallback installation strategy.
type StrategyConfig struct {
	// Enabled gates the strategy; disabled strategies are never attempted.
	Enabled bool `json:"enabled"`

	// OverridePackages removes matching requirements from the
	// manifest-derived pool before constraints are appended.
	OverridePackages []string `json:"override_packages"`

	// ModernConstraints are raw requirement lines appended last,
	// unconditionally, to the strategy's installer input.
	ModernConstraints []string `json:"modern_constraints"`
}

// ConflictRule bans a set of packages when any trigger package is
// present in the active set. Bans accumulate across fired rules and
// are never partially retracted.
type ConflictRule struct {
	Trigger     []string `json:"trigger"`
	Ban         []string `json:"ban"`
	Description string   `json:"description"`
}

// Base is the loaded knowledge base.
type Base struct {
	NodeRules      map[string]NodeRule       `json:"node_specific_rules"`
	Strategies     map[string]StrategyConfig `json:"strategies"`
	ConflictMatrix []ConflictRule            `json:"conflict_matrix"`
}

// Empty returns a base with all collections empty.
func Empty() *Base {
	return &Base{
		NodeRules:  map[string]NodeRule{},
		Strategies: map[string]StrategyConfig{},
	}
}

// Load reads the knowledge base file at path. The format is JSON;
// comments and trailing commas are tolerated since these files are
// hand-maintained. Absent or malformed files are a warning, not an
// error.
func Load(path string, logger *zap.Logger) *Base {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("knowledge base unavailable, continuing with empty rules",
			zap.String("path", path),
			zap.Error(err))
		return Empty()
	}

	base := Empty()
	if err := json.Unmarshal(jsonc.ToJSON(data), base); err != nil {
		logger.Warn("knowledge base malformed, continuing with empty rules",
			zap.String("path", path),
			zap.Error(err))
		return Empty()
	}
	if base.NodeRules == nil {
		base.NodeRules = map[string]NodeRule{}
	}
	if base.Strategies == nil {
		base.Strategies = map[string]StrategyConfig{}
	}

	logger.Info("knowledge base loaded",
		zap.String("path", path),
		zap.Int("node_rules", len(base.NodeRules)),
		zap.Int("strategies", len(base.Strategies)),
		zap.Int("conflict_rules", len(base.ConflictMatrix)))
	return base
}

// ResolvePath locates name under the layered meta root: the enterprise
// namespace wins over core. The core path is returned even when the
// file does not exist; Load degrades gracefully on missing files.
func ResolvePath(metaRoot, name string) string {
	ent := filepath.Join(metaRoot, "enterprise", name)
	if _, err := os.Stat(ent); err == nil {
		return ent
	}
	return filepath.Join(metaRoot, "core", name)
}
