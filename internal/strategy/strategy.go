// Package strategy turns the knowledge base's named resolution
// strategies into ordered installer attempts and records trial
// outcomes.
package strategy

import (
	"sort"
	"time"

	"takumi/internal/knowledge"
	"takumi/internal/requirement"
)

// DefaultName identifies the implicit first strategy of every session.
const DefaultName = "default"

// Strategy is one named installation attempt configuration.
type Strategy struct {
	// Name identifies the strategy in trials, logs, and history.
	Name string

	// Overrides are canonical package names excluded from the
	// manifest-derived pool. A strategy that pins a package supplies
	// its own line through Constraints instead.
	Overrides map[string]bool

	// Constraints are appended verbatim at the end of the installer
	// input, unconditionally, after arbitration.
	Constraints []requirement.Requirement
}

// Default returns the implicit strategy: the manifest pool as-is, no
// overrides, no constraints.
func Default() Strategy {
	return Strategy{Name: DefaultName, Overrides: map[string]bool{}}
}

// FromConfig builds a Strategy from its knowledge-base entry.
// Unparseable constraint lines are dropped the same way manifest
// scanning drops them.
func FromConfig(name string, cfg knowledge.StrategyConfig) Strategy {
	s := Strategy{Name: name, Overrides: requirement.NameSet(cfg.OverridePackages)}
	for _, line := range cfg.ModernConstraints {
		if r, ok := requirement.Parse(line); ok {
			s.Constraints = append(s.Constraints, r)
		}
	}
	return s
}

// Plan returns the session's strategies in attempt order: the implicit
// default first, then every enabled knowledge-base strategy sorted by
// name so runs are reproducible across map iteration orders.
func Plan(kb *knowledge.Base) []Strategy {
	plan := []Strategy{Default()}

	names := make([]string, 0, len(kb.Strategies))
	for name, cfg := range kb.Strategies {
		if cfg.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		plan = append(plan, FromConfig(name, kb.Strategies[name]))
	}
	return plan
}

// Trial is the recorded outcome of one strategy attempt. Trials are
// append-only: a session never edits a recorded trial.
type Trial struct {
	Strategy   string        `json:"strategy"`
	Success    bool          `json:"success"`
	Duration   time.Duration `json:"duration"`
	LogSnippet string        `json:"log_snippet"`
}
