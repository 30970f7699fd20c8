// Package arbiter purges known-bad package combinations from a
// requirement pool using the conflict matrix.
package arbiter

import (
	"go.uber.org/zap"

	"takumi/internal/knowledge"
	"takumi/internal/requirement"
)

// Arbitrate evaluates the conflict matrix against the pool's active
// package-name set and removes every requirement whose canonical name
// lands in the accumulated ban set.
//
// Rules are evaluated in matrix order; a rule fires when any of its
// trigger names is active, and firing unions the rule's ban set into
// the session ban set. Removal is by ban-set membership only: being a
// trigger never removes a package. The purge is name-level, not
// version-aware, and the operation is deterministic and idempotent for
// a fixed matrix and input order.
func Arbitrate(reqs []requirement.Requirement, matrix []knowledge.ConflictRule, logger *zap.Logger) []requirement.Requirement {
	if len(matrix) == 0 || len(reqs) == 0 {
		return reqs
	}

	active := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		active[r.Name] = true
	}

	banned := map[string]bool{}
	for _, rule := range matrix {
		fired := false
		for _, trig := range rule.Trigger {
			if active[requirement.CanonicalName(trig)] {
				fired = true
				break
			}
		}
		if !fired {
			continue
		}
		logger.Info("conflict rule fired",
			zap.Strings("trigger", rule.Trigger),
			zap.Strings("ban", rule.Ban),
			zap.String("reason", rule.Description))
		for _, ban := range rule.Ban {
			if name := requirement.CanonicalName(ban); name != "" {
				banned[name] = true
			}
		}
	}

	if len(banned) == 0 {
		return reqs
	}

	purged := make([]requirement.Requirement, 0, len(reqs))
	for _, r := range reqs {
		if banned[r.Name] {
			logger.Info("requirement banned by conflict rule",
				zap.String("requirement", r.Raw))
			continue
		}
		purged = append(purged, r)
	}
	return purged
}
