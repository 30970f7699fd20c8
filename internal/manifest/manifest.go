// Package manifest aggregates per-component dependency declarations
// into the session manifest.
package manifest

import (
	"takumi/internal/requirement"
)

// Component is one scanned component and its ordered requirement
// sequence.
type Component struct {
	// ID is the component identifier, derived from the directory name.
	ID string `json:"id"`

	// Requirements preserves declaration order: standard file first,
	// then extra files, then knowledge-base injections.
	Requirements []requirement.Requirement `json:"requirements"`
}

// Manifest is the aggregated per-component requirement view for one
// session. Built once by the scanner and not mutated afterwards;
// component order is scan order.
type Manifest struct {
	Components []Component `json:"components"`
}

// Len returns the number of components.
func (m *Manifest) Len() int {
	return len(m.Components)
}

// TotalRequirements counts requirements across all components.
func (m *Manifest) TotalRequirements() int {
	n := 0
	for _, c := range m.Components {
		n += len(c.Requirements)
	}
	return n
}

// Raw returns the manifest as component → raw declaration lines, the
// shape used by telemetry and the history store.
func (m *Manifest) Raw() map[string][]string {
	out := make(map[string][]string, len(m.Components))
	for _, c := range m.Components {
		lines := make([]string, len(c.Requirements))
		for i, r := range c.Requirements {
			lines[i] = r.Raw
		}
		out[c.ID] = lines
	}
	return out
}
