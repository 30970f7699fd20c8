// Package catalog normalizes and merges custom-node catalogs and
// serves cached lookups over the merged result.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Entry is one catalog record. Catalog sources disagree on shape, so
// entries stay schemaless.
type Entry map[string]any

// Catalog maps node identifiers (repository reference URLs) to their
// metadata entries.
type Catalog map[string]Entry

// Normalize converts any supported catalog shape to the ID-keyed form:
// ID-keyed maps pass through, "custom_nodes" wrappers are unwrapped,
// and bare arrays are keyed by each entry's "reference" field, falling
// back to "url". Array entries with neither key are dropped; there is
// nothing to merge them under.
func Normalize(raw any) Catalog {
	switch data := raw.(type) {
	case []any:
		cat := Catalog{}
		for _, item := range data {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			key := stringField(entry, "reference")
			if key == "" {
				key = stringField(entry, "url")
			}
			if key == "" {
				continue
			}
			cat[key] = Entry(entry)
		}
		return cat
	case map[string]any:
		if wrapped, ok := data["custom_nodes"]; ok {
			return Normalize(wrapped)
		}
		cat := make(Catalog, len(data))
		for key, value := range data {
			if entry, ok := value.(map[string]any); ok {
				cat[key] = Entry(entry)
			}
		}
		return cat
	default:
		return Catalog{}
	}
}

func stringField(entry map[string]any, key string) string {
	s, _ := entry[key].(string)
	return s
}

// Load reads one catalog file in any supported shape.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	return Normalize(raw), nil
}

// Write persists the catalog as indented JSON.
func (c Catalog) Write(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling catalog: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating catalog directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing catalog: %w", err)
	}
	return nil
}

// Merger folds catalog files into one ID-keyed catalog.
type Merger struct {
	logger *zap.Logger
}

// NewMerger returns a catalog merger.
func NewMerger(logger *zap.Logger) *Merger {
	return &Merger{logger: logger}
}

// Merge loads each existing input in order and overlays it onto the
// accumulated catalog; later inputs win on key collisions. Missing
// inputs are skipped quietly (partial deployments are normal),
// malformed ones with a warning.
func (m *Merger) Merge(paths ...string) Catalog {
	merged := Catalog{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				m.logger.Debug("catalog input missing, skipping", zap.String("path", path))
			} else {
				m.logger.Warn("catalog input unreadable, skipping",
					zap.String("path", path), zap.Error(err))
			}
			continue
		}
		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			m.logger.Warn("catalog input malformed, skipping",
				zap.String("path", path), zap.Error(err))
			continue
		}
		entries := Normalize(raw)
		for key, entry := range entries {
			merged[key] = entry
		}
		m.logger.Debug("catalog input merged",
			zap.String("path", path),
			zap.Int("entries", len(entries)))
	}
	return merged
}
