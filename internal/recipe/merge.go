package recipe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LegacyRecipePrefix is the absolute location recipes used to be named
// by. Paths carrying it resolve relative to the meta root now.
const LegacyRecipePrefix = "/app/config/takumi_meta/recipes/"

// namespaces is the meta-root search order: enterprise overlays core.
var namespaces = []string{"enterprise", "core"}

// Merger resolves recipe references through the layered meta root and
// folds base recipes into their descendants.
type Merger struct {
	metaRoot string
	logger   *zap.Logger
}

// NewMerger returns a merger rooted at the layered meta directory.
func NewMerger(metaRoot string, logger *zap.Logger) *Merger {
	return &Merger{metaRoot: metaRoot, logger: logger}
}

// Resolve locates a recipe: the path as given first, then by relative
// name under each namespace's recipes directory. An unresolvable
// reference is a hard error; silently merging against nothing would
// produce a recipe that lies.
func (m *Merger) Resolve(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	rel := strings.TrimPrefix(path, LegacyRecipePrefix)
	rel = strings.TrimPrefix(rel, "/")
	for _, ns := range namespaces {
		candidate := filepath.Join(m.metaRoot, ns, "recipes", rel)
		if _, err := os.Stat(candidate); err == nil {
			m.logger.Debug("recipe resolved",
				zap.String("reference", path),
				zap.String("namespace", ns),
				zap.String("path", candidate))
			return candidate, nil
		}
	}
	return "", fmt.Errorf("recipe not found: %s (searched %s under %s)",
		path, strings.Join(namespaces, ", "), m.metaRoot)
}

// Merge loads the named recipe and, when it declares a base recipe,
// folds the base in: components merge keyed by type:source with the
// main recipe winning in place, and the base environment is inherited
// only when the main recipe has none.
func (m *Merger) Merge(mainPath string) (*Recipe, error) {
	main, err := m.load(mainPath)
	if err != nil {
		return nil, err
	}
	if main.BaseRecipe == "" {
		return main, nil
	}

	base, err := m.load(main.BaseRecipe)
	if err != nil {
		return nil, fmt.Errorf("resolving base recipe: %w", err)
	}

	m.logger.Info("merging base recipe",
		zap.String("main", main.AssetID),
		zap.String("base", base.AssetID))

	main.Components = MergeComponents(base.Components, main.Components)
	if main.Environment == nil {
		main.Environment = base.Environment
	}
	return main, nil
}

func (m *Merger) load(path string) (*Recipe, error) {
	resolved, err := m.Resolve(path)
	if err != nil {
		return nil, err
	}
	return Load(resolved)
}

// MergeComponents merges base and main component lists keyed by
// type:source. Main entries replace base entries in place, so base
// ordering survives for everything the main recipe only overrides.
func MergeComponents(base, main []Component) []Component {
	index := make(map[string]int, len(base)+len(main))
	merged := make([]Component, 0, len(base)+len(main))

	for _, c := range base {
		index[c.Key()] = len(merged)
		merged = append(merged, c)
	}
	for _, c := range main {
		if i, ok := index[c.Key()]; ok {
			merged[i] = c
			continue
		}
		index[c.Key()] = len(merged)
		merged = append(merged, c)
	}
	return merged
}
