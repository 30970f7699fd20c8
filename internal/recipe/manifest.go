package recipe

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// manifestDocument is the provisioning view of a recipe: just what an
// environment builder needs, contribution metadata stripped.
type manifestDocument struct {
	AssetID     string       `yaml:"asset_id"`
	DisplayName string       `yaml:"display_name,omitempty"`
	Environment *Environment `yaml:"environment,omitempty"`
	Components  []Component  `yaml:"components"`
}

const manifestHeader = `# ===================================================
# Asset Manifest (Auto Generated)
# ===================================================

`

// ExportManifest writes the recipe as an asset-manifest YAML document
// for downstream provisioning tools.
func ExportManifest(r *Recipe, path string) error {
	doc := manifestDocument{
		AssetID:     r.AssetID,
		DisplayName: r.DisplayName,
		Environment: r.Environment,
		Components:  r.Components,
	}

	body, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating manifest directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append([]byte(manifestHeader), body...), 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}
