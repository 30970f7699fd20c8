// Package recipe produces and manipulates the reproducibility
// artifacts of the agent: session exports, curated environment
// snapshots, layered merges, and provisioning-manifest conversion.
package recipe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Component is one provisioned unit in a recipe: a pip package, a
// git-cloned repository, or a custom node.
type Component struct {
	Type    string `json:"type" yaml:"type"`
	Source  string `json:"source" yaml:"source"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	Channel string `json:"channel,omitempty" yaml:"channel,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
	ID      string `json:"id,omitempty" yaml:"id,omitempty"`
}

// Key identifies a component for merge purposes: two components with
// the same type and source are the same thing at different versions.
func (c Component) Key() string {
	source := c.Source
	if source == "" {
		source = "unknown"
	}
	return c.Type + ":" + source
}

// Environment describes the interpreter environment a recipe targets.
type Environment struct {
	Name       string      `json:"name,omitempty" yaml:"name,omitempty"`
	Engine     string      `json:"engine,omitempty" yaml:"engine,omitempty"`
	Components []Component `json:"components,omitempty" yaml:"components,omitempty"`
}

// Recipe is a reproducible environment description. Session exports
// only fill AssetID, CreatedAt, and Components; curated snapshots and
// merged recipes carry the rest.
type Recipe struct {
	AssetID      string           `json:"asset_id" yaml:"asset_id"`
	AssetVersion string           `json:"asset_version,omitempty" yaml:"asset_version,omitempty"`
	DisplayName  string           `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Description  string           `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt    string           `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	BaseRecipe   string           `json:"base_recipe,omitempty" yaml:"base_recipe,omitempty"`
	Contribution []map[string]any `json:"contribution,omitempty" yaml:"contribution,omitempty"`
	Environment  *Environment     `json:"environment,omitempty" yaml:"environment,omitempty"`
	Components   []Component      `json:"components" yaml:"components"`
}

// Load reads a recipe JSON file.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading recipe: %w", err)
	}
	var rec Recipe
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing recipe %s: %w", path, err)
	}
	return &rec, nil
}

// Write persists the recipe as indented JSON, creating parent
// directories as needed.
func (r *Recipe) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling recipe: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating recipe directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing recipe: %w", err)
	}
	return nil
}
