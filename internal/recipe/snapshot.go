package recipe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"takumi/internal/installer"
)

// TargetPipPackages are the pip names a curated snapshot keeps from
// the freeze listing. Everything else is transitive noise for a
// use-case recipe.
var TargetPipPackages = []string{
	"torch", "torchvision", "torchaudio", "xformers",
	"diffusers", "transformers", "accelerate",
	"insightface", "onnxruntime-gpu",
	"numpy", "opencv-python", "pillow", "rembg",
	"matplotlib", "scikit-image", "scipy",
	"tqdm", "einops", "safetensors",
}

// Prober runs the git and freeze probes snapshots are assembled from.
type Prober interface {
	Freezer
	Probe(ctx context.Context, binary string, args ...string) (*installer.Result, error)
}

// Snapshotter builds curated use-case recipes from the live
// environment: base platform, installed custom nodes, and the key pip
// packages.
type Snapshotter struct {
	prober    Prober
	comfyRoot string
	nodesRoot string
	logger    *zap.Logger
}

// NewSnapshotter returns a snapshotter over the platform root and its
// custom-node directory.
func NewSnapshotter(prober Prober, comfyRoot, nodesRoot string, logger *zap.Logger) *Snapshotter {
	return &Snapshotter{prober: prober, comfyRoot: comfyRoot, nodesRoot: nodesRoot, logger: logger}
}

// Snapshot assembles the curated recipe for a use-case slug. The base
// platform must be probeable; individual node or pip probes failing
// just thins the snapshot.
func (s *Snapshotter) Snapshot(ctx context.Context, slug string) (*Recipe, error) {
	baseURL, baseBranch, err := s.gitInfo(ctx, s.comfyRoot)
	if err != nil {
		return nil, fmt.Errorf("probing base platform: %w", err)
	}
	base := Component{
		Type:    "git-clone",
		Source:  baseURL + ".git",
		Version: baseBranch,
		Path:    s.comfyRoot,
	}

	nodes := s.scanNodes(ctx)
	pips := s.targetPips(ctx)

	components := make([]Component, 0, 1+len(nodes)+len(pips))
	components = append(components, base)
	components = append(components, nodes...)
	components = append(components, pips...)

	rec := &Recipe{
		AssetID:      "takumi-use-case-" + slug,
		AssetVersion: "1.0.0",
		DisplayName:  displayName(slug),
		Description:  fmt.Sprintf("Snapshot generated on %s", time.Now().UTC().Format("2006-01-02")),
		Contribution: contribution(nodes),
		Environment:  defaultEnvironment(slug),
		Components:   components,
	}

	s.logger.Info("snapshot assembled",
		zap.String("asset_id", rec.AssetID),
		zap.Int("nodes", len(nodes)),
		zap.Int("pip_packages", len(pips)))
	return rec, nil
}

// gitInfo probes a checkout for its origin URL and current branch.
func (s *Snapshotter) gitInfo(ctx context.Context, path string) (string, string, error) {
	urlRes, err := s.prober.Probe(ctx, "git", "-C", path, "remote", "get-url", "origin")
	if err != nil {
		return "", "", err
	}
	if urlRes.ExitCode != 0 {
		return "", "", fmt.Errorf("no git origin at %s", path)
	}
	url := normalizeGitURL(strings.TrimSpace(urlRes.Stdout))

	branchRes, err := s.prober.Probe(ctx, "git", "-C", path, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", "", err
	}
	if branchRes.ExitCode != 0 {
		return "", "", fmt.Errorf("no git branch at %s", path)
	}
	return url, strings.TrimSpace(branchRes.Stdout), nil
}

// normalizeGitURL rewrites ssh-style remotes to https and strips the
// ".git" suffix so the URL doubles as a stable component id.
func normalizeGitURL(url string) string {
	if i := strings.LastIndex(url, "@"); i >= 0 {
		url = "https://" + url[i+1:]
	}
	return strings.TrimSuffix(url, ".git")
}

// scanNodes probes every git checkout under the custom-node root.
// Directories without a usable origin are skipped.
func (s *Snapshotter) scanNodes(ctx context.Context) []Component {
	entries, err := os.ReadDir(s.nodesRoot)
	if err != nil {
		s.logger.Warn("custom-node root unreadable", zap.String("root", s.nodesRoot), zap.Error(err))
		return nil
	}

	var nodes []Component
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(s.nodesRoot, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
			continue
		}
		url, branch, err := s.gitInfo(ctx, dir)
		if err != nil {
			s.logger.Debug("node git probe failed, skipping",
				zap.String("node", entry.Name()),
				zap.Error(err))
			continue
		}
		nodes = append(nodes, Component{
			Type:    "custom-node",
			Source:  url + ".git",
			Version: branch,
			ID:      url,
		})
	}
	return nodes
}

// targetPips filters the freeze listing down to the curated package
// set.
func (s *Snapshotter) targetPips(ctx context.Context) []Component {
	res, err := s.prober.Freeze(ctx)
	if err != nil || res.ExitCode != 0 {
		s.logger.Warn("freeze probe failed, snapshot carries no pip components", zap.Error(err))
		return nil
	}

	targets := make(map[string]bool, len(TargetPipPackages))
	for _, name := range TargetPipPackages {
		targets[strings.ToLower(name)] = true
	}

	var pips []Component
	for _, comp := range ParseFreeze(res.Stdout) {
		if targets[strings.ToLower(comp.Source)] {
			pips = append(pips, comp)
		}
	}
	return pips
}

// contribution builds the revenue-share block: fixed platform and
// use-case shares, the key-technology share split across the
// snapshot's nodes.
func contribution(nodes []Component) []map[string]any {
	keyTechnology := make([]map[string]any, 0, len(nodes))
	for _, node := range nodes {
		keyTechnology = append(keyTechnology, map[string]any{"component_id": node.ID})
	}
	essential := []map[string]any{
		{"component_id": "https://github.com/comfyanonymous/ComfyUI", "role": "core_platform"},
		{"component_id": "https://github.com/ltdrdata/ComfyUI-Manager"},
	}
	return []map[string]any{
		{
			"type": "use_case_recipe", "total_share": 30, "distribution_rule": "equal",
			"contributors": []map[string]any{{"id": "did:takumi:user_placeholder"}},
		},
		{
			"type": "key_technology", "total_share": 50, "distribution_rule": "equal",
			"contributors": keyTechnology,
		},
		{
			"type": "essential_utility", "total_share": 10, "distribution_rule": "equal",
			"contributors": essential,
		},
		{
			"type": "platform", "total_share": 10, "distribution_rule": "equal",
			"contributors": []map[string]any{{"id": "did:takumi:treasury"}},
		},
	}
}

// defaultEnvironment is the conda baseline every snapshot targets.
func defaultEnvironment(slug string) *Environment {
	return &Environment{
		Name:   slug + "_env",
		Engine: "conda",
		Components: []Component{
			{Type: "python", Source: "python", Version: "3.10"},
			{Type: "pip", Source: "pip"},
			{Type: "conda", Source: "pytorch-cuda", Version: "12.1", Channel: "pytorch"},
			{Type: "conda", Source: "ffmpeg", Version: ">=6.0", Channel: "conda-forge"},
		},
	}
}

// displayName turns a slug into a human title: "face_swap" becomes
// "Face Swap".
func displayName(slug string) string {
	words := strings.Split(strings.ReplaceAll(slug, "_", " "), " ")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
