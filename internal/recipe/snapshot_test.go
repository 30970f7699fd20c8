package recipe

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"takumi/internal/installer"
)

// fakeProber maps a joined argv to a canned result; unknown commands
// fail like a missing checkout would.
type fakeProber struct {
	freeze  string
	replies map[string]string
}

func (f *fakeProber) Freeze(context.Context) (*installer.Result, error) {
	return &installer.Result{ExitCode: 0, Stdout: f.freeze}, nil
}

func (f *fakeProber) Probe(_ context.Context, binary string, args ...string) (*installer.Result, error) {
	key := binary + " " + strings.Join(args, " ")
	if out, ok := f.replies[key]; ok {
		return &installer.Result{ExitCode: 0, Stdout: out + "\n"}, nil
	}
	return &installer.Result{ExitCode: 128, Stderr: "fatal: not a git repository"}, nil
}

func TestNormalizeGitURL(t *testing.T) {
	assert.Equal(t, "https://github.com/owner/repo",
		normalizeGitURL("https://github.com/owner/repo.git"))
	assert.Equal(t, "https://github.com:owner/repo",
		normalizeGitURL("git@github.com:owner/repo.git"))
	assert.Equal(t, "https://github.com/owner/repo",
		normalizeGitURL("https://github.com/owner/repo"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Face Swap", displayName("face_swap"))
	assert.Equal(t, "Upscale", displayName("upscale"))
}

func TestSnapshot(t *testing.T) {
	comfyRoot := t.TempDir()
	nodesRoot := filepath.Join(comfyRoot, "custom_nodes")
	for _, node := range []string{"ComfyUI-ReActor", "was-node-suite", "no-git-dir"} {
		require.NoError(t, os.MkdirAll(filepath.Join(nodesRoot, node), 0755))
	}
	for _, node := range []string{"ComfyUI-ReActor", "was-node-suite"} {
		require.NoError(t, os.MkdirAll(filepath.Join(nodesRoot, node, ".git"), 0755))
	}

	prober := &fakeProber{
		freeze: "torch==2.1.0\nnumpy==1.26.4\nrandom-helper==0.1\n",
		replies: map[string]string{
			"git -C " + comfyRoot + " remote get-url origin":                                       "https://github.com/comfyanonymous/ComfyUI.git",
			"git -C " + comfyRoot + " rev-parse --abbrev-ref HEAD":                                 "master",
			"git -C " + filepath.Join(nodesRoot, "ComfyUI-ReActor") + " remote get-url origin":     "git@github.com:Gourieff/ComfyUI-ReActor.git",
			"git -C " + filepath.Join(nodesRoot, "ComfyUI-ReActor") + " rev-parse --abbrev-ref HEAD": "main",
			"git -C " + filepath.Join(nodesRoot, "was-node-suite") + " remote get-url origin":      "https://github.com/WASasquatch/was-node-suite-comfyui.git",
			"git -C " + filepath.Join(nodesRoot, "was-node-suite") + " rev-parse --abbrev-ref HEAD": "main",
		},
	}

	s := NewSnapshotter(prober, comfyRoot, nodesRoot, zap.NewNop())
	rec, err := s.Snapshot(context.Background(), "face_swap")
	require.NoError(t, err)

	assert.Equal(t, "takumi-use-case-face_swap", rec.AssetID)
	assert.Equal(t, "Face Swap", rec.DisplayName)
	require.NotNil(t, rec.Environment)
	assert.Equal(t, "conda", rec.Environment.Engine)
	assert.Equal(t, "face_swap_env", rec.Environment.Name)

	require.NotEmpty(t, rec.Components)
	base := rec.Components[0]
	assert.Equal(t, "git-clone", base.Type)
	assert.Equal(t, "https://github.com/comfyanonymous/ComfyUI.git", base.Source)
	assert.Equal(t, "master", base.Version)

	var nodeSources, pipSources []string
	for _, c := range rec.Components[1:] {
		switch c.Type {
		case "custom-node":
			nodeSources = append(nodeSources, c.Source)
		case "pip":
			pipSources = append(pipSources, c.Source)
		}
	}
	assert.ElementsMatch(t, []string{
		"https://github.com:Gourieff/ComfyUI-ReActor.git",
		"https://github.com/WASasquatch/was-node-suite-comfyui.git",
	}, nodeSources, "only directories with a .git checkout are snapshotted")
	assert.ElementsMatch(t, []string{"torch", "numpy"}, pipSources,
		"freeze output is filtered to the curated package set")

	require.Len(t, rec.Contribution, 4)
	assert.Equal(t, "use_case_recipe", rec.Contribution[0]["type"])
	assert.Equal(t, "key_technology", rec.Contribution[1]["type"])
	contributors, ok := rec.Contribution[1]["contributors"].([]map[string]any)
	require.True(t, ok)
	assert.Len(t, contributors, 2)
}

func TestSnapshotWithoutBasePlatform(t *testing.T) {
	dir := t.TempDir()
	s := NewSnapshotter(&fakeProber{replies: map[string]string{}}, dir, dir, zap.NewNop())

	_, err := s.Snapshot(context.Background(), "face_swap")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base platform")
}
