package main

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"takumi/internal/config"
)

func TestOrDefault(t *testing.T) {
	if got := orDefault("", "fallback"); got != "fallback" {
		t.Fatalf("expected 'fallback', got %q", got)
	}
	if got := orDefault("value", "fallback"); got != "value" {
		t.Fatalf("expected 'value', got %q", got)
	}
}

func TestCommandTree(t *testing.T) {
	want := map[string]bool{
		"resolve":  false,
		"nodes":    false,
		"snapshot": false,
		"report":   false,
		"catalog":  false,
		"recipe":   false,
		"inspect":  false,
		"history":  false,
		"watch":    false,
		"version":  false,
	}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestLoadKnowledgeExplicitPath(t *testing.T) {
	logger = zap.NewNop()
	cfg = config.DefaultConfig()

	dir := t.TempDir()
	kbPath := filepath.Join(dir, "rules.json")
	data := `{"strategies": {"modern_stack": {"enabled": true}}}`
	if err := os.WriteFile(kbPath, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	kb := loadKnowledge(kbPath)
	if _, ok := kb.Strategies["modern_stack"]; !ok {
		t.Fatalf("expected modern_stack strategy, got %v", kb.Strategies)
	}
}

func TestLoadKnowledgeResolvesMetaRoot(t *testing.T) {
	logger = zap.NewNop()

	dir := t.TempDir()
	core := filepath.Join(dir, "core")
	if err := os.MkdirAll(core, 0o755); err != nil {
		t.Fatal(err)
	}
	data := `{"strategies": {"core_pins": {"enabled": true}}}`
	if err := os.WriteFile(filepath.Join(core, "knowledge.json"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg = config.DefaultConfig()
	cfg.Paths.MetaRoot = dir
	cfg.Paths.KnowledgeFile = ""

	kb := loadKnowledge("")
	if _, ok := kb.Strategies["core_pins"]; !ok {
		t.Fatalf("expected core_pins strategy, got %v", kb.Strategies)
	}
}
