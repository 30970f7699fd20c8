package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"takumi/internal/knowledge"
)

// newTestWatcher builds a watcher with short settle windows so tests
// finish quickly.
func newTestWatcher(t *testing.T, root string, kb *knowledge.Base, outcome *atomic.Bool, count *atomic.Int32) *Watcher {
	t.Helper()
	run := func(context.Context) bool {
		count.Add(1)
		return outcome.Load()
	}
	w, err := New(root, kb, run, zap.NewNop())
	require.NoError(t, err)
	w.debounce = 50 * time.Millisecond
	w.sweepTick = 10 * time.Millisecond
	return w
}

func TestWatcherTriggersOnDeclarationChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	nodeDir := filepath.Join(root, "node_a")
	require.NoError(t, os.MkdirAll(nodeDir, 0755))

	var count atomic.Int32
	var outcome atomic.Bool
	outcome.Store(true)
	w := newTestWatcher(t, root, knowledge.Empty(), &outcome, &count)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(nodeDir, "requirements.txt"), []byte("numpy\n"), 0644))

	require.Eventually(t, func() bool { return count.Load() >= 1 },
		3*time.Second, 10*time.Millisecond, "settled change must trigger a session")
	assert.True(t, w.LastOutcome())
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	nodeDir := filepath.Join(root, "node_a")
	require.NoError(t, os.MkdirAll(nodeDir, 0755))

	var count atomic.Int32
	var outcome atomic.Bool
	w := newTestWatcher(t, root, knowledge.Empty(), &outcome, &count)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(nodeDir, "node.py"), []byte("print()\n"), 0644))

	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, count.Load())
}

func TestWatcherExtraFilesFromKnowledgeBase(t *testing.T) {
	defer goleak.VerifyNone(t)

	kb := knowledge.Empty()
	kb.NodeRules["node_a"] = knowledge.NodeRule{ExtraFiles: []string{"extra_requirements.txt"}}

	root := t.TempDir()
	nodeDir := filepath.Join(root, "node_a")
	require.NoError(t, os.MkdirAll(nodeDir, 0755))

	var count atomic.Int32
	var outcome atomic.Bool
	w := newTestWatcher(t, root, kb, &outcome, &count)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(nodeDir, "extra_requirements.txt"), []byte("scipy\n"), 0644))

	require.Eventually(t, func() bool { return count.Load() >= 1 },
		3*time.Second, 10*time.Millisecond)
}

func TestWatcherPicksUpNewComponentDirectory(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()

	var count atomic.Int32
	var outcome atomic.Bool
	w := newTestWatcher(t, root, knowledge.Empty(), &outcome, &count)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	nodeDir := filepath.Join(root, "node_new")
	require.NoError(t, os.MkdirAll(nodeDir, 0755))

	// Give the create event time to land before writing inside.
	require.Eventually(t, func() bool {
		err := os.WriteFile(filepath.Join(nodeDir, "requirements.txt"), []byte("numpy\n"), 0644)
		return err == nil && count.Load() >= 1
	}, 3*time.Second, 100*time.Millisecond)
}

func TestWatcherTriggerNowAndOutcome(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()

	var count atomic.Int32
	var outcome atomic.Bool // run reports failure
	w := newTestWatcher(t, root, knowledge.Empty(), &outcome, &count)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	assert.True(t, w.LastOutcome(), "optimistic before any session has run")

	w.TriggerNow()
	require.Eventually(t, func() bool { return count.Load() == 1 },
		3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return !w.LastOutcome() },
		time.Second, 10*time.Millisecond)
}

func TestWatcherStopIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	var count atomic.Int32
	var outcome atomic.Bool
	w := newTestWatcher(t, t.TempDir(), knowledge.Empty(), &outcome, &count)

	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}

func TestWatcherStopWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	var count atomic.Int32
	var outcome atomic.Bool
	w := newTestWatcher(t, t.TempDir(), knowledge.Empty(), &outcome, &count)
	w.Stop()
}
