// Package watch re-runs dependency resolution when component
// declaration files change on disk.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"takumi/internal/knowledge"
	"takumi/internal/manifest"
)

// Session runs one resolution pass and reports whether it succeeded.
type Session func(ctx context.Context) bool

// Watcher debounces declaration-file events and triggers serialized
// resolution runs. Editors and git checkouts produce bursts of writes;
// a run starts only after a path has been quiet for the debounce
// window, and changes arriving mid-run coalesce into at most one
// follow-up.
type Watcher struct {
	watcher *fsnotify.Watcher
	root    string
	names   map[string]bool
	run     Session
	logger  *zap.Logger

	debounce  time.Duration
	sweepTick time.Duration

	mu          sync.Mutex
	pending     map[string]time.Time
	running     bool
	lastSuccess bool

	trigger chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New builds a watcher over the component root. The watched filenames
// are the standard declaration file plus every extra file the
// knowledge base names.
func New(root string, kb *knowledge.Base, run Session, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	names := map[string]bool{manifest.StandardDeclarationFile: true}
	for _, rule := range kb.NodeRules {
		for _, name := range rule.ExtraFiles {
			names[name] = true
		}
	}

	return &Watcher{
		watcher:     fsw,
		root:        root,
		names:       names,
		run:         run,
		logger:      logger,
		debounce:    500 * time.Millisecond,
		sweepTick:   100 * time.Millisecond,
		pending:     map[string]time.Time{},
		lastSuccess: true,
		trigger:     make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start registers the root and its immediate subdirectories and begins
// watching. Non-blocking; component directories created later are
// picked up from their create events.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.root); err != nil {
		return fmt.Errorf("watching %s: %w", w.root, err)
	}
	entries, err := os.ReadDir(w.root)
	if err == nil {
		for _, entry := range entries {
			if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			dir := filepath.Join(w.root, entry.Name())
			if err := w.watcher.Add(dir); err != nil {
				w.logger.Warn("component directory not watchable",
					zap.String("dir", dir), zap.Error(err))
			}
		}
	}

	w.logger.Info("watching for declaration changes",
		zap.String("root", w.root),
		zap.Int("filenames", len(w.names)))

	go func() {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			w.eventLoop(ctx)
		}()
		go func() {
			defer wg.Done()
			w.runLoop(ctx)
		}()
		wg.Wait()
		close(w.doneCh)
	}()
	return nil
}

// eventLoop collects events into the pending map and sweeps it on a
// short ticker, signaling a run once everything has settled.
func (w *Watcher) eventLoop(ctx context.Context) {
	ticker := time.NewTicker(w.sweepTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// New component directories need their own watch; fsnotify is not
	// recursive.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if filepath.Dir(event.Name) == filepath.Clean(w.root) {
				if err := w.watcher.Add(event.Name); err == nil {
					w.logger.Debug("watching new component directory",
						zap.String("dir", event.Name))
				}
			}
			return
		}
	}

	if !w.names[filepath.Base(event.Name)] {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
	w.logger.Debug("declaration change observed",
		zap.String("path", event.Name),
		zap.String("op", event.Op.String()))
}

// sweep drops settled entries from the pending map and signals a run
// when at least one settled.
func (w *Watcher) sweep() {
	now := time.Now()
	settled := false

	w.mu.Lock()
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			delete(w.pending, path)
			settled = true
		}
	}
	w.mu.Unlock()

	if settled {
		w.TriggerNow()
	}
}

// TriggerNow enqueues a resolution run outside the debounce window. If
// a run is already queued the request coalesces into it.
func (w *Watcher) TriggerNow() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// runLoop serializes session runs. Changes observed while a session is
// in flight queue exactly one follow-up through the trigger channel's
// single slot.
func (w *Watcher) runLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-w.trigger:
			w.logger.Info("declaration changes settled, resolving")
			ok := w.run(ctx)
			w.mu.Lock()
			w.lastSuccess = ok
			w.mu.Unlock()
		}
	}
}

// LastOutcome reports whether the most recent completed session
// succeeded. True until a session has run.
func (w *Watcher) LastOutcome() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSuccess
}

// Stop shuts the watcher down and waits for its goroutines to exit.
// Safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
	w.logger.Info("watch stopped")
}
