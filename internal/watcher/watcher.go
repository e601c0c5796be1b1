// Package watcher delivers pending work items to a handler exactly once
// per process. Items are discovered three ways: an initial scan on start,
// filesystem notifications on the pending directory, and a periodic
// re-scan that catches anything the notifier missed.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pulse/internal/logger"
	"pulse/internal/pending"
)

const (
	// DefaultRescan is the default interval between directory re-scans.
	DefaultRescan = 30 * time.Second

	// maxReadAttempts bounds how many times an unparsable file is retried
	// before it is dropped as garbage.
	maxReadAttempts = 3
)

// Handler processes one work item. A nil return marks the item done and
// removes it from disk; an error leaves it on disk for a later attempt.
type Handler func(ctx context.Context, item *pending.WorkItem) error

type itemState int

const (
	stateProcessing itemState = iota + 1
	stateDone
)

// Config holds the watcher's collaborators and settings.
type Config struct {
	Logger  *logger.Logger
	Store   *pending.Store
	Handler Handler
	Rescan  time.Duration
}

// Watcher owns the per-process delivery state for pending work items.
// An item is claimed before its handler runs, so concurrent discovery of
// the same file results in exactly one handler call.
type Watcher struct {
	mu      sync.Mutex
	logger  *logger.Logger
	store   *pending.Store
	handler Handler

	state    map[string]itemState
	badReads map[string]int

	rescan  time.Duration
	fs      *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New creates a new watcher instance.
func New(cfg Config) *Watcher {
	rescan := cfg.Rescan
	if rescan == 0 {
		rescan = DefaultRescan
	}

	return &Watcher{
		logger:   cfg.Logger,
		store:    cfg.Store,
		handler:  cfg.Handler,
		state:    make(map[string]itemState),
		badReads: make(map[string]int),
		rescan:   rescan,
	}
}

// Start scans the pending directory, arms the filesystem listener and the
// periodic re-scan. Calling Start while started is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}

	if err := os.MkdirAll(w.store.Dir(), 0755); err != nil {
		w.mu.Unlock()
		return err
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := fs.Add(w.store.Dir()); err != nil {
		fs.Close()
		w.mu.Unlock()
		return err
	}

	w.fs = fs
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.started = true
	w.mu.Unlock()

	// Items already on disk at startup are work left over from a previous
	// process; deliver them before anything else.
	w.Scan()

	w.wg.Add(1)
	go w.run()

	w.logger.Info("watcher started",
		logger.Field{Key: "dir", Value: w.store.Dir()},
		logger.Field{Key: "rescan", Value: w.rescan.String()})

	return nil
}

// Stop disarms the listener and waits for in-flight handlers.
// Calling Stop while stopped is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.cancel()
	w.fs.Close()
	w.mu.Unlock()

	w.wg.Wait()

	w.logger.Info("watcher stopped")
}

// IsStarted returns true if the watcher is armed.
func (w *Watcher) IsStarted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

// run consumes filesystem events and re-scan ticks until the context ends.
func (w *Watcher) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.rescan)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			w.Dispatch(event.Name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem listener error",
				logger.Field{Key: "error", Value: err.Error()})

		case <-ticker.C:
			w.Scan()
		}
	}
}

// Scan lists the pending directory and dispatches every live item.
// Exposed so tests and the serve loop can force a delivery pass.
func (w *Watcher) Scan() {
	paths, err := w.store.List()
	if err != nil {
		w.logger.Error("failed to scan pending directory", err)
		return
	}

	live := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		live[filepath.Clean(path)] = struct{}{}
	}
	w.prune(live)

	for _, path := range paths {
		w.Dispatch(path)
	}
}

// Dispatch claims and processes the item at path. Safe to call
// concurrently with the same path: only the caller that wins the claim
// runs the handler.
func (w *Watcher) Dispatch(path string) {
	if !w.claim(path) {
		return
	}

	item, err := w.store.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Removed out from under us, nothing left to deliver.
			w.markDone(path)
			return
		}
		// The writer may still be mid-flight when a notification fires,
		// so a parse failure is retried by a later pass. Only a record
		// that stays unparsable is dropped.
		if !w.badRead(path) {
			w.logger.Warn("failed to read work item, will retry",
				logger.Field{Key: "path", Value: path},
				logger.Field{Key: "error", Value: err.Error()})
			w.release(path)
			return
		}
		w.logger.Error("failed to read work item, dropping", err,
			logger.Field{Key: "path", Value: path})
		w.markDone(path)
		if err := w.store.Delete(path); err != nil && !os.IsNotExist(err) {
			w.logger.Warn("failed to remove malformed work item",
				logger.Field{Key: "path", Value: path},
				logger.Field{Key: "error", Value: err.Error()})
		}
		return
	}

	ctx := w.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	if err := w.handler(ctx, item); err != nil {
		// The claim is released so a later scan retries the item.
		w.logger.Error("work item handler failed", err,
			logger.Field{Key: "task_id", Value: item.TaskID},
			logger.Field{Key: "path", Value: path})
		w.release(path)
		return
	}

	w.markDone(path)
	if err := w.store.Delete(path); err != nil && !os.IsNotExist(err) {
		w.logger.Warn("failed to remove processed work item",
			logger.Field{Key: "path", Value: path},
			logger.Field{Key: "error", Value: err.Error()})
	}

	w.logger.Info("work item processed",
		logger.Field{Key: "task_id", Value: item.TaskID},
		logger.Field{Key: "task_name", Value: item.TaskName})
}

// claim marks path as processing. Returns false when the item is already
// being processed or is done.
func (w *Watcher) claim(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, seen := w.state[filepath.Clean(path)]; seen {
		return false
	}
	w.state[filepath.Clean(path)] = stateProcessing
	return true
}

// release forgets a claimed path so it can be retried.
func (w *Watcher) release(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.state, filepath.Clean(path))
}

// markDone records that path was fully handled in this process.
func (w *Watcher) markDone(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := filepath.Clean(path)
	w.state[key] = stateDone
	delete(w.badReads, key)
}

// badRead bumps the parse-failure count for path and reports whether the
// record should be dropped.
func (w *Watcher) badRead(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := filepath.Clean(path)
	w.badReads[key]++
	return w.badReads[key] >= maxReadAttempts
}

// prune forgets done entries whose files are gone. Filenames embed the
// fire timestamp, so a pruned name can never reappear.
func (w *Watcher) prune(live map[string]struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for key, st := range w.state {
		if st != stateDone {
			continue
		}
		if _, ok := live[key]; !ok {
			delete(w.state, key)
			delete(w.badReads, key)
		}
	}
}
