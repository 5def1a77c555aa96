// Package watcher drives incremental indexing from filesystem events:
// debounced fsnotify events accumulate into changed/deleted sets that are
// flushed through partial index runs, one flush at a time.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pampa-ai/pampa/internal/chunk"
	"github.com/pampa-ai/pampa/internal/embed"
	"github.com/pampa-ai/pampa/internal/index"
	"github.com/pampa-ai/pampa/internal/search"
	"github.com/pampa-ai/pampa/internal/store"
)

const (
	// DefaultDebounce is the event coalescing window.
	DefaultDebounce = 500 * time.Millisecond

	// MinDebounce is the smallest accepted window.
	MinDebounce = 50 * time.Millisecond
)

// ignoredDirs are never watched or indexed.
var ignoredDirs = map[string]bool{
	"node_modules": true, ".git": true, ".pampa": true, "dist": true,
	"build": true, "tmp": true, ".tmp": true, "vendor": true,
}

// OnBatch receives the outcome of each flush.
type OnBatch func(changed, deleted []string, res *index.Result, err error)

// Options configures a watcher.
type Options struct {
	RepoPath string

	// Provider names the embedding provider; it is created lazily on the
	// first flush and reused across flushes.
	Provider string

	// ProviderFactory overrides provider construction (tests, daemons
	// sharing a warm provider). Defaults to the embed factory.
	ProviderFactory func() (embed.Provider, error)

	Debounce    time.Duration
	EncryptMode store.EncryptMode
	OnBatch     OnBatch

	// ExtraIgnores are additional directory names to skip.
	ExtraIgnores []string

	// BM25Cache is invalidated by every mutating flush.
	BM25Cache *search.BM25Cache

	Logger *slog.Logger
}

// Watcher owns the fsnotify loop and the pending event sets.
type Watcher struct {
	opts    Options
	logger  *slog.Logger
	fsw     *fsnotify.Watcher
	ignores map[string]bool

	mu             sync.Mutex
	pendingChanged map[string]bool
	pendingDeleted map[string]bool
	timer          *time.Timer
	closed         bool

	// flushMu serializes flush runs; events arriving mid-flush land in
	// the pending sets and are picked up by the next flush.
	flushMu sync.Mutex

	providerOnce sync.Once
	provider     embed.Provider
	providerErr  error

	loopDone chan struct{}
}

// Start creates and starts a watcher over the repository tree.
func Start(opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Debounce < MinDebounce {
		opts.Debounce = MinDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		opts:           opts,
		logger:         opts.Logger,
		fsw:            fsw,
		ignores:        make(map[string]bool, len(ignoredDirs)+len(opts.ExtraIgnores)),
		pendingChanged: make(map[string]bool),
		pendingDeleted: make(map[string]bool),
		loopDone:       make(chan struct{}),
	}
	for dir := range ignoredDirs {
		w.ignores[dir] = true
	}
	for _, dir := range opts.ExtraIgnores {
		w.ignores[dir] = true
	}

	if err := w.watchTree(opts.RepoPath); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

// watchTree registers every non-ignored directory recursively.
func (w *Watcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if w.ignores[d.Name()] && path != root {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) loop() {
	defer close(w.loopDone)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.opts.RepoPath, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	for _, part := range strings.Split(rel, "/") {
		if w.ignores[part] {
			return
		}
	}

	// New directories join the watch set; their contents arrive as
	// subsequent events.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.watchTree(event.Name)
			return
		}
	}

	if chunk.RuleForPath(rel) == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		// A delete then re-add within the window re-indexes; the add
		// wins by clearing the pending delete below.
		w.pendingDeleted[rel] = true
		delete(w.pendingChanged, rel)
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		w.pendingChanged[rel] = true
		delete(w.pendingDeleted, rel)
	default:
		return
	}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, func() { w.Flush() })
}

// Flush drains the pending sets through one partial index run. Flushes
// are serialized; events accumulated during a run wait for the next one.
func (w *Watcher) Flush() {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	changed := setToSlice(w.pendingChanged)
	deleted := setToSlice(w.pendingDeleted)
	w.pendingChanged = make(map[string]bool)
	w.pendingDeleted = make(map[string]bool)
	w.mu.Unlock()

	if len(changed) == 0 && len(deleted) == 0 {
		return
	}

	provider := w.memoizedProvider()
	if provider == nil {
		return
	}

	res, err := index.IndexProject(context.Background(), index.Options{
		RepoPath:     w.opts.RepoPath,
		Provider:     provider,
		ChangedFiles: changed,
		DeletedFiles: deleted,
		EncryptMode:  w.opts.EncryptMode,
		BM25Cache:    w.opts.BM25Cache,
		Logger:       w.logger,
	})
	if err != nil {
		w.logger.Warn("watch_flush_failed", slog.String("error", err.Error()))
	}
	if w.opts.OnBatch != nil {
		w.opts.OnBatch(changed, deleted, res, err)
	}
}

// memoizedProvider creates the embedding provider once per watcher.
// A failure is logged once and disables flushing; the loop keeps running.
func (w *Watcher) memoizedProvider() embed.Provider {
	w.providerOnce.Do(func() {
		factory := w.opts.ProviderFactory
		if factory == nil {
			factory = func() (embed.Provider, error) {
				return embed.NewProvider(w.opts.Provider)
			}
		}
		provider, err := factory()
		if err == nil {
			err = provider.Init(context.Background())
		}
		if err != nil {
			w.providerErr = err
			w.logger.Error("watch_provider_init_failed", slog.String("error", err.Error()))
			return
		}
		w.provider = provider
	})
	return w.provider
}

// Close cancels the debounce timer, runs one final flush, waits for it,
// and shuts the OS watcher down.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.Flush()

	err := w.fsw.Close()
	<-w.loopDone
	return err
}

func setToSlice(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
