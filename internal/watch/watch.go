// Package watch turns a directory into an inbox: audio files that appear in
// it are handed to a handler once they stop changing.
//
// Files are processed one at a time in arrival order. A file is considered
// settled when no write or create event has been seen for it for the settle
// delay. Files already present when watching starts are not processed.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"podscribe/internal/logging"
)

// Handler processes one settled file. Errors are logged and do not stop the
// watcher.
type Handler func(ctx context.Context, path string) error

// Options configures a Watcher.
type Options struct {
	Dir         string
	SettleDelay time.Duration
	// Extensions is the lowercased, dot-prefixed allow list. Empty allows all.
	Extensions []string
}

// Watcher monitors one directory.
type Watcher struct {
	opts    Options
	handler Handler
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]time.Time
	queued  map[string]bool
	queue   chan string
}

// New validates opts and returns a Watcher.
func New(opts Options, handler Handler, logger *slog.Logger) (*Watcher, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, errors.New("watch directory is required")
	}
	if handler == nil {
		return nil, errors.New("watch handler is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	exts := make([]string, 0, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	opts.Extensions = exts
	return &Watcher{
		opts:    opts,
		handler: handler,
		logger:  logging.NewComponentLogger(logger, "watch"),
		pending: make(map[string]time.Time),
		queued:  make(map[string]bool),
		queue:   make(chan string, 64),
	}, nil
}

// Accepts reports whether path has an allowed extension and is not a hidden
// or partial download file.
func (w *Watcher) Accepts(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".part", ".tmp", ".crdownload":
		return false
	}
	if len(w.opts.Extensions) == 0 {
		return ext != ""
	}
	for _, allowed := range w.opts.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Run watches until ctx ends. It returns nil on cancellation once the file in
// progress, if any, has been handled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("add watch path: %w", err)
	}
	w.logger.Info("watching directory",
		logging.String("dir", w.opts.Dir),
		logging.Duration("settle_delay", w.opts.SettleDelay),
		logging.String("extensions", strings.Join(w.opts.Extensions, ",")),
	)

	return w.serve(ctx, fsw.Events, fsw.Errors)
}

// serve feeds events to the worker until ctx ends or a source closes. The
// worker is stopped and waited for on every return path.
func (w *Watcher) serve(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) error {
	workCtx, stopWork := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.work(workCtx)
	}()
	defer func() {
		stopWork()
		wg.Wait()
	}()

	tick := w.opts.SettleDelay / 4
	if tick < 50*time.Millisecond {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watch stopped")
			return nil
		case event, ok := <-events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			w.observe(event)
		case err, ok := <-errs:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			logging.WarnWithContext(w.logger, "watcher error", "watch_error", logging.Error(err))
		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *Watcher) observe(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
			w.mu.Lock()
			delete(w.pending, event.Name)
			w.mu.Unlock()
		}
		return
	}
	if !w.Accepts(event.Name) {
		w.logger.Debug("ignoring file", logging.String("path", event.Name))
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.queued[event.Name] {
		return
	}
	w.pending[event.Name] = time.Now()
}

// flush queues every pending file that has been quiet for the settle delay,
// oldest first.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	w.mu.Lock()
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.opts.SettleDelay {
			ready = append(ready, path)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		return w.pending[ready[i]].Before(w.pending[ready[j]])
	})
	for _, path := range ready {
		delete(w.pending, path)
		w.queued[path] = true
	}
	w.mu.Unlock()

	for _, path := range ready {
		select {
		case w.queue <- path:
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.queue:
			w.logger.Info("processing file", logging.String("path", path))
			if err := w.handler(ctx, path); err != nil {
				logging.ErrorWithContext(w.logger, "watched file failed", "watch_handler_failed",
					logging.String("path", path),
					logging.Error(err),
				)
			}
			w.mu.Lock()
			delete(w.queued, path)
			w.mu.Unlock()
		}
	}
}
