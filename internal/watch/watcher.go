// Package watch runs the pipeline for workbooks dropped into an inbox
// directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"xlsconv/internal/logging"
	"xlsconv/internal/order"
	"xlsconv/internal/pipeline"
	"xlsconv/internal/sheet"
)

// Runner runs the pipeline for one request.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Runs          int
	Failures      int
	Skipped       int
	LastEventTime time.Time
	LastEventPath string
	LastError     string
}

// Watcher watches an inbox directory and runs the pipeline for every new
// or rewritten workbook once it has been quiet for the debounce window.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	runner      Runner
	inbox       string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	tick        time.Duration
	onResult    func(path string, res *pipeline.Result, err error)
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats Stats
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long a file must be quiet before it is processed.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounceDur = d
		}
	}
}

// WithResultHandler is called after every run, from the watcher goroutine.
func WithResultHandler(fn func(path string, res *pipeline.Result, err error)) Option {
	return func(w *Watcher) { w.onResult = fn }
}

// New creates a watcher for inbox. The directory is created if missing.
func New(inbox string, runner Runner, opts ...Option) (*Watcher, error) {
	if err := os.MkdirAll(inbox, 0755); err != nil {
		return nil, fmt.Errorf("create inbox: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:     fw,
		runner:      runner,
		inbox:       inbox,
		debounceMap: make(map[string]time.Time),
		debounceDur: 2 * time.Second,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.tick = w.debounceDur / 4
	if w.tick > 100*time.Millisecond {
		w.tick = 100 * time.Millisecond
	}
	return w, nil
}

// Start begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.inbox); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return fmt.Errorf("watch %s: %w", w.inbox, err)
	}
	logging.Watch("Watching inbox %s (debounce %s)", w.inbox, w.debounceDur)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the current run to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		logging.WatchError("Error closing watcher: %v", err)
	}
	logging.Watch("Watcher stopped")
}

// Done is closed when the event loop exits.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Watch("Context cancelled")
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
			logging.WatchError("Watcher error: %v", err)
			w.mu.Lock()
			w.stats.LastError = err.Error()
			w.mu.Unlock()

		case <-ticker.C:
			w.processDebounced(ctx)
		}
	}
}

// Candidate reports whether name is an input workbook the watcher should
// pick up.
func Candidate(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".") {
		return false
	}
	return sheet.IsWorkbook(base) && !pipeline.IsOutput(base)
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !Candidate(event.Name) {
		return
	}
	logging.WatchDebug("%s %s", event.Op, event.Name)

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounced(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, t := range w.debounceMap {
		if now.Sub(t) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		if ctx.Err() != nil {
			return
		}
		w.process(ctx, path)
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		logging.WatchDebug("%s disappeared before processing", path)
		return
	}

	n, ok := order.LeadingNumber(path)
	if !ok {
		logging.WatchWarn("Skipping %s: file name does not start with an order number", filepath.Base(path))
		w.mu.Lock()
		w.stats.Skipped++
		w.mu.Unlock()
		return
	}

	logging.Watch("Processing %s as order %d", filepath.Base(path), n)
	res, err := w.runner.Run(ctx, pipeline.Request{Input: path, OrderNumber: strconv.Itoa(n)})

	w.mu.Lock()
	w.stats.Runs++
	if err != nil {
		w.stats.Failures++
		w.stats.LastError = err.Error()
	}
	w.mu.Unlock()

	if err != nil {
		logging.WatchError("Run for %s failed: %v", filepath.Base(path), err)
	} else {
		logging.Watch("Run for %s done: %d files in %s", filepath.Base(path), len(res.Files), res.ResultDir)
	}
	if w.onResult != nil {
		w.onResult(path, res, err)
	}
}
