package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Handler consumes one captured payload. It runs on the watcher goroutine:
// a tick does not complete until the handler returns, so the next poll never
// starts while a payload is still being processed.
type Handler func(ctx context.Context, p *Payload) error

// Options tunes the watcher behaviour.
type Options struct {
	// Interval is the polling frequency. Default: 500ms.
	Interval time.Duration
	// Priority returns the format capture order for the current tick.
	// Default: a function returning DefaultPriority. Making this a
	// function lets callers change the order at runtime.
	Priority func() []Format
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = 500 * time.Millisecond
	}
	if o.Priority == nil {
		o.Priority = func() []Format { return DefaultPriority }
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls a clipboard Source for token changes and hands new payloads
// to a handler. Ticks are strictly serial. Safe for concurrent Start/Stop.
type Watcher struct {
	source  Source
	handler Handler
	opts    Options

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool

	last atomic.Uint64 // last observed token

	// Counters for observability (exported via Stats).
	checks   atomic.Int64
	changes  atomic.Int64
	captures atomic.Int64
	errors   atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks   int64 `json:"checks"`
	Changes  int64 `json:"changes"`
	Captures int64 `json:"captures"`
	Errors   int64 `json:"errors"`
}

// NewWatcher creates a Watcher. Call Start to begin polling.
func NewWatcher(source Source, handler Handler, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{source: source, handler: handler, opts: opts}
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Checks:   w.checks.Load(),
		Changes:  w.changes.Load(),
		Captures: w.captures.Load(),
		Errors:   w.errors.Load(),
	}
}

// Running reports whether the poll loop is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Start launches the poll loop on its own goroutine. Returns an error when
// already running. The loop exits when Stop is called or ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("capture: watcher already running")
	}

	// Seed the token so content already on the clipboard at start is not
	// captured as a "change".
	if tok, err := w.source.Token(); err == nil {
		w.last.Store(uint64(tok))
	}

	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.running = true

	go w.loop(ctx, w.stop, w.done)
	w.opts.Logger.Info("capture: watcher started", "interval", w.opts.Interval)
	return nil
}

// Stop requests the loop to exit and blocks until it has. No poll runs after
// Stop returns. The request is cooperative: an in-flight tick (including its
// handler) completes first. Stopping a stopped watcher is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	stop, done := w.stop, w.done
	w.mu.Unlock()

	close(stop)
	<-done

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	w.opts.Logger.Info("capture: watcher stopped")
}

func (w *Watcher) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			// Mark not-running so a later Start succeeds.
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	log := w.opts.Logger
	w.checks.Add(1)

	tok, err := w.source.Token()
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			log.Debug("capture: clipboard busy, skipping tick")
			return
		}
		w.errors.Add(1)
		log.Warn("capture: token read failed", "error", err)
		return
	}
	if uint64(tok) == w.last.Load() {
		return
	}
	w.last.Store(uint64(tok))
	w.changes.Add(1)

	p, err := w.capture()
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			log.Debug("capture: clipboard busy, skipping tick")
			return
		}
		w.errors.Add(1)
		log.Warn("capture: read failed", "error", err)
		return
	}
	if p == nil {
		return // nothing we can read in any supported format
	}

	w.captures.Add(1)
	if err := w.handler(ctx, p); err != nil {
		// A fault on one tick must not stop the loop; the next tick runs.
		w.errors.Add(1)
		log.Error("capture: handler failed", "format", p.Format, "error", err)
	}
}

// capture reads formats in priority order and returns the first available.
func (w *Watcher) capture() (*Payload, error) {
	supported := make(map[Format]bool)
	for _, f := range w.source.Formats() {
		supported[f] = true
	}

	for _, f := range w.opts.Priority() {
		if !supported[f] {
			continue
		}
		p, err := w.source.Read(f)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}
	return nil, nil
}
