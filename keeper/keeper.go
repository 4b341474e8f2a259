// CLAUDE:SUMMARY Main clipkeeper orchestrator — wires clipboard watcher, classifier, store, and retention sweeper, and exposes the history API.
// Package keeper is the clipboard history engine.
//
// It sits between the clipboard capture layer and frontends (CLI, trays,
// pickers). The pipeline:
//
//	capture → classify → filter → dedup → store → list/restore
//
// Key features:
//   - Change detection: token polling, no busy re-reads of unchanged content
//   - Content deduplication: SHA-256 fingerprint per (kind, content)
//   - Sensitive-content veto: credentials, card numbers, SSNs never saved
//   - Retention: age and count rules enforced by a background sweeper
//   - Runtime settings: settings.json reloaded and rewritten atomically
//
// Usage:
//
//	k, err := keeper.New(cfg, src, logger)
//	defer k.Close()
//	k.Start(ctx)
//	recs, _ := k.List(ctx, store.ListOptions{Limit: 50})
package keeper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hazyhaar/clipkeeper/capture"
	"github.com/hazyhaar/clipkeeper/classify"
	"github.com/hazyhaar/clipkeeper/store"
)

// Outcome says what the pipeline did with one clipboard change.
type Outcome string

const (
	OutcomeSaved              Outcome = "saved"
	OutcomeSkippedDuplicate   Outcome = "skipped_duplicate"
	OutcomeSkippedSensitive   Outcome = "skipped_sensitive"
	OutcomeSkippedTooLarge    Outcome = "skipped_too_large"
	OutcomeSkippedTooShort    Outcome = "skipped_too_short"
	OutcomeSkippedUnsupported Outcome = "skipped_unsupported"
)

// Event reports one pipeline decision. Record is set only for OutcomeSaved.
type Event struct {
	Outcome Outcome       `json:"outcome"`
	Kind    classify.Kind `json:"kind,omitempty"`
	Preview string        `json:"preview,omitempty"`
	Record  *store.Record `json:"record,omitempty"`
	Notify  bool          `json:"notify"`
	Time    time.Time     `json:"time"`
}

// Writer restores a payload back onto the clipboard. SystemSource implements
// it; headless test sources need not.
type Writer interface {
	Write(f capture.Format, data []byte) error
}

// Keeper is the clipboard history engine.
type Keeper struct {
	cfg     *Config
	store   *store.Store
	source  capture.Source
	watcher *capture.Watcher
	logger  *slog.Logger
	events  chan Event

	// mu guards settings and the lifecycle fields below.
	mu        sync.RWMutex
	settings  Settings
	sweepStop chan struct{}
	sweepDone chan struct{}
	started   bool
}

// New creates a Keeper rooted at cfg.BaseDir. Loads settings.json (or
// defaults), opens the store, and wires the clipboard watcher; nothing runs
// until Start.
func New(cfg *Config, source capture.Source, logger *slog.Logger) (*Keeper, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	settings, err := LoadSettings(cfg.BaseDir)
	if err != nil {
		return nil, err
	}

	storeOpts := []store.Option{store.WithLogger(logger)}
	if !settings.OrganizeByDate {
		storeOpts = append(storeOpts, store.WithoutDateFolders())
	}
	st, err := store.Open(cfg.BaseDir, storeOpts...)
	if err != nil {
		return nil, err
	}

	k := &Keeper{
		cfg:      cfg,
		store:    st,
		source:   source,
		logger:   logger,
		events:   make(chan Event, cfg.EventBuffer),
		settings: settings,
	}
	k.watcher = capture.NewWatcher(source, func(ctx context.Context, p *capture.Payload) error {
		_, err := k.Handle(ctx, p)
		return err
	}, capture.Options{
		Interval: cfg.PollInterval,
		Priority: k.capturePriority,
		Logger:   logger,
	})
	return k, nil
}

func (k *Keeper) capturePriority() []capture.Format {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.settings.Priority()
}

// Start launches the clipboard watcher and the retention sweeper. The first
// sweep runs immediately so a long-stopped daemon catches up on restart.
// Safe for concurrent use with Stop.
func (k *Keeper) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.started {
		return errors.New("keeper: already started")
	}
	if err := k.watcher.Start(ctx); err != nil {
		return err
	}
	k.sweepStop = make(chan struct{})
	k.sweepDone = make(chan struct{})
	go k.sweeper(ctx, k.sweepStop, k.sweepDone)
	k.started = true
	k.logger.Info("clipkeeper: started", "base_dir", k.cfg.BaseDir, "poll", k.cfg.PollInterval)
	return nil
}

// Stop halts the watcher and the sweeper, waiting for both to finish.
// Stopping a stopped keeper is a no-op.
func (k *Keeper) Stop() {
	k.mu.Lock()
	if !k.started {
		k.mu.Unlock()
		return
	}
	k.started = false
	stop, done := k.sweepStop, k.sweepDone
	k.mu.Unlock()

	// The join happens outside the lock: the sweeper takes a read lock
	// for its settings snapshot on every pass.
	k.watcher.Stop()
	close(stop)
	<-done
}

// Close stops background work and closes the store.
func (k *Keeper) Close() error {
	k.Stop()
	return k.store.Close()
}

// Store returns the underlying store for direct access (testing, admin).
func (k *Keeper) Store() *store.Store {
	return k.store
}

// Events returns the pipeline decision stream. The channel is buffered;
// events are dropped, not blocked on, when no one is reading.
func (k *Keeper) Events() <-chan Event {
	return k.events
}

func (k *Keeper) emit(ev Event) {
	select {
	case k.events <- ev:
	default:
	}
}

// Handle runs one captured payload through the pipeline: classify, filter,
// fingerprint, dedup, persist. Filter rejections are outcomes, not errors;
// the returned error is reserved for storage failures. The decision event is
// returned and also published on Events.
func (k *Keeper) Handle(ctx context.Context, p *capture.Payload) (Event, error) {
	k.mu.RLock()
	settings := k.settings
	k.mu.RUnlock()

	now := p.Time
	if now.IsZero() {
		now = time.Now()
	}
	decide := func(ev Event) (Event, error) {
		ev.Time = now
		k.emit(ev)
		return ev, nil
	}

	res, err := classify.Classify(p)
	if err != nil {
		k.logger.Debug("unclassifiable capture", "format", p.Format, "error", err)
		return decide(Event{Outcome: OutcomeSkippedUnsupported})
	}

	// The length floor covers urls too: a url is text that happened to
	// parse, and it is length-checked before its classification matters.
	if res.Kind.TextLike() && utf8.RuneCount(res.Normalized) < settings.MinTextLength {
		return decide(Event{Outcome: OutcomeSkippedTooShort, Kind: res.Kind})
	}
	if res.Kind == classify.KindImage && int64(len(res.Normalized)) > settings.MaxImageSize {
		k.logger.Debug("image over size limit", "size", len(res.Normalized), "limit", settings.MaxImageSize)
		return decide(Event{Outcome: OutcomeSkippedTooLarge, Kind: res.Kind})
	}
	if settings.SkipSensitive && res.Kind.TextLike() && classify.Sensitive(string(res.Normalized)) {
		// Never log the content itself.
		k.logger.Info("sensitive capture skipped", "kind", res.Kind)
		return decide(Event{Outcome: OutcomeSkippedSensitive, Kind: res.Kind})
	}

	sum := sha256.Sum256(res.Normalized)
	fingerprint := hex.EncodeToString(sum[:])

	exists, err := k.store.Exists(ctx, res.Kind, fingerprint)
	if err != nil {
		return Event{}, fmt.Errorf("keeper: dedup check: %w", err)
	}
	if exists {
		return decide(Event{Outcome: OutcomeSkippedDuplicate, Kind: res.Kind, Preview: res.Preview})
	}

	rec := &store.Record{
		Kind:        res.Kind,
		Fingerprint: fingerprint,
		Preview:     res.Preview,
		CreatedAt:   now,
	}
	err = k.store.Insert(ctx, rec, res.Normalized)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		// Raced with another insert of the same content.
		return decide(Event{Outcome: OutcomeSkippedDuplicate, Kind: res.Kind, Preview: res.Preview})
	case err != nil:
		return Event{}, err
	}

	k.logger.Info("saved", "kind", rec.Kind, "id", rec.ID, "bytes", rec.SizeBytes)
	return decide(Event{
		Outcome: OutcomeSaved,
		Kind:    rec.Kind,
		Preview: rec.Preview,
		Record:  rec,
		Notify:  settings.ShowNotifications,
	})
}

// List returns stored records newest first.
func (k *Keeper) List(ctx context.Context, opts store.ListOptions) ([]*store.Record, error) {
	return k.store.List(ctx, opts)
}

// Restore returns a record and its payload.
func (k *Keeper) Restore(ctx context.Context, id string) (*store.Record, []byte, error) {
	return k.store.Restore(ctx, id)
}

// RestoreToClipboard puts a stored record's payload back on the clipboard.
// File lists cannot be restored this way.
func (k *Keeper) RestoreToClipboard(ctx context.Context, id string) (*store.Record, error) {
	w, ok := k.source.(Writer)
	if !ok {
		return nil, errors.New("keeper: clipboard source does not support writing")
	}
	rec, payload, err := k.store.Restore(ctx, id)
	if err != nil {
		return nil, err
	}
	var f capture.Format
	switch rec.Kind {
	case classify.KindText, classify.KindURL:
		f = capture.FormatText
	case classify.KindRichText:
		f = capture.FormatRichText
	case classify.KindImage:
		f = capture.FormatImage
	default:
		return nil, fmt.Errorf("keeper: cannot restore kind %q to clipboard", rec.Kind)
	}
	if err := w.Write(f, payload); err != nil {
		return nil, fmt.Errorf("keeper: clipboard write: %w", err)
	}
	return rec, nil
}

// Delete removes one record. Unknown ids are a no-op.
func (k *Keeper) Delete(ctx context.Context, id string) error {
	return k.store.Delete(ctx, id)
}

// Wipe clears the whole history.
func (k *Keeper) Wipe(ctx context.Context) error {
	return k.store.Wipe(ctx)
}

// SweepNow enforces retention immediately with the current settings.
func (k *Keeper) SweepNow(ctx context.Context) (int, error) {
	k.mu.RLock()
	days, count := k.settings.RetentionDays, k.settings.MaxEntries
	k.mu.RUnlock()
	return k.store.Sweep(ctx, time.Duration(days)*24*time.Hour, count)
}

// Settings returns a copy of the current runtime settings.
func (k *Keeper) Settings() Settings {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.settings
}

// UpdateSettings replaces the runtime settings, persists them to
// settings.json, and applies them to the running pipeline.
func (k *Keeper) UpdateSettings(s Settings) error {
	s.normalize()
	if err := SaveSettings(k.cfg.BaseDir, s); err != nil {
		return err
	}
	k.mu.Lock()
	k.settings = s
	k.mu.Unlock()
	k.store.SetOrganizeByDate(s.OrganizeByDate)
	k.logger.Info("settings updated")
	return nil
}

// Stats combines watcher counters with store contents.
type Stats struct {
	Watcher capture.Stats `json:"watcher"`
	Store   *store.Stats  `json:"store"`
}

// Stats reports watcher activity and store usage.
func (k *Keeper) Stats(ctx context.Context) (*Stats, error) {
	st, err := k.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Watcher: k.watcher.Stats(), Store: st}, nil
}

func (k *Keeper) sweeper(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	sweep := func() {
		n, err := k.SweepNow(ctx)
		if err != nil {
			k.logger.Error("retention sweep failed", "error", err)
			return
		}
		if n > 0 {
			k.logger.Info("retention enforced", "removed", n)
		}
	}

	sweep()
	t := time.NewTicker(k.cfg.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			sweep()
		}
	}
}
