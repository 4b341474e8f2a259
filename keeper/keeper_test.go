package keeper

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/clipkeeper/capture"
	"github.com/hazyhaar/clipkeeper/classify"
	"github.com/hazyhaar/clipkeeper/store"
)

// stubSource satisfies capture.Source for pipeline tests that call Handle
// directly; the watcher never runs against it.
type stubSource struct {
	written []capture.Format
	data    map[capture.Format][]byte
}

func (s *stubSource) Token() (capture.Token, error) { return 0, nil }

func (s *stubSource) Read(capture.Format) (*capture.Payload, error) { return nil, nil }

func (s *stubSource) Formats() []capture.Format { return nil }

func (s *stubSource) Write(f capture.Format, data []byte) error {
	if s.data == nil {
		s.data = map[capture.Format][]byte{}
	}
	s.written = append(s.written, f)
	s.data[f] = data
	return nil
}

func newTestKeeper(t *testing.T) *Keeper {
	t.Helper()
	cfg := &Config{BaseDir: t.TempDir()}
	k, err := New(cfg, &stubSource{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { k.Close() })
	return k
}

func textPayload(s string) *capture.Payload {
	return &capture.Payload{Format: capture.FormatText, Data: []byte(s), Time: time.Now()}
}

func drainEvent(t *testing.T, k *Keeper) Event {
	t.Helper()
	select {
	case ev := <-k.Events():
		return ev
	default:
		t.Fatal("no event emitted")
		return Event{}
	}
}

func TestHandleSavesText(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()

	if _, err := k.Handle(ctx, textPayload("hello clipboard")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	ev := drainEvent(t, k)
	if ev.Outcome != OutcomeSaved {
		t.Fatalf("outcome = %q", ev.Outcome)
	}
	if ev.Record == nil || ev.Record.Kind != classify.KindText {
		t.Fatalf("record = %+v", ev.Record)
	}

	recs, err := k.List(ctx, store.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("stored = %d, want 1", len(recs))
	}
	_, payload, err := k.Restore(ctx, recs[0].ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if string(payload) != "hello clipboard" {
		t.Fatalf("payload = %q", payload)
	}
}

func TestHandleSkipsDuplicate(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()

	if _, err := k.Handle(ctx, textPayload("same content")); err != nil {
		t.Fatalf("first Handle: %v", err)
	}
	drainEvent(t, k)
	if _, err := k.Handle(ctx, textPayload("same content")); err != nil {
		t.Fatalf("second Handle: %v", err)
	}
	ev := drainEvent(t, k)
	if ev.Outcome != OutcomeSkippedDuplicate {
		t.Fatalf("outcome = %q", ev.Outcome)
	}
	recs, _ := k.List(ctx, store.ListOptions{})
	if len(recs) != 1 {
		t.Fatalf("stored = %d, want 1", len(recs))
	}
}

func TestHandleSensitiveVeto(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()

	if _, err := k.Handle(ctx, textPayload("password=Sup3rSecret!")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	ev := drainEvent(t, k)
	if ev.Outcome != OutcomeSkippedSensitive {
		t.Fatalf("outcome = %q", ev.Outcome)
	}
	recs, _ := k.List(ctx, store.ListOptions{})
	if len(recs) != 0 {
		t.Fatal("sensitive content reached the store")
	}
}

func TestHandleSensitiveAllowedWhenDisabled(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()

	s := k.Settings()
	s.SkipSensitive = false
	if err := k.UpdateSettings(s); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	if _, err := k.Handle(ctx, textPayload("password=Sup3rSecret!")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if ev := drainEvent(t, k); ev.Outcome != OutcomeSaved {
		t.Fatalf("outcome = %q", ev.Outcome)
	}
}

func TestHandleMinTextLength(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()

	s := k.Settings()
	s.MinTextLength = 5
	if err := k.UpdateSettings(s); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	if _, err := k.Handle(ctx, textPayload("hi")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if ev := drainEvent(t, k); ev.Outcome != OutcomeSkippedTooShort {
		t.Fatalf("outcome = %q", ev.Outcome)
	}

	if _, err := k.Handle(ctx, textPayload("hello")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if ev := drainEvent(t, k); ev.Outcome != OutcomeSaved {
		t.Fatalf("outcome = %q", ev.Outcome)
	}
}

func TestHandleImageSizeLimit(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()

	s := k.Settings()
	s.MaxImageSize = 10
	if err := k.UpdateSettings(s); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	p := &capture.Payload{Format: capture.FormatImage, Data: buf.Bytes(), Time: time.Now()}
	if _, err := k.Handle(ctx, p); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if ev := drainEvent(t, k); ev.Outcome != OutcomeSkippedTooLarge {
		t.Fatalf("outcome = %q", ev.Outcome)
	}
}

func TestHandleURLKind(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()

	if _, err := k.Handle(ctx, textPayload("https://example.com/page")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	ev := drainEvent(t, k)
	if ev.Outcome != OutcomeSaved || ev.Kind != classify.KindURL {
		t.Fatalf("event = %+v", ev)
	}
}

func TestRestoreToClipboard(t *testing.T) {
	cfg := &Config{BaseDir: t.TempDir()}
	src := &stubSource{}
	k, err := New(cfg, src, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer k.Close()
	ctx := context.Background()

	if _, err := k.Handle(ctx, textPayload("bring me back")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	recs, _ := k.List(ctx, store.ListOptions{})
	if len(recs) != 1 {
		t.Fatalf("stored = %d", len(recs))
	}

	rec, err := k.RestoreToClipboard(ctx, recs[0].ID)
	if err != nil {
		t.Fatalf("RestoreToClipboard: %v", err)
	}
	if rec.ID != recs[0].ID {
		t.Fatalf("restored wrong record: %q", rec.ID)
	}
	if string(src.data[capture.FormatText]) != "bring me back" {
		t.Fatalf("clipboard content = %q", src.data[capture.FormatText])
	}
}

func TestSweepNowUsesSettings(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()

	s := k.Settings()
	s.MaxEntries = 2
	s.RetentionDays = 0
	if err := k.UpdateSettings(s); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	for _, text := range []string{"first entry", "second entry", "third entry", "fourth entry"} {
		if _, err := k.Handle(ctx, textPayload(text)); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}
	n, err := k.SweepNow(ctx)
	if err != nil {
		t.Fatalf("SweepNow: %v", err)
	}
	if n != 2 {
		t.Fatalf("removed = %d, want 2", n)
	}
	recs, _ := k.List(ctx, store.ListOptions{})
	if len(recs) != 2 {
		t.Fatalf("remaining = %d, want 2", len(recs))
	}
}

func TestSettingsPersistAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{BaseDir: dir}
	k, err := New(cfg, &stubSource{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s := k.Settings()
	s.RetentionDays = 7
	s.CapturePriority = []string{"text", "image", "bogus"}
	if err := k.UpdateSettings(s); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	k.Close()

	if _, err := os.Stat(filepath.Join(dir, SettingsFileName)); err != nil {
		t.Fatalf("settings file: %v", err)
	}

	k2, err := New(&Config{BaseDir: dir}, &stubSource{}, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer k2.Close()
	got := k2.Settings()
	if got.RetentionDays != 7 {
		t.Fatalf("retention = %d", got.RetentionDays)
	}
	// Unknown format names are dropped on load.
	if len(got.CapturePriority) != 2 || got.CapturePriority[0] != "text" {
		t.Fatalf("priority = %v", got.CapturePriority)
	}
}

func TestSettingsPriorityOrder(t *testing.T) {
	var s Settings
	got := s.Priority()
	if len(got) != len(capture.DefaultPriority) {
		t.Fatalf("default priority = %v", got)
	}
	for i, f := range capture.DefaultPriority {
		if got[i] != f {
			t.Fatalf("default priority = %v, want %v", got, capture.DefaultPriority)
		}
	}

	s.CapturePriority = []string{"text", "image"}
	want := []capture.Format{capture.FormatText, capture.FormatImage}
	got = s.Priority()
	if len(got) != len(want) {
		t.Fatalf("priority = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("priority = %v, want %v", got, want)
		}
	}
}

func TestStartStopLifecycle(t *testing.T) {
	cfg := &Config{BaseDir: t.TempDir(), PollInterval: 10 * time.Millisecond}
	k, err := New(cfg, &stubSource{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer k.Close()
	ctx := context.Background()

	if err := k.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := k.Start(ctx); err == nil {
		t.Fatal("second Start should error")
	}

	k.Stop()
	k.Stop() // stopping again is a no-op

	// The keeper restarts cleanly after a stop.
	if err := k.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	k.Stop()
}

func TestStats(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()

	if _, err := k.Handle(ctx, textPayload("counted")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	st, err := k.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Store.Total != 1 {
		t.Fatalf("store total = %d", st.Store.Total)
	}
}
