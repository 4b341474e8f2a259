// CLAUDE:SUMMARY CLI entry point for clipkeeper — clipboard history daemon with list, restore, delete, sweep, and stats modes.
// Command clipkeeper is the clipboard history daemon.
//
// Usage:
//
//	clipkeeper -config clipkeeper.yaml     # run daemon with config file
//	clipkeeper -dir ~/.clipkeeper          # run daemon with defaults
//	clipkeeper -dir ~/.clipkeeper -list 50         # print history and exit
//	clipkeeper -dir ~/.clipkeeper -restore <id>    # put a record back on the clipboard
//	clipkeeper -dir ~/.clipkeeper -delete <id>     # remove one record
//	clipkeeper -dir ~/.clipkeeper -sweep           # enforce retention and exit
//	clipkeeper -dir ~/.clipkeeper -stats           # show stats and exit
//	clipkeeper -dir ~/.clipkeeper -capture         # save current clipboard once
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/clipkeeper/capture"
	"github.com/hazyhaar/clipkeeper/classify"
	"github.com/hazyhaar/clipkeeper/keeper"
	"github.com/hazyhaar/clipkeeper/store"
)

type options struct {
	configPath string
	baseDir    string
	list       int
	kind       string
	restoreID  string
	deleteID   string
	sweep      bool
	stats      bool
	capture    bool
	wipe       bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to clipkeeper.yaml config file")
	flag.StringVar(&opts.baseDir, "dir", "", "history base directory")
	flag.IntVar(&opts.list, "list", 0, "print the newest N records and exit")
	flag.StringVar(&opts.kind, "kind", "", "filter -list by kind: "+kindNames())
	flag.StringVar(&opts.restoreID, "restore", "", "restore a record to the clipboard and exit")
	flag.StringVar(&opts.deleteID, "delete", "", "delete a record and exit")
	flag.BoolVar(&opts.sweep, "sweep", false, "enforce retention and exit")
	flag.BoolVar(&opts.stats, "stats", false, "show stats and exit")
	flag.BoolVar(&opts.capture, "capture", false, "save the current clipboard content once and exit")
	flag.BoolVar(&opts.wipe, "wipe", false, "delete the entire history and exit")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, opts); err != nil {
		logger.Error("clipkeeper: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, opts options) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}

	// Store-only modes never touch the system clipboard, so they work over
	// SSH and in headless sessions.
	if opts.list > 0 || opts.deleteID != "" || opts.sweep || opts.stats || opts.wipe {
		return runStoreOnly(ctx, logger, cfg, opts)
	}

	src, err := capture.NewSystemSource()
	if err != nil {
		return fmt.Errorf("clipboard init: %w", err)
	}
	defer src.Close()

	k, err := keeper.New(cfg, src, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer k.Close()

	if opts.restoreID != "" {
		rec, err := k.RestoreToClipboard(ctx, opts.restoreID)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		logger.Info("restored", "id", rec.ID, "kind", rec.Kind)
		return nil
	}

	if opts.capture {
		return captureOnce(ctx, k, src)
	}

	// Daemon mode.
	if err := k.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info("clipkeeper: shutting down")
	k.Stop()
	return nil
}

// captureOnce reads the clipboard's best available format, per the
// configured capture priority, and runs it through the pipeline once.
func captureOnce(ctx context.Context, k *keeper.Keeper, src capture.Source) error {
	var payload *capture.Payload
	for _, f := range k.Settings().Priority() {
		p, err := src.Read(f)
		if err != nil {
			return fmt.Errorf("read clipboard: %w", err)
		}
		if p != nil {
			payload = p
			break
		}
	}
	if payload == nil {
		return fmt.Errorf("clipboard is empty")
	}
	ev, err := k.Handle(ctx, payload)
	if err != nil {
		return err
	}
	return printJSON(ev)
}

// runStoreOnly serves the one-shot modes that need the store but not the
// clipboard. The keeper is created without a clipboard source and its
// watcher is never started.
func runStoreOnly(ctx context.Context, logger *slog.Logger, cfg *keeper.Config, opts options) error {
	k, err := keeper.New(cfg, nil, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer k.Close()

	switch {
	case opts.list > 0:
		listOpts := store.ListOptions{Limit: opts.list}
		if opts.kind != "" {
			kind := classify.Kind(opts.kind)
			if !kind.Valid() {
				return fmt.Errorf("unknown kind %q", opts.kind)
			}
			listOpts.Kind = kind
		}
		recs, err := k.List(ctx, listOpts)
		if err != nil {
			return fmt.Errorf("list: %w", err)
		}
		return printJSON(recs)

	case opts.deleteID != "":
		if err := k.Delete(ctx, opts.deleteID); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		logger.Info("deleted", "id", opts.deleteID)
		return nil

	case opts.sweep:
		n, err := k.SweepNow(ctx)
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		logger.Info("sweep complete", "removed", n)
		return nil

	case opts.stats:
		stats, err := k.Stats(ctx)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		return printJSON(stats)

	case opts.wipe:
		if err := k.Wipe(ctx); err != nil {
			return fmt.Errorf("wipe: %w", err)
		}
		logger.Info("history wiped")
		return nil
	}
	return nil
}

func kindNames() string {
	names := make([]string, len(classify.Kinds))
	for i, k := range classify.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func resolveConfig(opts options) (*keeper.Config, error) {
	if opts.configPath != "" {
		cfg, err := keeper.LoadConfigFile(opts.configPath)
		if err != nil {
			return nil, err
		}
		if opts.baseDir != "" {
			cfg.BaseDir = opts.baseDir
		}
		return cfg, nil
	}
	return &keeper.Config{BaseDir: opts.baseDir}, nil
}
