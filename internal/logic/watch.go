package logic

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/idelchi/meshmark/internal/config"
	"github.com/idelchi/meshmark/internal/ledger"
	"github.com/idelchi/meshmark/internal/watermark"
)

const watchTick = 100 * time.Millisecond

// dropWatcher marks meshes dropped into watched directories once they have
// stopped changing for the debounce interval.
type dropWatcher struct {
	cfg    *config.Config
	engine *watermark.Engine
	ledger *ledger.Ledger

	mu      sync.Mutex
	pending map[string]time.Time
}

// RunWatch watches the directories in cfg.Files and marks every STL file
// created or rewritten there, until ctx is canceled.
func RunWatch(ctx context.Context, cfg *config.Config) error {
	for _, dir := range cfg.Files {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("stat %q: %w", dir, err)
		}

		if !info.IsDir() {
			return fmt.Errorf("%q is not a directory", dir)
		}
	}

	l, err := openLedger(cfg)
	if err != nil {
		return err
	}

	if l != nil {
		defer l.Close()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	for _, dir := range cfg.Files {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watching %q: %w", dir, err)
		}

		slog.Info("watching", slog.String("dir", dir))
	}

	w := &dropWatcher{
		cfg:     cfg,
		engine:  newEngine(cfg),
		ledger:  l,
		pending: make(map[string]time.Time),
	}

	ticker := time.NewTicker(watchTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.touch(event.Name, time.Now())
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}

			slog.Warn("watch error", slog.Any("error", err))

		case now := <-ticker.C:
			for _, path := range w.ready(now) {
				w.mark(ctx, path)
			}
		}
	}
}

// wants reports whether path is an unmarked mesh.
func (w *dropWatcher) wants(path string) bool {
	base := filepath.Base(path)
	ext := filepath.Ext(base)

	switch {
	case !strings.EqualFold(ext, ".stl"):
		return false
	case strings.HasPrefix(base, "."):
		return false
	case strings.HasSuffix(strings.TrimSuffix(base, ext), w.cfg.Suffix):
		return false
	default:
		return true
	}
}

func (w *dropWatcher) touch(path string, at time.Time) {
	if !w.wants(path) {
		return
	}

	w.mu.Lock()
	w.pending[path] = at
	w.mu.Unlock()
}

// ready returns the paths unchanged for at least the debounce interval and forgets them.
func (w *dropWatcher) ready(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var due []string

	for path, changed := range w.pending {
		if now.Sub(changed) >= w.cfg.Debounce {
			due = append(due, path)
			delete(w.pending, path)
		}
	}

	return due
}

func (w *dropWatcher) mark(ctx context.Context, path string) {
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return
	}

	res := embedOne(ctx, w.cfg, w.engine, w.ledger, path)
	res.input = path

	if res.err != nil {
		fmt.Fprintf(os.Stderr, "Error processing %q: %v\n", path, res.err)

		return
	}

	if !w.cfg.Quiet {
		printResult(res)
	}
}
