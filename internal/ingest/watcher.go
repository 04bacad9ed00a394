package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig configures the inbox watcher.
type WatchConfig struct {
	Dir         string        // inbox directory, created if missing
	InitialScan bool          // emit PDFs already present at start
	Debounce    time.Duration // a file is emitted once it has been quiet this long
}

// Watch emits the paths of PDFs that land in the inbox. A path is emitted after no
// create/write/rename events for it have arrived for the debounce period, so a copy in
// progress is not picked up half written. The channel closes when ctx is done.
func Watch(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		return nil, errors.New("inbox directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("ingest.watcher.create_failed", "error", err)
		return nil, err
	}
	if err := w.Add(cfg.Dir); err != nil {
		_ = w.Close()
		logger.Error("ingest.watcher.add_failed", "dir", cfg.Dir, "error", err)
		return nil, err
	}

	var initial []string
	if cfg.InitialScan {
		entries, err := os.ReadDir(cfg.Dir)
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && IsPDF(e.Name()) {
				initial = append(initial, filepath.Join(cfg.Dir, e.Name()))
			}
		}
	}

	out := make(chan string, 64)
	go func() {
		defer close(out)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("ingest.watcher.close_failed", "error", err)
			}
		}()

		emit := func(path string) bool {
			select {
			case out <- path:
				logger.Info("ingest.file.ready", "path", path)
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range initial {
			if !emit(p) {
				return
			}
		}

		tick := cfg.Debounce / 2
		if tick <= 0 {
			tick = 50 * time.Millisecond
		}
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		pending := map[string]time.Time{}
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if !IsPDF(e.Name) || !e.Op.Has(fsnotify.Create) && !e.Op.Has(fsnotify.Write) && !e.Op.Has(fsnotify.Rename) {
					continue
				}
				if e.Op.Has(fsnotify.Rename) {
					// renamed away; a rename into the inbox arrives as Create
					delete(pending, e.Name)
					continue
				}
				pending[e.Name] = time.Now()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watcher.error", "error", err)
			case now := <-ticker.C:
				for path, last := range pending {
					if now.Sub(last) < cfg.Debounce {
						continue
					}
					delete(pending, path)
					if info, err := os.Stat(path); err != nil || info.IsDir() {
						continue
					}
					if !emit(path) {
						return
					}
				}
			}
		}
	}()

	logger.Info("ingest.watcher.start", "dir", cfg.Dir, "debounce", cfg.Debounce.String())
	return out, nil
}

// IsPDF reports whether the name has a .pdf extension.
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
