// Package watcher hands new video files dropped into a directory to a
// handler once they have finished being written.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var videoExtensions = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".avi":  true,
}

// IsVideo reports whether path has a known video container extension.
func IsVideo(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// Handler processes one settled file. Errors are logged and the file is not
// offered again.
type Handler func(ctx context.Context, path string) error

type Config struct {
	Dir string
	// Settle is how long a file size must stay unchanged before it is handled.
	Settle       time.Duration
	PollInterval time.Duration
}

type pendingFile struct {
	size    int64
	changed time.Time
}

type Watcher struct {
	cfg     Config
	logger  *zap.Logger
	pending map[string]pendingFile
	seen    map[string]bool
	polling bool
}

func New(cfg Config, logger *zap.Logger) *Watcher {
	if cfg.Settle <= 0 {
		cfg.Settle = 500 * time.Millisecond
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Watcher{
		cfg:     cfg,
		logger:  logger,
		pending: make(map[string]pendingFile),
		seen:    make(map[string]bool),
	}
}

// Run blocks until ctx is done. Videos already in the directory are handled
// too. Handlers run on the calling goroutine, one at a time.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	info, err := os.Stat(w.cfg.Dir)
	if err != nil {
		return fmt.Errorf("stat watch dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch dir %s is not a directory", w.cfg.Dir)
	}
	w.scan()

	if w.polling {
		return w.poll(ctx, handle)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("fsnotify not available, falling back to polling", zap.Error(err))
		return w.poll(ctx, handle)
	}
	defer func() {
		if err := fw.Close(); err != nil {
			w.logger.Warn("failed to close watcher", zap.Error(err))
		}
	}()

	if err := fw.Add(w.cfg.Dir); err != nil {
		w.logger.Warn("failed to watch directory, falling back to polling", zap.Error(err))
		return w.poll(ctx, handle)
	}
	w.logger.Info("watching directory", zap.String("dir", w.cfg.Dir), zap.String("mode", "fsnotify"))

	ticker := time.NewTicker(w.tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				w.logger.Warn("fsnotify watcher closed, switching to polling")
				return w.poll(ctx, handle)
			}
			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				w.touch(event.Name, time.Now())
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				delete(w.pending, event.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				w.logger.Warn("fsnotify error channel closed, switching to polling")
				return w.poll(ctx, handle)
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		case now := <-ticker.C:
			w.flush(ctx, now, handle)
		}
	}
}

func (w *Watcher) poll(ctx context.Context, handle Handler) error {
	w.logger.Info("watching directory", zap.String("dir", w.cfg.Dir), zap.String("mode", "polling"),
		zap.Duration("interval", w.cfg.PollInterval))

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			w.scan()
			w.flush(ctx, now, handle)
		}
	}
}

func (w *Watcher) tick() time.Duration {
	d := w.cfg.Settle / 2
	if d < 50*time.Millisecond {
		d = 50 * time.Millisecond
	}
	return d
}

// scan picks up videos that appeared without an event.
func (w *Watcher) scan() {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		w.logger.Warn("failed to read watch dir", zap.Error(err))
		return
	}
	now := time.Now()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.cfg.Dir, e.Name())
		if _, ok := w.pending[path]; ok {
			continue
		}
		w.touch(path, now)
	}
}

func (w *Watcher) touch(path string, now time.Time) {
	if !IsVideo(path) || w.seen[path] {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	w.pending[path] = pendingFile{size: info.Size(), changed: now}
}

// flush hands every settled pending file to handle, in name order.
func (w *Watcher) flush(ctx context.Context, now time.Time, handle Handler) {
	ready := make([]string, 0, len(w.pending))
	for path, p := range w.pending {
		info, err := os.Stat(path)
		if err != nil {
			delete(w.pending, path)
			continue
		}
		if info.Size() != p.size {
			w.pending[path] = pendingFile{size: info.Size(), changed: now}
			continue
		}
		if now.Sub(p.changed) >= w.cfg.Settle {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)

	for _, path := range ready {
		if ctx.Err() != nil {
			return
		}
		delete(w.pending, path)
		w.seen[path] = true
		log := w.logger.With(zap.String("path", path))
		log.Info("new video")
		if err := handle(ctx, path); err != nil {
			log.Error("failed to handle video", zap.Error(err))
		}
	}
}
