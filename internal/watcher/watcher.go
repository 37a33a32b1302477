// Package watcher feeds the conversion queue from filesystem events. It
// watches the configured roots recursively, waits for new files to stop
// growing, and enqueues candidate paths; hashing and change detection stay
// with the consumer.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/imgbridge/imgbridge/internal/imaging"
	"github.com/imgbridge/imgbridge/internal/utils"
	"github.com/imgbridge/imgbridge/internal/worker"
)

type Watcher struct {
	queue     *worker.Queue
	w         *fsnotify.Watcher
	roots     []string
	stability time.Duration
	rescan    time.Duration
	log       *slog.Logger

	mu     sync.Mutex
	paused bool
}

// New builds a recursive watcher over roots. A rescan of zero disables the
// periodic full walk; events alone drive the queue then.
func New(roots []string, q *worker.Queue, stability, rescan time.Duration, log *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		queue:     q,
		w:         w,
		roots:     roots,
		stability: stability,
		rescan:    rescan,
		log:       log,
	}, nil
}

// Start registers all roots and blocks on the event loop until ctx ends.
func (wr *Watcher) Start(ctx context.Context) error {
	if err := wr.registerAll(); err != nil {
		return err
	}
	var rescan <-chan time.Time
	if wr.rescan > 0 {
		t := time.NewTicker(wr.rescan)
		defer t.Stop()
		rescan = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-wr.w.Events:
			if !ok {
				return nil
			}
			wr.handleEvent(ev)
		case err, ok := <-wr.w.Errors:
			if !ok {
				return nil
			}
			wr.log.Warn("watch error", "error", err)
		case <-rescan:
			wr.ScanAll()
		}
	}
}

func (wr *Watcher) Close() error { return wr.w.Close() }

func (wr *Watcher) Pause()       { wr.mu.Lock(); wr.paused = true; wr.mu.Unlock() }
func (wr *Watcher) Resume()      { wr.mu.Lock(); wr.paused = false; wr.mu.Unlock() }
func (wr *Watcher) Paused() bool { wr.mu.Lock(); defer wr.mu.Unlock(); return wr.paused }

func (wr *Watcher) registerAll() error {
	for _, root := range wr.roots {
		if err := wr.registerTree(root); err != nil {
			return err
		}
	}
	return nil
}

func (wr *Watcher) registerTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && !isFormatDir(path) {
			_ = wr.w.Add(path)
		}
		return nil
	})
}

func (wr *Watcher) handleEvent(ev fsnotify.Event) {
	// New directories join the watch set even while paused, so no subtree
	// is missed once processing resumes.
	if ev.Op&fsnotify.Create != 0 {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if !isFormatDir(ev.Name) {
				_ = wr.registerTree(ev.Name)
			}
			return
		}
	}
	if wr.Paused() {
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if !utils.HasImageExt(ev.Name) || inFormatDir(ev.Name) {
		return
	}
	go func(path string) {
		if err := utils.WaitFileStable(path, wr.stability); err != nil {
			wr.log.Debug("file gone before stable", "path", path)
			return
		}
		wr.enqueue(path)
	}(ev.Name)
}

// ScanAll walks every root and enqueues all candidate files. The consumer's
// hash check skips whatever is already converted, so a full walk is cheap
// to repeat.
func (wr *Watcher) ScanAll() {
	for _, root := range wr.roots {
		filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if isFormatDir(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if utils.HasImageExt(path) {
				wr.enqueue(path)
			}
			return nil
		})
	}
}

func (wr *Watcher) enqueue(path string) {
	if wr.queue.Enqueue(path) {
		wr.log.Debug("queued", "path", path)
	}
}

// isFormatDir reports whether a directory is named after a format
// identifier. Converted files land in such directories, and feeding them
// back into the queue would convert outputs forever.
func isFormatDir(dir string) bool {
	_, ok := imaging.ParseFormat(filepath.Base(dir))
	return ok
}

// inFormatDir is the file-path variant of isFormatDir.
func inFormatDir(path string) bool {
	return isFormatDir(filepath.Dir(path))
}
