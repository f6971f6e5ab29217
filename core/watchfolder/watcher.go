// Package watchfolder submits media files that appear in an input directory.
package watchfolder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mxfedl/logger"
	"mxfedl/model"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Submitter accepts a file for processing.
type Submitter interface {
	Submit(ctx context.Context, fileName, locator string) (*model.MediaFile, error)
}

// Options configure a Watcher.
type Options struct {
	Dir        string
	Extensions []string // lower case, with leading dot
	// Settle is how long a file must go without write events before it is submitted.
	Settle time.Duration
	// Interval is how often pending files are checked.
	Interval time.Duration
}

// Watcher submits every matching file in Dir once, including files already
// present when Run starts.
type Watcher struct {
	opts      Options
	submitter Submitter
	log       *zap.Logger

	// 已提交的文件，只在 Run 的协程中访问
	submitted map[string]struct{}
}

// New creates a Watcher.
func New(opts Options, submitter Submitter, log *zap.Logger) *Watcher {
	if opts.Settle <= 0 {
		opts.Settle = 2 * time.Second
	}
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".mxf"}
	}
	return &Watcher{
		opts:      opts,
		submitter: submitter,
		log:       logger.OrNop(log),
		submitted: make(map[string]struct{}),
	}
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.opts.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create watch folder %s: %w", w.opts.Dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.opts.Dir, err)
	}
	w.log.Info("watch folder started", logger.String("dir", w.opts.Dir), logger.Strings("extensions", w.opts.Extensions))

	// 等待稳定的文件 -> 最后一次写入事件时间
	pending := make(map[string]time.Time)

	entries, err := os.ReadDir(w.opts.Dir)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", w.opts.Dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() && w.matches(e.Name()) {
			pending[filepath.Join(w.opts.Dir, e.Name())] = time.Now()
		}
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("watch folder stopped", logger.String("dir", w.opts.Dir))
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && w.matches(event.Name) {
				pending[event.Name] = time.Now()
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				delete(pending, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("file watcher error", logger.ErrorField(err))

		case <-ticker.C:
			now := time.Now()
			for path, last := range pending {
				if now.Sub(last) < w.opts.Settle {
					continue // 可能还在写入
				}
				delete(pending, path)
				w.submit(ctx, path)
			}
		}
	}
}

func (w *Watcher) matches(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range w.opts.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

func (w *Watcher) submit(ctx context.Context, path string) {
	if _, done := w.submitted[path]; done {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return
	}

	media, err := w.submitter.Submit(ctx, filepath.Base(path), path)
	if err != nil {
		w.log.Error("failed to submit watched file", logger.String("path", path), logger.ErrorField(err))
		return
	}
	w.submitted[path] = struct{}{}
	w.log.Info("watched file submitted", logger.String("path", path), logger.Uint("mediaId", media.ID))
}
