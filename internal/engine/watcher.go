package engine

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wikibridge/feishu-sync/internal/localfs"
)

// Watcher feeds local filesystem changes into the processor. The watch is
// recursive: directories created under the root are added as they appear.
type Watcher struct {
	rootDir   string
	processor *Processor
	logger    Logger
	fsw       *fsnotify.Watcher
}

func NewWatcher(rootDir string, processor *Processor, logger Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		rootDir:   rootDir,
		processor: processor,
		logger:    logger,
		fsw:       fsw,
	}
	if err := w.addRecursively(rootDir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run pumps events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer func() { _ = w.fsw.Close() }()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logf(w.logger, "watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursively(event.Name); err != nil {
				logf(w.logger, "failed to watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}

	name := filepath.Base(event.Name)
	if !localfs.IsSyncedFile(name) {
		return
	}
	rel, err := filepath.Rel(w.rootDir, event.Name)
	if err != nil {
		return
	}
	relSlash := filepath.ToSlash(rel)

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.processor.HandleLocalChange(relSlash, "remove", time.Now())
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		modTime := time.Now()
		if info, err := os.Stat(event.Name); err == nil {
			modTime = info.ModTime()
		}
		w.processor.HandleLocalChange(relSlash, "write", modTime)
	}
}

func (w *Watcher) addRecursively(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		switch d.Name() {
		case ".git", "node_modules":
			if path != dir {
				return filepath.SkipDir
			}
		}
		return w.fsw.Add(path)
	})
}
