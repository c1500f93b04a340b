package library

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teranos/promptforge/errors"
)

// debouncePeriod coalesces the burst of write events editors emit when
// saving a file.
const debouncePeriod = 500 * time.Millisecond

// Watcher re-imports markdown prompt files as they change in a watched
// directory. Only create and write events trigger imports; deletions
// never remove prompts from the library.
type Watcher struct {
	store     *Store
	dir       string
	fsWatcher *fsnotify.Watcher
	logger    *zap.SugaredLogger

	mu      sync.Mutex
	pending map[string]*time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher over dir. Call Start to begin watching.
func NewWatcher(store *Store, dir string, logger *zap.SugaredLogger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating fsnotify watcher")
	}
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, errors.Wrapf(err, "watching prompt directory %s", dir)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		store:     store,
		dir:       dir,
		fsWatcher: fsWatcher,
		logger:    logger,
		pending:   make(map[string]*time.Timer),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start begins watching for prompt file changes.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.watchLoop()
	w.logger.Infow("Prompt library watcher started", "dir", w.dir)
}

// Stop shuts the watcher down and waits for the event loop to exit.
// In-flight imports are cancelled.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.fsWatcher.Close()

	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Info("Prompt library watcher stopped")
	return err
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".md") {
				continue
			}

			w.logger.Debugw("Prompt file changed",
				"file", filepath.Base(event.Name),
				"op", event.Op.String())
			w.scheduleImport(event.Name)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("Prompt watcher error", "error", err)
		}
	}
}

// scheduleImport debounces per file path so a burst of writes to one
// file imports once without delaying imports of other files.
func (w *Watcher) scheduleImport(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}

	w.pending[path] = time.AfterFunc(debouncePeriod, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		w.importNow(path)
	})
}

func (w *Watcher) importNow(path string) {
	if w.ctx.Err() != nil {
		return
	}

	p, err := w.store.ImportFile(w.ctx, path)
	if err != nil {
		w.logger.Warnw("Prompt re-import failed",
			"file", filepath.Base(path),
			"error", err)
		return
	}

	w.logger.Infow("Prompt re-imported",
		"file", filepath.Base(path),
		"id", p.ID,
		"title", p.Title)
}
