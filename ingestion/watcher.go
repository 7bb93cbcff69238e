package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fabfab/psy-assistant/config"
)

// DefaultDebounce is how long a catalogued file must stay quiet before its
// change is reported. Copying a PDF emits a burst of writes.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports creations and writes of catalogued PDFs in one directory,
// once per burst of events on the same path.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	tracked  map[string]struct{}
	logger   *slog.Logger
	debounce time.Duration
}

func NewWatcher(dir string, catalog []config.DocumentEntry, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	tracked := make(map[string]struct{}, len(catalog))
	for _, entry := range catalog {
		tracked[absPath(ResolvePath(dir, entry.Path))] = struct{}{}
	}

	return &Watcher{
		watcher:  w,
		dir:      dir,
		tracked:  tracked,
		logger:   logger,
		debounce: DefaultDebounce,
	}, nil
}

// Watch emits the path of a catalogued file once it has been created or
// written and then left alone for the debounce window. The channel closes
// when ctx is done or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan string, error) {
	if err := w.watcher.Add(w.dir); err != nil {
		return nil, fmt.Errorf("watch %s: %w", w.dir, err)
	}

	events := make(chan string, 16)
	quiet := make(chan string)

	go func() {
		defer close(events)
		pending := make(map[string]*time.Timer)
		defer func() {
			for _, timer := range pending {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				path := absPath(event.Name)
				if _, ok := w.tracked[path]; !ok {
					continue
				}
				if timer, ok := pending[path]; ok {
					timer.Reset(w.debounce)
					continue
				}
				pending[path] = time.AfterFunc(w.debounce, func() {
					select {
					case quiet <- path:
					case <-ctx.Done():
					}
				})
			case path := <-quiet:
				delete(pending, path)
				select {
				case events <- path:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("document watcher error", "error", err)
			}
		}
	}()

	return events, nil
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
