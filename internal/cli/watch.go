package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// markupWatcher reports changes to one markup file. It watches the parent
// directory so editors that replace the file on save are still seen.
type markupWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *log.Logger
}

func newMarkupWatcher(path string, logger *log.Logger) (*markupWatcher, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}
	return &markupWatcher{path: abs, watcher: w, logger: logger}, nil
}

// run calls onChange with the file's new content after each write, until
// ctx is done. Read failures are passed to onChange as well.
func (w *markupWatcher) run(ctx context.Context, onChange func(markup string, err error)) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || !fileChanged(event) {
				continue
			}
			w.logger.Debug("markup changed", "file", w.path, "op", event.Op.String())
			data, err := os.ReadFile(w.path)
			onChange(string(data), err)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			onChange("", err)
		}
	}
}

func fileChanged(event fsnotify.Event) bool {
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}
