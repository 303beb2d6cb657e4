// Package fswatch notifies when a file is edited, so that savesync can pick
// up configuration changes without restarting.
package fswatch

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/savesync/pkg/errors"
)

var fs = afero.NewOsFs()

// Watcher sends an event on C whenever the watched file changes. Bursts of
// changes are combined into a single event.
type Watcher struct {
	C <-chan struct{}

	watcher *fsnotify.Watcher
}

// WatchFile watches the file at `path`. The file's parent directory is
// watched as well, so that the file being replaced or re-created is noticed.
func WatchFile(path string) (*Watcher, error) {
	pathsToWatch, err := getPathsToWatch(path)
	if err != nil {
		return nil, errors.WithContext(err, "get paths")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithContext(err, "create watcher")
	}

	for _, p := range pathsToWatch {
		if err := watcher.Add(p); err != nil {
			// Close the watcher so that we release the file handlers for the
			// previously added paths.
			if err := watcher.Close(); err != nil {
				log.WithError(err).Warn("Failed to close file watcher")
			}

			return nil, errors.WithContext(err, "watch "+p)
		}
	}

	events := filterEvents(watcher.Events, path)
	go logErrors(watcher.Errors)
	return &Watcher{C: combineUpdates(events), watcher: watcher}, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// filterEvents drops events for other files in the watched directory.
func filterEvents(events <-chan fsnotify.Event, path string) <-chan fsnotify.Event {
	filtered := make(chan fsnotify.Event)
	go func() {
		defer close(filtered)
		for event := range events {
			if filepath.Clean(event.Name) == filepath.Clean(path) {
				filtered <- event
			}
		}
	}()
	return filtered
}

func logErrors(errs <-chan error) {
	for err := range errs {
		log.WithError(err).Debug("File watcher error")
	}
}

func combineUpdates(updates <-chan fsnotify.Event) chan struct{} {
	combined := make(chan struct{}, 1)
	go func() {
		for range updates {
			select {
			case combined <- struct{}{}:
			default:
			}
		}
	}()
	return combined
}

func getPathsToWatch(path string) (paths []string, err error) {
	dir := filepath.Dir(path)
	fi, err := fs.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileNotFound{Path: dir}
		}
		return nil, errors.WithContext(err, "stat")
	}
	if !fi.IsDir() {
		return nil, errors.NewFriendlyError("%s is not a directory", dir)
	}
	paths = append(paths, dir)

	// The file itself may not exist yet, in which case the directory watch
	// is enough to notice its creation.
	if _, err := fs.Stat(path); err == nil {
		paths = append(paths, path)
	} else if !os.IsNotExist(err) {
		return nil, errors.WithContext(err, "stat")
	}
	return paths, nil
}
