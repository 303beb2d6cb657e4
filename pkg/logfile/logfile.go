// Package logfile mirrors log events into the savesync log file, which is
// shared with rclone's own log output.
package logfile

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/savesync/pkg/version"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// fileFormatter formats log entries with a full timestamp, since the file
// outlives the process.
var fileFormatter = &logrus.TextFormatter{
	DisableColors:    true,
	FullTimestamp:    true,
	QuoteEmptyFields: true,
}

// NewHook creates a hook that appends log events at `level` or above to the
// file at `path`.
func NewHook(path string, level logrus.Level) logrus.Hook {
	var levels []logrus.Level
	for _, l := range logrus.AllLevels {
		if l <= level {
			levels = append(levels, l)
		}
	}
	return &hook{path: path, levels: levels}
}

type hook struct {
	path   string
	levels []logrus.Level

	// mu serializes writes, so that concurrent events aren't interleaved.
	mu sync.Mutex
}

func (h *hook) Levels() []logrus.Level {
	return h.levels
}

func (h *hook) Fire(entry *logrus.Entry) error {
	dataCopy := logrus.Fields{"version": version.Version}
	for k, v := range entry.Data {
		dataCopy[k] = v
	}

	// Copy the entry so that we don't change it when we add the version.
	entryCopy := *entry
	entryCopy.Data = dataCopy

	line, err := fileFormatter.Format(&entryCopy)
	if err != nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := fs.MkdirAll(filepath.Dir(h.path), 0755); err != nil {
		return nil
	}

	f, err := fs.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil
	}
	defer f.Close()

	// Never return an error because doing so causes the error to be printed
	// directly to `stderr`:
	// https://github.com/Sirupsen/logrus/issues/116
	_, _ = f.Write(line)
	return nil
}
