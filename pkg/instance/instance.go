// Package instance ensures only one savesync daemon runs at a time, by
// holding a PID file for the lifetime of the daemon.
package instance

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/savesync/pkg/errors"
)

// Mocked out for unit testing.
var (
	pidExists = process.PidExists
	getpid    = os.Getpid
)

// maxAttempts bounds how many times a stale lock is cleared before giving up.
const maxAttempts = 3

// Lock is a held PID file.
type Lock struct {
	fs   afero.Fs
	path string
}

// Acquire creates the PID file at `path`. If another live process holds it,
// ErrAlreadyRunning is returned. PID files left behind by processes that
// have exited are taken over.
func Acquire(fs afero.Fs, path string) (*Lock, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.WithContext(err, "make lock dir")
	}

	for i := 0; i < maxAttempts; i++ {
		err := tryAcquire(fs, path)
		if err == nil {
			return &Lock{fs: fs, path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.WithContext(err, "create lock file")
		}

		pid, err := readPID(fs, path)
		if err == nil {
			alive, err := pidExists(pid)
			if err != nil {
				return nil, errors.WithContext(err, "check lock holder")
			}
			if alive {
				return nil, errors.ErrAlreadyRunning
			}
		}

		log.WithField("pid", pid).Warn("Removing stale lock file")
		if err := fs.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, errors.WithContext(err, "remove stale lock")
		}
	}
	return nil, errors.New("failed to acquire lock after repeated attempts")
}

func tryAcquire(fs afero.Fs, path string) error {
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	_, writeErr := f.Write([]byte(strconv.Itoa(getpid())))
	closeErr := f.Close()
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

func readPID(fs afero.Fs, path string) (int32, error) {
	contents, err := afero.ReadFile(fs, path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.ParseInt(strings.TrimSpace(string(contents)), 10, 32)
	if err != nil {
		return 0, errors.WithContext(err, "parse pid")
	}
	return int32(pid), nil
}

// Release removes the PID file.
func (l *Lock) Release() {
	if err := l.fs.Remove(l.path); err != nil && !os.IsNotExist(err) {
		log.WithError(err).WithField("path", l.path).Warn("Failed to remove lock file")
	}
}
