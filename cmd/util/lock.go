package util

import (
	"github.com/sidkik/savesync/pkg/errors"
	"github.com/sidkik/savesync/pkg/instance"
)

// AcquireLock takes the single-instance lock for `app`. Commands that sync
// hold it so that they never run rclone alongside the daemon.
func AcquireLock(app *App) (*instance.Lock, error) {
	lock, err := instance.Acquire(app.Fs, app.Paths.PIDFile)
	if err == errors.ErrAlreadyRunning {
		return nil, errors.NewFriendlyError("savesync is already running. " +
			"Stop it before running this command.")
	}
	if err != nil {
		return nil, errors.WithContext(err, "acquire instance lock")
	}
	return lock, nil
}
