package orchestrator

import (
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/savesync/pkg/config"
	"github.com/sidkik/savesync/pkg/errors"
)

// synchronize reconciles an entry's local directory with its copy in the
// staging root, in whichever direction has the newer data. It returns the
// number of changes made.
func (o *Orchestrator) synchronize(e config.Entry) (int, error) {
	if len(e.Inclusions) == 0 {
		pending, err := o.engine.IsPendingSync(e.LocalDir, e.RemoteDir,
			e.LocalDir, e.RemoteDir, e.Exclusions)
		if err != nil {
			return 0, errors.WithContext(err, "check pending")
		}
		if !pending {
			return 0, nil
		}
	}

	localTime, remoteTime, err := o.lastModifiedTimes(e)
	if err != nil {
		return 0, err
	}

	switch {
	case localTime.Before(remoteTime):
		return o.download(e)
	case localTime.After(remoteTime):
		return o.update(e)
	default:
		return 0, nil
	}
}

// update copies the entry's local data into the staging root.
func (o *Orchestrator) update(e config.Entry) (int, error) {
	log.WithField("entry", e.Name).Info("Updating remote copy")
	if len(e.Inclusions) > 0 {
		return o.syncIncluded(e, e.LocalDir, e.RemoteDir)
	}

	shouldSync, err := o.shouldSyncFolder(e, func(local, remote time.Time) bool {
		return local.After(remote)
	})
	if err != nil || !shouldSync {
		return 0, err
	}

	if err := o.fs.MkdirAll(e.RemoteDir, 0755); err != nil {
		return 0, errors.WithContext(err, "make remote dir")
	}
	return o.engine.SyncFolder(e.LocalDir, e.RemoteDir, e.LocalDir, e.RemoteDir, e.Exclusions, false)
}

// download copies the entry's data from the staging root into its local
// directory.
func (o *Orchestrator) download(e config.Entry) (int, error) {
	log.WithField("entry", e.Name).Info("Downloading from remote copy")
	if len(e.Inclusions) > 0 {
		return o.syncIncluded(e, e.RemoteDir, e.LocalDir)
	}

	shouldSync, err := o.shouldSyncFolder(e, func(local, remote time.Time) bool {
		return local.Before(remote)
	})
	if err != nil || !shouldSync {
		return 0, err
	}

	if err := o.fs.MkdirAll(e.LocalDir, 0755); err != nil {
		return 0, errors.WithContext(err, "make local dir")
	}
	return o.engine.SyncFolder(e.RemoteDir, e.LocalDir, e.RemoteDir, e.LocalDir, e.Exclusions, false)
}

// syncIncluded syncs each included file that exists in `from` onto `to`.
// Included files that don't exist in `from` are left alone in `to`.
func (o *Orchestrator) syncIncluded(e config.Entry, from, to string) (int, error) {
	count := 0
	for _, name := range e.Inclusions {
		src := filepath.Join(from, name)
		exists, err := afero.Exists(o.fs, src)
		if err != nil {
			return count, errors.WithContext(err, "stat")
		}
		if !exists {
			continue
		}

		n, err := o.engine.SyncFile(src, from, to, false)
		count += n
		if err != nil {
			return count, errors.WithContext(err, name)
		}
	}
	return count, nil
}

// shouldSyncFolder reports whether the entry's trees differ, and whether
// their modification times satisfy `newer`.
func (o *Orchestrator) shouldSyncFolder(e config.Entry, newer func(local, remote time.Time) bool) (bool, error) {
	pending, err := o.engine.IsPendingSync(e.RemoteDir, e.LocalDir, e.RemoteDir, e.LocalDir, e.Exclusions)
	if err != nil {
		return false, errors.WithContext(err, "check pending")
	}
	if !pending {
		return false, nil
	}

	localTime, remoteTime, err := o.lastModifiedTimes(e)
	if err != nil {
		return false, err
	}
	return newer(localTime, remoteTime), nil
}

func (o *Orchestrator) lastModifiedTimes(e config.Entry) (local, remote time.Time, err error) {
	local, err = o.engine.LastModifiedTime(e.LocalDir, e.Inclusions, e.Exclusions)
	if err != nil {
		return time.Time{}, time.Time{}, errors.WithContext(err, "get local modtime")
	}

	remote, err = o.engine.LastModifiedTime(e.RemoteDir, e.Inclusions, e.Exclusions)
	if err != nil {
		return time.Time{}, time.Time{}, errors.WithContext(err, "get remote modtime")
	}
	return local, remote, nil
}

func (o *Orchestrator) writeMarker(e config.Entry) {
	marker := e.MarkerPath()
	now := []byte(time.Now().Format(time.RFC3339))
	if err := afero.WriteFile(o.fs, marker, now, 0644); err != nil {
		log.WithError(err).WithField("path", marker).Warn("Failed to write marker file")
	}
}

func (o *Orchestrator) deleteMarker(e config.Entry) {
	marker := e.MarkerPath()
	if err := o.fs.Remove(marker); err != nil {
		if exists, _ := afero.Exists(o.fs, marker); exists {
			log.WithError(err).WithField("path", marker).Warn("Failed to delete marker file")
		}
	}
}

// clearStaleMarkers removes the markers left behind by a previous session
// that exited while an entry's process was running. Entries whose process is
// currently running own their marker, and are skipped.
func (o *Orchestrator) clearStaleMarkers() {
	for _, e := range o.entries {
		if e.pid != 0 {
			continue
		}

		exists, err := afero.Exists(o.fs, e.MarkerPath())
		if err != nil || !exists {
			continue
		}

		log.WithField("entry", e.Name).Warn(
			"The previous session didn't end cleanly. Local saves will be " +
				"compared against the remote as usual")
		o.deleteMarker(e.Entry)
	}
}
