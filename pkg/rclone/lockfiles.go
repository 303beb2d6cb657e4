package rclone

import (
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const lockFileExt = ".lck"

// clearLockFiles deletes the lock files bisync leaves behind when it's killed
// mid-run. Since the client's mutex already keeps rclone processes from
// overlapping, any lock file found here is stale. Failures are only logged
// because the sync itself will report a lock it couldn't get past.
func (c *Client) clearLockFiles() {
	files, err := afero.ReadDir(c.fs, c.lockDir)
	if err != nil {
		log.WithError(err).WithField("dir", c.lockDir).Debug("Failed to list bisync lock files")
		return
	}

	count := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), lockFileExt) {
			continue
		}

		path := filepath.Join(c.lockDir, f.Name())
		if err := c.fs.Remove(path); err != nil {
			log.WithError(err).WithField("path", path).Warn("Failed to remove stale lock file")
			continue
		}
		count++
	}

	if count > 0 {
		log.WithField("count", count).Info("Removed stale bisync lock files")
	}
}
