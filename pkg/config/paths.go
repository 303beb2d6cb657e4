package config

import (
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"

	"github.com/sidkik/savesync/pkg/errors"
)

const (
	// AppDirPath is the directory holding all of savesync's state.
	AppDirPath = "~/.savesync"

	// MarkerFileName is written into an entry's local directory while its
	// process is running. Finding it at startup means the previous session
	// didn't end cleanly.
	MarkerFileName = ".sds"
)

// Mocked out for unit testing.
var (
	homedirExpand = homedir.Expand
	userCacheDir  = os.UserCacheDir
)

// Paths contains the absolute locations of everything savesync reads and
// writes on the local machine.
type Paths struct {
	AppDir string

	// StagingRoot mirrors the cloud remote. Every entry's remote directory
	// is a subdirectory of it.
	StagingRoot string

	ConfigFile   string
	IconsDir     string
	LogFile      string
	RcloneConfig string
	PIDFile      string

	// BisyncLockDir is where rclone bisync leaves its `.lck` files.
	BisyncLockDir string
}

// DefaultPaths returns the paths rooted at AppDirPath.
func DefaultPaths() (Paths, error) {
	appDir, err := homedirExpand(AppDirPath)
	if err != nil {
		return Paths{}, errors.WithContext(err, "expand app dir")
	}

	cacheDir, err := userCacheDir()
	if err != nil {
		return Paths{}, errors.WithContext(err, "get cache dir")
	}

	return NewPaths(appDir, cacheDir), nil
}

// NewPaths lays out the savesync paths under `appDir`.
func NewPaths(appDir, cacheDir string) Paths {
	return Paths{
		AppDir:        appDir,
		StagingRoot:   filepath.Join(appDir, "remote"),
		ConfigFile:    filepath.Join(appDir, "config.yaml"),
		IconsDir:      filepath.Join(appDir, "icons"),
		LogFile:       filepath.Join(appDir, "savesync.log"),
		RcloneConfig:  filepath.Join(appDir, "rclone.conf"),
		PIDFile:       filepath.Join(appDir, "savesync.pid"),
		BisyncLockDir: filepath.Join(cacheDir, "rclone", "bisync"),
	}
}

// IconPath returns where the icon extracted for `processName` is cached.
func (p Paths) IconPath(processName string) string {
	return filepath.Join(p.IconsDir, processName+".ico")
}
