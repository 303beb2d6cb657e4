package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/ghodss/yaml"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/savesync/pkg/errors"
)

const (
	// InitialConfigVersion is the first version of the savesync config.
	// Config files that do not specify a version will default to this
	// version.
	InitialConfigVersion = "v1alpha1"

	// SupportedConfigVersion is the supported version of the savesync
	// config of the current savesync binary.
	SupportedConfigVersion = "v1alpha1"
)

// Defaults for fields left empty in the config file.
const (
	DefaultCheckInterval     = 1000 * time.Millisecond
	DefaultRemote            = "savesync"
	DefaultRclonePath        = "rclone"
	DefaultSuspendPath       = "pssuspend"
	DefaultSuspendResumeFlag = "-r"
	DefaultNotifyMinDuration = 100 * time.Millisecond
)

// Config is the global savesync configuration, including the list of
// monitored entries.
type Config struct {
	Version string `json:"version,omitempty"`

	// CheckIntervalMillis is how often the process table is polled.
	CheckIntervalMillis int `json:"checkInterval,omitempty"`

	// Remote is the name of the folder on the cloud remote that mirrors the
	// local staging root.
	Remote string `json:"remote,omitempty"`

	// Provider is the rclone backend type (e.g. `drive` or `onedrive`) used
	// when bootstrapping the rclone remote.
	Provider string `json:"provider,omitempty"`

	RclonePath        string `json:"rclonePath,omitempty"`
	SuspendPath       string `json:"suspendPath,omitempty"`
	SuspendResumeFlag string `json:"suspendResumeFlag,omitempty"`

	// NotifyMinDurationMillis is the minimum time the "sync in progress"
	// state stays visible.
	NotifyMinDurationMillis int `json:"notifyMinDuration,omitempty"`

	// CompareContents makes the tree diff compare file hashes in addition
	// to modification times.
	CompareContents bool `json:"compareContents,omitempty"`

	Entries []Entry `json:"entries,omitempty"`
}

func (c Config) getVersion() string {
	return c.Version
}

// CheckInterval returns the polling interval.
func (c Config) CheckInterval() time.Duration {
	if c.CheckIntervalMillis <= 0 {
		return DefaultCheckInterval
	}
	return time.Duration(c.CheckIntervalMillis) * time.Millisecond
}

// NotifyMinDuration returns how long "sync in progress" stays visible at
// minimum.
func (c Config) NotifyMinDuration() time.Duration {
	if c.NotifyMinDurationMillis <= 0 {
		return DefaultNotifyMinDuration
	}
	return time.Duration(c.NotifyMinDurationMillis) * time.Millisecond
}

// WithDefaults fills in every empty optional field.
func (c Config) WithDefaults() Config {
	if c.Remote == "" {
		c.Remote = DefaultRemote
	}
	if c.RclonePath == "" {
		c.RclonePath = DefaultRclonePath
	}
	if c.SuspendPath == "" {
		c.SuspendPath = DefaultSuspendPath
	}
	if c.SuspendResumeFlag == "" {
		c.SuspendResumeFlag = DefaultSuspendResumeFlag
	}
	return c
}

// Load parses the config at `path`. A missing file isn't an error: savesync
// starts with no entries until one is added.
func Load(path string) (Config, error) {
	config := Config{Version: InitialConfigVersion}
	if err := parseConfig(path, &config, SupportedConfigVersion); err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			log.WithField("path", path).Debug("Config file doesn't exist. Using defaults")
			return Config{Version: SupportedConfigVersion}.WithDefaults(), nil
		}
		return Config{}, errors.WithContext(err, "parse")
	}
	return config.WithDefaults(), nil
}

// Write writes the given config to disk.
func Write(path string, cfg Config) error {
	cfg.Version = SupportedConfigVersion
	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WithContext(err, "make config dir")
	}

	if err := afero.WriteFile(fs, path, yamlBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

// AppendEntry adds `entry` to the config at `path`. Empty inclusion and
// exclusion lists are dropped, and a remote directory given as an absolute
// path under the staging root is stored relative to it.
func AppendEntry(path string, paths Paths, entry Entry) error {
	cfg, err := Load(path)
	if err != nil {
		return errors.WithContext(err, "load")
	}

	for _, existing := range cfg.Entries {
		if existing.Name == entry.Name {
			return errors.NewFriendlyError("An entry named %q already exists. "+
				"Remove it first with `savesync entry remove %s`.", entry.Name, entry.Name)
		}
	}

	cfg.Entries = append(cfg.Entries, entry.normalize(paths))
	return Write(path, cfg)
}

// RemoveEntry removes the entry named `name` from the config at `path`, along
// with its cached icon.
func RemoveEntry(path string, paths Paths, name string) error {
	cfg, err := Load(path)
	if err != nil {
		return errors.WithContext(err, "load")
	}

	idx := -1
	for i, entry := range cfg.Entries {
		if entry.Name == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return errors.NewFriendlyError("No entry named %q is configured.", name)
	}

	icon := paths.IconPath(cfg.Entries[idx].ProcessName())
	if err := fs.Remove(icon); err != nil && !os.IsNotExist(err) {
		log.WithError(err).WithField("path", icon).Warn("Failed to delete icon")
	}

	cfg.Entries = append(cfg.Entries[:idx], cfg.Entries[idx+1:]...)
	return Write(path, cfg)
}
