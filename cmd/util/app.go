package util

import (
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/savesync/pkg/config"
	"github.com/sidkik/savesync/pkg/errors"
	"github.com/sidkik/savesync/pkg/monitor"
	"github.com/sidkik/savesync/pkg/notify"
	"github.com/sidkik/savesync/pkg/orchestrator"
	"github.com/sidkik/savesync/pkg/rclone"
	"github.com/sidkik/savesync/pkg/suspend"
	"github.com/sidkik/savesync/pkg/treediff"
)

// App holds the wired-up components of savesync.
type App struct {
	Paths  config.Paths
	Config config.Config
	Fs     afero.Fs

	Bus          *notify.Bus
	Client       *rclone.Client
	Monitor      *monitor.Monitor
	Orchestrator *orchestrator.Orchestrator
}

// LoadApp reads the config from its default location and wires up savesync
// with it. An unreadable config isn't fatal: the settings fall back to
// their defaults, and the orchestrator reports the problem when it loads
// the entries.
func LoadApp() (*App, error) {
	paths, err := config.DefaultPaths()
	if err != nil {
		return nil, errors.WithContext(err, "get paths")
	}

	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		log.WithError(err).Warn("Failed to read config. Using default settings")
		cfg = config.Config{}
	}
	return NewApp(paths, cfg.WithDefaults()), nil
}

// NewApp wires up savesync.
func NewApp(paths config.Paths, cfg config.Config) *App {
	fs := afero.NewOsFs()
	clock := clockwork.NewRealClock()

	bus := notify.New(clock, cfg.NotifyMinDuration())
	if err := notify.LogNotifications(bus); err != nil {
		log.WithError(err).Warn("Failed to subscribe to notifications")
	}

	client := rclone.New(rclone.Config{
		Binary:       cfg.RclonePath,
		Remote:       cfg.Remote,
		StagingRoot:  paths.StagingRoot,
		RcloneConfig: paths.RcloneConfig,
		LogFile:      paths.LogFile,
		LockDir:      paths.BisyncLockDir,
	}, fs, bus)

	mon := monitor.New(monitor.ProcessTable{}, clock, cfg.CheckInterval())

	orch := orchestrator.New(paths.StagingRoot, orchestrator.Deps{
		Fs:        fs,
		Load:      entryLoader(paths),
		Client:    client,
		Engine:    treediff.New(fs, cfg.CompareContents),
		Poller:    mon,
		Suspender: suspend.New(cfg.SuspendPath, cfg.SuspendResumeFlag),
		Notifier:  bus,
	})

	return &App{
		Paths:        paths,
		Config:       cfg,
		Fs:           fs,
		Bus:          bus,
		Client:       client,
		Monitor:      mon,
		Orchestrator: orch,
	}
}

// entryLoader re-reads the config file on every call, so that reloads pick
// up edited entries.
func entryLoader(paths config.Paths) orchestrator.EntryLoader {
	return func() ([]config.Entry, error) {
		cfg, err := config.Load(paths.ConfigFile)
		if err != nil {
			return nil, errors.WithContext(err, "read config")
		}
		return config.Validate(cfg, paths)
	}
}
