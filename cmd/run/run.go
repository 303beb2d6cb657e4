package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/savesync/cmd/util"
	"github.com/sidkik/savesync/pkg/errors"
	"github.com/sidkik/savesync/pkg/fswatch"
	"github.com/sidkik/savesync/pkg/rclone"
)

// New creates a new `run` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the savesync daemon",
		Long: "Sync save data with the cloud, then watch for configured\n" +
			"applications starting and stopping. Save data is downloaded\n" +
			"before an application starts, and uploaded after it exits.",
		Run: func(_ *cobra.Command, _ []string) {
			if err := main(); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func main() error {
	app, err := util.LoadApp()
	if err != nil {
		return err
	}

	lock, err := util.AcquireLock(app)
	if err != nil {
		return err
	}
	defer lock.Release()

	configured, err := rclone.IsConfigured(app.Fs, app.Paths.RcloneConfig)
	if err != nil {
		log.WithError(err).Warn("Failed to read rclone config")
	} else if !configured {
		if app.Config.Provider == "" {
			return errors.NewFriendlyError("The cloud remote isn't set up yet.\n" +
				"Run `savesync config` to choose a provider.")
		}
		app.Client.SetupProvider(app.Config.Provider)
	}
	app.Client.CheckVersion()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Orchestrator.Start(ctx); err != nil {
		return errors.WithContext(err, "start")
	}

	watcher, err := fswatch.WatchFile(app.Paths.ConfigFile)
	if err != nil {
		log.WithError(err).Warn("Failed to watch config. Restart savesync to pick up changes")
	} else {
		defer watcher.Close()
		go func() {
			defer util.HandlePanic()
			for {
				select {
				case <-ctx.Done():
					return
				case <-watcher.C:
					log.Info("Config changed. Reloading entries")
					app.Orchestrator.Reload()
				}
			}
		}()
	}

	app.Monitor.Run(ctx, app.Orchestrator.Tick)

	// Let an in-progress upload finish before exiting.
	log.Info("Shutting down")
	app.Orchestrator.Wait()
	app.Bus.WaitAsync()
	return nil
}
