package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	configCmd "github.com/sidkik/savesync/cmd/config"
	"github.com/sidkik/savesync/cmd/entry"
	"github.com/sidkik/savesync/cmd/resync"
	"github.com/sidkik/savesync/cmd/run"
	"github.com/sidkik/savesync/cmd/setup"
	syncCmd "github.com/sidkik/savesync/cmd/sync"
	"github.com/sidkik/savesync/cmd/util"
	"github.com/sidkik/savesync/cmd/version"
	"github.com/sidkik/savesync/pkg/config"
	"github.com/sidkik/savesync/pkg/logfile"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "SAVESYNC_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	if os.Getenv(verboseLogKey) == "true" {
		log.SetLevel(log.DebugLevel)
	}

	rootCmd := &cobra.Command{
		Use:          "savesync",
		Short:        "Sync game save data through the cloud",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors:    true,
		PersistentPreRun: setupLogFile,
	}
	rootCmd.AddCommand(
		configCmd.New(),
		entry.New(),
		resync.New(),
		run.New(),
		setup.New(),
		syncCmd.New(),
		version.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		util.HandleFatalError(err)
	}
}

// setupLogFile mirrors logs into the log file that rclone also writes to, so
// that a single file shows what happened during a sync.
func setupLogFile(_ *cobra.Command, _ []string) {
	paths, err := config.DefaultPaths()
	if err != nil {
		log.WithError(err).Debug("Failed to get log file path")
		return
	}
	log.AddHook(logfile.NewHook(paths.LogFile, log.GetLevel()))
}
