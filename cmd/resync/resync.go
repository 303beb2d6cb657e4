package resync

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sidkik/savesync/cmd/util"
	"github.com/sidkik/savesync/pkg/errors"
)

// New creates a new `resync` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "resync",
		Short: "Rebuild the sync state with the cloud",
		Long: "Run a full rclone bisync resync with the cloud copy as the\n" +
			"authoritative side, then sync every entry. Use this to recover\n" +
			"after rclone reports that the sync state is corrupt.",
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

	if err := app.Fs.MkdirAll(app.Paths.StagingRoot, 0755); err != nil {
		return errors.WithContext(err, "make staging root")
	}

	app.Orchestrator.Reload()
	if err := app.Orchestrator.Resync(); err != nil {
		return err
	}
	fmt.Println("Resync complete")
	return nil
}
