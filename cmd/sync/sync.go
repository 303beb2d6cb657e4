package sync

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sidkik/savesync/cmd/util"
	"github.com/sidkik/savesync/pkg/errors"
)

// New creates a new `sync` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [entry]",
		Short: "Sync save data with the cloud once",
		Long: "Sync the save data of a single entry, or of every entry if none\n" +
			"is named. The daemon must not be running.",
		Args: cobra.MaximumNArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			if err := main(name); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func main(name string) error {
	app, err := util.LoadApp()
	if err != nil {
		return err
	}

	lock, err := util.AcquireLock(app)
	if err != nil {
		return err
	}
	defer lock.Release()

	if name == "" {
		if err := app.Orchestrator.Start(context.Background()); err != nil {
			return errors.WithContext(err, "sync")
		}
		fmt.Println("Synced all entries")
		return nil
	}

	app.Orchestrator.Reload()
	if err := app.Orchestrator.SyncEntry(name); err != nil {
		return errors.WithContext(err, "sync")
	}
	fmt.Printf("Synced %s\n", name)
	return nil
}
