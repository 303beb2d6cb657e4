package version

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/savesync/cmd/util"
	"github.com/sidkik/savesync/pkg/version"
)

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of savesync and rclone.",
		Run: func(_ *cobra.Command, args []string) {
			if err := run(); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func run() error {
	fmt.Printf("savesync version: %s\n", version.Version)

	app, err := util.LoadApp()
	if err != nil {
		return err
	}

	rcloneVersion, err := app.Client.Version()
	if err != nil {
		log.WithError(err).Debug("Failed to get rclone version")
		fmt.Println("rclone version:   not found")
		return nil
	}
	fmt.Printf("rclone version:   %s\n", rcloneVersion)
	return nil
}
