package setup

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sidkik/savesync/cmd/util"
	"github.com/sidkik/savesync/pkg/config"
	"github.com/sidkik/savesync/pkg/errors"
	"github.com/sidkik/savesync/pkg/rclone"
)

// Mocked for unit testing.
var stdout io.Writer = os.Stdout

type providerSetter interface {
	SetupProvider(provider string)
}

// New creates a new `setup` command.
func New() *cobra.Command {
	var provider string
	var force bool
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the rclone remote for the cloud provider",
		Long: "Create the rclone remote that savesync syncs through. rclone\n" +
			"may open a browser window to log in to the provider.\n" +
			"`savesync run` does this automatically the first time it starts.",
		Run: func(_ *cobra.Command, _ []string) {
			app, err := util.LoadApp()
			if err != nil {
				util.HandleFatalError(err)
			}

			if provider == "" {
				provider = app.Config.Provider
			}
			if err := setup(app.Fs, app.Paths, app.Client, provider, force); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "",
		"The rclone backend type, such as `drive` or `onedrive`. "+
			"Defaults to the provider in the savesync config.")
	cmd.Flags().BoolVar(&force, "force", false,
		"Recreate the remote even if it already exists")
	return cmd
}

func setup(fs afero.Fs, paths config.Paths, client providerSetter, provider string, force bool) error {
	if provider == "" {
		return errors.NewFriendlyError("No provider is configured.\n" +
			"Pass `--provider`, or run `savesync config` to choose one.")
	}

	configured, err := rclone.IsConfigured(fs, paths.RcloneConfig)
	if err != nil {
		return errors.WithContext(err, "read rclone config")
	}
	if configured && !force {
		fmt.Fprintf(stdout, "The remote is already set up in %s\n", paths.RcloneConfig)
		return nil
	}

	log.WithField("provider", provider).Info("Creating rclone remote")
	client.SetupProvider(provider)

	configured, err = rclone.IsConfigured(fs, paths.RcloneConfig)
	if err != nil {
		return errors.WithContext(err, "read rclone config")
	}
	if !configured {
		return errors.NewFriendlyError("rclone failed to create the remote. "+
			"Check %s for details.", paths.LogFile)
	}

	fmt.Fprintf(stdout, "Set up the %s remote\n", provider)
	return nil
}
