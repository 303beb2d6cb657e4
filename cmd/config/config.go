package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/savesync/cmd/util"
	"github.com/sidkik/savesync/pkg/config"
	"github.com/sidkik/savesync/pkg/errors"
)

// Mocked for unit testing.
var (
	stdout      io.Writer = os.Stdout
	stdin       io.Reader = os.Stdin
	loadConfig            = config.Load
	writeConfig           = config.Write
)

// defaultProvider is suggested when the config doesn't name a provider yet.
const defaultProvider = "drive"

// New creates a new `config` command.
func New() *cobra.Command {
	var cliOpts config.Config
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Setup the savesync cloud settings",
		Long: "Interactively choose the rclone provider and the name of the\n" +
			"folder on the cloud remote that save data is synced into.\n" +
			"Entries are managed with `savesync entry`.",
		Run: func(_ *cobra.Command, _ []string) {
			paths, err := config.DefaultPaths()
			if err != nil {
				util.HandleFatalError(errors.WithContext(err, "get paths"))
			}

			if err := SetupConfig(paths.ConfigFile, cliOpts); err != nil {
				err = errors.NewFriendlyError("Failed to setup configuration:\n%s", err)
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&cliOpts.Provider, "provider", "",
		"Set the rclone provider, such as `drive` or `onedrive`. "+
			"Optional: If not set, `savesync config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.Remote, "remote", "",
		"Set the folder on the cloud remote. "+
			"Optional: If not set, `savesync config` will interactively prompt.")

	// Setup the commands for querying the contents of the config.
	type getterSpec struct {
		use, short string
		fn         func(config.Config) string
	}

	getters := []getterSpec{
		{
			use:   "get-provider",
			short: "Get the currently configured rclone provider",
			fn:    func(cfg config.Config) string { return cfg.Provider },
		},
		{
			use:   "get-remote",
			short: "Get the currently configured remote folder",
			fn:    func(cfg config.Config) string { return cfg.WithDefaults().Remote },
		},
	}
	for _, getter := range getters {
		getter := getter
		cmd.AddCommand(&cobra.Command{
			Use:   getter.use,
			Short: getter.short,
			Run: func(_ *cobra.Command, _ []string) {
				paths, err := config.DefaultPaths()
				if err != nil {
					util.HandleFatalError(errors.WithContext(err, "get paths"))
				}

				cfg, err := loadConfig(paths.ConfigFile)
				if err != nil {
					err = errors.WithContext(err, "read config")
					util.HandleFatalError(err)
				}

				fmt.Fprintln(stdout, getter.fn(cfg))
			},
		})
	}

	return cmd
}

// SetupConfig prompts for the settings that weren't set in `cliOpts`, and
// writes them to the config at `path`. Entries and other settings already
// in the file are kept.
func SetupConfig(path string, cliOpts config.Config) error {
	currConfig, err := loadConfig(path)
	if err != nil {
		currConfig = config.Config{}
		log.WithError(err).Debug("Failed to read current config")
	}

	cfg, err := generateConfig(currConfig, cliOpts)
	if err != nil {
		return errors.WithContext(err, "generate config")
	}

	if err := writeConfig(path, cfg); err != nil {
		return errors.WithContext(err, "write config")
	}

	fmt.Fprintf(stdout, "Wrote config to %s\n", path)
	return nil
}

var remoteNameRegexp = regexp.MustCompile(`^[A-Za-z0-9][-_.A-Za-z0-9 ]*$`)

func remoteValidationFn(remote string) (string, bool) {
	if remoteNameRegexp.MatchString(remote) && !strings.HasSuffix(remote, " ") {
		return "", true
	}

	return "The remote folder name contains invalid characters. " +
		"Please pick a name that only uses letters, numbers, spaces, " +
		"and the characters `-`, `_` and `.`. " +
		"It must not start with a special character, or end with a space.", false
}

func providerValidationFn(provider string) (string, bool) {
	if provider == "" || strings.ContainsAny(provider, " :/\\") {
		return "The provider must be an rclone backend type, such as `drive`.", false
	}
	return "", true
}

type prompt struct {
	helpString, prompt, defaultAnswer, currAnswer string
	field                                         *string
	validationFn                                  func(string) (string, bool)
}

// generateConfig interacts with the user to decide what the desired
// settings are.
func generateConfig(currConfig, cliOpts config.Config) (config.Config, error) {
	cfg := currConfig
	if cliOpts.Provider != "" {
		cfg.Provider = cliOpts.Provider
	}
	if cliOpts.Remote != "" {
		cfg.Remote = cliOpts.Remote
	}

	var prompts []prompt
	if cliOpts.Provider == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the rclone provider that stores your save data.\n" +
				"Run `rclone help backends` for the full list.",
			prompt:        "Cloud provider",
			defaultAnswer: defaultProvider,
			currAnswer:    currConfig.Provider,
			field:         &cfg.Provider,
			validationFn:  providerValidationFn,
		})
	}

	if cliOpts.Remote == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the name of the folder on the cloud remote.\n" +
				"Every computer that shares save data should use the same folder.",
			prompt:        "Remote folder",
			defaultAnswer: config.DefaultRemote,
			currAnswer:    currConfig.Remote,
			field:         &cfg.Remote,
			validationFn:  remoteValidationFn,
		})
	}

	for _, prompt := range prompts {
		var resp string
		var err error
		for {
			resp, err = promptUser(prompt.helpString, prompt.prompt,
				prompt.defaultAnswer, prompt.currAnswer)
			if err != nil {
				return config.Config{}, errors.WithContext(err, "read response")
			}

			if prompt.validationFn == nil {
				break
			}

			validationErr, ok := prompt.validationFn(resp)
			if ok {
				break
			}

			fmt.Fprintln(stdout, validationErr)
		}

		*prompt.field = resp
	}

	return cfg, nil
}

func promptUser(helpString, prompt, defaultAnswer, currAnswer string) (string, error) {
	// Display a new line at the end to separate different fields to make it
	// look clearer.
	defer fmt.Fprintln(stdout)

	options := []string{}
	if defaultAnswer != "" {
		options = append(options, defaultAnswer)
	}
	if currAnswer != "" && currAnswer != defaultAnswer {
		options = append(options, currAnswer)
	}
	options = append(options, "(Enter manually)")

	fmt.Fprintln(stdout, helpString+"\n"+prompt+":")

	stdinReader := bufio.NewReader(stdin)

	if nOptions := len(options); nOptions > 1 {
		fmt.Fprintln(stdout)
		for i, option := range options {
			if i == 0 {
				option = fmt.Sprintf("%s (recommended)", option)
			}
			fmt.Fprintf(stdout, "\t%d. %s\n", i+1, option)
		}
		fmt.Fprintln(stdout)

		for {
			fmt.Fprintf(stdout, "Please choose one [1-%d]: ", nOptions)
			choiceStr, err := stdinReader.ReadString('\n')
			if err != nil {
				return "", err
			}

			// Console input on Windows ends lines with \r\n.
			choiceStr = strings.TrimRight(choiceStr, "\r\n")

			// Default to the first choice if user doesn't enter anything.
			choice := 1
			if choiceStr != "" {
				choice, err = strconv.Atoi(choiceStr)
				if err != nil || choice < 1 || choice > nOptions {
					continue
				}
			}

			if choice == nOptions {
				break
			}
			return options[choice-1], nil
		}
	}

	fmt.Fprint(stdout, "Please enter manually: ")
	resp, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimRight(resp, "\r\n"), nil
}
