package entry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/savesync/cmd/util"
	"github.com/sidkik/savesync/pkg/config"
	"github.com/sidkik/savesync/pkg/errors"
	"github.com/sidkik/savesync/pkg/monitor"
)

// Mocked for unit testing.
var (
	stdout     io.Writer              = os.Stdout
	processes monitor.LivenessSource = monitor.ProcessTable{}
)

// New creates a new `entry` command.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Manage the applications whose save data is synced",
		Long: "Add, remove, and list entries. A running daemon picks up\n" +
			"changes automatically.",
	}
	cmd.AddCommand(newAddCommand(), newRemoveCommand(), newListCommand())
	return cmd
}

func newAddCommand() *cobra.Command {
	var entry config.Entry
	var category string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an entry",
		Run: func(_ *cobra.Command, _ []string) {
			if err := add(entry, category); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&entry.Name, "name", "", "The unique name of the entry")
	cmd.Flags().StringVar(&category, "category", string(config.Game),
		"The category of the entry: game, emulator, or tools")
	cmd.Flags().StringVar(&entry.Executable, "executable", "",
		"The path to the application's executable")
	cmd.Flags().StringVar(&entry.LocalDir, "local-dir", "",
		"The directory containing the save data")
	cmd.Flags().StringVar(&entry.RemoteDir, "remote-dir", "",
		"The directory within the staging root to sync into. Defaults to the name")
	cmd.Flags().StringSliceVar(&entry.Inclusions, "include", nil,
		"Only sync these file names. Can't be combined with --exclude")
	cmd.Flags().StringSliceVar(&entry.Exclusions, "exclude", nil,
		"Never sync these file names")
	return cmd
}

func add(entry config.Entry, category string) error {
	parsed, err := config.ParseCategory(category)
	if err != nil {
		return err
	}
	entry.Category = parsed

	switch {
	case entry.Name == "":
		return errors.NewFriendlyError("The --name flag is required.")
	case entry.Executable == "":
		return errors.NewFriendlyError("The --executable flag is required.")
	case entry.LocalDir == "":
		return errors.NewFriendlyError("The --local-dir flag is required.")
	case len(entry.Inclusions) > 0 && len(entry.Exclusions) > 0:
		return errors.NewFriendlyError("--include and --exclude can't be combined.")
	}

	paths, err := config.DefaultPaths()
	if err != nil {
		return errors.WithContext(err, "get paths")
	}

	if err := config.AppendEntry(paths.ConfigFile, paths, entry); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Added %s\n", entry.Name)
	return nil
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove an entry. Its save data is left in place",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			paths, err := config.DefaultPaths()
			if err != nil {
				util.HandleFatalError(errors.WithContext(err, "get paths"))
			}

			if err := config.RemoveEntry(paths.ConfigFile, paths, args[0]); err != nil {
				util.HandleFatalError(err)
			}
			fmt.Fprintf(stdout, "Removed %s\n", args[0])
		},
	}
}

func newListCommand() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the configured entries",
		Run: func(_ *cobra.Command, _ []string) {
			if err := list(category); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&category, "category", "",
		"Only list entries in this category")
	return cmd
}

func list(category string) error {
	paths, err := config.DefaultPaths()
	if err != nil {
		return errors.WithContext(err, "get paths")
	}

	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return errors.WithContext(err, "read config")
	}

	entries := cfg.Entries
	if category != "" {
		parsed, err := config.ParseCategory(category)
		if err != nil {
			return err
		}
		entries = filterCategory(entries, parsed)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.ProcessName())
	}

	snap, err := processes.Snapshot(context.Background(), names)
	if err != nil {
		log.WithError(err).Warn("Failed to check which entries are running")
		snap = monitor.Snapshot{}
	}

	writeTable(stdout, entries, snap)
	return nil
}

func filterCategory(entries []config.Entry, category config.Category) (filtered []config.Entry) {
	for _, e := range entries {
		if e.Category == category || (e.Category == "" && category == config.Game) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func writeTable(w io.Writer, entries []config.Entry, snap monitor.Snapshot) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries configured. Add one with `savesync entry add`.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Category", "Running", "Local Dir", "Filter"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	for _, e := range entries {
		category := e.Category
		if category == "" {
			category = config.Game
		}

		running := "no"
		if pid, ok := snap[e.ProcessName()]; ok && pid != 0 {
			running = fmt.Sprintf("yes (%d)", pid)
		}

		table.Append([]string{e.Name, string(category), running, e.LocalDir, filter(e)})
	}
	table.Render()
}

func filter(e config.Entry) string {
	switch {
	case len(e.Inclusions) > 0:
		return "only " + strings.Join(e.Inclusions, ", ")
	case len(e.Exclusions) > 0:
		return "except " + strings.Join(e.Exclusions, ", ")
	default:
		return ""
	}
}
