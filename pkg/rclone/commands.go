package rclone

import (
	"fmt"
	"strings"
)

const (
	// Backend is the name of the rclone remote savesync configures and
	// syncs with.
	Backend = "backend"

	remotePlaceholder = "{remote}"
)

// Direction picks which side of a bisync is path1, and so wins conflicts.
type Direction int

const (
	// LocalIsSource makes the local staging root authoritative.
	LocalIsSource Direction = iota

	// RemoteIsSource makes the cloud remote authoritative.
	RemoteIsSource
)

func (d Direction) String() string {
	if d == LocalIsSource {
		return "local"
	}
	return "remote"
}

// Command is one bisync invocation. Its arguments still contain the
// `{remote}` placeholder, which is replaced with the remote folder name when
// the command is run.
type Command struct {
	Direction Direction
	Resync    bool
	args      []string
}

func (c Command) String() string {
	if c.Resync {
		return fmt.Sprintf("%s resync", c.Direction)
	}
	return fmt.Sprintf("%s sync", c.Direction)
}

// Args returns the command's arguments for the remote folder `remote`.
func (c Command) Args(remote string) []string {
	args := make([]string, len(c.args))
	for i, arg := range c.args {
		args[i] = strings.Replace(arg, remotePlaceholder, remote, 1)
	}
	return args
}

type commandSet struct {
	localSync, localResync, remoteSync, remoteResync Command
}

// buildCommands builds the four bisync variants between `stagingRoot` and the
// remote folder. Conflicts are won by path1, and the losing copy is deleted.
func buildCommands(stagingRoot string, common []string) commandSet {
	remoteURI := Backend + ":" + remotePlaceholder
	syncOpts := append([]string{
		"--ignore-size",
		"--conflict-resolve", "path1",
		"--conflict-loser", "delete",
		"--transfers", "8",
		"--checkers", "16",
	}, common...)

	bisync := func(dir Direction, resync bool) Command {
		path1, path2 := stagingRoot, remoteURI
		if dir == RemoteIsSource {
			path1, path2 = remoteURI, stagingRoot
		}

		args := append([]string{"bisync", path1, path2}, syncOpts...)
		if resync {
			args = append(args, "--resync")
		}
		return Command{Direction: dir, Resync: resync, args: args}
	}

	return commandSet{
		localSync:    bisync(LocalIsSource, false),
		localResync:  bisync(LocalIsSource, true),
		remoteSync:   bisync(RemoteIsSource, false),
		remoteResync: bisync(RemoteIsSource, true),
	}
}

// commonOptions are passed to every rclone invocation so that rclone uses
// savesync's config and appends to the shared log file.
func commonOptions(rcloneConfig, logFile string) []string {
	return []string{
		"--config", rcloneConfig,
		"--log-format", "other",
		"--log-file", logFile,
		"-v",
	}
}
