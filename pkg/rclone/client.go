// Package rclone drives `rclone bisync` between the local staging root and
// the cloud remote.
//
// Every operation holds the client's mutex for its whole duration, so at most
// one rclone process runs at a time. An incremental bisync that fails is
// retried once as a resync, which re-establishes the baseline with the
// command's path1 as the authoritative side.
package rclone

import (
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/savesync/pkg/errors"
	"github.com/sidkik/savesync/pkg/proc"
)

// Mocked out for unit testing.
var run = proc.Run

// Notifier is told about sync progress and failures. Its methods must not
// block.
type Notifier interface {
	SyncInProgress(inProgress bool)
	SyncError(err error)
}

// Config contains everything needed to build the rclone commands.
type Config struct {
	// Binary is the rclone executable.
	Binary string

	// Remote is the name of the folder on the cloud remote.
	Remote string

	StagingRoot  string
	RcloneConfig string
	LogFile      string

	// LockDir is the bisync working directory, where stale `.lck` files are
	// cleared from before each run.
	LockDir string
}

// Client runs rclone. It's safe for concurrent use.
type Client struct {
	mu sync.Mutex

	binary   string
	remote   string
	lockDir  string
	common   []string
	commands commandSet

	fs       afero.Fs
	notifier Notifier
}

// New creates a Client. The bisync commands are built once here.
func New(cfg Config, fs afero.Fs, notifier Notifier) *Client {
	common := commonOptions(cfg.RcloneConfig, cfg.LogFile)
	return &Client{
		binary:   cfg.Binary,
		remote:   cfg.Remote,
		lockDir:  cfg.LockDir,
		common:   common,
		commands: buildCommands(cfg.StagingRoot, common),
		fs:       fs,
		notifier: notifier,
	}
}

// SetupProvider creates the rclone remote for the cloud provider `provider`
// (e.g. `drive`). rclone may open a browser to authenticate. Failures are
// logged rather than returned, since a remote that's already configured is
// still usable.
func (c *Client) SetupProvider(provider string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log.WithField("provider", provider).Info("Setting up cloud provider")
	args := append([]string{c.common[0], c.common[1], "config", "create", Backend, provider},
		c.common[2:]...)
	res, err := run(c.binary, args...)
	switch {
	case err != nil:
		log.WithError(err).Error("Failed to set up cloud provider")
	case res.ExitCode != 0:
		log.WithError(errors.ToolFailure{Command: append([]string{c.binary}, args...),
			ExitCode: res.ExitCode}).Error("Failed to set up cloud provider")
	default:
		log.Info("Cloud provider set up successfully")
	}
}

// LocalSync pushes local changes to the remote, with the staging root
// winning conflicts.
func (c *Client) LocalSync() error {
	return c.sync(c.commands.localSync, &c.commands.localResync)
}

// RemoteSync pulls remote changes into the staging root, with the remote
// winning conflicts.
func (c *Client) RemoteSync() error {
	return c.sync(c.commands.remoteSync, &c.commands.remoteResync)
}

// RemoteResync makes the staging root a copy of the remote, discarding
// bisync's incremental state. There's nothing to fall back to if it fails.
func (c *Client) RemoteResync() error {
	return c.sync(c.commands.remoteResync, nil)
}

func (c *Client) sync(primary Command, fallback *Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.notifier.SyncInProgress(true)
	defer c.notifier.SyncInProgress(false)

	err := c.syncLocked(primary, fallback)
	if err != nil {
		log.WithError(err).WithField("command", primary.String()).Error("Sync failed")
		c.notifier.SyncError(err)
	}
	return err
}

func (c *Client) syncLocked(primary Command, fallback *Command) error {
	err := c.invoke(primary)
	if err == nil {
		return nil
	}

	if _, ok := err.(errors.ToolFailure); !ok || fallback == nil {
		return errors.WithContext(err, primary.String())
	}

	log.WithError(err).WithField("command", primary.String()).Warn(
		"Incremental sync failed. Retrying with a resync")
	if err := c.invoke(*fallback); err != nil {
		return errors.WithContext(err, fallback.String())
	}
	return nil
}

// invoke runs `cmd` once. It returns a ToolFailure if rclone exited with a
// non-zero code, and a ProcessFailure if rclone couldn't be run or wrote to
// stderr.
func (c *Client) invoke(cmd Command) error {
	c.clearLockFiles()

	args := cmd.Args(c.remote)
	fullCommand := append([]string{c.binary}, args...)
	log.WithField("command", strings.Join(fullCommand, " ")).Debug("Running rclone")

	start := time.Now()
	res, err := run(c.binary, args...)
	if err != nil {
		return err
	}

	if res.Stderr != "" {
		return errors.ProcessFailure{Command: fullCommand, Stderr: res.Stderr}
	}

	log.WithFields(log.Fields{
		"command":  cmd.String(),
		"duration": time.Since(start).Round(time.Millisecond),
		"exitCode": res.ExitCode,
	}).Info("rclone finished")

	if res.ExitCode != 0 {
		return errors.ToolFailure{Command: fullCommand, ExitCode: res.ExitCode}
	}
	return nil
}
