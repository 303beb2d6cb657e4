package rclone

import (
	"bufio"
	"strings"

	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/savesync/pkg/errors"
)

// MinVersion is the oldest rclone whose bisync supports `--conflict-resolve`.
var MinVersion = goversion.Must(goversion.NewVersion("1.66.0"))

// Version returns the version of the rclone binary.
func (c *Client) Version() (*goversion.Version, error) {
	res, err := run(c.binary, "version")
	if err != nil {
		return nil, errors.WithContext(err, "run")
	}
	if res.ExitCode != 0 {
		return nil, errors.ToolFailure{Command: []string{c.binary, "version"}, ExitCode: res.ExitCode}
	}
	return parseVersion(res.Stdout)
}

// parseVersion parses the output of `rclone version`, whose first line looks
// like "rclone v1.66.0".
func parseVersion(output string) (*goversion.Version, error) {
	firstLine, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	fields := strings.Fields(firstLine)
	if len(fields) != 2 || fields[0] != "rclone" {
		return nil, errors.New("unexpected version output")
	}

	v, err := goversion.NewVersion(fields[1])
	if err != nil {
		return nil, errors.WithContext(err, "parse")
	}
	return v, nil
}

// CheckVersion warns if rclone is older than MinVersion. Syncing is still
// attempted, since rclone reports unknown flags through the usual failure
// path.
func (c *Client) CheckVersion() {
	v, err := c.Version()
	if err != nil {
		log.WithError(err).Warn("Failed to get rclone version")
		return
	}

	if v.LessThan(MinVersion) {
		log.WithFields(log.Fields{
			"version":    v.String(),
			"minVersion": MinVersion.String(),
		}).Warn("rclone is too old for bisync conflict resolution. Please upgrade it")
		return
	}
	log.WithField("version", v.String()).Debug("Found rclone")
}

// IsConfigured reports whether the rclone config at `path` already defines
// the savesync remote.
func IsConfigured(fs afero.Fs, path string) (bool, error) {
	f, err := fs.Open(path)
	if err != nil {
		exists, existsErr := afero.Exists(fs, path)
		if existsErr == nil && !exists {
			return false, nil
		}
		return false, errors.WithContext(err, "open")
	}
	defer f.Close()

	header := "[" + Backend + "]"
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == header {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, errors.WithContext(err, "read")
	}
	return false, nil
}
