// Package suspend pauses and resumes a running process through an external
// helper (e.g. Sysinternals `pssuspend`), so that a game can't read its save
// data while it's being replaced.
package suspend

import (
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/savesync/pkg/errors"
	"github.com/sidkik/savesync/pkg/proc"
)

// Mocked out for unit testing.
var run = proc.Run

// Helper invokes the suspend helper as `<path> <pid>` to suspend, and
// `<path> <resumeFlag> <pid>` to resume.
type Helper struct {
	path       string
	resumeFlag string
}

// New creates a Helper.
func New(path, resumeFlag string) Helper {
	return Helper{path: path, resumeFlag: resumeFlag}
}

// Suspend pauses the process with the given PID.
func (h Helper) Suspend(pid int32) error {
	return h.invoke(strconv.Itoa(int(pid)))
}

// Resume continues the process with the given PID.
func (h Helper) Resume(pid int32) error {
	return h.invoke(h.resumeFlag, strconv.Itoa(int(pid)))
}

// invoke treats both a non-zero exit code and any stderr output as failure.
func (h Helper) invoke(args ...string) error {
	command := append([]string{h.path}, args...)
	log.WithField("command", command).Debug("Running suspend helper")

	res, err := run(h.path, args...)
	if err != nil {
		return err
	}
	if res.Stderr != "" {
		return errors.ProcessFailure{Command: command, Stderr: res.Stderr}
	}
	if res.ExitCode != 0 {
		return errors.ToolFailure{Command: command, ExitCode: res.ExitCode}
	}
	return nil
}
