// Package proc runs short-lived external helpers and reports how they
// finished.
package proc

import (
	"bytes"
	"os/exec"

	"github.com/sidkik/savesync/pkg/errors"
)

// Mocked out for unit testing.
var runCommand = (*exec.Cmd).Run

// Result describes a process that ran to completion.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Run runs `name` with `args` and waits for it to exit. A non-zero exit code
// isn't an error: it's returned in the Result so callers can decide how to
// recover. An error is only returned if the process couldn't be run at all.
func Run(name string, args ...string) (Result, error) {
	cmd := exec.Command(name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := runCommand(cmd)
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, errors.ProcessFailure{Command: append([]string{name}, args...), Err: err}
}
