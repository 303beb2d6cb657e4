package errors

import (
	"fmt"
	"strings"
)

// ErrAlreadyRunning is returned when another savesync daemon holds the
// instance lock.
var ErrAlreadyRunning = New("another savesync instance is already running")

// MissingFieldError represents a missing required field.
type MissingFieldError struct {
	Field string
}

func (err MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// ToolFailure is returned when an external tool ran to completion but
// reported failure through a non-zero exit code.
type ToolFailure struct {
	Command  []string
	ExitCode int
}

func (err ToolFailure) Error() string {
	return fmt.Sprintf("%q exited with code %d",
		strings.Join(err.Command, " "), err.ExitCode)
}

// ProcessFailure is returned when an external process couldn't be run, or
// when it wrote to stderr.
type ProcessFailure struct {
	Command []string
	Stderr  string
	Err     error
}

func (err ProcessFailure) Error() string {
	cmd := strings.Join(err.Command, " ")
	if err.Err != nil {
		return fmt.Sprintf("run %q: %s", cmd, err.Err)
	}
	return fmt.Sprintf("%q wrote to stderr: %s", cmd, strings.TrimSpace(err.Stderr))
}

func (err ProcessFailure) Unwrap() error {
	return err.Err
}

// InvalidConfig is returned when the configured entries can't be activated.
// The whole entry list is rejected, rather than only the offending entry.
type InvalidConfig struct {
	Entry  string
	Reason string
}

func (err InvalidConfig) Error() string {
	return fmt.Sprintf("invalid entry %q: %s", err.Entry, err.Reason)
}

func (err InvalidConfig) FriendlyMessage() string {
	return fmt.Sprintf("The configured entries could not be activated.\n"+
		"Entry %q is invalid: %s.\n"+
		"No entries will be synced until the configuration is fixed.",
		err.Entry, err.Reason)
}
