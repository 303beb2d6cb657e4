package errors

import (
	"errors"
	"fmt"
)

// New returns an error with the given message. It behaves like the standard
// library's `errors.New`.
func New(msg string) error {
	return errors.New(msg)
}

// Is and As are re-exported so that callers only need to import this package.
var (
	Is = errors.Is
	As = errors.As
)

type withContext struct {
	context string
	err     error
}

// WithContext annotates `err` with a short description of what was being
// done when it occurred. The resulting message reads like
// "parse config: open ~/.savesync/config.yaml: no such file or directory".
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return withContext{context, err}
}

func (err withContext) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.err)
}

func (err withContext) Unwrap() error {
	return err.err
}

// FriendlyError is an error whose message is meant to be read by users, as
// opposed to developers.
type FriendlyError interface {
	error
	FriendlyMessage() string
}

type friendlyError struct {
	msg string
}

// NewFriendlyError creates an error that is printed to the user as-is by
// GetPrintableMessage, without any of the context that wraps it.
func NewFriendlyError(format string, args ...interface{}) error {
	return friendlyError{fmt.Sprintf(format, args...)}
}

func (err friendlyError) Error() string {
	return err.msg
}

func (err friendlyError) FriendlyMessage() string {
	return err.msg
}

// RootCause unwraps all the context added by WithContext and returns the
// original error.
func RootCause(err error) error {
	for {
		wrapped, ok := err.(withContext)
		if !ok {
			return err
		}
		err = wrapped.err
	}
}

// GetPrintableMessage returns the message that should be shown to the user
// for `err`. If any error in the chain is a FriendlyError, its message is
// used. Otherwise, the full error string is returned.
func GetPrintableMessage(err error) string {
	var friendly FriendlyError
	if errors.As(err, &friendly) {
		return friendly.FriendlyMessage()
	}
	return err.Error()
}
