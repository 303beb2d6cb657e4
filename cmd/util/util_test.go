package util

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sidkik/savesync/pkg/config"
	"github.com/sidkik/savesync/pkg/errors"
)

func TestHandleFatalError(t *testing.T) {
	var exitCode int
	origExit := exit
	exit = func(code int) { exitCode = code }
	defer func() { exit = origExit }()

	HandleFatalError(errors.NewFriendlyError("friendly"))
	assert.Equal(t, 1, exitCode)
}

func TestHandlePanic(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		defer HandlePanic()
		panic("boom")
	})

	assert.NotPanics(t, func() {
		defer HandlePanic()
	})
}

func TestNewApp(t *testing.T) {
	paths := config.NewPaths("/app", "/cache")
	app := NewApp(paths, config.Config{}.WithDefaults())

	assert.Equal(t, paths, app.Paths)
	assert.NotNil(t, app.Orchestrator)
	assert.Empty(t, app.Orchestrator.AllEntries())
}
