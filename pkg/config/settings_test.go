package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/savesync/pkg/errors"
)

func TestLoad(t *testing.T) {
	path := "/home/user/.savesync/config.yaml"

	correctVersion := Config{
		Version:             SupportedConfigVersion,
		CheckIntervalMillis: 500,
		Remote:              "saves",
		Provider:            "drive",
		Entries: []Entry{
			{
				Name:       "game",
				Category:   Game,
				Executable: "/games/game.exe",
				LocalDir:   "/saves/game",
				RemoteDir:  "game",
			},
		},
	}
	correctVersionBytes, err := yaml.Marshal(correctVersion)
	require.NoError(t, err)

	emptyVersion := correctVersion
	emptyVersion.Version = ""
	emptyVersionBytes, err := yaml.Marshal(emptyVersion)
	require.NoError(t, err)

	withDefaults := correctVersion
	withDefaults.RclonePath = DefaultRclonePath
	withDefaults.SuspendPath = DefaultSuspendPath
	withDefaults.SuspendResumeFlag = DefaultSuspendResumeFlag

	tests := []struct {
		name      string
		input     []byte
		expConfig Config
		expError  error
	}{
		{
			name:      "CorrectVersion",
			input:     correctVersionBytes,
			expConfig: withDefaults,
		},
		{
			name:      "EmptyVersion",
			input:     emptyVersionBytes,
			expConfig: withDefaults,
		},
		{
			name:  "IncorrectVersion",
			input: []byte("version: v2\n"),
			expError: errors.WithContext(incompatibleVersionError{
				path:   path,
				exp:    SupportedConfigVersion,
				actual: "v2",
			}, "parse"),
		},
		{
			name: "ExtraFields",
			input: []byte(fmt.Sprintf(
				"version: %s\nextra: fields", SupportedConfigVersion)),
			expError: errors.WithContext(
				errors.NewFriendlyError(parseConfigErrTemplate, path,
					errors.New("error unmarshaling JSON: while decoding JSON: "+
						`json: unknown field "extra"`)),
				"parse"),
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			fs = afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, path, test.input, 0644))

			cfg, err := Load(path)
			if test.expError != nil {
				assert.EqualError(t, err, test.expError.Error())
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, test.expConfig, cfg)
		})
	}
}

func TestLoadMissing(t *testing.T) {
	fs = afero.NewMemMapFs()
	cfg, err := Load("/missing.yaml")
	require.NoError(t, err)
	assert.Empty(t, cfg.Entries)
	assert.Equal(t, DefaultRemote, cfg.Remote)
	assert.Equal(t, DefaultCheckInterval, cfg.CheckInterval())
	assert.Equal(t, DefaultNotifyMinDuration, cfg.NotifyMinDuration())
}

func TestDurations(t *testing.T) {
	cfg := Config{CheckIntervalMillis: 250, NotifyMinDurationMillis: 40}
	assert.Equal(t, 250*time.Millisecond, cfg.CheckInterval())
	assert.Equal(t, 40*time.Millisecond, cfg.NotifyMinDuration())
}

func TestAppendAndRemoveEntry(t *testing.T) {
	fs = afero.NewMemMapFs()
	paths := NewPaths("/app", "/cache")

	entry := Entry{
		Name:       "game",
		Executable: `C:\Games\Game.exe`,
		LocalDir:   "/saves/game",
		RemoteDir:  "/app/remote/game",
		Inclusions: []string{},
	}
	require.NoError(t, AppendEntry(paths.ConfigFile, paths, entry))

	cfg, err := Load(paths.ConfigFile)
	require.NoError(t, err)
	require.Len(t, cfg.Entries, 1)
	assert.Equal(t, Entry{
		Name:       "game",
		Category:   Game,
		Executable: `C:\Games\Game.exe`,
		LocalDir:   "/saves/game",
		RemoteDir:  "game",
	}, cfg.Entries[0])

	err = AppendEntry(paths.ConfigFile, paths, entry)
	assert.Error(t, err)

	icon := paths.IconPath("Game")
	require.NoError(t, afero.WriteFile(fs, icon, []byte("icon"), 0644))

	require.NoError(t, RemoveEntry(paths.ConfigFile, paths, "game"))
	cfg, err = Load(paths.ConfigFile)
	require.NoError(t, err)
	assert.Empty(t, cfg.Entries)

	exists, err := afero.Exists(fs, icon)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Error(t, RemoveEntry(paths.ConfigFile, paths, "game"))
}
