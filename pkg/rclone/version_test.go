package rclone

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/savesync/pkg/proc"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		exp      string
		expError bool
	}{
		{
			name: "Release",
			output: "rclone v1.66.0\n" +
				"- os/version: ubuntu 22.04 (64 bit)\n" +
				"- go/version: go1.22.1\n",
			exp: "1.66.0",
		},
		{
			name:   "Beta",
			output: "rclone v1.67.0-beta.7802.1a8b2c3d\n",
			exp:    "1.67.0-beta.7802.1a8b2c3d",
		},
		{
			name:     "Garbage",
			output:   "command not found",
			expError: true,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			v, err := parseVersion(test.output)
			if test.expError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.exp, v.String())
		})
	}
}

func TestVersion(t *testing.T) {
	m := &mockRun{results: []proc.Result{{Stdout: "rclone v1.65.2\n"}}}
	client, _, _ := newTestClient(t, m)

	v, err := client.Version()
	require.NoError(t, err)
	assert.True(t, v.LessThan(MinVersion))
	assert.Equal(t, [][]string{{"rclone", "version"}}, m.calls)
}

func TestIsConfigured(t *testing.T) {
	fs := afero.NewMemMapFs()

	configured, err := IsConfigured(fs, "/app/rclone.conf")
	require.NoError(t, err)
	assert.False(t, configured)

	require.NoError(t, afero.WriteFile(fs, "/app/rclone.conf",
		[]byte("[other]\ntype = s3\n"), 0600))
	configured, err = IsConfigured(fs, "/app/rclone.conf")
	require.NoError(t, err)
	assert.False(t, configured)

	require.NoError(t, afero.WriteFile(fs, "/app/rclone.conf",
		[]byte("[other]\ntype = s3\n\n[backend]\ntype = drive\n"), 0600))
	configured, err = IsConfigured(fs, "/app/rclone.conf")
	require.NoError(t, err)
	assert.True(t, configured)
}
