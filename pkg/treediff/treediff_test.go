package treediff

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/savesync/pkg/config"
)

var (
	t1 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 = t1.Add(time.Hour)
	t3 = t2.Add(time.Hour)
)

type mockFile struct {
	path     string
	contents string
	modTime  time.Time
}

func (f mockFile) writeToFs(fs afero.Fs) error {
	if err := afero.WriteFile(fs, f.path, []byte(f.contents), 0644); err != nil {
		return err
	}
	return fs.Chtimes(f.path, f.modTime, f.modTime)
}

func newFs(t *testing.T, files ...mockFile) afero.Fs {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/local", 0755))
	require.NoError(t, fs.MkdirAll("/remote", 0755))
	for _, f := range files {
		require.NoError(t, f.writeToFs(fs))
	}
	return fs
}

func modTime(t *testing.T, fs afero.Fs, path string) time.Time {
	info, err := fs.Stat(path)
	require.NoError(t, err)
	return info.ModTime()
}

func assertExists(t *testing.T, fs afero.Fs, path string, exp bool) {
	exists, err := afero.Exists(fs, path)
	require.NoError(t, err)
	assert.Equal(t, exp, exists, path)
}

func TestSyncFolderCopiesMissingFile(t *testing.T) {
	fs := newFs(t,
		mockFile{path: "/local/a.txt", contents: "a", modTime: t1},
		mockFile{path: "/local/b.txt", contents: "b", modTime: t2},
		mockFile{path: "/remote/a.txt", contents: "a", modTime: t1},
	)
	engine := New(fs, false)

	count, err := engine.SyncFolder("/local", "/remote", "/local", "/remote", nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	contents, err := afero.ReadFile(fs, "/remote/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "b", string(contents))
	assert.True(t, t2.Equal(modTime(t, fs, "/remote/b.txt")))

	pending, err := engine.IsPendingSync("/local", "/remote", "/local", "/remote", nil)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestSyncFolderIdempotent(t *testing.T) {
	fs := newFs(t,
		mockFile{path: "/local/save1", contents: "1", modTime: t1},
		mockFile{path: "/local/slot/save2", contents: "2", modTime: t2},
		mockFile{path: "/local/slot/deep/save3", contents: "3", modTime: t3},
		mockFile{path: "/remote/stale", contents: "old", modTime: t1},
		mockFile{path: "/remote/old-slot/save", contents: "old", modTime: t1},
	)
	require.NoError(t, fs.Chtimes("/local/slot", t2, t2))
	engine := New(fs, false)

	pending, err := engine.IsPendingSync("/local", "/remote", "/local", "/remote", nil)
	require.NoError(t, err)
	assert.True(t, pending)

	count, err := engine.SyncFolder("/local", "/remote", "/local", "/remote", nil, false)
	require.NoError(t, err)
	// save1, slot, save2, slot/deep, save3, old-slot and stale.
	assert.Equal(t, 7, count)

	assertExists(t, fs, "/remote/old-slot", false)
	assertExists(t, fs, "/remote/stale", false)
	assert.True(t, t3.Equal(modTime(t, fs, "/remote/slot/deep/save3")))
	assert.True(t, t2.Equal(modTime(t, fs, "/remote/slot")))

	count, err = engine.SyncFolder("/local", "/remote", "/local", "/remote", nil, false)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	pending, err = engine.IsPendingSync("/local", "/remote", "/local", "/remote", nil)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestSyncFolderDryRun(t *testing.T) {
	fs := newFs(t,
		mockFile{path: "/local/new", contents: "new", modTime: t2},
		mockFile{path: "/local/changed", contents: "changed", modTime: t2},
		mockFile{path: "/remote/changed", contents: "old", modTime: t1},
		mockFile{path: "/remote/extra-dir/a", modTime: t1},
		mockFile{path: "/remote/extra-dir/b", modTime: t1},
		mockFile{path: "/remote/extra", modTime: t1},
	)
	engine := New(fs, false)

	count, err := engine.SyncFolder("/local", "/remote", "/local", "/remote", nil, true)
	require.NoError(t, err)
	// new, changed, extra-dir (counted once) and extra.
	assert.Equal(t, 4, count)

	assertExists(t, fs, "/remote/new", false)
	assertExists(t, fs, "/remote/extra-dir/a", true)
	assertExists(t, fs, "/remote/extra", true)
	assert.True(t, t1.Equal(modTime(t, fs, "/remote/changed")))
}

func TestSyncFolderTypeConflicts(t *testing.T) {
	fs := newFs(t,
		mockFile{path: "/local/data/save", contents: "save", modTime: t2},
		mockFile{path: "/local/slot", contents: "slot", modTime: t2},
		mockFile{path: "/remote/data", contents: "file", modTime: t1},
		mockFile{path: "/remote/slot/old", contents: "old", modTime: t1},
	)
	engine := New(fs, false)

	pending, err := engine.IsPendingSync("/local", "/remote", "/local", "/remote", nil)
	require.NoError(t, err)
	assert.True(t, pending)

	count, err := engine.SyncFolder("/local", "/remote", "/local", "/remote", nil, true)
	require.NoError(t, err)
	// data, slot, and the slot directory that's in the way.
	assert.Equal(t, 3, count)
	assertExists(t, fs, "/remote/slot/old", true)

	count, err = engine.SyncFolder("/local", "/remote", "/local", "/remote", nil, false)
	require.NoError(t, err)
	// data, data/save and slot.
	assert.Equal(t, 3, count)

	contents, err := afero.ReadFile(fs, "/remote/data/save")
	require.NoError(t, err)
	assert.Equal(t, "save", string(contents))

	contents, err = afero.ReadFile(fs, "/remote/slot")
	require.NoError(t, err)
	assert.Equal(t, "slot", string(contents))
	assertExists(t, fs, "/remote/slot/old", false)

	count, err = engine.SyncFolder("/local", "/remote", "/local", "/remote", nil, false)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	pending, err = engine.IsPendingSync("/local", "/remote", "/local", "/remote", nil)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestSyncFolderExclusionsAndMarker(t *testing.T) {
	fs := newFs(t,
		mockFile{path: "/local/save", contents: "save", modTime: t1},
		mockFile{path: "/local/settings.ini", contents: "local", modTime: t2},
		mockFile{path: "/local/" + config.MarkerFileName, modTime: t2},
		mockFile{path: "/remote/settings.ini", contents: "remote", modTime: t1},
	)
	engine := New(fs, false)
	exclusions := []string{"settings.ini"}

	count, err := engine.SyncFolder("/local", "/remote", "/local", "/remote", exclusions, false)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assertExists(t, fs, "/remote/"+config.MarkerFileName, false)
	contents, err := afero.ReadFile(fs, "/remote/settings.ini")
	require.NoError(t, err)
	assert.Equal(t, "remote", string(contents))

	pending, err := engine.IsPendingSync("/local", "/remote", "/local", "/remote", exclusions)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestSyncFolderDirectionality(t *testing.T) {
	files := []mockFile{
		{path: "/local/kept", contents: "kept", modTime: t1},
		{path: "/remote/kept", contents: "kept", modTime: t1},
		{path: "/remote/deleted-locally", contents: "deleted", modTime: t1},
	}

	t.Run("RemoteIsSource", func(t *testing.T) {
		fs := newFs(t, files...)
		count, err := New(fs, false).SyncFolder("/remote", "/local", "/remote", "/local", nil, false)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assertExists(t, fs, "/local/deleted-locally", true)
		assertExists(t, fs, "/remote/deleted-locally", true)
	})

	t.Run("LocalIsSource", func(t *testing.T) {
		fs := newFs(t, files...)
		count, err := New(fs, false).SyncFolder("/local", "/remote", "/local", "/remote", nil, false)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assertExists(t, fs, "/local/deleted-locally", false)
		assertExists(t, fs, "/remote/deleted-locally", false)
	})
}

func TestSyncFolderCreatesTarget(t *testing.T) {
	fs := newFs(t, mockFile{path: "/local/slot/save", contents: "save", modTime: t1})
	engine := New(fs, false)

	count, err := engine.SyncFolder("/local", "/remote/game", "/local", "/remote/game", nil, false)
	require.NoError(t, err)
	// remote/game, remote/game/slot and the save itself.
	assert.Equal(t, 3, count)
	assertExists(t, fs, "/remote/game/slot/save", true)
}

func TestSyncFolderMissingSource(t *testing.T) {
	fs := newFs(t, mockFile{path: "/remote/game/save", modTime: t1})
	_, err := New(fs, false).SyncFolder("/local/game", "/remote/game", "/local/game", "/remote/game", nil, false)
	assert.Error(t, err)
	assertExists(t, fs, "/remote/game/save", true)
}

func TestSyncFile(t *testing.T) {
	tests := []struct {
		name     string
		files    []mockFile
		dryRun   bool
		expCount int
		expLocal *mockFile
	}{
		{
			name:     "SourceMissingTargetExists",
			files:    []mockFile{{path: "/local/save", contents: "stale", modTime: t1}},
			expCount: 1,
		},
		{
			name:     "BothMissing",
			expCount: 0,
		},
		{
			name:     "TargetMissing",
			files:    []mockFile{{path: "/remote/save", contents: "remote", modTime: t2}},
			expCount: 1,
			expLocal: &mockFile{contents: "remote", modTime: t2},
		},
		{
			name: "Changed",
			files: []mockFile{
				{path: "/remote/save", contents: "remote", modTime: t1},
				{path: "/local/save", contents: "local", modTime: t2},
			},
			expCount: 1,
			expLocal: &mockFile{contents: "remote", modTime: t1},
		},
		{
			name: "Unchanged",
			files: []mockFile{
				{path: "/remote/save", contents: "remote", modTime: t1},
				{path: "/local/save", contents: "local", modTime: t1},
			},
			expCount: 0,
			expLocal: &mockFile{contents: "local", modTime: t1},
		},
		{
			name: "DryRun",
			files: []mockFile{
				{path: "/remote/save", contents: "remote", modTime: t1},
				{path: "/local/save", contents: "local", modTime: t2},
			},
			dryRun:   true,
			expCount: 1,
			expLocal: &mockFile{contents: "local", modTime: t2},
		},
		{
			name: "TargetIsDirectory",
			files: []mockFile{
				{path: "/remote/save", contents: "remote", modTime: t2},
				{path: "/local/save/nested", contents: "nested", modTime: t1},
			},
			expCount: 1,
			expLocal: &mockFile{contents: "remote", modTime: t2},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			fs := newFs(t, test.files...)
			count, err := New(fs, false).SyncFile("/remote/save", "/remote", "/local", test.dryRun)
			require.NoError(t, err)
			assert.Equal(t, test.expCount, count)

			if test.expLocal == nil {
				assertExists(t, fs, "/local/save", false)
				return
			}

			contents, err := afero.ReadFile(fs, "/local/save")
			require.NoError(t, err)
			assert.Equal(t, test.expLocal.contents, string(contents))
			assert.True(t, test.expLocal.modTime.Equal(modTime(t, fs, "/local/save")))
		})
	}
}

func TestHasChanged(t *testing.T) {
	fs := newFs(t, mockFile{path: "/local/save", contents: "save", modTime: t1})
	engine := New(fs, false)

	_, err := engine.SyncFile("/local/save", "/local", "/remote", false)
	require.NoError(t, err)

	changed, err := engine.HasChanged("/local/save", "/remote/save")
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, mockFile{path: "/remote/save", contents: "edited", modTime: t2}.writeToFs(fs))
	changed, err = engine.HasChanged("/local/save", "/remote/save")
	require.NoError(t, err)
	assert.True(t, changed)

	// A newer source is just as changed as a newer target.
	changed, err = engine.HasChanged("/remote/save", "/local/save")
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestContentChanged(t *testing.T) {
	fs := newFs(t,
		mockFile{path: "/local/same", contents: "save", modTime: t1},
		mockFile{path: "/remote/same", contents: "save", modTime: t2},
		mockFile{path: "/local/edited", contents: "save-a", modTime: t1},
		mockFile{path: "/remote/edited", contents: "save-b", modTime: t1},
		mockFile{path: "/local/resized", contents: "short", modTime: t1},
		mockFile{path: "/remote/resized", contents: "much longer", modTime: t1},
	)
	engine := New(fs, true)

	tests := []struct {
		name string
		exp  bool
	}{
		{"same", false},
		{"edited", true},
		{"resized", true},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			changed, err := engine.HasChanged(
				filepath.Join("/local", test.name), filepath.Join("/remote", test.name))
			require.NoError(t, err)
			assert.Equal(t, test.exp, changed)
		})
	}
}

func TestLastModifiedTime(t *testing.T) {
	fs := newFs(t,
		mockFile{path: "/local/included", modTime: t1},
		mockFile{path: "/local/also-included", modTime: t2},
		mockFile{path: "/local/newest", modTime: t3},
		mockFile{path: "/local/dir/excluded", modTime: t3.Add(time.Hour)},
	)
	engine := New(fs, false)

	tests := []struct {
		name       string
		path       string
		inclusions []string
		exclusions []string
		exp        time.Time
	}{
		{
			name:       "Inclusions",
			path:       "/local",
			inclusions: []string{"included", "also-included", "missing"},
			exp:        t2,
		},
		{
			name:       "Exclusions",
			path:       "/local",
			exclusions: []string{"excluded"},
			exp:        t3,
		},
		{
			name: "FullTree",
			path: "/local",
			exp:  t3.Add(time.Hour),
		},
		{
			name: "PlainFile",
			path: "/local/included",
			exp:  t1,
		},
		{
			name: "Missing",
			path: "/missing",
			exp:  time.Time{},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			actual, err := engine.LastModifiedTime(test.path, test.inclusions, test.exclusions)
			require.NoError(t, err)
			assert.True(t, test.exp.Equal(actual), "expected %s, got %s", test.exp, actual)
		})
	}
}

func TestLastModifiedTimeMillisecondPrecision(t *testing.T) {
	precise := t1.Add(1234567 * time.Nanosecond)
	fs := newFs(t, mockFile{path: "/local/save", modTime: precise})

	actual, err := New(fs, false).LastModifiedTime("/local", nil, nil)
	require.NoError(t, err)
	assert.True(t, t1.Add(time.Millisecond).Equal(actual))
}

func TestIsPendingSync(t *testing.T) {
	tests := []struct {
		name  string
		files []mockFile
		exp   bool
	}{
		{
			name: "InSync",
			files: []mockFile{
				{path: "/local/a", modTime: t1},
				{path: "/remote/a", modTime: t1},
			},
			exp: false,
		},
		{
			name: "MissingDirOnTarget",
			files: []mockFile{
				{path: "/local/dir/a", modTime: t1},
			},
			exp: true,
		},
		{
			name: "ChangedFile",
			files: []mockFile{
				{path: "/local/a", modTime: t1},
				{path: "/remote/a", modTime: t2},
			},
			exp: true,
		},
		{
			name: "ExtraFileOnTarget",
			files: []mockFile{
				{path: "/remote/a", modTime: t1},
			},
			exp: true,
		},
		{
			name: "ExtraDirOnTarget",
			files: []mockFile{
				{path: "/remote/dir/a", modTime: t1},
			},
			exp: true,
		},
		{
			name: "ExcludedDifferences",
			files: []mockFile{
				{path: "/local/excluded", modTime: t1},
				{path: "/remote/excluded", modTime: t2},
			},
			exp: false,
		},
		{
			name: "ExcludedOnlyOnTarget",
			files: []mockFile{
				{path: "/remote/excluded", modTime: t2},
			},
			exp: false,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			fs := newFs(t, test.files...)
			pending, err := New(fs, false).IsPendingSync("/local", "/remote", "/local", "/remote",
				[]string{"excluded"})
			require.NoError(t, err)
			assert.Equal(t, test.exp, pending)
		})
	}
}
